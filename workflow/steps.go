// ABOUTME: The eight step executors for the ad pipeline, from script generation to final composition.
// ABOUTME: Image and video steps fan out per shot under an errgroup but present one aggregated completion point.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// defaultShotCount applies when neither the caller nor the config names one.
const defaultShotCount = 4

func resolveTopic(rc *RunContext) string {
	if rc.Options.Topic != "" {
		return rc.Options.Topic
	}
	return rc.Config.StringAt("workflow.topic", "product showcase")
}

func resolveShotCount(rc *RunContext) int {
	if rc.Options.Shots > 0 {
		return rc.Options.Shots
	}
	return rc.Config.IntAt("workflow.shot_count", defaultShotCount)
}

// resolveStyleKey accepts either a numeric menu choice or a style key.
func resolveStyleKey(rc *RunContext) string {
	choice := rc.Options.Style
	if choice == "" {
		choice = rc.Config.StringAt("workflow.style", "cinematic")
	}
	if n, err := strconv.Atoi(choice); err == nil {
		if key, ok := rc.Config.Mappings.Styles[n]; ok {
			return key
		}
	}
	return choice
}

// resolveResolution accepts either a numeric menu choice or a resolution label.
func resolveResolution(rc *RunContext) string {
	choice := rc.Options.Resolution
	if choice == "" {
		choice = rc.Config.StringAt("workflow.resolution", "720p")
	}
	if n, err := strconv.Atoi(choice); err == nil {
		if label, ok := rc.Config.Mappings.Resolutions[n]; ok {
			return label
		}
	}
	return choice
}

// visualStyleDetail returns the configured detail map for a style key.
func visualStyleDetail(rc *RunContext, styleKey string) map[string]any {
	if detail, ok := rc.Config.Lookup("visual_styles." + styleKey).(map[string]any); ok {
		return detail
	}
	return map[string]any{}
}

func styleString(detail map[string]any, key string) string {
	s, _ := detail[key].(string)
	return s
}

// buildScriptPrompt fills the configured story_outline template, falling back
// to a minimal inline prompt when none is configured.
func buildScriptPrompt(rc *RunContext, topic string, shotCount int, styleKey string) string {
	detail := visualStyleDetail(rc, styleKey)
	styleName := styleString(detail, "name")
	if styleName == "" {
		styleName = styleKey
	}
	palette := styleString(detail, "color_palette")
	colors := []string{}
	for _, c := range strings.Split(palette, ",") {
		if c = strings.TrimSpace(c); c != "" {
			colors = append(colors, c)
		}
	}
	primary1 := "blue"
	primary2 := "purple"
	if len(colors) > 0 {
		primary1 = colors[0]
		primary2 = colors[0]
	}
	if len(colors) > 1 {
		primary2 = colors[1]
	}

	tpl := rc.Config.StringAt("prompt_templates.story_outline", "")
	if tpl == "" {
		return fmt.Sprintf("Write an ad script for %q with %d shots in the %s style, including narration and a summary per shot.", topic, shotCount, styleName)
	}

	return strings.NewReplacer(
		"{topic}", topic,
		"{shot_count}", strconv.Itoa(shotCount),
		"{style_name}", styleName,
		"{visual_style}", styleString(detail, "visual_style"),
		"{color_palette}", palette,
		"{primary_color_1}", primary1,
		"{primary_color_2}", primary2,
		"{mood}", styleString(detail, "mood"),
	).Replace(tpl)
}

func runScript(ctx context.Context, rc *RunContext) error {
	if rc.Clients.Script == nil {
		return fmt.Errorf("script client not configured")
	}
	topic := resolveTopic(rc)
	shotCount := resolveShotCount(rc)
	styleKey := resolveStyleKey(rc)
	prompt := buildScriptPrompt(rc, topic, shotCount, styleKey)

	rc.Limiter("llm").Acquire()
	text, err := rc.Clients.Script.Generate(ctx, prompt)
	if err != nil {
		return err
	}

	rc.State.Steps.Script = &ScriptResult{
		Text:      text,
		Topic:     topic,
		ShotCount: shotCount,
		Style:     styleKey,
	}
	rc.Infof("script generated")
	return nil
}

// parseShotSegments extracts per-shot scene summaries from the script text,
// tolerating ```json fences. A non-JSON script yields no segments and every
// shot prompt falls back to the raw text.
func parseShotSegments(text string) []string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.Trim(cleaned, "`")
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "json"))
	}

	var parsed struct {
		ShotBreakdown []map[string]any `json:"shot_breakdown"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil
	}

	segments := make([]string, 0, len(parsed.ShotBreakdown))
	for _, item := range parsed.ShotBreakdown {
		seg, _ := item["scene_summary"].(string)
		if seg == "" {
			seg, _ = item["key_action"].(string)
		}
		segments = append(segments, seg)
	}
	return segments
}

func runShots(_ context.Context, rc *RunContext) error {
	script := rc.State.Steps.Script
	baseText := ""
	styleKey := resolveStyleKey(rc)
	if script != nil {
		baseText = script.Text
		if script.Style != "" {
			styleKey = script.Style
		}
	}
	detail := visualStyleDetail(rc, styleKey)
	styleName := styleString(detail, "name")
	if styleName == "" {
		styleName = styleKey
	}
	total := resolveShotCount(rc)
	resolution := resolveResolution(rc)

	cleaned := strings.TrimSpace(baseText)
	segments := parseShotSegments(baseText)

	prompts := make([]string, 0, total)
	for i := 0; i < total; i++ {
		segment := cleaned
		if i < len(segments) && segments[i] != "" {
			segment = segments[i]
		}
		hint := strings.TrimSpace(strings.SplitN(segment, "\n", 2)[0])
		if hint == "" {
			hint = "establishing shot"
		}
		prompts = append(prompts, fmt.Sprintf(
			"Shot %d | style: %s | visual tone: %s | %s",
			i+1, styleName, styleString(detail, "visual_style"), hint,
		))
	}

	rc.State.Steps.Shots = &ShotsResult{
		Prompts:    prompts,
		Style:      styleKey,
		Resolution: resolution,
	}
	rc.Assets["shots_meta"] = map[string]any{"style": styleKey, "resolution": resolution}
	rc.Infof("shot breakdown ready (%d shots)", len(prompts))
	return nil
}

// fanOutLimit is the bound on concurrent generation calls inside one step.
func fanOutLimit(rc *RunContext) int {
	if n := rc.Config.IntAt("runtime.max_parallel", 0); n > 0 {
		return n
	}
	return 2
}

func runImages(ctx context.Context, rc *RunContext, outputDir string) error {
	shots := rc.State.Steps.Shots
	if shots == nil || len(shots.Prompts) == 0 {
		rc.Warnf("no shot prompts, skipping image generation")
		return nil
	}
	if rc.Clients.Image == nil {
		return fmt.Errorf("image client not configured")
	}

	limiter := rc.Limiter("media")
	results := make([]struct{ path, url string }, len(shots.Prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit(rc))
	for i, prompt := range shots.Prompts {
		i, prompt := i, prompt
		g.Go(func() error {
			limiter.Acquire()
			out := filepath.Join(outputDir, fmt.Sprintf("shot_%02d.png", i+1))
			file, err := rc.Clients.Image.GenerateImage(gctx, prompt, out)
			if err != nil {
				return fmt.Errorf("shot %d: %w", i+1, err)
			}
			results[i].path = file.Path
			results[i].url = file.URL
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	files := make([]string, 0, len(results))
	urls := make([]string, 0, len(results))
	for _, r := range results {
		if r.path != "" {
			files = append(files, r.path)
		}
		if r.url != "" {
			urls = append(urls, r.url)
		}
	}

	rc.State.Steps.Images = &MediaResult{Files: files, URLs: urls}
	rc.Assets[StepImages] = files
	if len(urls) > 0 {
		rc.Assets["images_urls"] = urls
	}
	rc.Infof("images generated (%d)", len(files))
	return nil
}

func runVideos(ctx context.Context, rc *RunContext, outputDir string) error {
	shots := rc.State.Steps.Shots
	if shots == nil || len(shots.Prompts) == 0 {
		rc.Warnf("no shot prompts, skipping video generation")
		return nil
	}
	if rc.Clients.Video == nil {
		return fmt.Errorf("video client not configured")
	}

	resolution := shots.Resolution
	if resolution == "" {
		resolution = resolveResolution(rc)
	}

	var references []string
	if urls, ok := rc.Assets["images_urls"].([]string); ok {
		references = urls
	} else if img := rc.State.Steps.Images; img != nil {
		references = img.URLs
	}

	limiter := rc.Limiter("media")
	results := make([]struct{ path, url string }, len(shots.Prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit(rc))
	for i, prompt := range shots.Prompts {
		i, prompt := i, prompt
		g.Go(func() error {
			limiter.Acquire()
			reference := ""
			if i < len(references) {
				reference = references[i]
			}
			out := filepath.Join(outputDir, fmt.Sprintf("shot_%02d.mp4", i+1))
			file, err := rc.Clients.Video.GenerateVideo(gctx, prompt, out, reference, resolution)
			if err != nil {
				return fmt.Errorf("shot %d: %w", i+1, err)
			}
			results[i].path = file.Path
			results[i].url = file.URL
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	files := make([]string, 0, len(results))
	urls := make([]string, 0, len(results))
	for _, r := range results {
		if r.path != "" {
			files = append(files, r.path)
		}
		if r.url != "" {
			urls = append(urls, r.url)
		}
	}

	rc.State.Steps.Videos = &MediaResult{Files: files, URLs: urls, Resolution: resolution}
	rc.Assets[StepVideos] = files
	if len(urls) > 0 {
		rc.Assets["videos_urls"] = urls
	}
	rc.Infof("videos generated (%d)", len(files))
	return nil
}

func runVoice(ctx context.Context, rc *RunContext, outputPath string) error {
	if rc.Clients.Voice == nil {
		return fmt.Errorf("voice client not configured")
	}
	text := ""
	if s := rc.State.Steps.Script; s != nil {
		text = s.Text
	}

	rc.Limiter("voice").Acquire()
	result, err := rc.Clients.Voice.Synthesize(ctx, text, outputPath)
	if err != nil {
		return err
	}

	rc.State.Steps.Voice = &VoiceResult{File: result.Path, Duration: result.Duration}
	rc.Assets[StepVoice] = result.Path
	rc.Assets["voice_info"] = map[string]any{"duration": result.Duration}
	rc.Infof("narration generated (%.1fs)", result.Duration)
	return nil
}

func runSubtitle(ctx context.Context, rc *RunContext, voicePath, outputPath string) error {
	if rc.Clients.Subtitle == nil {
		return fmt.Errorf("subtitle client not configured")
	}
	text := ""
	if s := rc.State.Steps.Script; s != nil {
		text = s.Text
	}
	duration := 0.0
	if info, ok := rc.Assets["voice_info"].(map[string]any); ok {
		if d, ok := info["duration"].(float64); ok {
			duration = d
		}
	}
	if duration == 0 {
		if v := rc.State.Steps.Voice; v != nil {
			duration = v.Duration
		}
	}

	subtitlePath, err := rc.Clients.Subtitle.CreateSubtitle(ctx, voicePath, outputPath, text, duration)
	if err != nil {
		return err
	}
	if subtitlePath == "" {
		rc.Warnf("subtitle generation skipped")
		return nil
	}

	rc.State.Steps.Subtitle = &FileResult{File: subtitlePath}
	rc.Assets[StepSubtitle] = subtitlePath
	rc.Infof("subtitle generated")
	return nil
}

func runMusic(ctx context.Context, rc *RunContext, musicDir, outputPath string) error {
	if rc.Clients.Music == nil {
		return fmt.Errorf("music client not configured")
	}
	style := resolveStyleKey(rc)
	if s := rc.State.Steps.Shots; s != nil && s.Style != "" {
		style = s.Style
	}

	musicPath, err := rc.Clients.Music.PickMusic(ctx, musicDir, outputPath, style)
	if err != nil {
		return err
	}
	if musicPath == "" {
		rc.Infof("no music selected, skipping")
		return nil
	}

	rc.State.Steps.Music = &FileResult{File: musicPath}
	rc.Assets[StepMusic] = musicPath
	rc.Infof("music prepared")
	return nil
}

func runCompose(ctx context.Context, rc *RunContext, outputPath string) error {
	if rc.Clients.Composer == nil {
		return fmt.Errorf("composer client not configured")
	}

	var videos []string
	if files, ok := rc.Assets[StepVideos].([]string); ok {
		videos = files
	} else if v := rc.State.Steps.Videos; v != nil {
		videos = v.Files
	}

	voicePath, _ := rc.Assets[StepVoice].(string)
	musicPath, _ := rc.Assets[StepMusic].(string)
	subtitlePath, _ := rc.Assets[StepSubtitle].(string)

	result, err := rc.Clients.Composer.Compose(ctx, videos, voicePath, musicPath, subtitlePath, outputPath)
	if err != nil {
		return err
	}

	rc.State.Steps.Compose = &FileResult{File: result}
	rc.Assets["final_video"] = result
	rc.Infof("composition complete: %s", result)
	return nil
}
