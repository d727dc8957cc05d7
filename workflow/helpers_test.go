// ABOUTME: Shared test fixtures for the workflow package: a minimal config and call-recording fake clients.
// ABOUTME: Fakes count invocations so resume tests can assert which collaborators were actually called.
package workflow

import (
	"context"
	"sync"
	"testing"

	"github.com/linapp/akavideo/config"
	"github.com/linapp/akavideo/media"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	merged := map[string]any{
		"visual_styles": map[string]any{
			"cinematic": map[string]any{
				"name":          "Cinematic",
				"visual_style":  "film grain, anamorphic",
				"color_palette": "gold, black",
				"mood":          "dramatic",
			},
		},
		"camera_movements": []any{"pan"},
		"prompt_templates": map[string]any{
			"story_outline": "Topic {topic}, {shot_count} shots, style {style_name}, palette {color_palette}",
		},
		"workflow": map[string]any{
			"shot_count": 2,
			"style":      "cinematic",
			"resolution": "720p",
		},
		"runtime": map[string]any{"max_parallel": 2},
	}
	return &config.Config{
		ProjectRoot: t.TempDir(),
		Merged:      merged,
		Mappings: config.Mappings{
			Styles:      map[int]string{5: "cinematic"},
			Resolutions: map[int]string{2: "720p"},
		},
		Hash: config.Hash(merged),
	}
}

// callCounter tracks collaborator invocations by name.
type callCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCallCounter() *callCounter {
	return &callCounter{calls: map[string]int{}}
}

func (c *callCounter) inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
}

func (c *callCounter) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

type fakeScriptClient struct {
	counter *callCounter
	text    string
	err     error
}

func (f *fakeScriptClient) Generate(_ context.Context, prompt string) (string, error) {
	f.counter.inc("script")
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return `{"shot_breakdown": [{"scene_summary": "opening"}, {"scene_summary": "closing"}]}`, nil
}

type fakeImageClient struct {
	counter *callCounter
	err     error
}

func (f *fakeImageClient) GenerateImage(_ context.Context, prompt, outputPath string) (media.GeneratedFile, error) {
	f.counter.inc("image")
	if f.err != nil {
		return media.GeneratedFile{}, f.err
	}
	return media.GeneratedFile{Path: outputPath, URL: "http://x/" + prompt[:4]}, nil
}

type fakeVideoClient struct {
	counter    *callCounter
	err        error
	mu         sync.Mutex
	references []string
}

func (f *fakeVideoClient) GenerateVideo(_ context.Context, prompt, outputPath, referenceURL, resolution string) (media.GeneratedFile, error) {
	f.counter.inc("video")
	f.mu.Lock()
	f.references = append(f.references, referenceURL)
	f.mu.Unlock()
	if f.err != nil {
		return media.GeneratedFile{}, f.err
	}
	return media.GeneratedFile{Path: outputPath, URL: "http://v/" + prompt[:4]}, nil
}

type fakeVoiceClient struct {
	counter *callCounter
}

func (f *fakeVoiceClient) Synthesize(_ context.Context, text, outputPath string) (media.VoiceSynthesis, error) {
	f.counter.inc("voice")
	return media.VoiceSynthesis{Path: outputPath, Duration: 12.5}, nil
}

type fakeSubtitleClient struct {
	counter *callCounter
}

func (f *fakeSubtitleClient) CreateSubtitle(_ context.Context, voicePath, outputPath, text string, duration float64) (string, error) {
	f.counter.inc("subtitle")
	return outputPath, nil
}

type fakeMusicClient struct {
	counter *callCounter
	skip    bool
}

func (f *fakeMusicClient) PickMusic(_ context.Context, musicDir, outputPath, style string) (string, error) {
	f.counter.inc("music")
	if f.skip {
		return "", nil
	}
	return outputPath, nil
}

type fakeComposerClient struct {
	counter *callCounter
}

func (f *fakeComposerClient) Compose(_ context.Context, videos []string, voicePath, musicPath, subtitlePath, outputPath string) (string, error) {
	f.counter.inc("compose")
	return outputPath, nil
}

// fakeClients returns a full client set backed by one shared counter.
func fakeClients(counter *callCounter) Clients {
	return Clients{
		Script:   &fakeScriptClient{counter: counter},
		Image:    &fakeImageClient{counter: counter},
		Video:    &fakeVideoClient{counter: counter},
		Voice:    &fakeVoiceClient{counter: counter},
		Subtitle: &fakeSubtitleClient{counter: counter},
		Music:    &fakeMusicClient{counter: counter},
		Composer: &fakeComposerClient{counter: counter},
	}
}
