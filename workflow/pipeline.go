// ABOUTME: The pipeline runner: fixed step order, skip-if-recorded, asset rehydration, persist after every step.
// ABOUTME: A failing step aborts the run without being recorded, so resume re-attempts it in full.
package workflow

import (
	"context"
	"fmt"
	"path/filepath"
)

// Step names, in pipeline order.
const (
	StepScript   = "script"
	StepShots    = "shots"
	StepImages   = "images"
	StepVideos   = "videos"
	StepVoice    = "voice"
	StepSubtitle = "subtitle"
	StepMusic    = "music"
	StepCompose  = "compose"
)

// StepOrder is the fixed execution order of the session pipeline.
var StepOrder = []string{
	StepScript, StepShots, StepImages, StepVideos,
	StepVoice, StepSubtitle, StepMusic, StepCompose,
}

// StepError wraps a failure raised while producing a step's result.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// sessionPaths are the well-known artifact locations within a work dir.
type sessionPaths struct {
	ImagesDir    string
	VideosDir    string
	VoicePath    string
	SubtitlePath string
	MusicPath    string
	FinalVideo   string
	MusicDir     string
}

func pathsFor(rc *RunContext) sessionPaths {
	return sessionPaths{
		ImagesDir:    filepath.Join(rc.WorkDir, "images"),
		VideosDir:    filepath.Join(rc.WorkDir, "videos"),
		VoicePath:    filepath.Join(rc.WorkDir, "voice.wav"),
		SubtitlePath: filepath.Join(rc.WorkDir, "subtitle.vtt"),
		MusicPath:    filepath.Join(rc.WorkDir, "music.mp3"),
		FinalVideo:   filepath.Join(rc.WorkDir, "final_video.mp4"),
		MusicDir:     filepath.Join(rc.Config.ProjectRoot, "resource", "songs"),
	}
}

// RunAll executes every step of the pipeline in order. Steps already present
// in the state are skipped but still rehydrate the asset map so later steps
// see correct inputs on a resumed run.
func RunAll(ctx context.Context, rc *RunContext) error {
	rc.emit(EventPipelineStarted, "", map[string]any{"session_id": rc.SessionID})

	for _, name := range StepOrder {
		if rc.State.Steps.Done(name) {
			rehydrate(rc, name)
			rc.Infof("step %s already recorded, skipping", name)
			rc.emit(EventStepSkipped, name, nil)
			continue
		}
		if err := RunStep(ctx, rc, name); err != nil {
			rc.emit(EventPipelineFailed, name, map[string]any{"error": err.Error()})
			return err
		}
	}

	rc.emit(EventPipelineCompleted, "", nil)
	return nil
}

// RunStep executes a single named step and persists the session state.
// Exposed standalone so callers can drive the pipeline incrementally.
func RunStep(ctx context.Context, rc *RunContext, name string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	rc.prepareClients()
	paths := pathsFor(rc)

	rc.emit(EventStepStarted, name, nil)

	var err error
	switch name {
	case StepScript:
		err = runScript(ctx, rc)
	case StepShots:
		err = runShots(ctx, rc)
	case StepImages:
		err = runImages(ctx, rc, paths.ImagesDir)
	case StepVideos:
		err = runVideos(ctx, rc, paths.VideosDir)
	case StepVoice:
		err = runVoice(ctx, rc, paths.VoicePath)
	case StepSubtitle:
		err = runSubtitle(ctx, rc, paths.VoicePath, paths.SubtitlePath)
	case StepMusic:
		err = runMusic(ctx, rc, paths.MusicDir, paths.MusicPath)
	case StepCompose:
		err = runCompose(ctx, rc, paths.FinalVideo)
	default:
		return fmt.Errorf("unknown step %q", name)
	}

	if err != nil {
		rc.emit(EventStepFailed, name, map[string]any{"error": err.Error()})
		return &StepError{Step: name, Err: err}
	}

	if err := SaveState(rc.WorkDir, rc.State); err != nil {
		return fmt.Errorf("persist state after step %q: %w", name, err)
	}
	rc.emit(EventStateSaved, name, nil)
	rc.emit(EventStepCompleted, name, nil)
	return nil
}

// prepareClients fills unset client handles with dry-run placeholders when
// the session runs in dry-run mode. Real clients are injected by the caller.
func (rc *RunContext) prepareClients() {
	if !rc.DryRun {
		return
	}
	c := &rc.Clients
	if c.Script == nil {
		c.Script = dryRunClients.Script
	}
	if c.Image == nil {
		c.Image = dryRunClients.Image
	}
	if c.Video == nil {
		c.Video = dryRunClients.Video
	}
	if c.Voice == nil {
		c.Voice = dryRunClients.Voice
	}
	if c.Subtitle == nil {
		c.Subtitle = dryRunClients.Subtitle
	}
	if c.Music == nil {
		c.Music = dryRunClients.Music
	}
	if c.Composer == nil {
		c.Composer = dryRunClients.Composer
	}
}

// rehydrate rebuilds the in-memory asset map from a recorded step result.
func rehydrate(rc *RunContext, name string) {
	steps := &rc.State.Steps
	switch name {
	case StepScript, StepShots:
		// Script text and shot prompts are read from the state directly.
	case StepImages:
		if r := steps.Images; r != nil {
			rc.Assets[StepImages] = r.Files
			if len(r.URLs) > 0 {
				rc.Assets["images_urls"] = r.URLs
			}
		}
	case StepVideos:
		if r := steps.Videos; r != nil {
			rc.Assets[StepVideos] = r.Files
			if len(r.URLs) > 0 {
				rc.Assets["videos_urls"] = r.URLs
			}
		}
	case StepVoice:
		if r := steps.Voice; r != nil {
			rc.Assets[StepVoice] = r.File
			rc.Assets["voice_info"] = map[string]any{"duration": r.Duration}
		}
	case StepSubtitle:
		if r := steps.Subtitle; r != nil {
			rc.Assets[StepSubtitle] = r.File
		}
	case StepMusic:
		if r := steps.Music; r != nil {
			rc.Assets[StepMusic] = r.File
		}
	case StepCompose:
		if r := steps.Compose; r != nil {
			rc.Assets["final_video"] = r.File
		}
	}
}
