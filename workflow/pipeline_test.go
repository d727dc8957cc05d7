// ABOUTME: Tests for the pipeline runner: full runs, idempotent resume, rehydration, and failure propagation.
// ABOUTME: Uses call-counting fake collaborators so resumed runs can prove skipped steps never re-invoke clients.
package workflow

import (
	"context"
	"errors"
	"testing"
)

func newTestContext(t *testing.T, counter *callCounter) *RunContext {
	t.Helper()
	cfg := testConfig(t)
	rc := NewRunContext(cfg, "")
	rc.Clients = fakeClients(counter)
	if err := rc.InitPaths(t.TempDir()); err != nil {
		t.Fatalf("InitPaths failed: %v", err)
	}
	t.Cleanup(func() { rc.Close() })
	rc.State = NewState(rc.SessionID, cfg.Hash)
	return rc
}

func TestRunAllExecutesEveryStep(t *testing.T) {
	counter := newCallCounter()
	rc := newTestContext(t, counter)

	if err := RunAll(context.Background(), rc); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	for _, name := range StepOrder {
		if !rc.State.Steps.Done(name) {
			t.Errorf("step %q not recorded", name)
		}
	}
	if counter.count("script") != 1 {
		t.Errorf("script called %d times, want 1", counter.count("script"))
	}
	// Two shots -> two image and two video calls.
	if counter.count("image") != 2 || counter.count("video") != 2 {
		t.Errorf("image/video calls = %d/%d, want 2/2", counter.count("image"), counter.count("video"))
	}
	if got, ok := rc.Assets["final_video"].(string); !ok || got == "" {
		t.Error("final_video asset not recorded")
	}

	// State was persisted after the last step.
	loaded, err := LoadState(rc.WorkDir)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if loaded == nil || loaded.Steps.Compose == nil {
		t.Error("persisted state missing compose record")
	}
}

func TestRunAllIdempotentResume(t *testing.T) {
	counter := newCallCounter()
	rc := newTestContext(t, counter)

	if err := RunAll(context.Background(), rc); err != nil {
		t.Fatalf("first RunAll failed: %v", err)
	}

	// Re-run against the same state: every step is recorded, so no
	// collaborator may be invoked again.
	before := map[string]int{}
	for _, name := range []string{"script", "image", "video", "voice", "subtitle", "music", "compose"} {
		before[name] = counter.count(name)
	}
	if err := RunAll(context.Background(), rc); err != nil {
		t.Fatalf("second RunAll failed: %v", err)
	}
	for name, n := range before {
		if counter.count(name) != n {
			t.Errorf("collaborator %q re-invoked on resume (%d -> %d)", name, n, counter.count(name))
		}
	}
}

func TestRunAllResumeExecutesOnlyMissingSteps(t *testing.T) {
	counter := newCallCounter()
	rc := newTestContext(t, counter)

	// Simulate a prior run interrupted after images.
	rc.State.Steps.Script = &ScriptResult{Text: "saved script", Topic: "tea", ShotCount: 2, Style: "cinematic"}
	rc.State.Steps.Shots = &ShotsResult{Prompts: []string{"Shot 1", "Shot 2"}, Style: "cinematic", Resolution: "720p"}
	rc.State.Steps.Images = &MediaResult{Files: []string{"/img/1.png"}, URLs: []string{"http://x/1.png"}}

	if err := RunAll(context.Background(), rc); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	if counter.count("script") != 0 {
		t.Error("script re-invoked despite recorded result")
	}
	if counter.count("image") != 0 {
		t.Error("image generator re-invoked despite recorded result")
	}
	if counter.count("video") != 2 {
		t.Errorf("video calls = %d, want 2", counter.count("video"))
	}
}

func TestResumeRehydratesImageURLsBeforeVideos(t *testing.T) {
	counter := newCallCounter()
	rc := newTestContext(t, counter)
	video := rc.Clients.Video.(*fakeVideoClient)

	rc.State.Steps.Script = &ScriptResult{Text: "s", Topic: "t", ShotCount: 1, Style: "cinematic"}
	rc.State.Steps.Shots = &ShotsResult{Prompts: []string{"Shot 1"}, Style: "cinematic", Resolution: "720p"}
	rc.State.Steps.Images = &MediaResult{Files: []string{"/img/1.png"}, URLs: []string{"http://x/1.png"}}

	if err := RunAll(context.Background(), rc); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	urls, ok := rc.Assets["images_urls"].([]string)
	if !ok || len(urls) != 1 || urls[0] != "http://x/1.png" {
		t.Fatalf("images_urls not rehydrated: %v", rc.Assets["images_urls"])
	}
	if len(video.references) != 1 || video.references[0] != "http://x/1.png" {
		t.Errorf("video stage did not receive rehydrated reference: %v", video.references)
	}
}

func TestStepFailureAbortsWithoutRecording(t *testing.T) {
	counter := newCallCounter()
	rc := newTestContext(t, counter)
	boom := errors.New("provider down")
	rc.Clients.Image = &fakeImageClient{counter: counter, err: boom}

	err := RunAll(context.Background(), rc)
	if err == nil {
		t.Fatal("expected RunAll to fail")
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepImages {
		t.Fatalf("expected StepError for images, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("expected wrapped cause to survive")
	}

	if rc.State.Steps.Images != nil {
		t.Error("failed step must not be recorded")
	}
	// Earlier steps persisted, so resume re-attempts only the failed step onwards.
	loaded, loadErr := LoadState(rc.WorkDir)
	if loadErr != nil {
		t.Fatalf("LoadState failed: %v", loadErr)
	}
	if loaded.Steps.Shots == nil {
		t.Error("completed shots step missing from persisted state")
	}
	if loaded.Steps.Images != nil {
		t.Error("persisted state must not contain the failed step")
	}
	if counter.count("voice") != 0 {
		t.Error("steps after the failure must not run")
	}
}

func TestRunStepPersistsState(t *testing.T) {
	counter := newCallCounter()
	rc := newTestContext(t, counter)

	if err := RunStep(context.Background(), rc, StepScript); err != nil {
		t.Fatalf("RunStep failed: %v", err)
	}
	loaded, err := LoadState(rc.WorkDir)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if loaded == nil || loaded.Steps.Script == nil {
		t.Error("script result not persisted by RunStep")
	}
}

func TestRunStepUnknownName(t *testing.T) {
	counter := newCallCounter()
	rc := newTestContext(t, counter)
	if err := RunStep(context.Background(), rc, "transmogrify"); err == nil {
		t.Fatal("expected error for unknown step name")
	}
}

func TestDryRunUsesPlaceholderClients(t *testing.T) {
	cfg := testConfig(t)
	rc := NewRunContext(cfg, "")
	rc.DryRun = true
	if err := rc.InitPaths(t.TempDir()); err != nil {
		t.Fatalf("InitPaths failed: %v", err)
	}
	defer rc.Close()
	rc.State = NewState(rc.SessionID, cfg.Hash)

	if err := RunAll(context.Background(), rc); err != nil {
		t.Fatalf("dry-run RunAll failed: %v", err)
	}
	for _, name := range StepOrder {
		if !rc.State.Steps.Done(name) {
			t.Errorf("dry-run did not record step %q", name)
		}
	}
	if rc.State.Steps.Voice.Duration <= 0 {
		t.Error("dry-run voice duration must be positive")
	}
}

func TestRunStepHonorsCancelledContext(t *testing.T) {
	counter := newCallCounter()
	rc := newTestContext(t, counter)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := RunStep(ctx, rc, StepScript); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if counter.count("script") != 0 {
		t.Error("cancelled step must not invoke collaborators")
	}
}
