// ABOUTME: Tests for the session state document: round-trip, Done markers, and atomic save.
// ABOUTME: Covers missing-file load, typed step presence, and temp-file cleanup after rename.
package workflow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadStateMissingFile(t *testing.T) {
	st, err := LoadState(t.TempDir())
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if st != nil {
		t.Errorf("expected nil state for missing file, got %+v", st)
	}
}

func TestStateSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := NewState("aka-test", "hash-1")
	st.Steps.Script = &ScriptResult{Text: "script text", Topic: "coffee", ShotCount: 2, Style: "cinematic"}
	st.Steps.Images = &MediaResult{Files: []string{"/a/1.png"}, URLs: []string{"http://x/1.png"}}
	st.Steps.Voice = &VoiceResult{File: "/a/voice.wav", Duration: 9.5}

	if err := SaveState(dir, st); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	loaded, err := LoadState(dir)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if loaded.SessionID != "aka-test" || loaded.ConfigHash != "hash-1" {
		t.Errorf("identity fields lost: %+v", loaded)
	}
	if loaded.Steps.Script == nil || loaded.Steps.Script.Topic != "coffee" {
		t.Errorf("script record lost: %+v", loaded.Steps.Script)
	}
	if loaded.Steps.Images == nil || loaded.Steps.Images.URLs[0] != "http://x/1.png" {
		t.Errorf("image record lost: %+v", loaded.Steps.Images)
	}
	if loaded.Steps.Voice == nil || loaded.Steps.Voice.Duration != 9.5 {
		t.Errorf("voice record lost: %+v", loaded.Steps.Voice)
	}
	if loaded.Steps.Compose != nil {
		t.Error("compose must be absent")
	}
}

func TestStepsDone(t *testing.T) {
	var s Steps
	for _, name := range StepOrder {
		if s.Done(name) {
			t.Errorf("fresh steps reported %q done", name)
		}
	}
	s.Shots = &ShotsResult{Prompts: []string{"p"}}
	if !s.Done(StepShots) {
		t.Error("shots should be done")
	}
	if s.Done(StepImages) {
		t.Error("images should not be done")
	}
	if s.Done("bogus") {
		t.Error("unknown step names are never done")
	}
}

func TestSaveStateAtomic(t *testing.T) {
	dir := t.TempDir()
	if err := SaveState(dir, NewState("s", "h")); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "state.json")); err != nil {
		t.Errorf("state.json missing: %v", err)
	}
}
