// ABOUTME: Session state document: typed per-step results, load/save, and config-hash checking.
// ABOUTME: One state.json per session work dir, overwritten atomically after every step.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ScriptResult is the recorded output of the script step.
type ScriptResult struct {
	Text      string `json:"text"`
	Topic     string `json:"topic"`
	ShotCount int    `json:"shot_count"`
	Style     string `json:"style"`
}

// ShotsResult is the recorded output of the shots step.
type ShotsResult struct {
	Prompts    []string `json:"prompts"`
	Style      string   `json:"style"`
	Resolution string   `json:"resolution"`
}

// MediaResult is the recorded output of the images and videos steps.
type MediaResult struct {
	Files      []string `json:"files"`
	URLs       []string `json:"urls,omitempty"`
	Resolution string   `json:"resolution,omitempty"`
}

// VoiceResult is the recorded output of the voice step.
type VoiceResult struct {
	File     string  `json:"file"`
	Duration float64 `json:"duration"`
}

// FileResult is the recorded output of single-file steps (subtitle, music, compose).
type FileResult struct {
	File string `json:"file"`
}

// Steps holds one optional result per known pipeline step. A nil field means
// the step has not completed; a non-nil field is never re-executed.
type Steps struct {
	Script   *ScriptResult `json:"script,omitempty"`
	Shots    *ShotsResult  `json:"shots,omitempty"`
	Images   *MediaResult  `json:"images,omitempty"`
	Videos   *MediaResult  `json:"videos,omitempty"`
	Voice    *VoiceResult  `json:"voice,omitempty"`
	Subtitle *FileResult   `json:"subtitle,omitempty"`
	Music    *FileResult   `json:"music,omitempty"`
	Compose  *FileResult   `json:"compose,omitempty"`
}

// Done reports whether the named step has a recorded result.
func (s *Steps) Done(name string) bool {
	switch name {
	case StepScript:
		return s.Script != nil
	case StepShots:
		return s.Shots != nil
	case StepImages:
		return s.Images != nil
	case StepVideos:
		return s.Videos != nil
	case StepVoice:
		return s.Voice != nil
	case StepSubtitle:
		return s.Subtitle != nil
	case StepMusic:
		return s.Music != nil
	case StepCompose:
		return s.Compose != nil
	}
	return false
}

// State is the persisted execution state of one session.
type State struct {
	SessionID  string         `json:"session_id"`
	ConfigHash string         `json:"config_hash"`
	Steps      Steps          `json:"steps"`
	Assets     map[string]any `json:"assets"`
}

// NewState initializes fresh state for a session under the current config.
func NewState(sessionID, configHash string) *State {
	return &State{
		SessionID:  sessionID,
		ConfigHash: configHash,
		Assets:     map[string]any{},
	}
}

// StatePath returns the state file location within a session work dir.
func StatePath(workDir string) string {
	return filepath.Join(workDir, "state.json")
}

// LoadState reads a session's saved state. Returns (nil, nil) when no state
// file exists yet.
func LoadState(workDir string) (*State, error) {
	data, err := os.ReadFile(StatePath(workDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	if st.Assets == nil {
		st.Assets = map[string]any{}
	}
	return &st, nil
}

// SaveState writes the state document atomically: the new content lands in a
// temp file that is renamed over state.json, so a crash mid-write never
// leaves a state file reflecting a later step without an earlier one.
func SaveState(workDir string, st *State) error {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	path := StatePath(workDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
