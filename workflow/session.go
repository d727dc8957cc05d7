// ABOUTME: Session bootstrap: create a fresh session or resume a saved one, with config-drift detection.
// ABOUTME: Drift without an explicit force starts a new fresh state rather than silently resuming.
package workflow

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/linapp/akavideo/config"
)

// BootstrapOptions control session creation and resume behavior.
type BootstrapOptions struct {
	// ResumeID names an existing session to continue. Empty generates a
	// fresh session id.
	ResumeID string
	// NoAutoResume ignores any saved state and always starts fresh.
	NoAutoResume bool
	// ForceResume resumes saved state even when its config hash differs
	// from the current config.
	ForceResume bool
	// OutputBase is the directory session work dirs live under. Empty uses
	// the workflow.output_base config value, defaulting to ./output.
	OutputBase string

	DryRun  bool
	Options Options
	Clients Clients
	Events  EventFunc
}

// Session is one bootstrapped pipeline run.
type Session struct {
	Ctx *RunContext
}

// NewSession creates or resumes a session. Resume outcomes:
//
//  1. no saved state: fresh state under the current config hash
//  2. saved state, hash matches: resume, rehydrating recorded steps
//  3. saved state, hash differs: fresh state (warn), unless ForceResume
func NewSession(cfg *config.Config, opts BootstrapOptions) (*Session, error) {
	rc := NewRunContext(cfg, opts.ResumeID)
	rc.DryRun = opts.DryRun
	rc.Options = opts.Options
	rc.Clients = opts.Clients
	rc.Events = opts.Events

	outputBase := opts.OutputBase
	if outputBase == "" {
		outputBase = cfg.StringAt("workflow.output_base", "./output")
		if !filepath.IsAbs(outputBase) {
			outputBase = filepath.Join(cfg.ProjectRoot, outputBase)
		}
	}

	if err := rc.InitPaths(outputBase); err != nil {
		return nil, err
	}

	saved, err := LoadState(rc.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("load saved state: %w", err)
	}

	switch {
	case saved == nil || opts.NoAutoResume:
		rc.State = NewState(rc.SessionID, cfg.Hash)
	case saved.ConfigHash != cfg.Hash && !opts.ForceResume:
		rc.Warnf("config changed since saved state (saved %.12s, current %.12s); starting a new session. Use force-resume to continue anyway.", saved.ConfigHash, cfg.Hash)
		rc.State = NewState(rc.SessionID, cfg.Hash)
	default:
		if saved.ConfigHash != cfg.Hash {
			rc.Warnf("config changed since saved state, resuming anyway as requested")
		}
		rc.State = saved
		for _, name := range StepOrder {
			if saved.Steps.Done(name) {
				rehydrate(rc, name)
			}
		}
		rc.Infof("resumed saved state for session %s", rc.SessionID)
	}

	if err := SaveState(rc.WorkDir, rc.State); err != nil {
		return nil, fmt.Errorf("persist initial state: %w", err)
	}

	return &Session{Ctx: rc}, nil
}

// RunAll executes the full pipeline for this session.
func (s *Session) RunAll(ctx context.Context) error {
	return RunAll(ctx, s.Ctx)
}

// RunStep executes one named step for this session.
func (s *Session) RunStep(ctx context.Context, name string) error {
	return RunStep(ctx, s.Ctx, name)
}

// Close releases session resources.
func (s *Session) Close() error {
	return s.Ctx.Close()
}
