// ABOUTME: Tests for session bootstrap: fresh starts, resume by id, and config-drift handling.
// ABOUTME: Covers the three bootstrap outcomes plus the force-resume and no-auto-resume overrides.
package workflow

import (
	"context"
	"strings"
	"testing"
)

func bootstrapOpts(t *testing.T, counter *callCounter) BootstrapOptions {
	t.Helper()
	return BootstrapOptions{
		OutputBase: t.TempDir(),
		Clients:    fakeClients(counter),
	}
}

func TestNewSessionFreshState(t *testing.T) {
	cfg := testConfig(t)
	counter := newCallCounter()

	sess, err := NewSession(cfg, bootstrapOpts(t, counter))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer sess.Close()

	if sess.Ctx.State == nil {
		t.Fatal("session has no state")
	}
	if sess.Ctx.State.ConfigHash != cfg.Hash {
		t.Error("fresh state must carry the current config hash")
	}
	if !strings.HasPrefix(sess.Ctx.SessionID, "aka-") {
		t.Errorf("unexpected session id %q", sess.Ctx.SessionID)
	}
	// Bootstrap persists immediately so an interrupted run is resumable.
	loaded, err := LoadState(sess.Ctx.WorkDir)
	if err != nil || loaded == nil {
		t.Fatalf("initial state not persisted: %v", err)
	}
}

func TestNewSessionResumesSavedState(t *testing.T) {
	cfg := testConfig(t)
	counter := newCallCounter()
	base := t.TempDir()

	first, err := NewSession(cfg, BootstrapOptions{OutputBase: base, Clients: fakeClients(counter)})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	first.Ctx.State.Steps.Script = &ScriptResult{Text: "saved", Topic: "tea", ShotCount: 2, Style: "cinematic"}
	if err := SaveState(first.Ctx.WorkDir, first.Ctx.State); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	id := first.Ctx.SessionID
	first.Close()

	second, err := NewSession(cfg, BootstrapOptions{
		ResumeID:   id,
		OutputBase: base,
		Clients:    fakeClients(counter),
	})
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	defer second.Close()

	if second.Ctx.SessionID != id {
		t.Errorf("session id = %q, want %q", second.Ctx.SessionID, id)
	}
	if second.Ctx.State.Steps.Script == nil || second.Ctx.State.Steps.Script.Text != "saved" {
		t.Error("saved script result not restored")
	}
	if counter.count("script") != 0 {
		t.Error("resume must not invoke collaborators")
	}
}

func TestNewSessionConfigDriftStartsFresh(t *testing.T) {
	cfg := testConfig(t)
	counter := newCallCounter()
	base := t.TempDir()

	first, err := NewSession(cfg, BootstrapOptions{OutputBase: base, Clients: fakeClients(counter)})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	first.Ctx.State.Steps.Script = &ScriptResult{Text: "stale", Topic: "tea", ShotCount: 2, Style: "cinematic"}
	if err := SaveState(first.Ctx.WorkDir, first.Ctx.State); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	id := first.Ctx.SessionID
	first.Close()

	drifted := testConfig(t)
	drifted.Hash = "deadbeef" + drifted.Hash

	sess, err := NewSession(drifted, BootstrapOptions{
		ResumeID:   id,
		OutputBase: base,
		Clients:    fakeClients(counter),
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer sess.Close()

	if sess.Ctx.State.Steps.Script != nil {
		t.Error("drifted config must discard saved steps")
	}
	if sess.Ctx.State.ConfigHash != drifted.Hash {
		t.Error("fresh state must carry the new config hash")
	}
}

func TestNewSessionForceResumeIgnoresDrift(t *testing.T) {
	cfg := testConfig(t)
	counter := newCallCounter()
	base := t.TempDir()

	first, err := NewSession(cfg, BootstrapOptions{OutputBase: base, Clients: fakeClients(counter)})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	first.Ctx.State.Steps.Script = &ScriptResult{Text: "kept", Topic: "tea", ShotCount: 2, Style: "cinematic"}
	if err := SaveState(first.Ctx.WorkDir, first.Ctx.State); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	id := first.Ctx.SessionID
	first.Close()

	drifted := testConfig(t)
	drifted.Hash = "deadbeef" + drifted.Hash

	sess, err := NewSession(drifted, BootstrapOptions{
		ResumeID:    id,
		OutputBase:  base,
		ForceResume: true,
		Clients:     fakeClients(counter),
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer sess.Close()

	if sess.Ctx.State.Steps.Script == nil || sess.Ctx.State.Steps.Script.Text != "kept" {
		t.Error("force-resume must keep saved steps despite drift")
	}
}

func TestNewSessionNoAutoResume(t *testing.T) {
	cfg := testConfig(t)
	counter := newCallCounter()
	base := t.TempDir()

	first, err := NewSession(cfg, BootstrapOptions{OutputBase: base, Clients: fakeClients(counter)})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	first.Ctx.State.Steps.Script = &ScriptResult{Text: "ignored", Topic: "tea", ShotCount: 2, Style: "cinematic"}
	if err := SaveState(first.Ctx.WorkDir, first.Ctx.State); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	id := first.Ctx.SessionID
	first.Close()

	sess, err := NewSession(cfg, BootstrapOptions{
		ResumeID:     id,
		OutputBase:   base,
		NoAutoResume: true,
		Clients:      fakeClients(counter),
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer sess.Close()

	if sess.Ctx.State.Steps.Script != nil {
		t.Error("no-auto-resume must start from empty state")
	}
}

func TestSessionRunAllEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	counter := newCallCounter()

	sess, err := NewSession(cfg, bootstrapOpts(t, counter))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer sess.Close()

	if err := sess.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if sess.Ctx.State.Steps.Compose == nil {
		t.Error("full run did not record the final compose step")
	}
}
