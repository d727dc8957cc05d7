// ABOUTME: RunContext: the session-scoped aggregate of config, state, assets, clients, and limiters.
// ABOUTME: Owns the per-session work directory and run.log, and generates aka-prefixed session ids.
package workflow

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linapp/akavideo/config"
	"github.com/linapp/akavideo/media"
	"github.com/linapp/akavideo/ratelimit"
)

// Clients bundles the external collaborator handles a session uses.
// All fields are constructor-injected; nothing is lazily cached globally.
type Clients struct {
	Script   media.ScriptClient
	Image    media.ImageClient
	Video    media.VideoClient
	Voice    media.VoiceClient
	Subtitle media.SubtitleClient
	Music    media.MusicClient
	Composer media.ComposerClient
}

// dryRunClients are the placeholder collaborators substituted for unset
// handles when a session runs in dry-run mode.
var dryRunClients = Clients{
	Script:   media.DryRunScriptClient{},
	Image:    media.DryRunImageClient{},
	Video:    media.DryRunVideoClient{},
	Voice:    media.DryRunVoiceClient{},
	Subtitle: media.DryRunSubtitleClient{},
	Music:    media.DryRunMusicClient{},
	Composer: media.DryRunComposerClient{},
}

// Options are the caller-supplied per-run overrides.
type Options struct {
	Topic      string
	Shots      int
	Style      string
	Resolution string
}

// RunContext is the shared state of one pipeline session.
type RunContext struct {
	Config    *config.Config
	SessionID string
	WorkDir   string
	State     *State
	Assets    map[string]any
	Options   Options
	DryRun    bool
	Clients   Clients
	Events    EventFunc

	mu       sync.Mutex
	limiters map[string]*ratelimit.Limiter
	logFile  io.WriteCloser
}

// NewSessionID generates an opaque session id, e.g. "aka-3f9c01ab".
func NewSessionID() string {
	return "aka-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NewRunContext creates a context for the given session. InitPaths must be
// called before running steps.
func NewRunContext(cfg *config.Config, sessionID string) *RunContext {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	return &RunContext{
		Config:    cfg,
		SessionID: sessionID,
		Assets:    map[string]any{},
		limiters:  map[string]*ratelimit.Limiter{},
	}
}

// InitPaths creates the session work directory under outputBase and opens
// run.log inside it.
func (rc *RunContext) InitPaths(outputBase string) error {
	rc.WorkDir = filepath.Join(outputBase, rc.SessionID)
	if err := os.MkdirAll(rc.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(rc.WorkDir, "run.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run.log: %w", err)
	}
	rc.logFile = f
	rc.Infof("work dir: %s", rc.WorkDir)
	return nil
}

// Close releases the run.log handle.
func (rc *RunContext) Close() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.logFile == nil {
		return nil
	}
	err := rc.logFile.Close()
	rc.logFile = nil
	return err
}

// Infof writes an INFO line to run.log.
func (rc *RunContext) Infof(format string, args ...any) {
	rc.logf("INFO", format, args...)
}

// Warnf writes a WARN line to run.log.
func (rc *RunContext) Warnf(format string, args ...any) {
	rc.logf("WARN", format, args...)
}

func (rc *RunContext) logf(level, format string, args ...any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.logFile == nil {
		return
	}
	line := fmt.Sprintf("[%s] [%s] %s\n", time.Now().UTC().Format(time.RFC3339), level, fmt.Sprintf(format, args...))
	_, _ = rc.logFile.Write([]byte(line))
}

// emit sends a lifecycle event to the configured callback, stamping the
// current time.
func (rc *RunContext) emit(t EventType, step string, data map[string]any) {
	if rc.Events == nil {
		return
	}
	rc.Events(Event{Type: t, Step: step, Data: data, Timestamp: time.Now()})
}

// Limiter returns the shared limiter for a named resource, constructing it
// from the rate_limits config section on first use. Ceilings default to
// unset when the section is absent.
func (rc *RunContext) Limiter(name string) *ratelimit.Limiter {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if l, ok := rc.limiters[name]; ok {
		return l
	}
	perMinute := rc.Config.IntAt("rate_limits."+name+".per_minute", 0)
	perDay := rc.Config.IntAt("rate_limits."+name+".per_day", 0)
	l := ratelimit.New(name, perMinute, perDay)
	rc.limiters[name] = l
	return l
}
