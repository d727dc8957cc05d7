// ABOUTME: ID generation for digital-human jobs and their trace correlation ids.
// ABOUTME: Centralizes entropy so every caller mints ids the same way.
package digitalhuman

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewJobID generates a sortable job id using crypto/rand entropy.
func NewJobID() string {
	return strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
}

// NewTraceID generates an opaque correlation id carried through a job's
// logs, error payloads, and provider calls.
func NewTraceID() string {
	return "trace-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
