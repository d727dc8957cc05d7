// ABOUTME: Computes the deterministic drift fingerprint of a merged configuration tree.
// ABOUTME: Uses SHA-256 over canonical JSON (sorted keys) so only content changes alter the hash.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash returns the lowercase hex-encoded SHA-256 of the canonical JSON
// serialization of the merged tree. encoding/json writes map keys in sorted
// order, so two trees with equal content always hash identically. The hash is
// only ever compared for equality, never reversed.
func Hash(merged map[string]any) string {
	canonical, err := json.Marshal(merged)
	if err != nil {
		// Config trees come from YAML and are always JSON-serializable;
		// fall back to a sentinel that never matches a stored hash.
		return "unhashable"
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// DriftError reports that persisted state was produced under a different
// configuration than the one currently loaded.
type DriftError struct {
	SavedHash   string
	CurrentHash string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("config drift: saved state was produced under config %.12s, current config is %.12s; recreate the session or job to pick up the new config", e.SavedHash, e.CurrentHash)
}
