package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"portal_analysis_backend/internal/analysis/adapter"
)

const keySeparator = "\x1f"

// Fingerprint is the SHA-256 of the normalized result's JSON encoding.
// The encoding is canonical because NormalizedResult holds no maps.
func Fingerprint(r adapter.NormalizedResult) string {
	data, err := json.Marshal(r)
	if err != nil {
		// Every field is a plain value or a finite float; Marshal cannot
		// fail. Fall back to something stable anyway.
		data = []byte(string(r.Kind))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// TaskKey identifies a follow-up task within a tenant. Two actions with the
// same text on different due days are different tasks.
func TaskKey(tenantID, subjectID uuid.UUID, description string, due *time.Time) string {
	bucket := "none"
	if due != nil {
		bucket = due.UTC().Format(time.DateOnly)
	}
	return naturalKey(tenantID.String(), subjectID.String(), "task", description, bucket)
}

// SignalKey identifies a key signal within a tenant. It uses the engine's
// raw type rather than the mapped one so a vocabulary change does not
// duplicate signals.
func SignalKey(tenantID, subjectID uuid.UUID, rawType, description string) string {
	return naturalKey(tenantID.String(), subjectID.String(), "signal", rawType, description)
}

func naturalKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, keySeparator)))
	return hex.EncodeToString(sum[:])
}
