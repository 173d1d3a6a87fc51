package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResponseRecord is one append-only log entry per processed reply.
// Records are never mutated after creation.
type ResponseRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	StepID      string    `json:"step_id"`
	RawText     string    `json:"raw_text"`
	StoredValue *string   `json:"stored_value,omitempty"`
	Valid       bool      `json:"valid"`
	ReceivedAt  time.Time `json:"received_at"`
}

// NewResponseRecord builds a record for a processed reply. storedValue is
// nil when validation failed and nothing was normalized.
func NewResponseRecord(sessionID, stepID, rawText string, storedValue *string, valid bool) ResponseRecord {
	return ResponseRecord{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		StepID:      stepID,
		RawText:     rawText,
		StoredValue: storedValue,
		Valid:       valid,
		ReceivedAt:  time.Now().UTC(),
	}
}
