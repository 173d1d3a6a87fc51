package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSurveyNotFound is returned when a survey id is unknown to the registry.
var ErrSurveyNotFound = errors.New("survey not found")

// EngineError wraps any failure that escapes the orchestrator. It carries
// enough detail for logs but deliberately no subject identifiers; callers
// show end users a neutral apology message, never this error's text.
type EngineError struct {
	SurveyID string
	StepID   string
	Err      error
}

func (e *EngineError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("survey %s, step %s: %v", e.SurveyID, e.StepID, e.Err)
	}
	return fmt.Sprintf("survey %s: %v", e.SurveyID, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
