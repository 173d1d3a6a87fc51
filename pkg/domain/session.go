package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus describes where a session is in its lifecycle.
type SessionStatus string

const (
	// StatusAwaitingConsent means the subject has not yet accepted the consent prompt.
	StatusAwaitingConsent SessionStatus = "awaiting_consent"
	// StatusActive means the subject is answering survey steps.
	StatusActive SessionStatus = "active"
	// StatusCompleted means a terminal step was reached or consent was declined.
	StatusCompleted SessionStatus = "completed"
)

// Session tracks one subject's progress through one survey.
//
// A subject may accumulate several sessions for the same survey over time;
// by convention only one has CompletedAt == nil at once. That convention is
// enforced by the caller (see session.Manager), not by the engine, which
// always receives exactly one session per call.
type Session struct {
	ID            string            `json:"id"`
	SubjectHash   string            `json:"subject_hash"`
	SurveyID      string            `json:"survey_id"`
	SurveyVersion string            `json:"survey_version"`
	CurrentStepID string            `json:"current_step_id"`

	ConsentGiven       bool       `json:"consent_given"`
	ConsentRequestedAt time.Time  `json:"consent_requested_at"`
	ConsentGivenAt     *time.Time `json:"consent_given_at,omitempty"`

	RetryCount int               `json:"retry_count"`
	Context    map[string]string `json:"context"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewSession creates a fresh session positioned at the survey's consent step.
func NewSession(subjectHash, surveyID, surveyVersion, consentStepID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:                 uuid.NewString(),
		SubjectHash:        subjectHash,
		SurveyID:           surveyID,
		SurveyVersion:      surveyVersion,
		CurrentStepID:      consentStepID,
		ConsentRequestedAt: now,
		Context:            make(map[string]string),
		StartedAt:          now,
		UpdatedAt:          now,
	}
}

// Status derives the tagged lifecycle state from the flat record.
func (s *Session) Status() SessionStatus {
	switch {
	case s.CompletedAt != nil:
		return StatusCompleted
	case !s.ConsentGiven:
		return StatusAwaitingConsent
	default:
		return StatusActive
	}
}

// Active reports whether the session is still accepting replies.
func (s *Session) Active() bool {
	return s.CompletedAt == nil
}

// Expired reports whether the session has been idle longer than timeout.
// Staleness is caller policy; the engine itself never expires sessions.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return s.Active() && now.Sub(s.UpdatedAt) > timeout
}

// GiveConsent flags consent as granted, stamps the time, and clears any
// retries spent at the gate so the first question starts with a full budget.
func (s *Session) GiveConsent(at time.Time) {
	s.ConsentGiven = true
	t := at.UTC()
	s.ConsentGivenAt = &t
	s.RetryCount = 0
	s.touch(at)
}

// AdvanceStep moves the session to nextStepID and resets the retry counter.
func (s *Session) AdvanceStep(nextStepID string, at time.Time) {
	s.CurrentStepID = nextStepID
	s.RetryCount = 0
	s.touch(at)
}

// IncrementRetry bumps the retry counter after an invalid reply.
func (s *Session) IncrementRetry(at time.Time) {
	s.RetryCount++
	s.touch(at)
}

// SetContext stores a collected answer, replacing any prior value for key.
func (s *Session) SetContext(key, value string) {
	if s.Context == nil {
		s.Context = make(map[string]string)
	}
	s.Context[key] = value
}

// MarkCompleted closes the session.
func (s *Session) MarkCompleted(at time.Time) {
	t := at.UTC()
	s.CompletedAt = &t
	s.touch(at)
}

// Clone returns a deep copy. The engine mutates a clone and publishes it
// only when the whole transition succeeds, so error paths leave the
// original untouched.
func (s *Session) Clone() *Session {
	next := *s
	next.Context = make(map[string]string, len(s.Context))
	for k, v := range s.Context {
		next.Context[k] = v
	}
	if s.ConsentGivenAt != nil {
		t := *s.ConsentGivenAt
		next.ConsentGivenAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		next.CompletedAt = &t
	}
	return &next
}

func (s *Session) touch(at time.Time) {
	s.UpdatedAt = at.UTC()
}
