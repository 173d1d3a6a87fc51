package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	session := NewSession("subject-1", "survey-1", "1.0.0", "q1")
	require.NotEmpty(t, session.ID)
	assert.Equal(t, StatusAwaitingConsent, session.Status())
	assert.True(t, session.Active())

	now := time.Now()
	session.IncrementRetry(now)
	session.GiveConsent(now)
	assert.Equal(t, StatusActive, session.Status())
	require.NotNil(t, session.ConsentGivenAt)
	// Consent clears retries spent at the gate.
	assert.Zero(t, session.RetryCount)

	session.IncrementRetry(now)
	session.IncrementRetry(now)
	assert.Equal(t, 2, session.RetryCount)

	// Advancing resets the retry budget for the new step.
	session.AdvanceStep("q2", now)
	assert.Equal(t, "q2", session.CurrentStepID)
	assert.Zero(t, session.RetryCount)

	session.MarkCompleted(now)
	assert.Equal(t, StatusCompleted, session.Status())
	assert.False(t, session.Active())
}

func TestSessionExpired(t *testing.T) {
	session := NewSession("subject-1", "survey-1", "1.0.0", "q1")
	now := session.UpdatedAt

	assert.False(t, session.Expired(now.Add(time.Hour), 24*time.Hour))
	assert.True(t, session.Expired(now.Add(25*time.Hour), 24*time.Hour))

	// Zero timeout disables expiry.
	assert.False(t, session.Expired(now.Add(1000*time.Hour), 0))

	// Completed sessions never expire; they are already closed.
	session.MarkCompleted(now)
	assert.False(t, session.Expired(now.Add(25*time.Hour), 24*time.Hour))
}

func TestClone_DeepCopies(t *testing.T) {
	session := NewSession("subject-1", "survey-1", "1.0.0", "q1")
	session.SetContext("name", "Ada")
	session.GiveConsent(time.Now())

	clone := session.Clone()
	clone.SetContext("name", "Mallory")
	clone.CurrentStepID = "q9"
	*clone.ConsentGivenAt = clone.ConsentGivenAt.Add(time.Hour)

	assert.Equal(t, "Ada", session.Context["name"])
	assert.Equal(t, "q1", session.CurrentStepID)
	assert.NotEqual(t, *session.ConsentGivenAt, *clone.ConsentGivenAt)
}

func TestSetContext_ReplacesValue(t *testing.T) {
	session := NewSession("subject-1", "survey-1", "1.0.0", "q1")
	session.SetContext("mood", "good")
	session.SetContext("mood", "bad")
	assert.Equal(t, "bad", session.Context["mood"])
}
