package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchback-sms/switchback/internal/testutils"
	"github.com/switchback-sms/switchback/pkg/adapters/memory"
	"github.com/switchback-sms/switchback/pkg/domain"
)

func TestBegin(t *testing.T) {
	store := memory.NewStore()
	manager := NewManager(store)
	def := testutils.SampleDefinition(t)
	ctx := context.Background()

	session, err := manager.Begin(ctx, "subject-1", def)
	require.NoError(t, err)

	assert.Equal(t, "wellness_check", session.SurveyID)
	assert.Equal(t, "1.0.0", session.SurveyVersion)
	assert.Equal(t, def.Consent.StepID, session.CurrentStepID)
	assert.Equal(t, domain.StatusAwaitingConsent, session.Status())

	found, err := store.FindActive(ctx, "subject-1", "wellness_check")
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)
}

// Starting again closes the previous session first: at most one active
// session per subject per survey.
func TestBegin_SupersedesActiveSession(t *testing.T) {
	store := memory.NewStore()
	manager := NewManager(store)
	def := testutils.SampleDefinition(t)
	ctx := context.Background()

	first, err := manager.Begin(ctx, "subject-1", def)
	require.NoError(t, err)

	second, err := manager.Begin(ctx, "subject-1", def)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	old, err := store.Find(ctx, first.ID)
	require.NoError(t, err)
	assert.NotNil(t, old.CompletedAt)

	active, err := store.FindActive(ctx, "subject-1", "wellness_check")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}

func TestWithActive(t *testing.T) {
	store := memory.NewStore()
	manager := NewManager(store)
	def := testutils.SampleDefinition(t)
	ctx := context.Background()

	created, err := manager.Begin(ctx, "subject-1", def)
	require.NoError(t, err)

	var seen string
	err = manager.WithActive(ctx, "subject-1", "wellness_check", def.Settings.Timeout(),
		func(ctx context.Context, sess *domain.Session) error {
			seen = sess.ID
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, created.ID, seen)
}

func TestWithActive_NoSession(t *testing.T) {
	manager := NewManager(memory.NewStore())
	err := manager.WithActive(context.Background(), "ghost", "wellness_check", time.Hour,
		func(ctx context.Context, sess *domain.Session) error {
			t.Fatal("fn should not run")
			return nil
		})
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

// A session idle past the survey timeout is closed, not resumed.
func TestWithActive_ExpiresStaleSessions(t *testing.T) {
	store := memory.NewStore()
	def := testutils.SampleDefinition(t)
	ctx := context.Background()

	now := time.Now()
	manager := NewManager(store, WithClock(func() time.Time { return now }))

	session, err := manager.Begin(ctx, "subject-1", def)
	require.NoError(t, err)

	now = now.Add(25 * time.Hour) // past the 24h survey timeout

	err = manager.WithActive(ctx, "subject-1", "wellness_check", def.Settings.Timeout(),
		func(ctx context.Context, sess *domain.Session) error {
			t.Fatal("fn should not run for an expired session")
			return nil
		})
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))

	closed, err := store.Find(ctx, session.ID)
	require.NoError(t, err)
	assert.NotNil(t, closed.CompletedAt)
}

// Concurrent work on the same conversation is serialized; the increment
// below would race and lose updates otherwise.
func TestWithActive_SerializesConversation(t *testing.T) {
	store := memory.NewStore()
	manager := NewManager(store)
	def := testutils.SampleDefinition(t)
	ctx := context.Background()

	_, err := manager.Begin(ctx, "subject-1", def)
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithActive(ctx, "subject-1", "wellness_check", time.Hour,
				func(ctx context.Context, sess *domain.Session) error {
					sess.RetryCount++
					return store.Save(ctx, sess)
				})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := store.FindActive(ctx, "subject-1", "wellness_check")
	require.NoError(t, err)
	assert.Equal(t, workers, final.RetryCount)
}

// The lock map must shrink back once conversations go idle.
func TestLockEntriesAreGarbageCollected(t *testing.T) {
	manager := NewManager(memory.NewStore())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = manager.withLock(context.Background(), "conv", func(ctx context.Context) error {
				return nil
			})
		}()
	}
	wg.Wait()

	manager.mu.Lock()
	defer manager.mu.Unlock()
	assert.Empty(t, manager.locks)
}
