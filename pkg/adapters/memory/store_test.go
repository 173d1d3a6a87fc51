package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchback-sms/switchback/pkg/domain"
)

func TestSessionRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	session := domain.NewSession("subject-1", "survey-1", "1.0.0", "start")
	session.SetContext("name", "Ada")
	require.NoError(t, store.Save(ctx, session))

	loaded, err := store.Find(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, "Ada", loaded.Context["name"])

	_, err = store.Find(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

// The store must hand out copies: mutating a loaded session must not leak
// into stored state until Save.
func TestFindReturnsIsolatedCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	session := domain.NewSession("subject-1", "survey-1", "1.0.0", "start")
	require.NoError(t, store.Save(ctx, session))

	loaded, err := store.Find(ctx, session.ID)
	require.NoError(t, err)
	loaded.SetContext("name", "Mallory")
	loaded.CurrentStepID = "elsewhere"

	fresh, err := store.Find(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Context["name"])
	assert.Equal(t, "start", fresh.CurrentStepID)
}

func TestSaveStoresCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	session := domain.NewSession("subject-1", "survey-1", "1.0.0", "start")
	require.NoError(t, store.Save(ctx, session))
	session.SetContext("name", "Mallory")

	fresh, err := store.Find(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Context["name"])
}

func TestFindActive(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	done := domain.NewSession("subject-1", "survey-1", "1.0.0", "start")
	done.MarkCompleted(time.Now())
	require.NoError(t, store.Save(ctx, done))

	open := domain.NewSession("subject-1", "survey-1", "1.0.0", "start")
	require.NoError(t, store.Save(ctx, open))

	found, err := store.FindActive(ctx, "subject-1", "survey-1")
	require.NoError(t, err)
	assert.Equal(t, open.ID, found.ID)

	_, err = store.FindActive(ctx, "subject-1", "other-survey")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestDeleteCascadesResponses(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	session := domain.NewSession("subject-1", "survey-1", "1.0.0", "start")
	require.NoError(t, store.Save(ctx, session))
	require.NoError(t, store.Append(ctx, domain.NewResponseRecord(session.ID, "q1", "hi", nil, true)))

	require.NoError(t, store.Delete(ctx, session.ID))

	_, err := store.Find(ctx, session.ID)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	records, err := store.BySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestResponsesKeepArrivalOrder(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for _, step := range []string{"q1", "q2", "q3"} {
		require.NoError(t, store.Append(ctx, domain.NewResponseRecord("s1", step, "x", nil, true)))
	}

	records, err := store.BySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "q1", records[0].StepID)
	assert.Equal(t, "q3", records[2].StepID)
}

func TestOptOuts(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	out, err := store.IsOptedOut(ctx, "subject-1")
	require.NoError(t, err)
	assert.False(t, out)

	require.NoError(t, store.AddOptOut(ctx, "subject-1", "stop"))
	out, err = store.IsOptedOut(ctx, "subject-1")
	require.NoError(t, err)
	assert.True(t, out)

	removed, err := store.RemoveOptOut(ctx, "subject-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.RemoveOptOut(ctx, "subject-1")
	require.NoError(t, err)
	assert.False(t, removed)
}
