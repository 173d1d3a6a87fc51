package switchback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchback-sms/switchback/internal/testutils"
	"github.com/switchback-sms/switchback/pkg/domain"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "wellness_check.yaml"),
		[]byte(testutils.SampleSurveyYAML), 0o644))

	engine, err := New(dir)
	require.NoError(t, err)
	return engine
}

func TestEngine_EndToEnd(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	ids, err := engine.Surveys()
	require.NoError(t, err)
	assert.Equal(t, []string{"wellness_check"}, ids)

	sess, consentText, err := engine.Start(ctx, "subject-1", "wellness_check")
	require.NoError(t, err)
	assert.Contains(t, consentText, "Reply YES to continue")

	prompt, err := engine.Prompt(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, consentText, prompt)

	for _, turn := range []struct{ input, want string }{
		{"yes", "first name"},
		{"Ada", "How are you feeling"},
		{"Okay", "ZIP code"},
		{"90210", "Thanks for checking in"},
	} {
		reply, err := engine.Advance(ctx, "subject-1", "wellness_check", turn.input)
		require.NoError(t, err)
		assert.Contains(t, reply.Text, turn.want, turn.input)
	}

	records, err := engine.Responses(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, records, 4)

	// Completed conversations no longer accept replies.
	_, err = engine.Advance(ctx, "subject-1", "wellness_check", "hello?")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestEngine_StartRequiresKnownSurvey(t *testing.T) {
	engine := newEngine(t)
	_, _, err := engine.Start(context.Background(), "subject-1", "ghost")
	assert.True(t, errors.Is(err, domain.ErrSurveyNotFound))
}

func TestNew_RequiresDirOrSource(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestValidateDocument(t *testing.T) {
	warnings, err := ValidateDocument([]byte(testutils.SampleSurveyYAML))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	broken := strings.Replace(testutils.SampleSurveyYAML, "next: ask_mood", "next: ask_name", 1)
	_, err = ValidateDocument([]byte(broken))
	assert.Error(t, err)
}
