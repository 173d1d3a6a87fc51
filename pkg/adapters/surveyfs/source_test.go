package surveyfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchback-sms/switchback/pkg/domain"
)

func TestRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.yaml"), []byte("metadata: {}"), 0o644))

	source := New(dir)

	data, err := source.Read("demo")
	require.NoError(t, err)
	assert.Equal(t, "metadata: {}", string(data))

	_, err = source.Read("missing")
	assert.True(t, errors.Is(err, domain.ErrSurveyNotFound))
}

func TestRead_RejectsPathTraversal(t *testing.T) {
	source := New(t.TempDir())

	for _, id := range []string{"../demo", "sub/demo", `sub\demo`, ""} {
		_, err := source.Read(id)
		assert.True(t, errors.Is(err, domain.ErrSurveyNotFound), id)
	}
}

func TestIDs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

	source := New(dir)
	ids, err := source.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestIDs_MissingDirIsEmpty(t *testing.T) {
	source := New(filepath.Join(t.TempDir(), "nope"))
	ids, err := source.IDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
