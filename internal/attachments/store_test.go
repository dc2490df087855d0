package attachments

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

func TestStatAndRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc"), []byte("hello"), 0600))
	store := NewLocalStore(dir, zaptest.NewLogger(t))

	size, err := store.Stat("abc")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	data, err := store.Read("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = store.Stat("missing")
	assert.ErrorIs(t, err, core.ErrPrecondition)
	_, err = store.Read("missing")
	assert.ErrorIs(t, err, core.ErrPrecondition)
	_, err = store.Read("../abc")
	assert.ErrorIs(t, err, core.ErrPrecondition)
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	old := filepath.Join(dir, "old")
	fresh := filepath.Join(dir, "fresh")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0600))
	require.NoError(t, os.WriteFile(fresh, []byte("y"), 0600))
	require.NoError(t, os.Chtimes(old, now.Add(-6*24*time.Hour), now.Add(-6*24*time.Hour)))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0700))

	removed, err := NewLocalStore(dir, zaptest.NewLogger(t)).Cleanup(5*24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.DirExists(t, filepath.Join(dir, "sub"))
}

func TestCleanupMissingDir(t *testing.T) {
	removed, err := NewLocalStore(filepath.Join(t.TempDir(), "nope"), zaptest.NewLogger(t)).Cleanup(time.Hour, time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestWithTempFileRemovesOnFailure(t *testing.T) {
	var seen string
	sendErr := errors.New("send failed")

	err := WithTempFile("report.pdf", []byte("%PDF"), func(path string) error {
		seen = path
		assert.Equal(t, "report.pdf", filepath.Base(path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF"), data)
		return sendErr
	})

	assert.ErrorIs(t, err, sendErr)
	assert.NoFileExists(t, seen)
	assert.NoDirExists(t, filepath.Dir(seen))
}

func TestWithTempFileSuccess(t *testing.T) {
	var seen string
	err := WithTempFile("../../etc/passwd", nil, func(path string) error {
		seen = path
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "passwd", filepath.Base(seen))
	assert.NoFileExists(t, seen)
}
