package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "telecode.lock")
}

func TestAcquireAndRelease(t *testing.T) {
	l := New(lockPath(t))
	require.NoError(t, l.Acquire())
	assert.True(t, l.Held())

	require.NoError(t, l.Release())
	assert.False(t, l.Held())
	_, err := os.Stat(l.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestSecondAcquireBlocked(t *testing.T) {
	path := lockPath(t)
	first := New(path)
	require.NoError(t, first.Acquire())
	defer first.Release()

	// Same live PID, so the second lock must refuse.
	second := New(path)
	err := second.Acquire()
	require.ErrorIs(t, err, ErrHeld)
	assert.False(t, second.Held())
}

func TestStaleLockReplaced(t *testing.T) {
	path := lockPath(t)
	// A PID that cannot exist: beyond any kernel's pid_max.
	content := fmt.Sprintf("%d\n%s\n", 1<<30, time.Now().UTC().Format(time.RFC3339))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	l := New(path)
	require.NoError(t, l.Acquire())
	assert.True(t, l.Held())
	l.Release()
}

func TestMalformedLockReplaced(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not a pid\n"), 0600))

	l := New(path)
	require.NoError(t, l.Acquire())
	l.Release()
}

func TestOldLockReplacedDespiteLivePid(t *testing.T) {
	path := lockPath(t)
	// Our own PID is alive, but the timestamp is ancient.
	old := time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339)
	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), old)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	l := New(path)
	require.NoError(t, l.Acquire())
	l.Release()
}

func TestReleaseWithoutAcquireIsNoop(t *testing.T) {
	l := New(lockPath(t))
	assert.NoError(t, l.Release())
}

func TestLockFilePermissions(t *testing.T) {
	l := New(lockPath(t))
	require.NoError(t, l.Acquire())
	defer l.Release()

	info, err := os.Stat(l.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
