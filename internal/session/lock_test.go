package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid int
	exe string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.exe }

func stubProcesses(t *testing.T, pid int, alive map[int]bool) {
	t.Helper()
	origFind, origPID := findProcess, currentPID
	t.Cleanup(func() { findProcess, currentPID = origFind, origPID })

	currentPID = func() int { return pid }
	findProcess = func(p int) (ps.Process, error) {
		if alive[p] {
			return fakeProcess{pid: p, exe: "habitual"}, nil
		}
		return nil, nil
	}
}

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	stubProcesses(t, 100, map[int]bool{100: true})

	l, err := AcquireLock(dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "session.lock"))
	require.NoError(t, err)
	assert.Equal(t, "100", string(data))

	// re-entrant for the same pid
	_, err = AcquireLock(dir)
	require.NoError(t, err)

	require.NoError(t, l.Release())
	_, err = os.Stat(l.Path())
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, l.Release())
}

func TestAcquireFailsWhileHolderRuns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.lock"), []byte("200\n"), 0o600))
	stubProcesses(t, 100, map[int]bool{100: true, 200: true})

	_, err := AcquireLock(dir)
	assert.True(t, errors.Is(err, ErrLocked), "got %v", err)
}

func TestAcquireTakesOverStaleLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.lock")
	require.NoError(t, os.WriteFile(path, []byte("200"), 0o600))
	stubProcesses(t, 100, map[int]bool{100: true})

	l, err := AcquireLock(dir)
	require.NoError(t, err)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "100", string(data))

	// someone else took it over; release leaves their lock alone
	require.NoError(t, os.WriteFile(path, []byte("300"), 0o600))
	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestAcquireIgnoresGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.lock"), []byte("not a pid"), 0o600))
	stubProcesses(t, 100, nil)

	_, err := AcquireLock(dir)
	assert.NoError(t, err)
}
