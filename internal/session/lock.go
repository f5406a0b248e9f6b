package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"
	"github.com/natefinch/atomic"

	"github.com/julianstephens/habitual/internal/constants"
)

var (
	findProcess = ps.FindProcess
	currentPID  = os.Getpid
)

// ErrLocked means another live session holds the lock.
var ErrLocked = errors.New("another habitual session is running")

// Lock is a pid file that keeps two live sessions off one config directory.
type Lock struct {
	path string
	pid  int
}

// AcquireLock takes the lock in dir. A lock left by a process that is no
// longer running is taken over.
func AcquireLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	path := filepath.Join(dir, constants.LockfileName)
	pid := currentPID()

	if holder, ok := readLock(path); ok && holder != pid {
		proc, err := findProcess(holder)
		if err == nil && proc != nil {
			return nil, fmt.Errorf("%w (pid %d, %s)", ErrLocked, holder, proc.Executable())
		}
	}

	if err := atomic.WriteFile(path, strings.NewReader(strconv.Itoa(pid))); err != nil {
		return nil, fmt.Errorf("failed to write lockfile: %w", err)
	}
	return &Lock{path: path, pid: pid}, nil
}

func readLock(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func (l *Lock) Path() string { return l.path }

// Release removes the lock if this process still owns it.
func (l *Lock) Release() error {
	if holder, ok := readLock(l.path); !ok || holder != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}
