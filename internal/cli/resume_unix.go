//go:build !windows

package cli

import (
	"os"
	"syscall"
)

// resumeSignals fire when the process continues after a suspend.
func resumeSignals() []os.Signal {
	return []os.Signal{syscall.SIGCONT}
}
