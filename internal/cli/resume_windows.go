//go:build windows

package cli

import "os"

func resumeSignals() []os.Signal {
	return nil
}
