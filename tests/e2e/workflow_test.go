package e2e

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	TEST_LOCKFILE_TIMEOUT = 30 * time.Second
	TEST_VIEW_TIMEOUT     = 30 * time.Second
	TEST_POLL_INTERVAL    = "200ms"
)

func binaryPath(t *testing.T) string {
	t.Helper()
	binDir := os.Getenv("HABITUAL_BIN_DIR")
	if binDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			t.Fatalf("Failed to get cwd: %v", err)
		}
		binDir = filepath.Join(cwd, "..", "..", "bin")
	}
	binDir, _ = filepath.Abs(binDir)

	cliPath := filepath.Join(binDir, "habitual")
	if _, err := os.Stat(cliPath); os.IsNotExist(err) {
		t.Skipf("CLI binary not found at %s. Build it with 'go build -o bin/habitual ./cmd/habitual'.", cliPath)
	}
	return cliPath
}

// isolatedEnv points HOME and the config at tempDir and drops any
// HABITUAL_ variables from the caller.
func isolatedEnv(tempDir string) []string {
	var env []string
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "HOME=") || strings.HasPrefix(e, "HABITUAL_") {
			continue
		}
		env = append(env, e)
	}
	return append(env,
		fmt.Sprintf("HOME=%s", tempDir),
		fmt.Sprintf("HABITUAL_CONFIG=%s", filepath.Join(tempDir, "habitual", "config.yaml")),
		fmt.Sprintf("HABITUAL_STORAGE_PATH=%s", filepath.Join(tempDir, "habitual", "habitual.db")),
		fmt.Sprintf("HABITUAL_LOG_DIR=%s", filepath.Join(tempDir, "habitual", "logs")),
		fmt.Sprintf("HABITUAL_POLL_INTERVAL=%s", TEST_POLL_INTERVAL),
		"HABITUAL_USER=alice",
	)
}

func TestEndToEndWorkflow(t *testing.T) {
	cliPath := binaryPath(t)
	tempDir := t.TempDir()
	env := isolatedEnv(tempDir)

	t.Log("Initializing CLI...")
	runCmd(t, cliPath, env, "init")

	runCmd(t, cliPath, env, "habit", "add", "Meditate", "--reminder", "07:00")
	runCmd(t, cliPath, env, "habit", "add", "Stretch", "--reminder", "08:00", "--category", "Fitness")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchCmd := exec.CommandContext(ctx, cliPath, "watch")
	watchCmd.Env = env
	watchCmd.Cancel = func() error { return watchCmd.Process.Signal(os.Interrupt) }
	stdoutPipe, err := watchCmd.StdoutPipe()
	if err != nil {
		t.Fatalf("Failed to get stdout pipe: %v", err)
	}
	if err := watchCmd.Start(); err != nil {
		t.Fatalf("Failed to start watch: %v", err)
	}
	t.Log("Watch started")

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(stdoutPipe)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	lockfilePath := filepath.Join(tempDir, "habitual", "session.lock")
	waitForFile(t, lockfilePath, TEST_LOCKFILE_TIMEOUT)
	waitForLine(t, lines, "0% --", TEST_VIEW_TIMEOUT)

	t.Log("Toggling from a second process...")
	out := runCmd(t, cliPath, env, "toggle", "Meditate")
	if !strings.Contains(out, "Meditate: done") {
		t.Errorf("unexpected toggle output: %s", out)
	}
	waitForLine(t, lines, "50% --", TEST_VIEW_TIMEOUT)

	t.Log("Restore must refuse while a session holds the lock...")
	dummy := filepath.Join(tempDir, "dummy.db")
	if err := os.WriteFile(dummy, []byte("not a database"), 0o600); err != nil {
		t.Fatalf("Failed to write dummy backup: %v", err)
	}
	restore := exec.Command(cliPath, "backup", "restore", "--yes", dummy)
	restore.Env = env
	restoreOut, err := restore.CombinedOutput()
	if err == nil {
		t.Errorf("restore succeeded while watch was running: %s", restoreOut)
	} else if !strings.Contains(string(restoreOut), "another habitual session is running") {
		t.Errorf("restore failed for the wrong reason: %s", restoreOut)
	}

	cancel()
	if err := watchCmd.Wait(); err != nil {
		t.Logf("Watch exited with: %v", err)
	}

	out = runCmd(t, cliPath, env, "backup", "list")
	if !strings.Contains(out, "habitual-") {
		t.Errorf("expected the automatic backup from watch, got: %s", out)
	}

	out = runCmd(t, cliPath, env, "progress")
	if !strings.Contains(out, " 50%") {
		t.Errorf("expected today's rate in progress output, got: %s", out)
	}
}

func runCmd(t *testing.T, path string, env []string, args ...string) string {
	t.Helper()
	cmd := exec.Command(path, args...)
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("Command %s %v failed: %v\nOutput: %s", path, args, err, out)
	}
	return string(out)
}

func waitForFile(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	start := time.Now()
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if time.Since(start) > timeout {
			t.Fatalf("Timed out waiting for file: %s", path)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func waitForLine(t *testing.T, lines <-chan string, substr string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("watch output closed before %q", substr)
			}
			if strings.Contains(line, substr) {
				t.Logf("Found: %s", line)
				return
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for %q", substr)
		}
	}
}
