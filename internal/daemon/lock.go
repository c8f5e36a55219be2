package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rainagent/rain/internal/config"
)

// configDir is swappable in tests.
var configDir = config.Dir

func lockPath() string {
	return filepath.Join(configDir(), "serve.lock")
}

// AcquireLock creates a PID lock file so only one console runs per config
// directory. Returns a release function.
func AcquireLock() (release func(), err error) {
	path := lockPath()

	if pid, alive := pidFromLockFile(); alive {
		return nil, fmt.Errorf(
			"another rain console is running (PID %d)\n"+
				"If this is wrong, remove: %s", pid, path)
	}
	// Stale lock from a crashed process is safe to remove.
	_ = os.Remove(path)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	return func() { _ = os.Remove(path) }, nil
}

// pidFromLockFile reads the PID from serve.lock and checks whether the
// process is still alive.
func pidFromLockFile() (int, bool) {
	data, err := os.ReadFile(lockPath())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, processAlive(pid)
}

// processAlive checks whether a PID is still running.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 tests existence without actually sending a signal.
	return proc.Signal(syscall.Signal(0)) == nil
}
