//go:build darwin

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// New returns a macOS LaunchAgent service manager.
func New() (Manager, error) {
	return &launchdManager{}, nil
}

type launchdManager struct{}

func plistPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents", label+".plist")
}

func launchctl(args ...string) ([]byte, error) {
	return exec.Command("launchctl", args...).CombinedOutput()
}

func (m *launchdManager) Install(args []string) error {
	execPath, err := ExecPath()
	if err != nil {
		return err
	}
	logPath := LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(plistPath()), 0755); err != nil {
		return fmt.Errorf("create LaunchAgents directory: %w", err)
	}
	plist := renderPlist(execPath, serviceArgs(args), logPath)
	if err := os.WriteFile(plistPath(), []byte(plist), 0644); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}

	if out, err := launchctl("load", "-w", plistPath()); err != nil {
		return fmt.Errorf("launchctl load: %s (%w)", out, err)
	}
	return nil
}

func (m *launchdManager) Uninstall() error {
	pp := plistPath()
	if _, err := os.Stat(pp); os.IsNotExist(err) {
		return fmt.Errorf("service not installed")
	}
	_, _ = launchctl("unload", pp)
	if err := os.Remove(pp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plist: %w", err)
	}
	_ = os.Remove(LogPath())
	return nil
}

func (m *launchdManager) Start() error {
	if out, err := launchctl("start", label); err != nil {
		return fmt.Errorf("launchctl start: %s (%w)", out, err)
	}
	return nil
}

func (m *launchdManager) Stop() error {
	if out, err := launchctl("stop", label); err != nil {
		return fmt.Errorf("launchctl stop: %s (%w)", out, err)
	}
	return nil
}

func (m *launchdManager) Restart() error {
	_ = m.Stop()
	return m.Start()
}

func (m *launchdManager) Status() (*Status, error) {
	s := &Status{LogPath: LogPath()}
	if _, err := os.Stat(plistPath()); err == nil {
		s.Installed = true
	}
	if pid, alive := pidFromLockFile(); alive {
		s.Running = true
		s.PID = pid
	}
	return s, nil
}
