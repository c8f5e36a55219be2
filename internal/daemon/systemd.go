//go:build linux

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// New returns a Linux systemd user service manager.
func New() (Manager, error) {
	return &systemdManager{}, nil
}

type systemdManager struct{}

func unitPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "systemd", "user", unitName)
}

func systemctl(args ...string) ([]byte, error) {
	return exec.Command("systemctl", append([]string{"--user"}, args...)...).CombinedOutput()
}

func (m *systemdManager) Install(args []string) error {
	execPath, err := ExecPath()
	if err != nil {
		return err
	}
	logPath := LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(unitPath()), 0755); err != nil {
		return fmt.Errorf("create systemd directory: %w", err)
	}
	unit := renderUnit(execPath, serviceArgs(args), logPath)
	if err := os.WriteFile(unitPath(), []byte(unit), 0644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}

	if out, err := systemctl("daemon-reload"); err != nil {
		return fmt.Errorf("daemon-reload: %s (%w)", out, err)
	}
	if out, err := systemctl("enable", "--now", unitName); err != nil {
		return fmt.Errorf("enable service: %s (%w)", out, err)
	}
	return nil
}

func (m *systemdManager) Uninstall() error {
	if _, err := os.Stat(unitPath()); os.IsNotExist(err) {
		return fmt.Errorf("service not installed")
	}
	_, _ = systemctl("disable", "--now", unitName)
	if err := os.Remove(unitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}
	_, _ = systemctl("daemon-reload")
	_ = os.Remove(LogPath())
	return nil
}

func (m *systemdManager) Start() error   { return m.run("start") }
func (m *systemdManager) Stop() error    { return m.run("stop") }
func (m *systemdManager) Restart() error { return m.run("restart") }

func (m *systemdManager) run(verb string) error {
	if out, err := systemctl(verb, unitName); err != nil {
		return fmt.Errorf("%s service: %s (%w)", verb, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (m *systemdManager) Status() (*Status, error) {
	s := &Status{LogPath: LogPath()}
	if _, err := os.Stat(unitPath()); err == nil {
		s.Installed = true
	}

	out, err := exec.Command("systemctl", "--user", "is-active", unitName).Output()
	if err == nil && strings.TrimSpace(string(out)) == "active" {
		s.Running = true
		pidOut, pidErr := exec.Command("systemctl", "--user", "show", unitName, "--property=MainPID", "--value").Output()
		if pidErr == nil {
			if pid, e := strconv.Atoi(strings.TrimSpace(string(pidOut))); e == nil && pid > 0 {
				s.PID = pid
			}
		}
	}
	// A console started by hand also counts.
	if !s.Running {
		if pid, alive := pidFromLockFile(); alive {
			s.Running, s.PID = true, pid
		}
	}
	return s, nil
}
