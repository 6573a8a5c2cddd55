// Package daemon tracks a background `magi serve` process through a PID file.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNotRunning is returned when no live process owns the PID file.
var ErrNotRunning = errors.New("server is not running")

// PIDFile manages a PID file for daemon process tracking.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write writes the current process's PID to the file.
func (p *PIDFile) Write() error {
	return p.WritePID(os.Getpid())
}

// WritePID writes the given PID to the file.
func (p *PIDFile) WritePID(pid int) error {
	return os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}

// Claim records pid as the server unless another live process already holds
// the file. A file left behind by a dead process is replaced.
func (p *PIDFile) Claim(pid int) error {
	if other, running := p.IsRunning(); running && other != pid {
		return fmt.Errorf("server already running (PID %d)", other)
	}
	return p.WritePID(pid)
}

// Stop asks the recorded process to terminate and waits up to grace for it
// to exit, killing it after that. The PID file is removed either way.
func (p *PIDFile) Stop(grace time.Duration) error {
	pid, running := p.IsRunning()
	if !running {
		_ = p.Remove()
		return ErrNotRunning
	}
	defer func() { _ = p.Remove() }()

	if err := p.Signal(terminateSignal); err != nil {
		return fmt.Errorf("signal PID %d: %w", pid, err)
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if _, alive := p.IsRunning(); !alive {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err := p.Signal(killSignal); err != nil {
		return fmt.Errorf("kill PID %d: %w", pid, err)
	}
	return nil
}
