// Package infra implements the host capabilities: persistent stores, the
// shield, cross-process broadcast, notifications, the physical token and
// process discovery.
package infra

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/locked/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() *ProcessManagerImpl {
	return &ProcessManagerImpl{}
}

// FindByName returns PIDs whose process name or executable base name
// contains target (case-insensitive). Lock targets are app names.
func (pm *ProcessManagerImpl) FindByName(target string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(target)
	var found []int
	for _, p := range procs {
		if matchesTarget(p, want) {
			found = append(found, int(p.Pid))
		}
	}
	return found, nil
}

func matchesTarget(p *process.Process, want string) bool {
	if name, err := p.Name(); err == nil && strings.Contains(strings.ToLower(name), want) {
		return true
	}
	// Exe is often unreadable for other users' processes.
	if exe, err := p.Exe(); err == nil {
		return strings.Contains(strings.ToLower(filepath.Base(exe)), want)
	}
	return false
}

// Kill terminates a process by PID using SIGKILL.
func (pm *ProcessManagerImpl) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}

// IsRunning checks if a PID exists and is not a zombie.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	if err != nil || !ok {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	status, err := p.Status()
	if err != nil {
		return true
	}
	for _, s := range status {
		if s == process.Zombie {
			return false
		}
	}
	return true
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
