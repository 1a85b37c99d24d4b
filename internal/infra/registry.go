package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/locked/internal/domain"
)

const registryFileName = ".main_process.json"

// FileRegistry implements domain.ProcessRegistry with a hidden JSON file in
// the shared directory, so extension processes can find the main process.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
	staleAfter     time.Duration
	now            func() time.Time
}

// NewFileRegistry creates a registry in sharedDir. A main process whose
// heartbeat is older than staleAfter counts as dead (0 disables the check).
func NewFileRegistry(sharedDir string, pm domain.ProcessManager, staleAfter time.Duration) *FileRegistry {
	return NewFileRegistryWithPath(filepath.Join(sharedDir, registryFileName), pm, staleAfter)
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, pm domain.ProcessManager, staleAfter time.Duration) *FileRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
		staleAfter:     staleAfter,
		now:            time.Now,
	}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// Register records p as the main process, stamping the heartbeat.
func (r *FileRegistry) Register(p domain.MainProcess) error {
	return r.withLock(func() error {
		p.LastHeartbeat = r.now().Unix()
		return r.atomicWrite(&p)
	})
}

// UpdateHeartbeat refreshes the heartbeat of the registered process.
func (r *FileRegistry) UpdateHeartbeat() error {
	return r.withLock(func() error {
		entry, err := r.Get()
		if err != nil {
			return err
		}
		if entry == nil {
			return errors.New("main process not registered")
		}
		entry.LastHeartbeat = r.now().Unix()
		return r.atomicWrite(entry)
	})
}

// Get returns the registered main process, or nil if none.
func (r *FileRegistry) Get() (*domain.MainProcess, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.MainProcess
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	return &entry, nil
}

// IsMainAlive reports whether the registered PID runs and its heartbeat is fresh.
func (r *FileRegistry) IsMainAlive() bool {
	entry, err := r.Get()
	if err != nil || entry == nil || entry.PID == 0 {
		return false
	}
	if r.staleAfter > 0 {
		age := r.now().Sub(time.Unix(entry.LastHeartbeat, 0))
		if age > r.staleAfter {
			return false
		}
	}
	return r.processManager.IsRunning(entry.PID)
}

// Clear removes the registry file.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// withLock serializes writers across processes.
func (r *FileRegistry) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	lockFile, err := os.OpenFile(r.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	return fn()
}

// atomicWrite writes the entry to a per-process temp file and renames it.
func (r *FileRegistry) atomicWrite(entry *domain.MainProcess) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

var _ domain.ProcessRegistry = (*FileRegistry)(nil)
