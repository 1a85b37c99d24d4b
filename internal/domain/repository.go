package domain

import (
	"context"
	"time"
)

// KeyValueStore is a persisted string-keyed blob store.
// Implementations: badger (private, single process) and SQLCipher (shared app group).
type KeyValueStore interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Set stores value under key. Last write wins.
	Set(key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error

	// Close releases resources (e.g., database connection).
	Close() error
}

// ShieldProvider applies OS-level restrictions. Calls are idempotent.
type ShieldProvider interface {
	// ApplyBlockList blocks exactly the given apps and categories.
	ApplyBlockList(apps, categories []string) error

	// ApplyAllowList blocks everything except the given apps and categories.
	ApplyAllowList(exceptApps, exceptCategories []string) error

	// ClearAll removes every restriction.
	ClearAll() error
}

// AuthorizationCenter is the host's permission capability.
type AuthorizationCenter interface {
	// Status returns the current host status without prompting.
	Status() AuthorizationStatus

	// RequestAuthorization prompts for approval.
	RequestAuthorization(ctx context.Context) error
}

// TagReader reads and writes the physical unlock token.
type TagReader interface {
	// Scan returns the payload stored on the presented tag.
	Scan(ctx context.Context) (string, error)

	// Write stores payload on the presented tag.
	Write(ctx context.Context, payload string) error
}

// Notifier delivers local notifications. Delivery is not confirmed.
type Notifier interface {
	// Schedule shows a notification after delay (0 = now).
	Schedule(title, body string, delay time.Duration) error
}

// Broadcaster delivers named signals across processes.
// Delivery is at most once and not guaranteed to a suspended process.
type Broadcaster interface {
	// Post emits signal to every observer.
	Post(signal string) error

	// Observe registers fn for signal. The returned func stops observing.
	Observe(signal string, fn func()) (stop func(), err error)
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// ProcessRegistry lets extensions discover the main process.
// Implementation: hidden JSON file in the shared directory.
type ProcessRegistry interface {
	// Register saves the current main process PID.
	Register(p MainProcess) error

	// UpdateHeartbeat updates timestamp for liveness check.
	UpdateHeartbeat() error

	// Get returns the registered main process, or nil if none.
	Get() (*MainProcess, error)

	// IsMainAlive checks if the registered main process is running.
	IsMainAlive() bool

	// Clear removes the registry file.
	Clear() error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// Clock returns the current time. Injected so tests can control it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
