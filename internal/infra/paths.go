package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents who the application runs as.
type ExecMode string

const (
	// ExecModeUser keeps state under the user's home directory
	ExecModeUser ExecMode = "user"
	// ExecModeSystem keeps state under /var/lib (root)
	ExecModeSystem ExecMode = "system"
)

// Paths holds the default on-disk locations for the current execution mode.
type Paths struct {
	Mode      ExecMode
	DataDir   string // Private store, owned by the main process
	SharedDir string // Shared encrypted store, key and main-process registry
	SignalDir string // Cross-process broadcast drop directory
	TagFile   string // Stand-in for the physical token
	IsRoot    bool
}

// DetectPaths returns the default locations based on effective UID.
func DetectPaths() *Paths {
	if os.Geteuid() == 0 {
		return PathsUnder(ExecModeSystem, "/var/lib/locked")
	}
	return PathsUnder(ExecModeUser, filepath.Join(GetRealUserHome(), ".locked"))
}

// PathsUnder lays out every location below root.
func PathsUnder(mode ExecMode, root string) *Paths {
	return &Paths{
		Mode:      mode,
		DataDir:   filepath.Join(root, "data"),
		SharedDir: filepath.Join(root, "group"),
		SignalDir: filepath.Join(root, "group", "signals"),
		TagFile:   filepath.Join(root, "tag"),
		IsRoot:    mode == ExecModeSystem,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
