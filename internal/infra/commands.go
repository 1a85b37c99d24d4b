package infra

import (
	"os/exec"
)

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	Run(name string, args ...string) error
	LookPath(name string) (string, error)
}

// RealCommandRunner executes real system commands
type RealCommandRunner struct{}

// Run executes a command and waits for it to complete
func (r *RealCommandRunner) Run(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// LookPath reports where name is installed.
func (r *RealCommandRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
