// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// FakeApp is a long-running process with a unique name, standing in for a
// blocked application.
type FakeApp struct {
	Dir  string
	Name string

	cmd *exec.Cmd
}

// NewFakeApp picks a unique process name under dir. Names stay within the
// 15 characters Linux keeps in the process name.
func NewFakeApp(dir string) *FakeApp {
	return &FakeApp{
		Dir:  dir,
		Name: "fake" + uuid.NewString()[:8],
	}
}

// Start copies the system sleep binary under the fake name and runs it.
func (f *FakeApp) Start() error {
	src, err := exec.LookPath("sleep")
	if err != nil {
		return fmt.Errorf("sleep not found: %w", err)
	}
	bin := filepath.Join(f.Dir, f.Name)
	if err := copyFile(src, bin); err != nil {
		return err
	}

	f.cmd = exec.Command(bin, "300")
	if err := f.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", f.Name, err)
	}
	go func() { _ = f.cmd.Wait() }()
	return nil
}

// PID returns the running process ID, or 0 before Start.
func (f *FakeApp) PID() int {
	if f.cmd == nil || f.cmd.Process == nil {
		return 0
	}
	return f.cmd.Process.Pid
}

// Stop kills the process if it is still running.
func (f *FakeApp) Stop() {
	if f.cmd != nil && f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
