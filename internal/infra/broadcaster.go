package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
)

// signalSeparator splits the signal name from the per-post suffix in a drop file name.
const signalSeparator = "~"

// signalRetention is how long posted drop files stay in the signal directory.
const signalRetention = time.Minute

// FileBroadcaster implements domain.Broadcaster over a shared directory.
// Post drops a uniquely named file; every observer watches the directory
// and fires on files created for its signal. A process that is not running
// misses the signal, which matches the at-most-once contract.
type FileBroadcaster struct {
	dir    string
	logger *zap.Logger
}

// NewFileBroadcaster creates a broadcaster over dir.
func NewFileBroadcaster(dir string, logger *zap.Logger) (*FileBroadcaster, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create signal directory: %w", err)
	}
	return &FileBroadcaster{dir: dir, logger: logger}, nil
}

// Post emits signal to every current observer.
func (b *FileBroadcaster) Post(signal string) error {
	if signal == "" || strings.Contains(signal, signalSeparator) {
		return fmt.Errorf("invalid signal name %q", signal)
	}

	name := signal + signalSeparator + uuid.NewString()
	tmp := filepath.Join(b.dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, []byte(time.Now().UTC().Format(time.RFC3339Nano)), 0600); err != nil {
		return fmt.Errorf("failed to write signal: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(b.dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to post signal: %w", err)
	}

	b.sweep()
	return nil
}

// Observe calls fn, from a watcher goroutine, each time signal is posted.
func (b *FileBroadcaster) Observe(signal string, fn func()) (func(), error) {
	if fn == nil {
		return nil, errors.New("nil observer")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(b.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", b.dir, err)
	}

	prefix := signal + signalSeparator
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) {
					continue
				}
				if strings.HasPrefix(filepath.Base(event.Name), prefix) {
					fn()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				b.logger.Warn("signal watcher error",
					zap.String("signal", signal),
					zap.Error(err))
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			watcher.Close()
			<-done
		})
	}
	return stop, nil
}

// sweep removes drop files older than the retention window.
func (b *FileBroadcaster) sweep() {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-signalRetention)
	for _, e := range entries {
		if !strings.Contains(e.Name(), signalSeparator) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		os.Remove(filepath.Join(b.dir, e.Name()))
	}
}

var _ domain.Broadcaster = (*FileBroadcaster)(nil)
