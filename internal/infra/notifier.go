package infra

import (
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
)

// DesktopNotifier implements domain.Notifier with the host's notification
// command (osascript on macOS, notify-send elsewhere). Every notification
// is logged, so a host without a notification command still records it.
type DesktopNotifier struct {
	mu      sync.Mutex
	runner  CommandRunner
	goos    string
	logger  *zap.Logger
	pending map[*time.Timer]struct{}
}

// NewDesktopNotifier creates a notifier for the current OS.
func NewDesktopNotifier(logger *zap.Logger) *DesktopNotifier {
	return NewDesktopNotifierWithDeps(&RealCommandRunner{}, runtime.GOOS, logger)
}

// NewDesktopNotifierWithDeps creates a notifier with injectable dependencies (for testing).
func NewDesktopNotifierWithDeps(runner CommandRunner, goos string, logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		runner:  runner,
		goos:    goos,
		logger:  logger,
		pending: make(map[*time.Timer]struct{}),
	}
}

// Schedule shows the notification after delay. Delivery is not confirmed.
func (n *DesktopNotifier) Schedule(title, body string, delay time.Duration) error {
	if delay <= 0 {
		n.deliver(title, body)
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		n.mu.Lock()
		delete(n.pending, timer)
		n.mu.Unlock()
		n.deliver(title, body)
	})
	n.pending[timer] = struct{}{}
	n.logger.Debug("notification scheduled",
		zap.String("title", title),
		zap.Duration("delay", delay))
	return nil
}

// Pending returns the number of notifications waiting for their delay.
func (n *DesktopNotifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// Stop cancels every pending notification.
func (n *DesktopNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for t := range n.pending {
		t.Stop()
		delete(n.pending, t)
	}
}

func (n *DesktopNotifier) deliver(title, body string) {
	n.logger.Info("notification",
		zap.String("title", title),
		zap.String("body", body))

	name, args := n.command(title, body)
	if _, err := n.runner.LookPath(name); err != nil {
		n.logger.Debug("notification command unavailable", zap.String("command", name))
		return
	}
	if err := n.runner.Run(name, args...); err != nil {
		n.logger.Warn("failed to show notification",
			zap.String("command", name),
			zap.Error(err))
	}
}

func (n *DesktopNotifier) command(title, body string) (string, []string) {
	if n.goos == "darwin" {
		script := fmt.Sprintf("display notification %s with title %s", strconv.Quote(body), strconv.Quote(title))
		return "osascript", []string{"-e", script}
	}
	return "notify-send", []string{"--app-name=locked", title, body}
}

var _ domain.Notifier = (*DesktopNotifier)(nil)
