// Package daemon implements the main-process run loop.
package daemon

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/prefs"
)

// ErrNotRunning is returned when work is submitted to a loop that has stopped.
var ErrNotRunning = errors.New("main loop is not running")

// AppConfig holds the main loop cadence.
type AppConfig struct {
	SchedulePollInterval time.Duration // Schedule evaluation (default 60s)
	RelayPollInterval    time.Duration // Snooze mailbox poll (default 1s)
	TickInterval         time.Duration // Snooze and timer countdowns (default 1s)
	EnforcementInterval  time.Duration // Process-level enforcement, 0 disables
	HeartbeatInterval    time.Duration // Registry heartbeat
	MetricsListen        string        // Empty disables the metrics endpoint
	Version              string
}

// DefaultAppConfig returns default loop configuration.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		SchedulePollInterval: 60 * time.Second,
		RelayPollInterval:    time.Second,
		TickInterval:         time.Second,
		EnforcementInterval:  0,
		HeartbeatInterval:    30 * time.Second,
	}
}

// App is the main process. Every state transition runs on the goroutine
// executing Run, so no two transitions interleave.
type App struct {
	*Components
	Config   AppConfig
	jobs     chan func()
	evalKick chan struct{}
	signals  chan string
	done     chan struct{}
}

// NewApp creates the main loop. Schedule mutations trigger an immediate evaluation.
func NewApp(c *Components, cfg AppConfig) *App {
	a := &App{
		Components: c,
		Config:     cfg,
		jobs:       make(chan func()),
		evalKick:   make(chan struct{}, 1),
		signals:    make(chan string, 8),
		done:       make(chan struct{}),
	}
	a.Schedules.SetOnChange(a.kickEvaluation)
	return a
}

// Run reconciles persisted state, then serves ticks, signals and submitted
// work until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer close(a.done)

	a.register()
	defer a.unregister()

	stops := a.observe()
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()

	if srv := a.serveMetrics(); srv != nil {
		defer srv.Close()
	}

	a.Logger.Info("main process started",
		zap.Int("pid", os.Getpid()),
		zap.String("version", a.Config.Version))

	a.resume()

	scheduleTicker := time.NewTicker(a.Config.SchedulePollInterval)
	relayTicker := time.NewTicker(a.Config.RelayPollInterval)
	tickTicker := time.NewTicker(a.Config.TickInterval)
	heartbeatTicker := time.NewTicker(a.Config.HeartbeatInterval)
	defer func() {
		scheduleTicker.Stop()
		relayTicker.Stop()
		tickTicker.Stop()
		heartbeatTicker.Stop()
	}()

	var enforceC <-chan time.Time
	if a.Enforcer != nil && a.Config.EnforcementInterval > 0 {
		enforceTicker := time.NewTicker(a.Config.EnforcementInterval)
		defer enforceTicker.Stop()
		enforceC = enforceTicker.C
		a.enforce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			a.Logger.Info("main process stopping")
			return ctx.Err()

		case job := <-a.jobs:
			job()

		case <-a.evalKick:
			a.evaluate()

		case sig := <-a.signals:
			a.handleSignal(sig)

		case <-scheduleTicker.C:
			a.evaluate()

		case <-relayTicker.C:
			a.Relay.Consume(a.Clock.Now())

		case <-tickTicker.C:
			a.tick()

		case <-heartbeatTicker.C:
			if a.Registry != nil {
				if err := a.Registry.UpdateHeartbeat(); err != nil {
					a.Logger.Warn("failed to update heartbeat", zap.Error(err))
				}
			}

		case <-enforceC:
			a.enforce(ctx)
		}
	}
}

// Do runs fn on the loop goroutine and waits for it to finish.
func (a *App) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		fn()
	}

	select {
	case a.jobs <- job:
	case <-a.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Foreground is the foreground transition run on the loop.
func (a *App) Foreground(ctx context.Context) error {
	return a.Do(ctx, a.resume)
}

func (a *App) kickEvaluation() {
	select {
	case a.evalKick <- struct{}{}:
	default:
	}
}

func (a *App) handleSignal(sig string) {
	a.Logger.Debug("signal received", zap.String("signal", sig))
	now := a.Clock.Now()
	switch sig {
	case prefs.SignalSnoozeRequested:
		a.Relay.Consume(now)
	case prefs.SignalSnoozeEnded:
		a.Snooze.Restore(now)
	}
}

func (a *App) observe() []func() {
	if a.Broadcaster == nil {
		return nil
	}
	var stops []func()
	for _, sig := range []string{prefs.SignalSnoozeRequested, prefs.SignalSnoozeEnded} {
		sig := sig
		stop, err := a.Broadcaster.Observe(sig, func() {
			select {
			case a.signals <- sig:
			default:
				// The poll picks up anything dropped here.
			}
		})
		if err != nil {
			a.Logger.Warn("failed to observe signal",
				zap.String("signal", sig),
				zap.Error(err))
			continue
		}
		stops = append(stops, stop)
	}
	return stops
}

func (a *App) enforce(ctx context.Context) {
	result := a.Enforcer.Enforce(ctx)
	if len(result.KilledPIDs) > 0 || len(result.Errors) > 0 {
		a.Logger.Info("enforcement completed",
			zap.String("mode", string(result.Mode)),
			zap.Int("processes_killed", len(result.KilledPIDs)),
			zap.Int("errors", len(result.Errors)),
			zap.Int64("duration_ms", result.DurationMs))
	}
}

func (a *App) register() {
	if a.Registry == nil {
		return
	}
	err := a.Registry.Register(domain.MainProcess{
		PID:        os.Getpid(),
		AppVersion: a.Config.Version,
	})
	if err != nil {
		a.Logger.Warn("failed to register main process", zap.Error(err))
	}
}

func (a *App) unregister() {
	if a.Registry == nil {
		return
	}
	if err := a.Registry.Clear(); err != nil {
		a.Logger.Warn("failed to clear registry", zap.Error(err))
	}
}

func (a *App) serveMetrics() *http.Server {
	if a.Config.MetricsListen == "" || a.Metrics == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	srv := &http.Server{
		Addr:              a.Config.MetricsListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	a.Logger.Info("metrics listening", zap.String("addr", a.Config.MetricsListen))
	return srv
}
