package daemon

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/config"
	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/infra"
	"github.com/eliteGoblin/locked/internal/metrics"
	"github.com/eliteGoblin/locked/internal/policy"
	"github.com/eliteGoblin/locked/internal/usecase"
)

// Components are the main-process collaborators. Enforcer, Broadcaster,
// Registry and Tags are optional.
type Components struct {
	Clock         domain.Clock
	Authorization *usecase.Authorization
	Profiles      *usecase.ProfileStore
	Schedules     *usecase.ScheduleStore
	Locker        *usecase.Locker
	Snooze        *usecase.SnoozeCounter
	Evaluator     *usecase.ScheduleEvaluator
	Relay         *usecase.Relay
	Tags          *usecase.TagSession
	Enforcer      *usecase.ShieldEnforcer
	Broadcaster   domain.Broadcaster
	Registry      domain.ProcessRegistry
	Metrics       *metrics.Metrics
	Logger        *zap.Logger

	closers []io.Closer
}

// Host are the capability implementations the core runs against.
type Host struct {
	Private     domain.KeyValueStore
	Shared      domain.KeyValueStore
	Shield      domain.ShieldProvider
	Center      domain.AuthorizationCenter
	Notifier    domain.Notifier
	TagReader   domain.TagReader
	Broadcaster domain.Broadcaster
	Registry    domain.ProcessRegistry
	Processes   domain.ProcessManager
	Clock       domain.Clock
}

// Settings are the behavioural knobs taken from configuration.
type Settings struct {
	MaxSnoozesPerDay   int
	SnoozeDuration     time.Duration
	RequestFreshness   time.Duration
	TagPhrase          string
	EnforcementEnabled bool
}

// Assemble wires the core over host. It is the single place where the
// object graph is built, for the real process and for tests alike.
func Assemble(host Host, settings Settings, m *metrics.Metrics, logger *zap.Logger) *Components {
	if m == nil {
		m = metrics.New()
	}
	c := &Components{
		Clock:       host.Clock,
		Broadcaster: host.Broadcaster,
		Registry:    host.Registry,
		Metrics:     m,
		Logger:      logger,
	}

	c.Authorization = usecase.NewAuthorization(host.Center, logger.Named("auth"))
	c.Profiles = usecase.NewProfileStore(host.Private, logger.Named("profiles"))
	c.Schedules = usecase.NewScheduleStore(host.Private, logger.Named("schedules"))
	c.Locker = usecase.NewLocker(usecase.LockerDeps{
		Private:  host.Private,
		Shared:   host.Shared,
		Shield:   host.Shield,
		Auth:     c.Authorization,
		Notifier: host.Notifier,
		Clock:    host.Clock,
		Metrics:  m,
		Logger:   logger.Named("locker"),
	})
	c.Snooze = usecase.NewSnoozeCounter(usecase.SnoozeDeps{
		Shared:   host.Shared,
		Locker:   c.Locker,
		Profiles: c.Profiles,
		Notifier: host.Notifier,
		Clock:    host.Clock,
		Metrics:  m,
		Logger:   logger.Named("snooze"),
	})
	c.Snooze.EnsureDefaults(settings.MaxSnoozesPerDay, settings.SnoozeDuration)
	c.Evaluator = usecase.NewScheduleEvaluator(usecase.EvaluatorDeps{
		Private:   host.Private,
		Schedules: c.Schedules,
		Profiles:  c.Profiles,
		Locker:    c.Locker,
		Snooze:    c.Snooze,
		Notifier:  host.Notifier,
		Metrics:   m,
		Logger:    logger.Named("evaluator"),
	})
	c.Schedules.SetOnChange(c.evaluate)
	c.Relay = usecase.NewRelay(usecase.NewSnoozeMailbox(host.Shared), c.Snooze, settings.RequestFreshness, m, logger.Named("relay"))
	if host.TagReader != nil {
		c.Tags = usecase.NewTagSession(host.TagReader, c.Locker, c.Profiles, c.Snooze, settings.TagPhrase, logger.Named("tag"))
	}
	if settings.EnforcementEnabled && host.Processes != nil {
		c.Enforcer = usecase.NewShieldEnforcer(host.Processes, host.Shared, policy.NewRegistry(), logger.Named("enforcer"))
	}
	return c
}

// Bootstrap opens the real stores and capabilities described by cfg.
// The private store admits one owner, so a second main process fails here.
func Bootstrap(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	private, err := infra.NewBadgerStore(infra.BadgerConfig{
		Path:       cfg.Paths.DataDir,
		SyncWrites: true,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open private store (is another main process running?): %w", err)
	}

	shared, err := infra.OpenSharedStore(cfg.Paths.SharedDir)
	if err != nil {
		private.Close()
		return nil, err
	}

	broadcaster, err := infra.NewFileBroadcaster(cfg.Paths.SignalDir, logger.Named("broadcast"))
	if err != nil {
		private.Close()
		shared.Close()
		return nil, err
	}

	pm := infra.NewProcessManager()
	clock := domain.SystemClock{}
	notifier := infra.NewDesktopNotifier(logger.Named("notify"))
	host := Host{
		Private:     private,
		Shared:      shared,
		Shield:      infra.NewStoreShield(shared, clock, logger.Named("shield")),
		Center:      infra.NewFileAuthorizationCenter(cfg.Paths.DataDir),
		Notifier:    notifier,
		TagReader:   infra.NewFileTagReader(cfg.Paths.TagFile),
		Broadcaster: broadcaster,
		Registry:    infra.NewFileRegistry(cfg.Paths.SharedDir, pm, cfg.Registry.StaleAfter()),
		Processes:   pm,
		Clock:       clock,
	}
	settings := Settings{
		MaxSnoozesPerDay:   cfg.Snooze.MaxPerDay,
		SnoozeDuration:     cfg.Snooze.Duration,
		RequestFreshness:   cfg.Relay.Freshness,
		TagPhrase:          cfg.Tag.Phrase,
		EnforcementEnabled: cfg.Enforcement.Enabled,
	}

	c := Assemble(host, settings, metrics.New(), logger)
	c.closers = []io.Closer{closerFunc(notifier.Stop), shared, private}
	return c, nil
}

// AppConfigFrom derives the loop cadence from cfg.
func AppConfigFrom(cfg *config.Config, version string) AppConfig {
	ac := DefaultAppConfig()
	ac.SchedulePollInterval = cfg.Schedule.PollInterval
	ac.RelayPollInterval = cfg.Relay.PollInterval
	ac.TickInterval = cfg.Timer.TickInterval
	ac.HeartbeatInterval = cfg.Registry.HeartbeatInterval
	if cfg.Enforcement.Enabled {
		ac.EnforcementInterval = cfg.Enforcement.Interval
	}
	if cfg.Metrics.Enabled {
		ac.MetricsListen = cfg.Metrics.Listen
	}
	ac.Version = version
	return ac
}

// Close releases the stores.
func (c *Components) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
