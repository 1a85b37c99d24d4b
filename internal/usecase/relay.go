package usecase

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/metrics"
	"github.com/eliteGoblin/locked/internal/prefs"
)

// DefaultRequestFreshness is how long a posted snooze request stays valid.
const DefaultRequestFreshness = 10 * time.Second

// SnoozeMailbox is the single-slot request channel in the shared store.
// A new request overwrites an unconsumed one.
type SnoozeMailbox struct {
	shared *prefs.Defaults
}

func NewSnoozeMailbox(shared domain.KeyValueStore) *SnoozeMailbox {
	return &SnoozeMailbox{shared: prefs.New(shared)}
}

// Post writes a request stamped at.
func (m *SnoozeMailbox) Post(at time.Time) error {
	if err := m.shared.SetTime(prefs.KeySnoozeRequestTime, at); err != nil {
		return err
	}
	if err := m.shared.SetBool(prefs.KeySnoozeRequested, true); err != nil {
		return err
	}
	return m.shared.Remove(prefs.KeySnoozeRequestDenied)
}

// Peek returns the pending request without consuming it.
func (m *SnoozeMailbox) Peek() domain.SnoozeRequest {
	req := domain.SnoozeRequest{Requested: m.shared.Bool(prefs.KeySnoozeRequested)}
	if t, ok := m.shared.Time(prefs.KeySnoozeRequestTime); ok {
		req.RequestTime = t
	}
	return req
}

// Take returns the pending request and clears the slot.
func (m *SnoozeMailbox) Take() (domain.SnoozeRequest, error) {
	req := m.Peek()
	if err := m.shared.Remove(prefs.KeySnoozeRequested); err != nil {
		return req, fmt.Errorf("failed to clear snooze request: %w", err)
	}
	if err := m.shared.Remove(prefs.KeySnoozeRequestTime); err != nil {
		return req, fmt.Errorf("failed to clear snooze request time: %w", err)
	}
	return req, nil
}

// Deny records that a request could not be honored.
func (m *SnoozeMailbox) Deny() error {
	return m.shared.SetBool(prefs.KeySnoozeRequestDenied, true)
}

// Denied reports whether the last request was denied.
func (m *SnoozeMailbox) Denied() bool {
	return m.shared.Bool(prefs.KeySnoozeRequestDenied)
}

// RelayOutcome is the result of consuming the mailbox.
type RelayOutcome int

const (
	RelayNone RelayOutcome = iota
	RelayHonored
	RelayStale
	RelayDenied
	RelayRefused
)

func (o RelayOutcome) String() string {
	switch o {
	case RelayHonored:
		return "honored"
	case RelayStale:
		return "stale"
	case RelayDenied:
		return "denied"
	case RelayRefused:
		return "refused"
	}
	return "none"
}

// SnoozeStarter starts a snooze.
type SnoozeStarter interface {
	StartSnooze(d time.Duration) SnoozeOutcome
}

// Relay is the main-process side of the mailbox.
type Relay struct {
	mailbox   *SnoozeMailbox
	snooze    SnoozeStarter
	freshness time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewRelay(mailbox *SnoozeMailbox, snooze SnoozeStarter, freshness time.Duration, m *metrics.Metrics, logger *zap.Logger) *Relay {
	if freshness <= 0 {
		freshness = DefaultRequestFreshness
	}
	return &Relay{
		mailbox:   mailbox,
		snooze:    snooze,
		freshness: freshness,
		metrics:   m,
		logger:    logger,
	}
}

// Consume takes any pending request. The slot is cleared before the request
// is judged, so a request is processed at most once.
func (r *Relay) Consume(now time.Time) RelayOutcome {
	req, err := r.mailbox.Take()
	if err != nil {
		r.logger.Error("failed to consume snooze request", zap.Error(err))
	}
	if !req.Requested {
		return RelayNone
	}

	outcome := r.judge(req, now)
	r.metrics.Relay(outcome.String())
	r.logger.Info("snooze request consumed",
		zap.String("outcome", outcome.String()),
		zap.Time("requested_at", req.RequestTime))
	return outcome
}

func (r *Relay) judge(req domain.SnoozeRequest, now time.Time) RelayOutcome {
	age := now.Sub(req.RequestTime)
	if req.RequestTime.IsZero() || age >= r.freshness || age <= -r.freshness {
		return RelayStale
	}
	switch r.snooze.StartSnooze(0) {
	case SnoozeStarted:
		return RelayHonored
	case SnoozeBudgetExhausted:
		if err := r.mailbox.Deny(); err != nil {
			r.logger.Error("failed to record denial", zap.Error(err))
		}
		return RelayDenied
	default:
		return RelayRefused
	}
}

// ShieldActionOutcome is what the extension reports back to the shield UI.
type ShieldActionOutcome int

const (
	ActionPosted ShieldActionOutcome = iota
	ActionDenied
)

func (o ShieldActionOutcome) String() string {
	if o == ActionDenied {
		return "denied"
	}
	return "posted"
}

// ShieldActionDeps groups the ShieldAction's collaborators.
type ShieldActionDeps struct {
	Shared      domain.KeyValueStore
	Broadcaster domain.Broadcaster
	Registry    domain.ProcessRegistry
	Clock       domain.Clock
	Logger      *zap.Logger
}

// ShieldAction runs in the extension process when the user taps the shield.
// It can only read the budget and post a request.
type ShieldAction struct {
	shared      domain.KeyValueStore
	mailbox     *SnoozeMailbox
	broadcaster domain.Broadcaster
	registry    domain.ProcessRegistry
	clock       domain.Clock
	logger      *zap.Logger
}

func NewShieldAction(deps ShieldActionDeps) *ShieldAction {
	a := &ShieldAction{
		shared:      deps.Shared,
		mailbox:     NewSnoozeMailbox(deps.Shared),
		broadcaster: deps.Broadcaster,
		registry:    deps.Registry,
		clock:       deps.Clock,
		logger:      deps.Logger,
	}
	if a.clock == nil {
		a.clock = domain.SystemClock{}
	}
	return a
}

// RequestSnooze posts a snooze request when the budget allows it.
func (a *ShieldAction) RequestSnooze() (ShieldActionOutcome, error) {
	now := a.clock.Now()
	budget := ReadSnoozeBudget(a.shared, now)
	if !budget.Available() {
		a.logger.Info("snooze denied, budget exhausted",
			zap.Int("used", budget.Used), zap.Int("max", budget.Max))
		if err := a.mailbox.Deny(); err != nil {
			return ActionDenied, fmt.Errorf("failed to record denial: %w", err)
		}
		return ActionDenied, nil
	}

	if err := a.mailbox.Post(now); err != nil {
		return ActionPosted, fmt.Errorf("failed to post snooze request: %w", err)
	}
	if a.broadcaster != nil {
		if err := a.broadcaster.Post(prefs.SignalSnoozeRequested); err != nil {
			// The mailbox is polled as well.
			a.logger.Warn("failed to broadcast snooze request", zap.Error(err))
		}
	}

	alive := a.registry != nil && a.registry.IsMainAlive()
	a.logger.Info("snooze request posted",
		zap.Int("remaining", budget.Max-budget.Used),
		zap.Bool("main_alive", alive))
	return ActionPosted, nil
}
