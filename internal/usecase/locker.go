package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/metrics"
	"github.com/eliteGoblin/locked/internal/prefs"
)

// SnoozeGrant is the capability that permits one TemporaryUnlock.
// Only SnoozeCounter issues grants.
type SnoozeGrant struct {
	until time.Time
	spent bool
}

func newSnoozeGrant(until time.Time) *SnoozeGrant {
	return &SnoozeGrant{until: until}
}

// Until returns when the granted snooze ends.
func (g *SnoozeGrant) Until() time.Time {
	return g.until
}

// Locker is the lock session controller. It owns LockSession and is the
// only component that talks to the shield provider.
type Locker struct {
	mu       sync.Mutex
	private  *prefs.Defaults
	shared   *prefs.Defaults
	shield   domain.ShieldProvider
	auth     Authorizer
	notifier domain.Notifier
	clock    domain.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger

	session domain.LockSession
}

// LockerDeps groups the Locker's collaborators.
type LockerDeps struct {
	Private  domain.KeyValueStore
	Shared   domain.KeyValueStore
	Shield   domain.ShieldProvider
	Auth     Authorizer
	Notifier domain.Notifier
	Clock    domain.Clock
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// NewLocker restores the persisted session. The shield is not touched until
// Resync or the next transition.
func NewLocker(deps LockerDeps) *Locker {
	l := &Locker{
		private:  prefs.New(deps.Private),
		shared:   prefs.New(deps.Shared),
		shield:   deps.Shield,
		auth:     deps.Auth,
		notifier: deps.Notifier,
		clock:    deps.Clock,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
	if l.clock == nil {
		l.clock = domain.SystemClock{}
	}
	l.session.IsLocking = l.private.Bool(prefs.KeyIsLocking)
	l.session.HasUsedNFC = l.private.Bool(prefs.KeyHasUsedNFC)
	if end, ok := l.private.Time(prefs.KeyTimerEndDate); ok {
		l.session.TimerEndDate = &end
	}
	l.metrics.SetLocking(l.session.IsLocking)
	return l
}

// Session returns a copy of the current state.
func (l *Locker) Session() domain.LockSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.session
	if s.TimerEndDate != nil {
		end := *s.TimerEndDate
		s.TimerEndDate = &end
	}
	return s
}

// IsLocking reports whether the shield is meant to be active.
func (l *Locker) IsLocking() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session.IsLocking
}

// StartManually locks with profile p. No-op when already locking.
func (l *Locker) StartManually(p domain.Profile) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.start(p, "start_manual", false)
}

// StartViaPhysicalToken is StartManually that also records hasUsedNFC.
func (l *Locker) StartViaPhysicalToken(p domain.Profile) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.start(p, "start_token", true)
}

func (l *Locker) start(p domain.Profile, op string, viaToken bool) bool {
	if !l.authorized(op) {
		return false
	}
	if l.session.IsLocking {
		l.logger.Debug("already locking", zap.String("op", op))
		l.metrics.Transition(op, false)
		return false
	}

	l.session.IsLocking = true
	l.persistBool(prefs.KeyIsLocking, true)
	if viaToken && !l.session.HasUsedNFC {
		l.session.HasUsedNFC = true
		l.persistBool(prefs.KeyHasUsedNFC, true)
	}
	l.publishProfile(p)
	l.project(p)

	l.logger.Info("lock started", zap.String("op", op), zap.String("profile", p.Name))
	l.metrics.Transition(op, true)
	l.metrics.SetLocking(true)
	return true
}

// EndSession unlocks and clears any timer. No-op when not locking.
func (l *Locker) EndSession(p domain.Profile) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.end(p)
}

func (l *Locker) end(p domain.Profile) bool {
	const op = "end"
	if !l.authorized(op) {
		return false
	}
	if !l.session.IsLocking {
		l.logger.Debug("not locking", zap.String("op", op))
		l.metrics.Transition(op, false)
		return false
	}

	l.session.IsLocking = false
	l.persistBool(prefs.KeyIsLocking, false)
	l.setTimer(nil)
	l.project(p)

	l.logger.Info("lock ended", zap.String("profile", p.Name))
	l.metrics.Transition(op, true)
	l.metrics.SetLocking(false)
	return true
}

// TemporaryUnlock unlocks for a snooze, keeping timerEndDate. It requires an
// unspent grant and consumes it on success.
func (l *Locker) TemporaryUnlock(p domain.Profile, grant *SnoozeGrant) bool {
	const op = "temporary_unlock"
	l.mu.Lock()
	defer l.mu.Unlock()

	if grant == nil || grant.spent {
		l.logger.Warn("temporary unlock refused without a snooze grant")
		l.metrics.Transition(op, false)
		return false
	}
	if !l.authorized(op) {
		return false
	}
	if !l.session.IsLocking {
		l.logger.Debug("not locking", zap.String("op", op))
		l.metrics.Transition(op, false)
		return false
	}

	grant.spent = true
	l.session.IsLocking = false
	l.persistBool(prefs.KeyIsLocking, false)
	l.project(p)

	l.logger.Info("lock suspended for snooze",
		zap.String("profile", p.Name),
		zap.Time("until", grant.until))
	l.metrics.Transition(op, true)
	l.metrics.SetLocking(false)
	return true
}

// SetTimerEndDate sets or clears the quick-lock deadline. It does not change IsLocking.
func (l *Locker) SetTimerEndDate(end *time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setTimer(end)
}

func (l *Locker) setTimer(end *time.Time) {
	if end == nil {
		l.session.TimerEndDate = nil
		if err := l.private.Remove(prefs.KeyTimerEndDate); err != nil {
			l.logger.Error("failed to clear timer", zap.Error(err))
		}
		return
	}
	t := *end
	l.session.TimerEndDate = &t
	if err := l.private.SetTime(prefs.KeyTimerEndDate, t); err != nil {
		l.logger.Error("failed to persist timer", zap.Error(err))
	}
}

// StartTimed locks with p until now+d. When already locking only the deadline moves.
func (l *Locker) StartTimed(p domain.Profile, d time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if d <= 0 {
		l.logger.Warn("timed lock needs a positive duration", zap.Duration("duration", d))
		return false
	}
	if l.session.IsLocking {
		if !l.authorized("start_timed") {
			return false
		}
	} else if !l.start(p, "start_timed", false) {
		return false
	}
	end := l.clock.Now().Add(d)
	l.setTimer(&end)
	l.logger.Info("timed lock set", zap.Time("until", end))
	return true
}

// TickTimer ends the session once the deadline has passed and posts the
// "Lock Timer Ended" notification. Returns true if it ended.
func (l *Locker) TickTimer(p domain.Profile, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.session.IsLocking || l.session.TimerEndDate == nil {
		return false
	}
	if now.Before(*l.session.TimerEndDate) {
		return false
	}
	l.logger.Info("lock timer expired", zap.Time("deadline", *l.session.TimerEndDate))
	if !l.end(p) {
		return false
	}
	if l.notifier != nil {
		if err := l.notifier.Schedule("Lock Timer Ended", "Your apps are unlocked.", 0); err != nil {
			l.logger.Warn("failed to post notification", zap.Error(err))
		}
	}
	return true
}

// Resync re-applies the shield for the persisted state, e.g. after the
// process comes to the foreground.
func (l *Locker) Resync(p domain.Profile) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.authorized("resync") {
		return
	}
	if l.session.IsLocking {
		l.publishProfile(p)
	}
	l.project(p)
}

func (l *Locker) authorized(op string) bool {
	if l.auth != nil && l.auth.IsApproved() {
		return true
	}
	l.logger.Warn("not authorized, ignoring lock operation", zap.String("op", op))
	l.metrics.Transition(op, false)
	return false
}

func (l *Locker) project(p domain.Profile) {
	rules := ProjectShield(p, l.session.IsLocking, l.clock.Now())
	if err := ApplyShield(l.shield, rules, p.Name, l.logger); err != nil {
		l.logger.Error("shield provider failed", zap.Error(err))
	}
}

// publishProfile mirrors the locking profile for the extensions.
func (l *Locker) publishProfile(p domain.Profile) {
	if err := l.shared.Encode(prefs.KeyActiveProfile, p); err != nil {
		l.logger.Error("failed to publish active profile", zap.Error(err))
	}
}

func (l *Locker) persistBool(key string, v bool) {
	if err := l.private.SetBool(key, v); err != nil {
		l.logger.Error("failed to persist session", zap.String("key", key), zap.Error(err))
	}
}
