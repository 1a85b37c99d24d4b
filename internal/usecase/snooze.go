package usecase

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/metrics"
	"github.com/eliteGoblin/locked/internal/prefs"
)

const (
	DefaultMaxSnoozesPerDay = 5
	MinMaxSnoozesPerDay     = 1
	MaxMaxSnoozesPerDay     = 20

	DefaultSnoozeDuration = 5 * time.Minute
	MinSnoozeDuration     = time.Minute
	MaxSnoozeDuration     = 30 * time.Minute
)

// SnoozeOutcome is the result of a snooze attempt.
type SnoozeOutcome int

const (
	SnoozeStarted SnoozeOutcome = iota
	SnoozeBudgetExhausted
	SnoozeAlreadyActive
	SnoozeRefused // controller was not locking or not authorized
	SnoozeNoProfile
)

func (o SnoozeOutcome) String() string {
	switch o {
	case SnoozeStarted:
		return "started"
	case SnoozeBudgetExhausted:
		return "exhausted"
	case SnoozeAlreadyActive:
		return "already_active"
	case SnoozeRefused:
		return "refused"
	case SnoozeNoProfile:
		return "no_profile"
	}
	return fmt.Sprintf("SnoozeOutcome(%d)", int(o))
}

// SnoozeBudget is the daily allowance as read from the shared store.
type SnoozeBudget struct {
	Used       int
	Max        int
	LastReset  time.Time
	RolledOver bool // the stored count belongs to an earlier day
}

// Available reports whether another snooze may start.
func (b SnoozeBudget) Available() bool {
	return b.Used < b.Max
}

// ReadSnoozeBudget reads the budget and applies the day rollover without writing.
func ReadSnoozeBudget(shared domain.KeyValueStore, now time.Time) SnoozeBudget {
	d := prefs.New(shared)
	b := SnoozeBudget{
		Used: d.Int(prefs.KeySnoozesUsedToday),
		Max:  d.Int(prefs.KeyMaxSnoozesPerDay),
	}
	if b.Max <= 0 {
		b.Max = DefaultMaxSnoozesPerDay
	}
	last, ok := d.Time(prefs.KeyLastSnoozeReset)
	if !ok || dayBefore(last, now) {
		b.Used = 0
		b.LastReset = now
		b.RolledOver = true
	} else {
		b.LastReset = last
	}
	return b
}

// dayBefore reports whether a falls on an earlier calendar day than b, in b's location.
func dayBefore(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

// SnoozeDeps groups the SnoozeCounter's collaborators.
type SnoozeDeps struct {
	Shared   domain.KeyValueStore
	Locker   *Locker
	Profiles ProfileSource
	Notifier domain.Notifier
	Clock    domain.Clock
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// SnoozeCounter owns the daily snooze budget and the active countdown.
// Its state lives in the shared store so extensions can read the budget.
type SnoozeCounter struct {
	mu       sync.Mutex
	shared   *prefs.Defaults
	locker   *Locker
	profiles ProfileSource
	notifier domain.Notifier
	clock    domain.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger

	isSnoozed bool
	endTime   time.Time
}

// NewSnoozeCounter creates the counter. Call Restore to pick up a snooze that
// was running when the process stopped.
func NewSnoozeCounter(deps SnoozeDeps) *SnoozeCounter {
	s := &SnoozeCounter{
		shared:   prefs.New(deps.Shared),
		locker:   deps.Locker,
		profiles: deps.Profiles,
		notifier: deps.Notifier,
		clock:    deps.Clock,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
	if s.clock == nil {
		s.clock = domain.SystemClock{}
	}
	return s
}

// EnsureDefaults stores max and d for settings that were never set.
func (s *SnoozeCounter) EnsureDefaults(max int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.shared.Has(prefs.KeyMaxSnoozesPerDay) {
		if err := s.setMax(max); err != nil {
			s.logger.Warn("ignoring snooze default", zap.Error(err))
		}
	}
	if !s.shared.Has(prefs.KeySnoozeDuration) {
		if err := s.setDuration(d); err != nil {
			s.logger.Warn("ignoring snooze default", zap.Error(err))
		}
	}
}

// rollover applies and persists the lazy day reset.
func (s *SnoozeCounter) rollover(now time.Time) SnoozeBudget {
	b := ReadSnoozeBudget(s.shared.Store(), now)
	if b.RolledOver {
		if err := s.shared.SetInt(prefs.KeySnoozesUsedToday, 0); err != nil {
			s.logger.Error("failed to reset snooze count", zap.Error(err))
		}
		if err := s.shared.SetTime(prefs.KeyLastSnoozeReset, now); err != nil {
			s.logger.Error("failed to store snooze reset date", zap.Error(err))
		}
		s.logger.Debug("snooze budget reset for new day")
	}
	return b
}

// CanSnooze reports whether today's budget allows another snooze.
func (s *SnoozeCounter) CanSnooze() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollover(s.clock.Now()).Available()
}

// Remaining returns how many snoozes are left today.
func (s *SnoozeCounter) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.rollover(s.clock.Now())
	if b.Used >= b.Max {
		return 0
	}
	return b.Max - b.Used
}

// IsSnoozed reports whether a snooze is running.
func (s *SnoozeCounter) IsSnoozed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSnoozed
}

// State returns a snapshot.
func (s *SnoozeCounter) State() domain.SnoozeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	b := s.rollover(now)
	st := domain.SnoozeState{
		IsSnoozed:        s.isSnoozed,
		SnoozesUsedToday: b.Used,
		MaxSnoozesPerDay: b.Max,
		SnoozeDuration:   s.duration(),
		LastResetDate:    b.LastReset,
	}
	if s.isSnoozed && s.endTime.After(now) {
		st.SnoozeTimeRemaining = s.endTime.Sub(now)
	}
	return st
}

func (s *SnoozeCounter) duration() time.Duration {
	d := s.shared.Duration(prefs.KeySnoozeDuration)
	if d <= 0 {
		return DefaultSnoozeDuration
	}
	return d
}

// StartSnooze suspends the lock for d (0 = configured duration).
// The budget is only consumed when the controller accepts the unlock.
func (s *SnoozeCounter) StartSnooze(d time.Duration) SnoozeOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := s.startSnooze(d)
	s.metrics.Snooze(outcome.String())
	return outcome
}

func (s *SnoozeCounter) startSnooze(d time.Duration) SnoozeOutcome {
	now := s.clock.Now()
	b := s.rollover(now)

	if s.isSnoozed {
		return SnoozeAlreadyActive
	}
	if !b.Available() {
		s.logger.Info("no snoozes remaining today",
			zap.Int("used", b.Used), zap.Int("max", b.Max))
		return SnoozeBudgetExhausted
	}
	p, ok := s.profiles.Current()
	if !ok {
		s.logger.Warn("snooze requested without a profile")
		return SnoozeNoProfile
	}
	if d <= 0 {
		d = s.duration()
	}
	end := now.Add(d)

	// The end time goes first so a restart mid-way still sees the snooze.
	if err := s.shared.SetTime(prefs.KeySnoozeEndTime, end); err != nil {
		s.logger.Error("failed to persist snooze end", zap.Error(err))
	}
	if !s.locker.TemporaryUnlock(p, newSnoozeGrant(end)) {
		if err := s.shared.Remove(prefs.KeySnoozeEndTime); err != nil {
			s.logger.Error("failed to roll back snooze end", zap.Error(err))
		}
		s.logger.Info("snooze refused by lock controller")
		return SnoozeRefused
	}

	s.isSnoozed = true
	s.endTime = end
	if err := s.shared.SetInt(prefs.KeySnoozesUsedToday, b.Used+1); err != nil {
		s.logger.Error("failed to persist snooze count", zap.Error(err))
	}

	s.logger.Info("snooze started",
		zap.Duration("duration", d),
		zap.Int("used", b.Used+1),
		zap.Int("max", b.Max))
	s.notify("Snooze Started", fmt.Sprintf("Apps unlocked for %d minutes.", int(d.Minutes())))
	return SnoozeStarted
}

// Tick ends the snooze once its countdown reaches zero. Returns true if it ended.
func (s *SnoozeCounter) Tick(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isSnoozed || now.Before(s.endTime) {
		return false
	}
	s.endSnooze("expired")
	return true
}

// EndSnooze cancels a running snooze and re-locks.
func (s *SnoozeCounter) EndSnooze() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isSnoozed {
		return false
	}
	s.endSnooze("cancelled")
	return true
}

func (s *SnoozeCounter) endSnooze(reason string) {
	s.isSnoozed = false
	s.endTime = time.Time{}
	if err := s.shared.Remove(prefs.KeySnoozeEndTime); err != nil {
		s.logger.Error("failed to clear snooze end", zap.Error(err))
	}

	if p, ok := s.profiles.Current(); ok {
		s.locker.StartManually(p)
	} else {
		s.logger.Warn("snooze ended without a profile to re-lock")
	}

	s.logger.Info("snooze ended", zap.String("reason", reason))
	s.metrics.Snooze("ended")
	s.notify("Snooze Ended", "Your apps are locked again.")
}

// Restore reconciles in-memory state with the persisted end time. It runs at
// start-up, on foreground and when an extension reports the interval ended.
func (s *SnoozeCounter) Restore(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	end, ok := s.shared.Time(prefs.KeySnoozeEndTime)
	switch {
	case ok && now.Before(end):
		s.isSnoozed = true
		s.endTime = end
		if !s.locker.IsLocking() {
			return
		}
		// Locked state survived a crash between persisting the end and unlocking.
		if p, found := s.profiles.Current(); found {
			s.locker.TemporaryUnlock(p, newSnoozeGrant(end))
		}
		s.logger.Info("snooze restored", zap.Time("until", end))
	case ok:
		s.logger.Info("snooze expired while away", zap.Time("ended", end))
		s.endSnooze("expired")
	case s.isSnoozed:
		s.endSnooze("cleared")
	}
}

// SetMaxPerDay sets the daily allowance (1..20).
func (s *SnoozeCounter) SetMaxPerDay(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMax(n)
}

func (s *SnoozeCounter) setMax(n int) error {
	if n < MinMaxSnoozesPerDay || n > MaxMaxSnoozesPerDay {
		return fmt.Errorf("max snoozes per day must be between %d and %d, got %d",
			MinMaxSnoozesPerDay, MaxMaxSnoozesPerDay, n)
	}
	return s.shared.SetInt(prefs.KeyMaxSnoozesPerDay, n)
}

// SetDuration sets the default snooze length (1m..30m).
func (s *SnoozeCounter) SetDuration(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setDuration(d)
}

func (s *SnoozeCounter) setDuration(d time.Duration) error {
	if d < MinSnoozeDuration || d > MaxSnoozeDuration {
		return fmt.Errorf("snooze duration must be between %s and %s, got %s",
			MinSnoozeDuration, MaxSnoozeDuration, d)
	}
	return s.shared.SetDuration(prefs.KeySnoozeDuration, d)
}

// ResetUsed clears today's count.
func (s *SnoozeCounter) ResetUsed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.shared.SetInt(prefs.KeySnoozesUsedToday, 0); err != nil {
		return err
	}
	return s.shared.SetTime(prefs.KeyLastSnoozeReset, s.clock.Now())
}

func (s *SnoozeCounter) notify(title, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Schedule(title, body, 0); err != nil {
		s.logger.Warn("failed to schedule notification", zap.Error(err))
	}
}
