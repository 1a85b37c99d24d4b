package usecase

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/metrics"
	"github.com/eliteGoblin/locked/internal/prefs"
)

// EvalAction is what an evaluator pass did.
type EvalAction int

const (
	EvalNoChange EvalAction = iota
	EvalLocked
	EvalUnlocked
)

func (a EvalAction) String() string {
	switch a {
	case EvalLocked:
		return "locked"
	case EvalUnlocked:
		return "unlocked"
	}
	return "no_change"
}

// ProfileSelector resolves and selects profiles.
type ProfileSelector interface {
	Get(id string) (domain.Profile, error)
	Current() (domain.Profile, bool)
	SetCurrent(id string) error
}

// SnoozeStatus reports whether a snooze is running.
type SnoozeStatus interface {
	IsSnoozed() bool
}

// EvaluatorDeps groups the ScheduleEvaluator's collaborators.
type EvaluatorDeps struct {
	Private   domain.KeyValueStore
	Schedules ScheduleSource
	Profiles  ProfileSelector
	Locker    *Locker
	Snooze    SnoozeStatus
	Notifier  domain.Notifier
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// ScheduleEvaluator drives the Locker from the stored schedules.
// It only ends sessions it started, tracked by the persisted wasLockedBySchedule flag.
type ScheduleEvaluator struct {
	private   *prefs.Defaults
	schedules ScheduleSource
	profiles  ProfileSelector
	locker    *Locker
	snooze    SnoozeStatus
	notifier  domain.Notifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewScheduleEvaluator(deps EvaluatorDeps) *ScheduleEvaluator {
	return &ScheduleEvaluator{
		private:   prefs.New(deps.Private),
		schedules: deps.Schedules,
		profiles:  deps.Profiles,
		locker:    deps.Locker,
		snooze:    deps.Snooze,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// WasLockedBySchedule returns the persisted flag.
func (e *ScheduleEvaluator) WasLockedBySchedule() bool {
	return e.private.Bool(prefs.KeyWasLockedBySchedule)
}

// ActiveSchedules returns the schedules active at now, in stored order.
func (e *ScheduleEvaluator) ActiveSchedules(now time.Time) []domain.Schedule {
	var active []domain.Schedule
	for _, s := range e.schedules.List() {
		if s.IsActive(now) {
			active = append(active, s)
		}
	}
	return active
}

// Evaluate runs one pass at now.
func (e *ScheduleEvaluator) Evaluate(now time.Time) EvalAction {
	e.metrics.Evaluation()

	active := e.ActiveSchedules(now)
	action := EvalNoChange

	switch {
	case len(active) > 0:
		if len(active) > 1 {
			e.logger.Warn("overlapping schedules active, using the first",
				zap.String("chosen", active[0].Name),
				zap.String("active", scheduleNames(active)))
		}
		if e.lockFor(active[0]) {
			action = EvalLocked
		}
	case e.locker.IsLocking() && e.WasLockedBySchedule():
		if p, ok := e.profiles.Current(); ok && e.locker.EndSession(p) {
			action = EvalUnlocked
			e.notify("Apps Unlocked", "Schedule has ended")
		}
	}

	// While snoozed the session is unlocked only for now; the flag keeps its
	// value so a lock the schedule started is still ended after the snooze.
	if e.snooze == nil || !e.snooze.IsSnoozed() {
		if err := e.private.SetBool(prefs.KeyWasLockedBySchedule, len(active) > 0); err != nil {
			e.logger.Error("failed to persist schedule flag", zap.Error(err))
		}
	}
	if action != EvalNoChange {
		e.logger.Info("schedule evaluation changed lock state", zap.String("action", action.String()))
	}
	return action
}

func (e *ScheduleEvaluator) lockFor(s domain.Schedule) bool {
	if e.locker.IsLocking() {
		return false
	}
	// A running snooze is a user decision; its end re-locks anyway.
	if e.snooze != nil && e.snooze.IsSnoozed() {
		return false
	}
	p, err := e.profiles.Get(s.ProfileID)
	if err != nil {
		e.logger.Warn("schedule references a missing profile",
			zap.String("schedule", s.Name),
			zap.String("profile_id", s.ProfileID))
		return false
	}
	if err := e.profiles.SetCurrent(p.ID); err != nil {
		e.logger.Error("failed to select schedule profile", zap.Error(err))
	}
	if !e.locker.StartManually(p) {
		return false
	}
	e.notify("Apps Locked", fmt.Sprintf("Schedule '%s' is now active", s.Name))
	return true
}

func (e *ScheduleEvaluator) notify(title, body string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Schedule(title, body, 0); err != nil {
		e.logger.Warn("failed to schedule notification", zap.Error(err))
	}
}

func scheduleNames(schedules []domain.Schedule) string {
	names := make([]string, len(schedules))
	for i, s := range schedules {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}
