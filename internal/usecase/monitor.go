package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/prefs"
)

// ActivityMonitorDeps groups the ActivityMonitor's collaborators.
type ActivityMonitorDeps struct {
	Shared      domain.KeyValueStore
	Shield      domain.ShieldProvider
	Broadcaster domain.Broadcaster
	Clock       domain.Clock
	Logger      *zap.Logger
}

// ActivityMonitor runs in the extension process when a snooze interval ends.
// It restores the shield from the profile the main process last locked with.
type ActivityMonitor struct {
	shared      *prefs.Defaults
	mailbox     *SnoozeMailbox
	shield      domain.ShieldProvider
	broadcaster domain.Broadcaster
	clock       domain.Clock
	logger      *zap.Logger
}

func NewActivityMonitor(deps ActivityMonitorDeps) *ActivityMonitor {
	m := &ActivityMonitor{
		shared:      prefs.New(deps.Shared),
		mailbox:     NewSnoozeMailbox(deps.Shared),
		shield:      deps.Shield,
		broadcaster: deps.Broadcaster,
		clock:       deps.Clock,
		logger:      deps.Logger,
	}
	if m.clock == nil {
		m.clock = domain.SystemClock{}
	}
	return m
}

// IntervalDidEnd re-applies the shield if a snooze was in effect. The stored
// end time is moved to now so the main process sees an expired snooze and
// re-locks on its next reconciliation. Returns false when there was nothing to do.
func (m *ActivityMonitor) IntervalDidEnd() (bool, error) {
	now := m.clock.Now()
	end, ok := m.shared.Time(prefs.KeySnoozeEndTime)
	if !ok {
		m.logger.Debug("interval ended with no snooze in effect")
		return false, nil
	}

	var profile domain.Profile
	if err := m.shared.Decode(prefs.KeyActiveProfile, &profile); err != nil {
		return false, fmt.Errorf("failed to read active profile: %w", err)
	}

	if end.After(now) {
		if err := m.shared.SetTime(prefs.KeySnoozeEndTime, now); err != nil {
			return false, fmt.Errorf("failed to expire snooze: %w", err)
		}
	}
	if _, err := m.mailbox.Take(); err != nil {
		m.logger.Warn("failed to clear pending request", zap.Error(err))
	}

	rules := ProjectShield(profile, true, now)
	if err := ApplyShield(m.shield, rules, profile.Name, m.logger); err != nil {
		return false, err
	}

	if m.broadcaster != nil {
		if err := m.broadcaster.Post(prefs.SignalSnoozeEnded); err != nil {
			m.logger.Warn("failed to broadcast snooze end", zap.Error(err))
		}
	}
	m.logger.Info("shield restored after snooze interval", zap.String("profile", profile.Name))
	return true, nil
}
