package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/metrics"
	"github.com/eliteGoblin/locked/internal/testutil"
)

// wednesday10 is Wednesday 2024-01-03 10:00 UTC.
var wednesday10 = time.Date(2024, time.January, 3, 10, 0, 0, 0, time.UTC)

// harness wires one "main process" over in-memory stores.
type harness struct {
	t         *testing.T
	private   *testutil.MemoryStore
	shared    *testutil.MemoryStore
	clock     *testutil.FakeClock
	shield    *testutil.RecordingShield
	center    *testutil.FakeAuthorizationCenter
	notifier  *testutil.RecordingNotifier
	metrics   *metrics.Metrics
	auth      *Authorization
	profiles  *ProfileStore
	schedules *ScheduleStore
	locker    *Locker
	snooze    *SnoozeCounter
	evaluator *ScheduleEvaluator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		private:  testutil.NewMemoryStore(),
		shared:   testutil.NewMemoryStore(),
		clock:    testutil.NewFakeClock(wednesday10),
		shield:   testutil.NewRecordingShield(),
		center:   testutil.NewApprovedAuthorizationCenter(),
		notifier: &testutil.RecordingNotifier{},
		metrics:  metrics.New(),
	}
	h.build()
	return h
}

// restart simulates a new process over the same stores.
func (h *harness) restart() {
	h.shield = testutil.NewRecordingShield()
	h.notifier = &testutil.RecordingNotifier{}
	h.build()
}

func (h *harness) build() {
	logger := zap.NewNop()
	h.auth = NewAuthorization(h.center, logger)
	h.profiles = NewProfileStore(h.private, logger)
	h.schedules = NewScheduleStore(h.private, logger)
	h.locker = NewLocker(LockerDeps{
		Private:  h.private,
		Shared:   h.shared,
		Shield:   h.shield,
		Auth:     h.auth,
		Notifier: h.notifier,
		Clock:    h.clock,
		Metrics:  h.metrics,
		Logger:   logger,
	})
	h.snooze = NewSnoozeCounter(SnoozeDeps{
		Shared:   h.shared,
		Locker:   h.locker,
		Profiles: h.profiles,
		Notifier: h.notifier,
		Clock:    h.clock,
		Metrics:  h.metrics,
		Logger:   logger,
	})
	h.evaluator = NewScheduleEvaluator(EvaluatorDeps{
		Private:   h.private,
		Schedules: h.schedules,
		Profiles:  h.profiles,
		Locker:    h.locker,
		Snooze:    h.snooze,
		Notifier:  h.notifier,
		Metrics:   h.metrics,
		Logger:    logger,
	})
}

// blockProfile adds a block-list profile with apps and makes it current.
func (h *harness) blockProfile(apps ...string) domain.Profile {
	h.t.Helper()
	p, err := h.profiles.Add(domain.Profile{Name: "Focus", LockTargets: apps})
	require.NoError(h.t, err)
	return p
}

// lock starts a manual lock with the current profile.
func (h *harness) lock() {
	h.t.Helper()
	p, ok := h.profiles.Current()
	require.True(h.t, ok)
	require.True(h.t, h.locker.StartManually(p))
}
