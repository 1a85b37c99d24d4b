package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/prefs"
	"github.com/eliteGoblin/locked/internal/testutil"
	"github.com/eliteGoblin/locked/internal/usecase"
)

// wednesday10 is Wednesday 2024-01-03 10:00 UTC.
var wednesday10 = time.Date(2024, time.January, 3, 10, 0, 0, 0, time.UTC)

// stubRegistry records registry calls.
type stubRegistry struct {
	mu         sync.Mutex
	registered *domain.MainProcess
	heartbeats int
	cleared    bool
}

func (r *stubRegistry) Register(p domain.MainProcess) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = &p
	return nil
}

func (r *stubRegistry) UpdateHeartbeat() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats++
	return nil
}

func (r *stubRegistry) Get() (*domain.MainProcess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered, nil
}

func (r *stubRegistry) IsMainAlive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered != nil && !r.cleared
}

func (r *stubRegistry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = true
	return nil
}

type fixture struct {
	shared      *testutil.MemoryStore
	clock       *testutil.FakeClock
	shield      *testutil.RecordingShield
	broadcaster *testutil.LocalBroadcaster
	registry    *stubRegistry
	tags        *testutil.FakeTagReader
	c           *Components
	app         *App
	cancel      context.CancelFunc
	runErr      chan error
}

func fastConfig() AppConfig {
	cfg := DefaultAppConfig()
	cfg.SchedulePollInterval = time.Hour
	cfg.RelayPollInterval = time.Hour
	cfg.TickInterval = 5 * time.Millisecond
	cfg.HeartbeatInterval = 5 * time.Millisecond
	cfg.Version = "test"
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		shared:      testutil.NewMemoryStore(),
		clock:       testutil.NewFakeClock(wednesday10),
		shield:      testutil.NewRecordingShield(),
		broadcaster: testutil.NewLocalBroadcaster(),
		registry:    &stubRegistry{},
		tags:        &testutil.FakeTagReader{Payload: usecase.DefaultTagPhrase},
	}
	f.c = Assemble(Host{
		Private:     testutil.NewMemoryStore(),
		Shared:      f.shared,
		Shield:      f.shield,
		Center:      testutil.NewApprovedAuthorizationCenter(),
		Notifier:    &testutil.RecordingNotifier{},
		TagReader:   f.tags,
		Broadcaster: f.broadcaster,
		Registry:    f.registry,
		Clock:       f.clock,
	}, Settings{
		MaxSnoozesPerDay: 2,
		SnoozeDuration:   5 * time.Minute,
		RequestFreshness: 10 * time.Second,
		TagPhrase:        usecase.DefaultTagPhrase,
	}, nil, zap.NewNop())

	_, err := f.c.Profiles.Add(domain.Profile{Name: "Focus", LockTargets: []string{"X", "Y"}})
	require.NoError(t, err)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	f.app = NewApp(f.c, fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.runErr = make(chan error, 1)
	go func() { f.runErr <- f.app.Run(ctx) }()
	t.Cleanup(f.stop)
}

func (f *fixture) stop() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	<-f.runErr
	f.cancel = nil
}

func (f *fixture) handle(t *testing.T, line string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := f.app.Handle(ctx, line)
	require.NoError(t, err, line)
	return reply
}

func TestDefaultAppConfig(t *testing.T) {
	cfg := DefaultAppConfig()

	assert.Equal(t, 60*time.Second, cfg.SchedulePollInterval)
	assert.Equal(t, time.Second, cfg.RelayPollInterval)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Zero(t, cfg.EnforcementInterval, "enforcement is opt-in")
	assert.Empty(t, cfg.MetricsListen)
}

func TestApp_LockAndUnlockEvents(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	assert.Equal(t, "locked", f.handle(t, "lock"))
	assert.Equal(t, domain.ShieldBlockList, f.shield.Current().Mode)
	assert.Equal(t, []string{"X", "Y"}, f.shield.Current().Apps)
	assert.Contains(t, f.handle(t, "lock"), "not locked")

	assert.Contains(t, f.handle(t, "status"), `state="locked"`)

	assert.Equal(t, "unlocked", f.handle(t, "unlock"))
	assert.Equal(t, domain.ShieldNone, f.shield.Current().Mode)
}

func TestApp_LockSelectsProfile(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	assert.Equal(t, "locked", f.handle(t, "lock Work"))
	current, _ := f.c.Profiles.Current()
	assert.Equal(t, "Work", current.Name)

	_, err := f.app.Handle(context.Background(), "lock Nope")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestApp_UnknownAndEmptyEvents(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	_, err := f.app.Handle(context.Background(), "dance")
	assert.Error(t, err)
	_, err = f.app.Handle(context.Background(), "lock-for soon")
	assert.Error(t, err)

	reply, err := f.app.Handle(context.Background(), "   ")
	assert.NoError(t, err)
	assert.Empty(t, reply)
}

func TestApp_TimedLockEndsOnTick(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	assert.Contains(t, f.handle(t, "lock-for 1m"), "locked until")
	require.True(t, f.c.Locker.IsLocking())

	f.clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool { return !f.c.Locker.IsLocking() }, 2*time.Second, 5*time.Millisecond)
	assert.Nil(t, f.c.Locker.Session().TimerEndDate)
}

func TestApp_TapTogglesLock(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	assert.Equal(t, usecase.TapLocked.String(), f.handle(t, "tap"))
	assert.True(t, f.c.Locker.IsLocking())
	assert.Equal(t, usecase.TapUnlocked.String(), f.handle(t, "tap"))

	f.tags.Payload = "not ours"
	_, err := f.app.Handle(context.Background(), "tap")
	assert.ErrorIs(t, err, domain.ErrWrongTag)
}

func TestApp_SnoozeRequestSignal(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.handle(t, "lock")

	ext := NewExtension(f.shared, testutil.NewRecordingShield(), f.broadcaster, f.registry, f.clock, zap.NewNop())
	outcome, err := ext.ShieldAction.RequestSnooze()
	require.NoError(t, err)
	require.Equal(t, usecase.ActionPosted, outcome)

	assert.Eventually(t, f.c.Snooze.IsSnoozed, 2*time.Second, 5*time.Millisecond)
	assert.False(t, f.c.Locker.IsLocking())
	assert.Equal(t, domain.ShieldNone, f.shield.Current().Mode)
	assert.False(t, prefs.New(f.shared).Has(prefs.KeySnoozeRequested), "mailbox is cleared")
}

func TestApp_IntervalEndSignalRelocks(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.handle(t, "lock")
	assert.Equal(t, usecase.SnoozeStarted.String(), f.handle(t, "snooze"))
	require.False(t, f.c.Locker.IsLocking())

	extShield := testutil.NewRecordingShield()
	ext := NewExtension(f.shared, extShield, f.broadcaster, f.registry, f.clock, zap.NewNop())
	acted, err := ext.Monitor.IntervalDidEnd()
	require.NoError(t, err)
	require.True(t, acted)
	assert.Equal(t, domain.ShieldBlockList, extShield.Current().Mode)

	assert.Eventually(t, f.c.Locker.IsLocking, 2*time.Second, 5*time.Millisecond)
	assert.False(t, f.c.Snooze.IsSnoozed())
}

func TestApp_SnoozeCountdownRelocks(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.handle(t, "lock")
	f.handle(t, "snooze 1m")

	f.clock.Advance(61 * time.Second)

	assert.Eventually(t, f.c.Locker.IsLocking, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "no snooze running", f.handle(t, "end-snooze"))
}

func TestApp_ScheduleChangeEvaluatesImmediately(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	p, _ := f.c.Profiles.Current()

	_, err := f.c.Schedules.Add(usecase.NewSchedule(p.ID, domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}))
	require.NoError(t, err)

	assert.Eventually(t, f.c.Locker.IsLocking, 2*time.Second, 5*time.Millisecond)
	assert.True(t, f.c.Evaluator.WasLockedBySchedule())
	assert.Contains(t, f.handle(t, "status"), "by_schedule=true")
}

func TestComponents_ScheduleAddLocksWithoutLoop(t *testing.T) {
	f := newFixture(t)

	s, err := f.c.AddSchedule(ScheduleRequest{
		Name:  "Work",
		Start: domain.TimeOfDay{Hour: 9},
		End:   domain.TimeOfDay{Hour: 17},
	})
	require.NoError(t, err)

	assert.True(t, f.c.Locker.IsLocking())
	assert.True(t, f.c.Evaluator.WasLockedBySchedule())

	_, err = f.c.ToggleSchedule(s.ID)
	require.NoError(t, err)
	assert.False(t, f.c.Locker.IsLocking())

	_, err = f.c.AddSchedule(ScheduleRequest{Profile: "Nope", Start: domain.TimeOfDay{Hour: 9}, End: domain.TimeOfDay{Hour: 17}})
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
	_, err = f.c.AddSchedule(ScheduleRequest{Start: domain.TimeOfDay{Hour: 9}, End: domain.TimeOfDay{Hour: 17}, Days: []string{"someday"}})
	assert.Error(t, err)
}

func TestApp_ScheduleEvents(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	reply := f.handle(t, "schedule add 09:00 17:00 --name Work --days mon,wed")
	assert.Contains(t, reply, "Work")
	assert.Contains(t, reply, "days=Mon,Wed")
	assert.Eventually(t, f.c.Locker.IsLocking, 2*time.Second, 5*time.Millisecond)

	list := f.c.Schedules.List()
	require.Len(t, list, 1)
	assert.Contains(t, f.handle(t, "schedule list"), list[0].ID)

	assert.Contains(t, f.handle(t, "schedule toggle "+list[0].ID), " off ")
	assert.Eventually(t, func() bool { return !f.c.Locker.IsLocking() }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "deleted "+list[0].ID, f.handle(t, "schedule delete "+list[0].ID))
	assert.Empty(t, f.c.Schedules.List())

	for _, line := range []string{"schedule", "schedule add 09:00", "schedule add 9am 17:00", "schedule toggle", "schedule delete nope", "schedule rename x"} {
		_, err := f.app.Handle(context.Background(), line)
		assert.Error(t, err, line)
	}
}

func TestApp_ProfileEvents(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	assert.Contains(t, f.handle(t, "profile add Deep Work --apps A,B"), "* Deep Work")
	current, _ := f.c.Profiles.Current()
	assert.Equal(t, "Deep Work", current.Name)
	assert.Equal(t, []string{"A", "B"}, current.LockTargets)

	assert.Contains(t, f.handle(t, "profile select Focus"), "* Focus")
	assert.Equal(t, "locked", f.handle(t, "lock"))
	assert.Contains(t, f.handle(t, "profile update Focus --apps Z --icon star"), "icon=star")
	assert.Equal(t, []string{"Z"}, f.shield.Current().Apps)

	list := f.handle(t, "profile list")
	assert.Contains(t, list, "* Focus")
	assert.Contains(t, list, "Deep Work")

	assert.Equal(t, "deleted Deep Work", f.handle(t, "profile delete Deep Work"))
	_, err := f.c.Profiles.FindByName("Deep Work")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)

	for _, line := range []string{"profile", "profile add", "profile select Nope", "profile add X --bogus", "profile clone Focus"} {
		_, err := f.app.Handle(context.Background(), line)
		assert.Error(t, err, line)
	}
}

func TestApp_SnoozeSettingsEvent(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	assert.Equal(t, "snoozes: 0/4 used, duration 10m0s", f.handle(t, "settings snooze --max 4 --duration 10m"))
	assert.Equal(t, 4, f.c.Snooze.Remaining())

	f.handle(t, "lock")
	f.handle(t, "snooze")
	require.Equal(t, 3, f.c.Snooze.Remaining())
	assert.Equal(t, "snoozes: 0/4 used, duration 10m0s", f.handle(t, "settings snooze --reset"))

	for _, line := range []string{"settings", "settings snooze --max 99", "settings snooze --duration 1h", "settings snooze extra", "settings theme"} {
		_, err := f.app.Handle(context.Background(), line)
		assert.Error(t, err, line)
	}
}

func TestApp_ResumesPersistedSnooze(t *testing.T) {
	f := newFixture(t)
	p, _ := f.c.Profiles.Current()
	require.True(t, f.c.Locker.StartManually(p))
	require.NoError(t, prefs.New(f.shared).SetTime(prefs.KeySnoozeEndTime, wednesday10.Add(-time.Minute)))

	f.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.app.Foreground(ctx))
	assert.True(t, f.c.Locker.IsLocking())
	assert.False(t, prefs.New(f.shared).Has(prefs.KeySnoozeEndTime))
}

func TestApp_RegistryLifecycle(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	assert.Eventually(t, func() bool {
		f.registry.mu.Lock()
		defer f.registry.mu.Unlock()
		return f.registry.registered != nil && f.registry.heartbeats > 0
	}, 2*time.Second, 5*time.Millisecond)

	f.stop()

	assert.True(t, f.registry.cleared)
	assert.ErrorIs(t, f.app.Do(context.Background(), func() {}), ErrNotRunning)
}

func TestApp_DoRespectsContext(t *testing.T) {
	f := newFixture(t)
	app := NewApp(f.c, fastConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, app.Do(ctx, func() {}), context.DeadlineExceeded)
}

func TestFormatStatus(t *testing.T) {
	end := wednesday10.Add(time.Hour)
	tests := []struct {
		name string
		st   Status
		want []string
	}{
		{
			name: "unlocked",
			st:   Status{Authorization: domain.AuthApproved, Profile: "Focus", SnoozesRemaining: 5, Snooze: domain.SnoozeState{MaxSnoozesPerDay: 5}},
			want: []string{`state="unlocked"`, `profile="Focus"`, "auth=approved", "snoozes_left=5/5"},
		},
		{
			name: "timed lock",
			st:   Status{Session: domain.LockSession{IsLocking: true, TimerEndDate: &end}},
			want: []string{`state="locked"`, "timer_end=2024-01-03T11:00:00Z"},
		},
		{
			name: "snoozed",
			st:   Status{Snooze: domain.SnoozeState{IsSnoozed: true, SnoozeTimeRemaining: 90 * time.Second}},
			want: []string{`state="snoozed (1m30s left)"`},
		},
		{
			name: "schedule",
			st:   Status{WasLockedBySchedule: true, ActiveSchedules: []string{"Work"}},
			want: []string{"by_schedule=true", `schedules="Work"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatStatus(tt.st)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}
