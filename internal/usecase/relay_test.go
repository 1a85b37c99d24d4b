package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/prefs"
	"github.com/eliteGoblin/locked/internal/testutil"
)

type stubRegistry struct {
	alive bool
}

func (r *stubRegistry) Register(domain.MainProcess) error { return nil }
func (r *stubRegistry) UpdateHeartbeat() error            { return nil }
func (r *stubRegistry) Get() (*domain.MainProcess, error) { return nil, nil }
func (r *stubRegistry) IsMainAlive() bool                 { return r.alive }
func (r *stubRegistry) Clear() error                      { return nil }

type failingBroadcaster struct{}

func (failingBroadcaster) Post(string) error { return errors.New("no route") }
func (failingBroadcaster) Observe(string, func()) (func(), error) {
	return func() {}, nil
}

func newRelayFixture(t *testing.T) (*harness, *Relay, *ShieldAction, *testutil.LocalBroadcaster) {
	t.Helper()
	h := newHarness(t)
	bus := testutil.NewLocalBroadcaster()
	relay := NewRelay(NewSnoozeMailbox(h.shared), h.snooze, DefaultRequestFreshness, h.metrics, zap.NewNop())
	action := NewShieldAction(ShieldActionDeps{
		Shared:      h.shared,
		Broadcaster: bus,
		Registry:    &stubRegistry{alive: true},
		Clock:       h.clock,
		Logger:      zap.NewNop(),
	})
	return h, relay, action, bus
}

func TestRelay_FreshRequestHonoredStaleDiscarded(t *testing.T) {
	h, relay, action, bus := newRelayFixture(t)
	h.blockProfile("X")
	h.lock()
	t0 := h.clock.Now()

	outcome, err := action.RequestSnooze()
	require.NoError(t, err)
	require.Equal(t, ActionPosted, outcome)
	assert.Equal(t, []string{prefs.SignalSnoozeRequested}, bus.Posted)

	assert.Equal(t, RelayHonored, relay.Consume(t0.Add(5*time.Second)))
	assert.True(t, h.snooze.IsSnoozed())
	assert.False(t, h.locker.IsLocking())
	assert.False(t, NewSnoozeMailbox(h.shared).Peek().Requested)

	mailbox := NewSnoozeMailbox(h.shared)
	require.NoError(t, mailbox.Post(t0))
	assert.Equal(t, RelayStale, relay.Consume(t0.Add(15*time.Second)))
	assert.False(t, mailbox.Peek().Requested)
	assert.False(t, prefs.New(h.shared).Has(prefs.KeySnoozeRequestTime))
}

func TestRelay_EmptyMailbox(t *testing.T) {
	_, relay, _, _ := newRelayFixture(t)

	assert.Equal(t, RelayNone, relay.Consume(wednesday10))
}

func TestRelay_ConsumesOnce(t *testing.T) {
	h, relay, _, _ := newRelayFixture(t)
	h.blockProfile("X")
	h.lock()
	require.NoError(t, NewSnoozeMailbox(h.shared).Post(wednesday10))

	assert.Equal(t, RelayHonored, relay.Consume(wednesday10.Add(time.Second)))
	assert.Equal(t, RelayNone, relay.Consume(wednesday10.Add(2*time.Second)))
	assert.Equal(t, 1, h.snooze.State().SnoozesUsedToday)
}

func TestRelay_FreshnessBoundary(t *testing.T) {
	tests := []struct {
		name string
		age  time.Duration
		want RelayOutcome
	}{
		{"just posted", 0, RelayHonored},
		{"just inside", 9*time.Second + 999*time.Millisecond, RelayHonored},
		{"exactly ten seconds", 10 * time.Second, RelayStale},
		{"far future", -time.Minute, RelayStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, relay, _, _ := newRelayFixture(t)
			h.blockProfile("X")
			h.lock()
			require.NoError(t, NewSnoozeMailbox(h.shared).Post(wednesday10))

			assert.Equal(t, tt.want, relay.Consume(wednesday10.Add(tt.age)))
		})
	}
}

func TestRelay_BudgetExhaustedIsDenied(t *testing.T) {
	h, relay, _, _ := newRelayFixture(t)
	h.blockProfile("X")
	require.NoError(t, h.snooze.SetMaxPerDay(1))
	h.lock()
	require.Equal(t, SnoozeStarted, h.snooze.StartSnooze(0))
	require.True(t, h.snooze.EndSnooze())

	mailbox := NewSnoozeMailbox(h.shared)
	require.NoError(t, mailbox.Post(wednesday10))

	assert.Equal(t, RelayDenied, relay.Consume(wednesday10.Add(time.Second)))
	assert.True(t, mailbox.Denied())
	assert.True(t, h.locker.IsLocking())
}

func TestRelay_RefusedWhenUnlocked(t *testing.T) {
	h, relay, _, _ := newRelayFixture(t)
	h.blockProfile("X")
	require.NoError(t, NewSnoozeMailbox(h.shared).Post(wednesday10))

	assert.Equal(t, RelayRefused, relay.Consume(wednesday10))
	assert.False(t, h.snooze.IsSnoozed())
}

func TestShieldAction_DeniesWhenExhausted(t *testing.T) {
	h, _, action, bus := newRelayFixture(t)
	d := prefs.New(h.shared)
	require.NoError(t, d.SetInt(prefs.KeyMaxSnoozesPerDay, 2))
	require.NoError(t, d.SetInt(prefs.KeySnoozesUsedToday, 2))
	require.NoError(t, d.SetTime(prefs.KeyLastSnoozeReset, wednesday10.Add(-time.Hour)))

	outcome, err := action.RequestSnooze()

	require.NoError(t, err)
	assert.Equal(t, ActionDenied, outcome)
	assert.True(t, d.Bool(prefs.KeySnoozeRequestDenied))
	assert.False(t, d.Bool(prefs.KeySnoozeRequested))
	assert.Empty(t, bus.Posted)
}

func TestShieldAction_YesterdaysCountDoesNotDeny(t *testing.T) {
	h, _, action, _ := newRelayFixture(t)
	d := prefs.New(h.shared)
	require.NoError(t, d.SetInt(prefs.KeyMaxSnoozesPerDay, 2))
	require.NoError(t, d.SetInt(prefs.KeySnoozesUsedToday, 2))
	require.NoError(t, d.SetTime(prefs.KeyLastSnoozeReset, wednesday10.Add(-24*time.Hour)))

	outcome, err := action.RequestSnooze()

	require.NoError(t, err)
	assert.Equal(t, ActionPosted, outcome)
	assert.Equal(t, 2, d.Int(prefs.KeySnoozesUsedToday), "the extension never writes the budget")
}

func TestShieldAction_PostClearsPreviousDenial(t *testing.T) {
	h, _, action, _ := newRelayFixture(t)
	mailbox := NewSnoozeMailbox(h.shared)
	require.NoError(t, mailbox.Deny())

	_, err := action.RequestSnooze()
	require.NoError(t, err)

	assert.False(t, mailbox.Denied())
	req := mailbox.Peek()
	assert.True(t, req.Requested)
	assert.True(t, req.RequestTime.Equal(wednesday10))
}

func TestShieldAction_LostSignalStillPosts(t *testing.T) {
	h := newHarness(t)
	action := NewShieldAction(ShieldActionDeps{
		Shared:      h.shared,
		Broadcaster: failingBroadcaster{},
		Clock:       h.clock,
		Logger:      zap.NewNop(),
	})

	outcome, err := action.RequestSnooze()

	require.NoError(t, err)
	assert.Equal(t, ActionPosted, outcome)
	assert.True(t, NewSnoozeMailbox(h.shared).Peek().Requested)
}
