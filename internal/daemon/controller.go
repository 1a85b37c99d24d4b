package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/usecase"
)

// ErrNoProfile is returned when no profile exists to lock with.
var ErrNoProfile = errors.New("no profile available")

// ErrNoTagReader is returned when the host has no physical token reader.
var ErrNoTagReader = errors.New("no tag reader configured")

// Status is a point-in-time view of the lock state.
type Status struct {
	Authorization       domain.AuthorizationStatus
	Profile             string
	Session             domain.LockSession
	Snooze              domain.SnoozeState
	SnoozesRemaining    int
	WasLockedBySchedule bool
	ActiveSchedules     []string
	MainAlive           bool
}

// Lock starts a manual lock, selecting profileName first when given.
func (c *Components) Lock(profileName string) (bool, error) {
	p, err := c.selectProfile(profileName)
	if err != nil {
		return false, err
	}
	return c.Locker.StartManually(p), nil
}

// LockFor starts a timed lock with the current profile.
func (c *Components) LockFor(profileName string, d time.Duration) (bool, error) {
	p, err := c.selectProfile(profileName)
	if err != nil {
		return false, err
	}
	return c.Locker.StartTimed(p, d), nil
}

// Unlock ends the session with the current profile.
func (c *Components) Unlock() (bool, error) {
	p, ok := c.Profiles.Current()
	if !ok {
		return false, ErrNoProfile
	}
	return c.Locker.EndSession(p), nil
}

// Tap reads the physical token and toggles the lock.
func (c *Components) Tap(ctx context.Context) (usecase.TapResult, error) {
	if c.Tags == nil {
		return usecase.TapNoChange, ErrNoTagReader
	}
	return c.Tags.Tap(ctx)
}

// RegisterTag writes the configured phrase to the token.
func (c *Components) RegisterTag(ctx context.Context) error {
	if c.Tags == nil {
		return ErrNoTagReader
	}
	return c.Tags.Register(ctx)
}

// StartSnooze starts a snooze of d (0 = configured duration).
func (c *Components) StartSnooze(d time.Duration) usecase.SnoozeOutcome {
	return c.Snooze.StartSnooze(d)
}

// EndSnooze cancels a running snooze.
func (c *Components) EndSnooze() bool {
	return c.Snooze.EndSnooze()
}

// Status reports the current state.
func (c *Components) Status() Status {
	now := c.Clock.Now()
	st := Status{
		Authorization:       c.Authorization.Status(),
		Session:             c.Locker.Session(),
		Snooze:              c.Snooze.State(),
		SnoozesRemaining:    c.Snooze.Remaining(),
		WasLockedBySchedule: c.Evaluator.WasLockedBySchedule(),
	}
	if p, ok := c.Profiles.Current(); ok {
		st.Profile = p.Name
	}
	for _, s := range c.Evaluator.ActiveSchedules(now) {
		st.ActiveSchedules = append(st.ActiveSchedules, s.Name)
	}
	if c.Registry != nil {
		st.MainAlive = c.Registry.IsMainAlive()
	}
	return st
}

// Resume reconciles in-memory state with the stores, as on a foreground transition.
func (c *Components) Resume() {
	c.resume()
}

func (c *Components) selectProfile(name string) (domain.Profile, error) {
	if name != "" {
		p, err := c.Profiles.FindByName(name)
		if err != nil {
			return domain.Profile{}, fmt.Errorf("profile %q: %w", name, err)
		}
		if err := c.Profiles.SetCurrent(p.ID); err != nil {
			return domain.Profile{}, err
		}
		return p, nil
	}
	p, ok := c.Profiles.Current()
	if !ok {
		return domain.Profile{}, ErrNoProfile
	}
	return p, nil
}

func (c *Components) resume() {
	now := c.Clock.Now()
	c.Authorization.Refresh()
	c.Snooze.Restore(now)
	c.Relay.Consume(now)
	if p, ok := c.Profiles.Current(); ok {
		c.Locker.TickTimer(p, now)
		c.Locker.Resync(p)
	}
	c.evaluate()
}

func (c *Components) tick() {
	now := c.Clock.Now()
	c.Snooze.Tick(now)
	if p, ok := c.Profiles.Current(); ok {
		c.Locker.TickTimer(p, now)
	}
}

func (c *Components) evaluate() {
	c.Evaluator.Evaluate(c.Clock.Now())
}
