package daemon

import (
	"fmt"
	"strings"
	"time"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/usecase"
)

// ScheduleRequest describes a schedule to add. Empty fields take defaults:
// the current profile and every weekday.
type ScheduleRequest struct {
	Name    string
	Profile string
	Start   domain.TimeOfDay
	End     domain.TimeOfDay
	Days    []string
}

// SnoozeSettings changes the snooze allowance. Nil fields are left unchanged.
type SnoozeSettings struct {
	MaxPerDay *int
	Duration  *time.Duration
	ResetUsed bool
}

// AddProfile stores p and makes it current.
func (c *Components) AddProfile(p domain.Profile) (domain.Profile, error) {
	return c.Profiles.Add(p)
}

// SelectProfile makes the profile called name current.
func (c *Components) SelectProfile(name string) (domain.Profile, error) {
	return c.selectProfile(name)
}

// UpdateProfile edits the profile called name. When it is current the
// shield is resynced so a running lock picks up the new targets.
func (c *Components) UpdateProfile(name string, u usecase.ProfileUpdate) (domain.Profile, error) {
	p, err := c.Profiles.FindByName(name)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile %q: %w", name, err)
	}
	updated, err := c.Profiles.Update(p.ID, u)
	if err != nil {
		return domain.Profile{}, err
	}
	if current, ok := c.Profiles.Current(); ok && current.ID == updated.ID {
		c.Locker.Resync(updated)
	}
	return updated, nil
}

// DeleteProfile removes the profile called name.
func (c *Components) DeleteProfile(name string) (domain.Profile, error) {
	p, err := c.Profiles.FindByName(name)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile %q: %w", name, err)
	}
	return p, c.Profiles.Delete(p.ID)
}

// AddSchedule stores a new schedule. The store's change hook evaluates
// schedules, so a window that is already open locks right away.
func (c *Components) AddSchedule(req ScheduleRequest) (domain.Schedule, error) {
	var p domain.Profile
	if req.Profile != "" {
		var err error
		if p, err = c.Profiles.FindByName(req.Profile); err != nil {
			return domain.Schedule{}, fmt.Errorf("profile %q: %w", req.Profile, err)
		}
	} else {
		var ok bool
		if p, ok = c.Profiles.Current(); !ok {
			return domain.Schedule{}, ErrNoProfile
		}
	}

	s := usecase.NewSchedule(p.ID, req.Start, req.End)
	if req.Name != "" {
		s.Name = req.Name
	}
	if len(req.Days) > 0 {
		s.RepeatDays = s.RepeatDays[:0]
		for _, name := range req.Days {
			d, err := domain.ParseWeekday(name)
			if err != nil {
				return domain.Schedule{}, err
			}
			s.RepeatDays = append(s.RepeatDays, d)
		}
	}
	return c.Schedules.Add(s)
}

// ToggleSchedule enables or disables the schedule with id.
func (c *Components) ToggleSchedule(id string) (domain.Schedule, error) {
	return c.Schedules.Toggle(id)
}

// DeleteSchedule removes the schedule with id.
func (c *Components) DeleteSchedule(id string) error {
	return c.Schedules.Delete(id)
}

// UpdateSnoozeSettings applies s and returns the resulting snooze state.
func (c *Components) UpdateSnoozeSettings(s SnoozeSettings) (domain.SnoozeState, error) {
	if s.MaxPerDay != nil {
		if err := c.Snooze.SetMaxPerDay(*s.MaxPerDay); err != nil {
			return domain.SnoozeState{}, err
		}
	}
	if s.Duration != nil {
		if err := c.Snooze.SetDuration(*s.Duration); err != nil {
			return domain.SnoozeState{}, err
		}
	}
	if s.ResetUsed {
		if err := c.Snooze.ResetUsed(); err != nil {
			return domain.SnoozeState{}, err
		}
	}
	return c.Snooze.State(), nil
}

// ProfileName resolves a profile id for display.
func (c *Components) ProfileName(id string) string {
	if p, err := c.Profiles.Get(id); err == nil {
		return p.Name
	}
	return "?"
}

// FormatProfile renders p on one line; current profiles are starred.
func FormatProfile(p domain.Profile, current bool) string {
	marker := " "
	if current {
		marker = "*"
	}
	mode := "block"
	if p.IsAllowListMode {
		mode = "allow"
	}
	return fmt.Sprintf("%s %-12s icon=%s mode=%s apps=%s categories=%s",
		marker, p.Name, p.Icon, mode,
		strings.Join(p.LockTargets, ","), strings.Join(p.CategoryTargets, ","))
}

// FormatSchedule renders s on one line.
func FormatSchedule(s domain.Schedule, profileName string) string {
	state := "off"
	if s.IsEnabled {
		state = "on"
	}
	days := make([]string, 0, len(s.RepeatDays))
	for _, d := range s.RepeatDays {
		days = append(days, d.String())
	}
	return fmt.Sprintf("%s  %-3s %s-%s %-14s profile=%s days=%s",
		s.ID, state, s.StartTime, s.EndTime, s.Name, profileName, strings.Join(days, ","))
}

// FormatSnoozeSettings renders the snooze allowance.
func FormatSnoozeSettings(st domain.SnoozeState) string {
	return fmt.Sprintf("snoozes: %d/%d used, duration %s",
		st.SnoozesUsedToday, st.MaxSnoozesPerDay, st.SnoozeDuration)
}
