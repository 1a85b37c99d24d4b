package daemon

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/usecase"
)

// Handle executes one event line from the presentation layer on the loop
// and returns a one-line reply. Recognised events:
//
//	lock [profile]            start a manual lock
//	lock-for <dur> [profile]  start a timed lock
//	unlock                    end the session
//	tap                       present the physical token
//	snooze [dur]              start a snooze
//	end-snooze                cancel a running snooze
//	foreground                reconcile with the shared store
//	status                    report state
//
// Management events take the same flags as the matching CLI commands:
//
//	profile list|add|select|update|delete [name] [flags]
//	schedule list|add <start> <end>|toggle <id>|delete <id> [flags]
//	settings snooze [--max n] [--duration d] [--reset]
func (a *App) Handle(ctx context.Context, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}

	var reply string
	var err error
	doErr := a.Do(ctx, func() {
		reply, err = a.dispatch(ctx, fields[0], fields[1:])
	})
	if doErr != nil {
		return "", doErr
	}
	if err != nil {
		a.Logger.Debug("event failed", zap.String("event", fields[0]), zap.Error(err))
	}
	return reply, err
}

func (a *App) dispatch(ctx context.Context, event string, args []string) (string, error) {
	switch event {
	case "lock":
		ok, err := a.Lock(strings.Join(args, " "))
		return transitionReply(ok, "locked", "not locked (already locked or not authorized)"), err

	case "lock-for":
		if len(args) == 0 {
			return "", fmt.Errorf("lock-for needs a duration")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return "", fmt.Errorf("invalid duration %q: %w", args[0], err)
		}
		ok, err := a.LockFor(strings.Join(args[1:], " "), d)
		return transitionReply(ok, "locked until "+a.Clock.Now().Add(d).Format(time.Kitchen), "not locked"), err

	case "unlock":
		ok, err := a.Unlock()
		return transitionReply(ok, "unlocked", "not unlocked (not locked or not authorized)"), err

	case "tap":
		result, err := a.Tap(ctx)
		return result.String(), err

	case "snooze":
		var d time.Duration
		if len(args) > 0 {
			var err error
			if d, err = time.ParseDuration(args[0]); err != nil {
				return "", fmt.Errorf("invalid duration %q: %w", args[0], err)
			}
		}
		return a.StartSnooze(d).String(), nil

	case "end-snooze":
		return transitionReply(a.EndSnooze(), "snooze ended", "no snooze running"), nil

	case "foreground":
		a.resume()
		return "ok", nil

	case "status":
		return FormatStatus(a.Status()), nil

	case "profile":
		return a.profileEvent(args)

	case "schedule":
		return a.scheduleEvent(args)

	case "settings":
		return a.settingsEvent(args)

	default:
		return "", fmt.Errorf("unknown event %q", event)
	}
}

func newEventFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func subcommand(event string, args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%s needs a subcommand", event)
	}
	return args[0], args[1:], nil
}

func (a *App) profileEvent(args []string) (string, error) {
	sub, args, err := subcommand("profile", args)
	if err != nil {
		return "", err
	}

	fs := newEventFlags("profile " + sub)
	apps := fs.StringSlice("apps", nil, "")
	cats := fs.StringSlice("categories", nil, "")
	icon := fs.String("icon", "", "")
	allowList := fs.Bool("allow-list", false, "")
	rename := fs.String("rename", "", "")
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("profile %s: %w", sub, err)
	}
	name := strings.Join(fs.Args(), " ")
	if sub != "list" && name == "" {
		return "", fmt.Errorf("profile %s needs a name", sub)
	}

	switch sub {
	case "list":
		current, _ := a.Profiles.Current()
		lines := make([]string, 0)
		for _, p := range a.Profiles.List() {
			lines = append(lines, strings.TrimSpace(FormatProfile(p, p.ID == current.ID)))
		}
		return strings.Join(lines, "; "), nil

	case "add":
		p, err := a.AddProfile(domain.Profile{
			Name:            name,
			LockTargets:     *apps,
			CategoryTargets: *cats,
			Icon:            *icon,
			IsAllowListMode: *allowList,
		})
		if err != nil {
			return "", err
		}
		return FormatProfile(p, true), nil

	case "select":
		p, err := a.SelectProfile(name)
		if err != nil {
			return "", err
		}
		return FormatProfile(p, true), nil

	case "update":
		var u usecase.ProfileUpdate
		if fs.Changed("rename") {
			u.Name = rename
		}
		if fs.Changed("apps") {
			u.LockTargets, u.SetLockTargets = *apps, true
		}
		if fs.Changed("categories") {
			u.CategoryTargets, u.SetCategoryTargets = *cats, true
		}
		if fs.Changed("icon") {
			u.Icon = icon
		}
		if fs.Changed("allow-list") {
			u.IsAllowListMode = allowList
		}
		p, err := a.UpdateProfile(name, u)
		if err != nil {
			return "", err
		}
		current, _ := a.Profiles.Current()
		return FormatProfile(p, current.ID == p.ID), nil

	case "delete":
		p, err := a.DeleteProfile(name)
		if err != nil {
			return "", err
		}
		return "deleted " + p.Name, nil

	default:
		return "", fmt.Errorf("unknown profile subcommand %q", sub)
	}
}

func (a *App) scheduleEvent(args []string) (string, error) {
	sub, args, err := subcommand("schedule", args)
	if err != nil {
		return "", err
	}

	fs := newEventFlags("schedule " + sub)
	name := fs.String("name", "", "")
	profile := fs.String("profile", "", "")
	days := fs.StringSlice("days", nil, "")
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("schedule %s: %w", sub, err)
	}
	pos := fs.Args()

	switch sub {
	case "list":
		lines := make([]string, 0)
		for _, s := range a.Schedules.List() {
			lines = append(lines, FormatSchedule(s, a.ProfileName(s.ProfileID)))
		}
		return strings.Join(lines, "; "), nil

	case "add":
		if len(pos) != 2 {
			return "", fmt.Errorf("schedule add needs <start> <end>")
		}
		start, err := domain.ParseTimeOfDay(pos[0])
		if err != nil {
			return "", err
		}
		end, err := domain.ParseTimeOfDay(pos[1])
		if err != nil {
			return "", err
		}
		s, err := a.AddSchedule(ScheduleRequest{
			Name:    *name,
			Profile: *profile,
			Start:   start,
			End:     end,
			Days:    *days,
		})
		if err != nil {
			return "", err
		}
		return FormatSchedule(s, a.ProfileName(s.ProfileID)), nil

	case "toggle":
		if len(pos) != 1 {
			return "", fmt.Errorf("schedule toggle needs an id")
		}
		s, err := a.ToggleSchedule(pos[0])
		if err != nil {
			return "", err
		}
		return FormatSchedule(s, a.ProfileName(s.ProfileID)), nil

	case "delete":
		if len(pos) != 1 {
			return "", fmt.Errorf("schedule delete needs an id")
		}
		if err := a.DeleteSchedule(pos[0]); err != nil {
			return "", err
		}
		return "deleted " + pos[0], nil

	default:
		return "", fmt.Errorf("unknown schedule subcommand %q", sub)
	}
}

func (a *App) settingsEvent(args []string) (string, error) {
	sub, args, err := subcommand("settings", args)
	if err != nil {
		return "", err
	}
	if sub != "snooze" {
		return "", fmt.Errorf("unknown settings subcommand %q", sub)
	}

	fs := newEventFlags("settings snooze")
	maxPerDay := fs.Int("max", 0, "")
	d := fs.Duration("duration", 0, "")
	reset := fs.Bool("reset", false, "")
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("settings snooze: %w", err)
	}
	if fs.NArg() > 0 {
		return "", fmt.Errorf("settings snooze takes no arguments, got %q", fs.Arg(0))
	}

	var s SnoozeSettings
	if fs.Changed("max") {
		s.MaxPerDay = maxPerDay
	}
	if fs.Changed("duration") {
		s.Duration = d
	}
	s.ResetUsed = *reset
	st, err := a.UpdateSnoozeSettings(s)
	if err != nil {
		return "", err
	}
	return FormatSnoozeSettings(st), nil
}

func transitionReply(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// FormatStatus renders st on one line.
func FormatStatus(st Status) string {
	var b strings.Builder
	state := "unlocked"
	switch {
	case st.Snooze.IsSnoozed:
		state = fmt.Sprintf("snoozed (%s left)", st.Snooze.SnoozeTimeRemaining.Round(time.Second))
	case st.Session.IsLocking:
		state = "locked"
	}
	fmt.Fprintf(&b, "state=%q profile=%q auth=%s", state, st.Profile, st.Authorization)
	if st.Session.TimerEndDate != nil {
		fmt.Fprintf(&b, " timer_end=%s", st.Session.TimerEndDate.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, " snoozes_left=%d/%d", st.SnoozesRemaining, st.Snooze.MaxSnoozesPerDay)
	if st.WasLockedBySchedule {
		b.WriteString(" by_schedule=true")
	}
	if len(st.ActiveSchedules) > 0 {
		fmt.Fprintf(&b, " schedules=%q", strings.Join(st.ActiveSchedules, ","))
	}
	return b.String()
}
