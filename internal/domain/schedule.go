package domain

import (
	"fmt"
	"time"
)

// Weekday follows the calendar convention 1=Sunday..7=Saturday.
type Weekday int

const (
	Sunday Weekday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// AllWeekdays is every day, Sunday first.
var AllWeekdays = []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Weekdays is Monday through Friday.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

// WeekdayOf returns the weekday of t in t's location.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(int(t.Weekday()) + 1)
}

var weekdayShort = [...]string{"", "Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func (d Weekday) String() string {
	if d < Sunday || d > Saturday {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayShort[d]
}

// ParseWeekday accepts short English names ("mon") case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	for d := Sunday; d <= Saturday; d++ {
		if equalFoldASCII(s, weekdayShort[d]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// TimeOfDay is an hour/minute pair without a date.
type TimeOfDay struct {
	Hour   int `json:"hour" validate:"min=0,max=23"`
	Minute int `json:"minute" validate:"min=0,max=59"`
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// Schedule is a recurring lock window bound to a profile.
// ProfileID is a weak reference; a dangling id is tolerated.
type Schedule struct {
	ID         string    `json:"id"`
	IsEnabled  bool      `json:"isEnabled"`
	ProfileID  string    `json:"profileId" validate:"required"`
	StartTime  TimeOfDay `json:"startTime"`
	EndTime    TimeOfDay `json:"endTime"`
	RepeatDays []Weekday `json:"repeatDays" validate:"min=1,dive,min=1,max=7"`
	Name       string    `json:"name"`
}

// RepeatsOn reports whether day is one of the schedule's repeat days.
func (s Schedule) RepeatsOn(day Weekday) bool {
	for _, d := range s.RepeatDays {
		if d == day {
			return true
		}
	}
	return false
}

// IsActive reports whether the schedule's window covers at (in at's location).
// Windows with end before start span midnight.
func (s Schedule) IsActive(at time.Time) bool {
	if !s.IsEnabled {
		return false
	}
	if !s.RepeatsOn(WeekdayOf(at)) {
		return false
	}

	current := at.Hour()*60 + at.Minute()
	start := s.StartTime.Minutes()
	end := s.EndTime.Minutes()

	if end < start {
		return current >= start || current < end
	}
	return current >= start && current < end
}

// NextStart returns the next start time strictly after from, searching a week ahead.
func (s Schedule) NextStart(from time.Time) (time.Time, bool) {
	y, m, d := from.Date()
	for i := 0; i < 7; i++ {
		day := time.Date(y, m, d+i, s.StartTime.Hour, s.StartTime.Minute, 0, 0, from.Location())
		if !s.RepeatsOn(WeekdayOf(day)) {
			continue
		}
		if day.After(from) {
			return day, true
		}
	}
	return time.Time{}, false
}

// NextEnd returns when the currently active window ends. ok is false if inactive.
func (s Schedule) NextEnd(from time.Time) (time.Time, bool) {
	if !s.IsActive(from) {
		return time.Time{}, false
	}
	y, m, d := from.Date()
	end := time.Date(y, m, d, s.EndTime.Hour, s.EndTime.Minute, 0, 0, from.Location())

	current := from.Hour()*60 + from.Minute()
	if s.EndTime.Minutes() < s.StartTime.Minutes() && current >= s.StartTime.Minutes() {
		end = time.Date(y, m, d+1, s.EndTime.Hour, s.EndTime.Minute, 0, 0, from.Location())
	}
	return end, true
}
