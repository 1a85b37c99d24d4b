package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-03 is a Wednesday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

func TestWeekdayOf(t *testing.T) {
	assert.Equal(t, Sunday, WeekdayOf(at(7, 12, 0)))
	assert.Equal(t, Wednesday, WeekdayOf(at(3, 12, 0)))
	assert.Equal(t, Saturday, WeekdayOf(at(6, 12, 0)))
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("MON")
	require.NoError(t, err)
	assert.Equal(t, Monday, d)
	assert.Equal(t, "Mon", d.String())

	_, err = ParseWeekday("funday")
	assert.Error(t, err)
	assert.Equal(t, "Weekday(9)", Weekday(9).String())
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("07:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 5}, tod)
	assert.Equal(t, "07:05", tod.String())
	assert.Equal(t, 425, tod.Minutes())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestSchedule_IsActive(t *testing.T) {
	everyDay := []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}
	night := Schedule{IsEnabled: true, StartTime: TimeOfDay{Hour: 22}, EndTime: TimeOfDay{Hour: 6}, RepeatDays: everyDay}
	work := Schedule{IsEnabled: true, StartTime: TimeOfDay{Hour: 9}, EndTime: TimeOfDay{Hour: 17}, RepeatDays: Weekdays}

	tests := []struct {
		name     string
		schedule Schedule
		at       time.Time
		want     bool
	}{
		{"midnight span late evening", night, at(3, 23, 0), true},
		{"midnight span early morning", night, at(3, 2, 0), true},
		{"midnight span midday", night, at(3, 12, 0), false},
		{"midnight span at start", night, at(3, 22, 0), true},
		{"midnight span at end", night, at(3, 6, 0), false},
		{"work start inclusive", work, at(3, 9, 0), true},
		{"work last minute", work, at(3, 16, 59), true},
		{"work end exclusive", work, at(3, 17, 0), false},
		{"work before start", work, at(3, 8, 59), false},
		{"work on saturday", work, at(6, 10, 0), false},
		{"work on sunday", work, at(7, 10, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.schedule.IsActive(tt.at))
		})
	}
}

func TestSchedule_IsActiveEveryMinuteOfWindow(t *testing.T) {
	s := Schedule{IsEnabled: true, StartTime: TimeOfDay{Hour: 22, Minute: 30}, EndTime: TimeOfDay{Hour: 1, Minute: 15}, RepeatDays: AllWeekdays}

	for m := 0; m < 24*60; m++ {
		tm := at(3, 0, 0).Add(time.Duration(m) * time.Minute)
		want := m >= 22*60+30 || m < 75
		assert.Equal(t, want, s.IsActive(tm), "minute %d", m)
	}
}

func TestSchedule_DisabledNeverActive(t *testing.T) {
	s := Schedule{IsEnabled: false, StartTime: TimeOfDay{Hour: 0}, EndTime: TimeOfDay{Hour: 23, Minute: 59}, RepeatDays: AllWeekdays}

	assert.False(t, s.IsActive(at(3, 12, 0)))
}

func TestSchedule_NextStart(t *testing.T) {
	work := Schedule{IsEnabled: true, StartTime: TimeOfDay{Hour: 9}, EndTime: TimeOfDay{Hour: 17}, RepeatDays: Weekdays}

	next, ok := work.NextStart(at(3, 8, 0))
	require.True(t, ok)
	assert.Equal(t, at(3, 9, 0), next)

	next, ok = work.NextStart(at(3, 9, 0))
	require.True(t, ok)
	assert.Equal(t, at(4, 9, 0), next, "strictly after from")

	next, ok = work.NextStart(at(5, 18, 0))
	require.True(t, ok)
	assert.Equal(t, at(8, 9, 0), next, "friday evening skips the weekend")

	_, ok = Schedule{StartTime: TimeOfDay{Hour: 9}}.NextStart(at(3, 8, 0))
	assert.False(t, ok)
}

func TestSchedule_NextEnd(t *testing.T) {
	night := Schedule{IsEnabled: true, StartTime: TimeOfDay{Hour: 22}, EndTime: TimeOfDay{Hour: 6}, RepeatDays: AllWeekdays}

	end, ok := night.NextEnd(at(3, 23, 0))
	require.True(t, ok)
	assert.Equal(t, at(4, 6, 0), end)

	end, ok = night.NextEnd(at(4, 2, 0))
	require.True(t, ok)
	assert.Equal(t, at(4, 6, 0), end)

	_, ok = night.NextEnd(at(3, 12, 0))
	assert.False(t, ok)
}

func TestNormalizeTargets(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NormalizeTargets([]string{"b", "", "a", "b"}))
	assert.Equal(t, []string{}, NormalizeTargets(nil))
}
