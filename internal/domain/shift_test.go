package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShiftType(t *testing.T) {
	tests := []struct {
		startTime string
		want      ShiftType
	}{
		{"05:00:00", ShiftTypeMorning},
		{"08:30:00", ShiftTypeMorning},
		{"11:59:59", ShiftTypeMorning},
		{"12:00:00", ShiftTypeEvening},
		{"16:00:00", ShiftTypeEvening},
		{"20:59:00", ShiftTypeEvening},
		{"21:00:00", ShiftTypeNight},
		{"22:00:00", ShiftTypeNight},
		{"00:00:00", ShiftTypeNight},
		{"04:59:00", ShiftTypeNight},
	}

	for _, tt := range tests {
		s := &Shift{StartTime: tt.startTime, DurationHours: 8}
		require.Equal(t, tt.want, s.Type(), "start=%s", tt.startTime)
	}
}

func TestShiftIntervalCrossesMidnight(t *testing.T) {
	s := &Shift{StartTime: "22:00:00", DurationHours: 8}
	date := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)

	start, end := s.Interval(date)
	require.Equal(t, time.Date(2024, 1, 12, 22, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2024, 1, 13, 6, 0, 0, 0, time.UTC), end)
}

func TestPermanentConstraintMatches(t *testing.T) {
	pc := &PermanentConstraint{
		Weekday:   int32(time.Friday),
		ShiftType: ShiftTypeNight,
		Type:      ConstraintCannotWork,
		IsActive:  true,
	}

	friday := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
	saturday := friday.AddDate(0, 0, 1)

	require.True(t, pc.Matches(friday, ShiftTypeNight))
	require.False(t, pc.Matches(friday, ShiftTypeMorning))
	require.False(t, pc.Matches(saturday, ShiftTypeNight))

	pc.ShiftType = ShiftTypeAll
	require.True(t, pc.Matches(friday, ShiftTypeMorning))

	pc.IsActive = false
	require.False(t, pc.Matches(friday, ShiftTypeMorning))
}

func TestScheduleContainsDate(t *testing.T) {
	s := &Schedule{WeekStart: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)}

	require.True(t, s.ContainsDate(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)))
	require.True(t, s.ContainsDate(time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)))
	require.False(t, s.ContainsDate(time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)))
	require.False(t, s.ContainsDate(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)))
}
