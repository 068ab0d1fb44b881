package domain

import (
	"time"
)

type ShiftType string

const (
	ShiftTypeMorning ShiftType = "morning"
	ShiftTypeEvening ShiftType = "evening"
	ShiftTypeNight   ShiftType = "night"
	ShiftTypeAll     ShiftType = "all" // 仅用于固定约束，表示约束应用于当天所有班次
)

type Shift struct {
	ID            int64     `json:"id"`
	SiteID        int64     `json:"siteID"`
	Name          string    `json:"name"`
	StartTime     string    `json:"startTime"` // 格式为 15:04:05
	DurationHours float64   `json:"durationHours"`
	CreatedAt     time.Time `json:"createdAt"`
	Version       int32     `json:"-"`
}

// Type 根据班次的开始时间推导班次类型
// [5, 12) 点开始的为早班，[12, 21) 点开始的为晚班，其余为夜班
func (s *Shift) Type() ShiftType {
	start, err := time.Parse("15:04:05", s.StartTime)
	if err != nil {
		return ShiftTypeNight
	}

	hour := start.Hour()
	switch {
	case hour >= 5 && hour < 12:
		return ShiftTypeMorning
	case hour >= 12 && hour < 21:
		return ShiftTypeEvening
	default:
		return ShiftTypeNight
	}
}

// Interval 计算班次在某一天的起止时刻，结束时刻可能跨过午夜
func (s *Shift) Interval(date time.Time) (time.Time, time.Time) {
	clock, err := time.Parse("15:04:05", s.StartTime)
	if err != nil {
		return date, date
	}

	start := time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, date.Location())
	end := start.Add(time.Duration(s.DurationHours * float64(time.Hour)))
	return start, end
}
