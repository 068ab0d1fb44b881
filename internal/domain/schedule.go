package domain

import (
	"fmt"
	"time"
)

type ScheduleStatus string

const (
	ScheduleDraft     ScheduleStatus = "draft"
	SchedulePublished ScheduleStatus = "published"
	ScheduleArchived  ScheduleStatus = "archived"
)

type Schedule struct {
	ID          int64          `json:"id"`
	SiteID      int64          `json:"siteID"`
	WeekStart   time.Time      `json:"weekStart"` // 排班周期为从 WeekStart 开始的连续 7 天
	Status      ScheduleStatus `json:"status"`
	Algorithm   string         `json:"algorithm"`
	SolveTimeMs int64          `json:"solveTimeMs"`
	Score       float64        `json:"score"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Version     int32          `json:"-"`
}

// ContainsDate 判断某一天是否在排班周期内
func (s *Schedule) ContainsDate(date time.Time) bool {
	start := s.WeekStart.Truncate(24 * time.Hour)
	d := date.Truncate(24 * time.Hour)
	diff := d.Sub(start)
	return diff >= 0 && diff < 7*24*time.Hour
}

type AssignmentStatus string

const (
	AssignmentScheduled AssignmentStatus = "scheduled"
)

type Assignment struct {
	ID         int64            `json:"id"`
	ScheduleID int64            `json:"scheduleID"`
	EmployeeID int64            `json:"employeeID"`
	PositionID int64            `json:"positionID"`
	ShiftID    int64            `json:"shiftID"`
	WorkDate   time.Time        `json:"workDate"`
	Status     AssignmentStatus `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	Version    int32            `json:"-"`
}

// Slot 是排班的最小可寻址单位：(排班表, 岗位, 班次, 日期)
type Slot struct {
	ScheduleID int64     `json:"scheduleID"`
	PositionID int64     `json:"positionID"`
	ShiftID    int64     `json:"shiftID"`
	Date       time.Time `json:"date"`
}

func (s Slot) SameCell(other Slot) bool {
	return s.PositionID == other.PositionID &&
		s.ShiftID == other.ShiftID &&
		s.Date.Equal(other.Date)
}

type PendingAction string

const (
	PendingAssign PendingAction = "assign"
	PendingRemove PendingAction = "remove"
)

// PendingChange 暂存的、还未提交的排班变更
type PendingChange struct {
	Action       PendingAction `json:"action"`
	EmployeeID   int64         `json:"employeeID"`
	PositionID   int64         `json:"positionID"`
	ShiftID      int64         `json:"shiftID"`
	Date         time.Time     `json:"date"`
	AssignmentID *int64        `json:"assignmentID"` // 仅 remove 需要
	Warnings     []string      `json:"warnings"`
}

// Key 唯一标识一个暂存变更
func (c *PendingChange) Key() string {
	target := fmt.Sprintf("emp-%d", c.EmployeeID)
	if c.Action == PendingRemove && c.AssignmentID != nil {
		target = fmt.Sprintf("asg-%d", *c.AssignmentID)
	}
	return fmt.Sprintf("%d_%s_%d_%s_%s", c.PositionID, c.Date.Format("2006-01-02"), c.ShiftID, c.Action, target)
}

func (c *PendingChange) Slot(scheduleID int64) Slot {
	return Slot{
		ScheduleID: scheduleID,
		PositionID: c.PositionID,
		ShiftID:    c.ShiftID,
		Date:       c.Date,
	}
}
