package domain

import "time"

type ConstraintStatus string

const (
	ConstraintNeutral    ConstraintStatus = "neutral"
	ConstraintPreferWork ConstraintStatus = "prefer_work"
	ConstraintCannotWork ConstraintStatus = "cannot_work"
)

// WeeklyConstraint 员工对某一天（或某一天的某个班次）提交的当周约束
// ShiftID 为 nil 时表示约束应用于当天所有班次
type WeeklyConstraint struct {
	ID         int64            `json:"id"`
	EmployeeID int64            `json:"employeeID"`
	Date       time.Time        `json:"date"`
	ShiftID    *int64           `json:"shiftID"`
	Status     ConstraintStatus `json:"status"`
	Submitted  bool             `json:"submitted"`
	CreatedAt  time.Time        `json:"createdAt"`
	Version    int32            `json:"-"`
}

// PermanentConstraint 员工的固定约束，按星期几 + 班次类型匹配
// 当某个时段没有当周约束时作为兜底规则使用
type PermanentConstraint struct {
	ID         int64            `json:"id"`
	EmployeeID int64            `json:"employeeID"`
	Weekday    int32            `json:"weekday"` // 0 = 周日，与 time.Weekday 一致
	ShiftType  ShiftType        `json:"shiftType"`
	Type       ConstraintStatus `json:"type"` // 只允许 cannot_work 或 prefer_work
	IsActive   bool             `json:"isActive"`
	CreatedAt  time.Time        `json:"createdAt"`
	Version    int32            `json:"-"`
}

// Matches 判断固定约束是否应用于某一天的某个班次
func (pc *PermanentConstraint) Matches(date time.Time, shiftType ShiftType) bool {
	if !pc.IsActive {
		return false
	}
	if int32(date.Weekday()) != pc.Weekday {
		return false
	}
	return pc.ShiftType == ShiftTypeAll || pc.ShiftType == shiftType
}
