package constraint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

var testRules = Rules{
	MinRestHours:       11,
	MaxConsecutiveDays: 6,
}

func int64Ptr(v int64) *int64 { return &v }

func testShifts() []*domain.Shift {
	return []*domain.Shift{
		{ID: 1, SiteID: 1, Name: "早班", StartTime: "08:00:00", DurationHours: 8},
		{ID: 2, SiteID: 1, Name: "晚班", StartTime: "16:00:00", DurationHours: 8},
		{ID: 3, SiteID: 1, Name: "夜班", StartTime: "22:00:00", DurationHours: 8},
	}
}

func date(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func slotOn(day int, shiftID, positionID int64) domain.Slot {
	return domain.Slot{ScheduleID: 1, PositionID: positionID, ShiftID: shiftID, Date: date(day)}
}

func TestEvaluateEligible(t *testing.T) {
	ctx := NewContext(testRules, testShifts(), nil, nil, nil)
	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(10), IsActive: true}

	v := ctx.Evaluate(emp, slotOn(8, 1, 10))
	require.Equal(t, KindEligible, v.Kind)
	require.Equal(t, ReasonNone, v.Reason)
}

func TestEvaluateBusyOverlap(t *testing.T) {
	ctx := NewContext(testRules, testShifts(), nil, nil, []*domain.Assignment{
		{ID: 1, ScheduleID: 1, EmployeeID: 7, PositionID: 10, ShiftID: 1, WorkDate: date(8)},
	})
	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(10)}

	// 同一天的同一个班次
	v := ctx.Evaluate(emp, slotOn(8, 1, 10))
	require.Equal(t, KindHardBlocked, v.Kind)
	require.Equal(t, ReasonBusy, v.Reason)
}

func TestEvaluateUnknownShift(t *testing.T) {
	// 引用了上下文中不存在的班次是坏的槽位引用，不是员工忙碌
	ctx := NewContext(testRules, testShifts(), nil, nil, nil)
	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(10)}

	v := ctx.Evaluate(emp, slotOn(8, 99, 10))
	require.Equal(t, KindHardBlocked, v.Kind)
	require.Equal(t, ReasonUnknownShift, v.Reason)
}

func TestEvaluateRestViolationAcrossMidnight(t *testing.T) {
	// 周五夜班 22:00-06:00，最小休息 11 小时，
	// 周六 08:00 的早班必须被判定为休息时间不足
	ctx := NewContext(testRules, testShifts(), nil, nil, []*domain.Assignment{
		{ID: 1, ScheduleID: 1, EmployeeID: 7, PositionID: 10, ShiftID: 3, WorkDate: date(12)},
	})
	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(10)}

	v := ctx.Evaluate(emp, slotOn(13, 1, 10))
	require.Equal(t, KindHardBlocked, v.Kind)
	require.Equal(t, ReasonRestViolation, v.Reason)

	// 周六夜班距离上一个夜班结束有 16 小时，不受影响
	v = ctx.Evaluate(emp, slotOn(13, 3, 10))
	require.Equal(t, KindEligible, v.Kind)
}

func TestEvaluateRestViolationBeforeExistingShift(t *testing.T) {
	// 已有周六早班时，周五夜班会导致第二天休息不足
	ctx := NewContext(testRules, testShifts(), nil, nil, []*domain.Assignment{
		{ID: 1, ScheduleID: 1, EmployeeID: 7, PositionID: 10, ShiftID: 1, WorkDate: date(13)},
	})
	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(10)}

	v := ctx.Evaluate(emp, slotOn(12, 3, 10))
	require.Equal(t, KindHardBlocked, v.Kind)
	require.Equal(t, ReasonRestViolation, v.Reason)
}

func TestEvaluateConsecutiveDays(t *testing.T) {
	assignments := make([]*domain.Assignment, 0, 6)
	for day := 7; day <= 12; day++ {
		assignments = append(assignments, &domain.Assignment{
			ID: int64(day), ScheduleID: 1, EmployeeID: 7, PositionID: 10, ShiftID: 1, WorkDate: date(day),
		})
	}
	ctx := NewContext(testRules, testShifts(), nil, nil, assignments)
	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(10)}

	// 已经连续工作 6 天，第 7 天不允许再排
	v := ctx.Evaluate(emp, slotOn(13, 2, 10))
	require.Equal(t, KindHardBlocked, v.Kind)
	require.Equal(t, ReasonConsecutiveDays, v.Reason)

	// 中间有休息日则不受影响
	v = ctx.Evaluate(emp, slotOn(15, 2, 10))
	require.Equal(t, KindEligible, v.Kind)
}

func TestEvaluateWeeklyConstraints(t *testing.T) {
	weekly := []*domain.WeeklyConstraint{
		// 周一全天不可值班
		{ID: 1, EmployeeID: 7, Date: date(8), Status: domain.ConstraintCannotWork},
		// 周二倾向值早班
		{ID: 2, EmployeeID: 7, Date: date(9), ShiftID: int64Ptr(1), Status: domain.ConstraintPreferWork},
	}
	ctx := NewContext(testRules, testShifts(), weekly, nil, nil)
	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(10)}

	v := ctx.Evaluate(emp, slotOn(8, 2, 10))
	require.Equal(t, KindHardBlocked, v.Kind)
	require.Equal(t, ReasonWeeklyCannotWork, v.Reason)

	v = ctx.Evaluate(emp, slotOn(9, 1, 10))
	require.Equal(t, KindPreferred, v.Kind)
	require.Equal(t, ReasonWeeklyPreferWork, v.Reason)

	// 倾向约束只对指定的班次生效
	v = ctx.Evaluate(emp, slotOn(9, 2, 10))
	require.Equal(t, KindEligible, v.Kind)
}

func TestEvaluatePermanentConstraints(t *testing.T) {
	permanent := []*domain.PermanentConstraint{
		// 周一不倾向早班
		{ID: 1, EmployeeID: 7, Weekday: int32(time.Monday), ShiftType: domain.ShiftTypeMorning, Type: domain.ConstraintCannotWork, IsActive: true},
		// 周二倾向所有班次
		{ID: 2, EmployeeID: 7, Weekday: int32(time.Tuesday), ShiftType: domain.ShiftTypeAll, Type: domain.ConstraintPreferWork, IsActive: true},
	}
	ctx := NewContext(testRules, testShifts(), nil, permanent, nil)
	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(10)}

	// 2024-01-08 是周一
	v := ctx.Evaluate(emp, slotOn(8, 1, 10))
	require.Equal(t, KindSoftDiscouraged, v.Kind)
	require.Equal(t, ReasonPermanentCannotWork, v.Reason)

	v = ctx.Evaluate(emp, slotOn(9, 3, 10))
	require.Equal(t, KindPreferred, v.Kind)
	require.Equal(t, ReasonPermanentPreferWork, v.Reason)
}

func TestEvaluateWeeklyOverridesPermanent(t *testing.T) {
	weekly := []*domain.WeeklyConstraint{
		// 显式的 neutral 当周约束屏蔽固定约束
		{ID: 1, EmployeeID: 7, Date: date(8), ShiftID: int64Ptr(1), Status: domain.ConstraintNeutral},
	}
	permanent := []*domain.PermanentConstraint{
		{ID: 1, EmployeeID: 7, Weekday: int32(time.Monday), ShiftType: domain.ShiftTypeAll, Type: domain.ConstraintCannotWork, IsActive: true},
	}
	ctx := NewContext(testRules, testShifts(), weekly, permanent, nil)
	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(10)}

	v := ctx.Evaluate(emp, slotOn(8, 1, 10))
	require.Equal(t, KindEligible, v.Kind)

	// 没有当周约束的班次依然走固定约束
	v = ctx.Evaluate(emp, slotOn(8, 2, 10))
	require.Equal(t, KindSoftDiscouraged, v.Kind)
	require.Equal(t, ReasonPermanentCannotWork, v.Reason)
}

func TestEvaluateCrossPosition(t *testing.T) {
	ctx := NewContext(testRules, testShifts(), nil, nil, nil)

	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(11)}
	v := ctx.Evaluate(emp, slotOn(8, 1, 10))
	require.Equal(t, KindSoftDiscouraged, v.Kind)
	require.Equal(t, ReasonCrossPosition, v.Reason)

	// 没有默认岗位的员工视为中立
	flexible := &domain.Employee{ID: 8}
	v = ctx.Evaluate(flexible, slotOn(8, 1, 10))
	require.Equal(t, KindEligible, v.Kind)
}

func TestEvaluateHardRulesPrecedePreferences(t *testing.T) {
	// 即使员工倾向值班，已有重叠班次时依然是硬性不可用
	weekly := []*domain.WeeklyConstraint{
		{ID: 1, EmployeeID: 7, Date: date(8), ShiftID: int64Ptr(1), Status: domain.ConstraintPreferWork},
	}
	ctx := NewContext(testRules, testShifts(), weekly, nil, []*domain.Assignment{
		{ID: 1, ScheduleID: 1, EmployeeID: 7, PositionID: 11, ShiftID: 1, WorkDate: date(8)},
	})
	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(10)}

	v := ctx.Evaluate(emp, slotOn(8, 1, 10))
	require.Equal(t, KindHardBlocked, v.Kind)
	require.Equal(t, ReasonBusy, v.Reason)
}

func TestContextAddRemoveAssignment(t *testing.T) {
	ctx := NewContext(testRules, testShifts(), nil, nil, nil)
	emp := &domain.Employee{ID: 7, PositionID: int64Ptr(10)}

	require.Equal(t, 0, ctx.AssignedCount(7))

	ctx.AddAssignment(&domain.Assignment{ID: 1, ScheduleID: 1, EmployeeID: 7, PositionID: 10, ShiftID: 1, WorkDate: date(8)})
	require.Equal(t, 1, ctx.AssignedCount(7))
	require.Equal(t, KindHardBlocked, ctx.Evaluate(emp, slotOn(8, 1, 10)).Kind)

	ctx.RemoveAssignmentByID(7, 1)
	require.Equal(t, 0, ctx.AssignedCount(7))
	require.Equal(t, KindEligible, ctx.Evaluate(emp, slotOn(8, 1, 10)).Kind)
}
