package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/constraint"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

var testRules = constraint.Rules{MinRestHours: 11, MaxConsecutiveDays: 6}

func int64Ptr(v int64) *int64 { return &v }

func date(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func testShifts() []*domain.Shift {
	return []*domain.Shift{
		{ID: 1, SiteID: 1, Name: "早班", StartTime: "08:00:00", DurationHours: 8},
		{ID: 3, SiteID: 1, Name: "夜班", StartTime: "22:00:00", DurationHours: 8},
	}
}

func testEmployees() []*domain.Employee {
	return []*domain.Employee{
		{ID: 1, FullName: "张伟", PositionID: int64Ptr(10), IsActive: true},
		{ID: 2, FullName: "李敏", PositionID: int64Ptr(10), IsActive: true},
		{ID: 3, FullName: "王芳", PositionID: int64Ptr(11), IsActive: true},
		{ID: 4, FullName: "刘洋", PositionID: int64Ptr(10), IsActive: true},
		{ID: 5, FullName: "陈静", PositionID: int64Ptr(10), IsActive: true},
		{ID: 6, FullName: "杨磊", PositionID: nil, IsActive: true},
	}
}

func slotMonMorning() domain.Slot {
	return domain.Slot{ScheduleID: 1, PositionID: 10, ShiftID: 1, Date: date(8)}
}

func TestClassifyPartition(t *testing.T) {
	employees := testEmployees()
	weekly := []*domain.WeeklyConstraint{
		{ID: 1, EmployeeID: 2, Date: date(8), Status: domain.ConstraintCannotWork},
	}
	permanent := []*domain.PermanentConstraint{
		{ID: 1, EmployeeID: 4, Weekday: int32(time.Monday), ShiftType: domain.ShiftTypeAll, Type: domain.ConstraintCannotWork, IsActive: true},
	}
	assignments := []*domain.Assignment{
		{ID: 1, ScheduleID: 1, EmployeeID: 5, PositionID: 10, ShiftID: 1, WorkDate: date(8)},
	}

	ctx := constraint.NewContext(testRules, testShifts(), weekly, permanent, assignments)
	result := Classify(slotMonMorning(), employees, ctx)

	// 五个列表恰好构成全部员工的一个划分
	seen := make(map[int64]int)
	total := 0
	for _, tier := range [][]*Candidate{
		result.Available, result.CrossPosition,
		result.UnavailableBusy, result.UnavailableHard, result.UnavailableSoft,
	} {
		for _, cand := range tier {
			seen[cand.Employee.ID]++
			total++
		}
	}
	require.Equal(t, len(employees), total)
	for _, emp := range employees {
		require.Equal(t, 1, seen[emp.ID], "员工 %d 应该出现且只出现一次", emp.ID)
	}

	require.Len(t, result.Available, 2) // 1 和 6
	require.Len(t, result.CrossPosition, 1)
	require.Equal(t, int64(3), result.CrossPosition[0].Employee.ID)
	require.Len(t, result.UnavailableBusy, 1)
	require.Equal(t, int64(5), result.UnavailableBusy[0].Employee.ID)
	require.Len(t, result.UnavailableHard, 1)
	require.Equal(t, int64(2), result.UnavailableHard[0].Employee.ID)
	require.Len(t, result.UnavailableSoft, 1)
	require.Equal(t, int64(4), result.UnavailableSoft[0].Employee.ID)
}

func TestClassifyScoring(t *testing.T) {
	employees := testEmployees()[:3]
	weekly := []*domain.WeeklyConstraint{
		// 员工 2 当周倾向这个槽位
		{ID: 1, EmployeeID: 2, Date: date(8), ShiftID: int64Ptr(1), Status: domain.ConstraintPreferWork},
	}
	permanent := []*domain.PermanentConstraint{
		// 员工 1 固定倾向周一
		{ID: 1, EmployeeID: 1, Weekday: int32(time.Monday), ShiftType: domain.ShiftTypeAll, Type: domain.ConstraintPreferWork, IsActive: true},
	}

	ctx := constraint.NewContext(testRules, testShifts(), weekly, permanent, nil)
	result := Classify(slotMonMorning(), employees, ctx)

	require.Len(t, result.Available, 2)
	// 当周倾向 (+100) 排在固定倾向 (+50) 前面
	require.Equal(t, int64(2), result.Available[0].Employee.ID)
	require.Equal(t, 100, result.Available[0].Score)
	require.Equal(t, int64(1), result.Available[1].Employee.ID)
	require.Equal(t, 50, result.Available[1].Score)
}

func TestClassifyFairnessTieBreak(t *testing.T) {
	employees := testEmployees()[:2]
	// 员工 1 当周已经有一个排班，员工 2 没有，同分时员工 2 应该排在前面
	assignments := []*domain.Assignment{
		{ID: 1, ScheduleID: 1, EmployeeID: 1, PositionID: 10, ShiftID: 3, WorkDate: date(10)},
	}

	ctx := constraint.NewContext(testRules, testShifts(), nil, nil, assignments)
	result := Classify(slotMonMorning(), employees, ctx)

	require.Len(t, result.Available, 2)
	require.Equal(t, int64(2), result.Available[0].Employee.ID)
	require.Equal(t, int64(1), result.Available[1].Employee.ID)
}

func TestClassifyPreferredCrossPosition(t *testing.T) {
	// 跨岗位员工即使当周倾向值班，也要归入跨岗位层级，但保留分数
	employees := []*domain.Employee{
		{ID: 3, FullName: "王芳", PositionID: int64Ptr(11), IsActive: true},
	}
	weekly := []*domain.WeeklyConstraint{
		{ID: 1, EmployeeID: 3, Date: date(8), ShiftID: int64Ptr(1), Status: domain.ConstraintPreferWork},
	}

	ctx := constraint.NewContext(testRules, testShifts(), weekly, nil, nil)
	result := Classify(slotMonMorning(), employees, ctx)

	require.Empty(t, result.Available)
	require.Len(t, result.CrossPosition, 1)
	require.Equal(t, 100, result.CrossPosition[0].Score)
	require.NotEmpty(t, result.CrossPosition[0].Warnings)
}

func TestClassifyIdempotent(t *testing.T) {
	employees := testEmployees()
	ctx := constraint.NewContext(testRules, testShifts(), nil, nil, nil)

	first := Classify(slotMonMorning(), employees, ctx)
	second := Classify(slotMonMorning(), employees, ctx)

	require.Equal(t, first, second)
}
