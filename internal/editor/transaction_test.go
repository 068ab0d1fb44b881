package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/constraint"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

func int64Ptr(v int64) *int64 { return &v }

func date(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func draftSchedule() *domain.Schedule {
	return &domain.Schedule{ID: 1, SiteID: 1, WeekStart: date(7), Status: domain.ScheduleDraft}
}

func testEvalCtx(assignments []*domain.Assignment) *constraint.Context {
	shifts := []*domain.Shift{
		{ID: 1, SiteID: 1, Name: "早班", StartTime: "08:00:00", DurationHours: 8},
		{ID: 2, SiteID: 1, Name: "晚班", StartTime: "16:00:00", DurationHours: 8},
		{ID: 3, SiteID: 1, Name: "中班", StartTime: "12:00:00", DurationHours: 8},
	}
	return constraint.NewContext(constraint.Rules{MinRestHours: 8, MaxConsecutiveDays: 6}, shifts, nil, nil, assignments)
}

func testEmployee(id int64) *domain.Employee {
	return &domain.Employee{ID: id, PositionID: int64Ptr(10), SiteID: int64Ptr(1), IsActive: true}
}

func assignChange(empID int64, day int) *domain.PendingChange {
	return &domain.PendingChange{
		Action:     domain.PendingAssign,
		EmployeeID: empID,
		PositionID: 10,
		ShiftID:    1,
		Date:       date(day),
	}
}

func removeChange(empID int64, day int, assignmentID *int64) *domain.PendingChange {
	return &domain.PendingChange{
		Action:       domain.PendingRemove,
		EmployeeID:   empID,
		PositionID:   10,
		ShiftID:      1,
		Date:         date(day),
		AssignmentID: assignmentID,
	}
}

// fakeStore 是内存实现的 Store，可以注入 ApplyAssignmentChanges 的行为
type fakeStore struct {
	assignments []*domain.Assignment
	applied     int
	applyErr    error
}

func (s *fakeStore) GetAssignmentsBySchedule(_ context.Context, scheduleID int64) ([]*domain.Assignment, error) {
	var out []*domain.Assignment
	for _, a := range s.assignments {
		if a.ScheduleID == scheduleID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) ApplyAssignmentChanges(_ context.Context, scheduleID int64, adds []*domain.Assignment, removeIDs []int64) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	removed := make(map[int64]bool, len(removeIDs))
	for _, id := range removeIDs {
		removed[id] = true
	}
	var kept []*domain.Assignment
	for _, a := range s.assignments {
		if !removed[a.ID] {
			kept = append(kept, a)
		}
	}
	nextID := int64(1000)
	for _, a := range adds {
		a.ID = nextID
		a.ScheduleID = scheduleID
		nextID++
		kept = append(kept, a)
	}
	s.assignments = kept
	s.applied++
	return nil
}

func TestStageAssign(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()

	staged, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.NoError(t, err)
	require.Len(t, staged, 1)
	require.Empty(t, staged[0].Warnings)
	require.True(t, m.HasPending(1))
}

func TestStageRejectsNonDraftSchedule(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()
	schedule.Status = domain.SchedulePublished

	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.ErrorIs(t, err, ErrScheduleNotDraft)
}

func TestStageRejectsDuplicate(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()
	req := func() *StageRequest {
		return &StageRequest{
			Schedule: schedule,
			Change:   assignChange(7, 8),
			Employee: testEmployee(7),
			Required: 2,
			EvalCtx:  testEvalCtx(nil),
		}
	}

	_, err := m.Stage(req())
	require.NoError(t, err)
	_, err = m.Stage(req())
	require.ErrorIs(t, err, ErrDuplicateChange)
}

func TestStageRemoveCancelsStagedAssign(t *testing.T) {
	// 对还没有提交的 assign 暂存一个 remove，两者抵消为空
	m := NewManager()
	schedule := draftSchedule()

	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.NoError(t, err)

	staged, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   removeChange(7, 8, nil),
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.NoError(t, err)
	require.Empty(t, staged)
	require.False(t, m.HasPending(1))
}

func TestStageOverstaffedWarnsButAccepts(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()

	// 槽位需要 1 人且已经有 1 个已提交的排班
	staged, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 1,
		Assigned: 1,
		EvalCtx:  testEvalCtx(nil),
	})
	require.NoError(t, err)
	require.Len(t, staged, 1)
	require.Contains(t, staged[0].Warnings, "超出岗位所需人数")
}

func TestStageRejectsOverlappingAssign(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()

	// 员工 7 已经有同一天同一个班次的排班
	existing := []*domain.Assignment{
		{ID: 100, ScheduleID: 1, EmployeeID: 7, PositionID: 10, ShiftID: 1, WorkDate: date(8)},
	}

	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 2,
		Assigned: 1,
		EvalCtx:  testEvalCtx(existing),
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestStageRejectsOverlapWithStagedAssign(t *testing.T) {
	// 员工 7 已暂存早班 08:00-16:00，再暂存重叠的中班 12:00-20:00
	// 必须被拒绝，暂存集合之间不允许产生重叠班次
	m := NewManager()
	schedule := draftSchedule()

	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.NoError(t, err)

	overlapping := assignChange(7, 8)
	overlapping.ShiftID = 3
	_, err = m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   overlapping,
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Len(t, m.Pending(1), 1)
}

func TestStageRejectsUnknownShift(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()

	change := assignChange(7, 8)
	change.ShiftID = 99
	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   change,
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Message, "班次不存在")
}

func TestStageValidatesSlotReference(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()

	change := assignChange(7, 8)
	change.ShiftID = 0
	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   change,
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	// 日期不在排班周期内
	change = assignChange(7, 20)
	_, err = m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   change,
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.ErrorAs(t, err, &validationErr)

	// remove 缺少排班 ID
	_, err = m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   removeChange(9, 8, nil),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.ErrorAs(t, err, &validationErr)
}

func TestCommitAppliesAllChanges(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()
	store := &fakeStore{
		assignments: []*domain.Assignment{
			{ID: 100, ScheduleID: 1, EmployeeID: 9, PositionID: 10, ShiftID: 1, WorkDate: date(9)},
		},
	}

	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(store.assignments),
	})
	require.NoError(t, err)

	_, err = m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   removeChange(9, 9, int64Ptr(100)),
		Required: 2,
		EvalCtx:  testEvalCtx(store.assignments),
	})
	require.NoError(t, err)

	processed, err := m.Commit(context.Background(), schedule, testEvalCtx(store.assignments), store)
	require.NoError(t, err)
	require.Equal(t, 2, processed)
	require.Equal(t, 1, store.applied)
	require.False(t, m.HasPending(1))

	// remove 生效，assign 生效
	require.Len(t, store.assignments, 1)
	require.Equal(t, int64(7), store.assignments[0].EmployeeID)
}

func TestCommitIsAllOrNothing(t *testing.T) {
	// 其中一个变更引用了已被并发删除的排班，
	// 整个提交被拒绝，任何变更都不会被应用
	m := NewManager()
	schedule := draftSchedule()
	store := &fakeStore{}

	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.NoError(t, err)

	_, err = m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   removeChange(9, 9, int64Ptr(404)),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.NoError(t, err)

	_, err = m.Commit(context.Background(), schedule, testEvalCtx(store.assignments), store)

	var staleErr *StaleChangeError
	require.ErrorAs(t, err, &staleErr)
	require.Len(t, staleErr.Rejected, 1)
	require.Equal(t, 0, store.applied)
	require.Empty(t, store.assignments)
	// 暂存集合保持原样，操作者可以修正后重试
	require.Len(t, m.Pending(1), 2)
}

func TestCommitDetectsConcurrentAssign(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()
	store := &fakeStore{}

	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.NoError(t, err)

	// 暂存之后，另一个操作者提交了相同的排班
	store.assignments = append(store.assignments, &domain.Assignment{
		ID: 200, ScheduleID: 1, EmployeeID: 7, PositionID: 10, ShiftID: 1, WorkDate: date(8),
	})

	_, err = m.Commit(context.Background(), schedule, testEvalCtx(store.assignments), store)
	var staleErr *StaleChangeError
	require.ErrorAs(t, err, &staleErr)
}

func TestCommitRejectsOverlapWithConcurrentAssign(t *testing.T) {
	// 暂存之后另一个操作者提交了同一天的重叠班次，
	// 提交时重新评估必须拦截，不能落库产生重叠排班
	m := NewManager()
	schedule := draftSchedule()
	store := &fakeStore{}

	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(store.assignments),
	})
	require.NoError(t, err)

	store.assignments = append(store.assignments, &domain.Assignment{
		ID: 300, ScheduleID: 1, EmployeeID: 7, PositionID: 10, ShiftID: 3, WorkDate: date(8),
	})

	_, err = m.Commit(context.Background(), schedule, testEvalCtx(store.assignments), store)
	var staleErr *StaleChangeError
	require.ErrorAs(t, err, &staleErr)
	require.Len(t, staleErr.Rejected, 1)
	require.Equal(t, 0, store.applied)
	require.True(t, m.HasPending(1))
}

func TestCommitAppliesRemoveBeforeOverlappingAssign(t *testing.T) {
	// 先暂存的 remove 为后暂存的重叠 assign 腾出时段，
	// 提交时按暂存顺序套用变更，两者都能成功
	m := NewManager()
	schedule := draftSchedule()
	store := &fakeStore{
		assignments: []*domain.Assignment{
			{ID: 5, ScheduleID: 1, EmployeeID: 7, PositionID: 10, ShiftID: 1, WorkDate: date(8)},
		},
	}

	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   removeChange(7, 8, int64Ptr(5)),
		Required: 2,
		EvalCtx:  testEvalCtx(store.assignments),
	})
	require.NoError(t, err)

	replacement := assignChange(7, 8)
	replacement.ShiftID = 3
	_, err = m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   replacement,
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(store.assignments),
	})
	require.NoError(t, err)

	processed, err := m.Commit(context.Background(), schedule, testEvalCtx(store.assignments), store)
	require.NoError(t, err)
	require.Equal(t, 2, processed)
	require.Len(t, store.assignments, 1)
	require.Equal(t, int64(3), store.assignments[0].ShiftID)
}

func TestCommitStoreFailureLeavesPendingIntact(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()
	store := &fakeStore{applyErr: errors.New("数据库连接中断")}

	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.NoError(t, err)

	_, err = m.Commit(context.Background(), schedule, testEvalCtx(store.assignments), store)
	require.Error(t, err)
	require.True(t, m.HasPending(1))
}

func TestDiscardByPosition(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()

	first := assignChange(7, 8)
	second := assignChange(8, 8)
	second.PositionID = 11

	for _, pair := range []struct {
		change *domain.PendingChange
		emp    *domain.Employee
	}{{first, testEmployee(7)}, {second, testEmployee(8)}} {
		_, err := m.Stage(&StageRequest{
			Schedule: schedule,
			Change:   pair.change,
			Employee: pair.emp,
			Required: 2,
			EvalCtx:  testEvalCtx(nil),
		})
		require.NoError(t, err)
	}

	discarded := m.Discard(1, 10)
	require.Equal(t, 1, discarded)

	remaining := m.Pending(1)
	require.Len(t, remaining, 1)
	require.Equal(t, int64(11), remaining[0].PositionID)
}

func TestCheckTransition(t *testing.T) {
	m := NewManager()

	schedule := draftSchedule()
	require.NoError(t, m.CheckTransition(schedule, domain.SchedulePublished))
	require.NoError(t, m.CheckTransition(schedule, domain.ScheduleArchived))

	schedule.Status = domain.SchedulePublished
	require.NoError(t, m.CheckTransition(schedule, domain.ScheduleDraft))

	schedule.Status = domain.ScheduleArchived
	var transitionErr *TransitionError
	require.ErrorAs(t, m.CheckTransition(schedule, domain.ScheduleDraft), &transitionErr)
}

func TestPublishRejectedWithPendingChanges(t *testing.T) {
	m := NewManager()
	schedule := draftSchedule()

	_, err := m.Stage(&StageRequest{
		Schedule: schedule,
		Change:   assignChange(7, 8),
		Employee: testEmployee(7),
		Required: 2,
		EvalCtx:  testEvalCtx(nil),
	})
	require.NoError(t, err)

	require.ErrorIs(t, m.CheckTransition(schedule, domain.SchedulePublished), ErrPendingChanges)

	m.Discard(1, 0)
	require.NoError(t, m.CheckTransition(schedule, domain.SchedulePublished))
}
