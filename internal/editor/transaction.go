// Package editor 实现排班表的编辑事务：操作者先把若干 assign/remove
// 变更暂存起来，暂存时和提交时各做一次校验，提交时作为一个整体
// 写入，要么全部成功要么全部失败。
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/constraint"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

var (
	ErrScheduleNotDraft = errors.New("排班表不是草稿状态，不允许修改")
	ErrDuplicateChange  = errors.New("相同的变更已经暂存")
	ErrPendingChanges   = errors.New("存在未提交的暂存变更")
)

// ValidationError 表示变更本身不合法（坏的槽位引用、缺少字段），
// 在任何状态改变之前就会被拒绝
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RejectedChange 记录提交时被拒绝的变更和原因
type RejectedChange struct {
	Change *domain.PendingChange `json:"change"`
	Reason string                `json:"reason"`
}

// StaleChangeError 表示暂存的变更在提交时已经过期：
// 引用的排班被并发地删除，或者相同的排班被并发地创建。
// 只要有一个变更过期，整个提交都会被拒绝
type StaleChangeError struct {
	Rejected []*RejectedChange
}

func (e *StaleChangeError) Error() string {
	return fmt.Sprintf("%d 个暂存变更已经过期", len(e.Rejected))
}

// Store 是编辑事务依赖的持久化接口，由 repository 实现。
// ApplyAssignmentChanges 必须在单个数据库事务中应用全部变更，
// 并在同一个事务里推进排班表自身的版本号
type Store interface {
	GetAssignmentsBySchedule(ctx context.Context, scheduleID int64) ([]*domain.Assignment, error)
	ApplyAssignmentChanges(ctx context.Context, scheduleID int64, adds []*domain.Assignment, removeIDs []int64) error
}

// StageRequest 汇集暂存一个变更所需要的数据，
// EvalCtx 需要包含已提交的排班和之前暂存的变更
type StageRequest struct {
	Schedule *domain.Schedule
	Change   *domain.PendingChange
	Employee *domain.Employee // assign 时不能为空
	Required int32            // 槽位需要的人数
	Assigned int32            // 槽位当前已提交的排班数量
	EvalCtx  *constraint.Context
}

// Manager 维护每个排班表的暂存变更集合，并保证
// 同一个排班表的提交操作串行执行（单写者）
type Manager struct {
	mu       sync.Mutex
	pending  map[int64][]*domain.PendingChange
	commitMu map[int64]*sync.Mutex
}

func NewManager() *Manager {
	return &Manager{
		pending:  make(map[int64][]*domain.PendingChange),
		commitMu: make(map[int64]*sync.Mutex),
	}
}

// Stage 校验并暂存一个变更，返回该排班表暂存集合的最新快照。
// 暂存不会触碰已持久化的排班：
//   - 对同一个员工和槽位，先 assign 再 remove（或反过来）会互相抵消
//   - 完全相同的变更不允许暂存两次
//   - 会导致超员的 assign 不会被拒绝，只是在变更上记录警告，
//     因为超员是操作者明确的覆盖决定
//   - 会产生重叠班次的 assign 被直接拒绝，其余硬性/软性规则
//     只产生警告，允许操作者知情覆盖
func (m *Manager) Stage(req *StageRequest) ([]*domain.PendingChange, error) {
	if req.Schedule.Status != domain.ScheduleDraft {
		return nil, ErrScheduleNotDraft
	}
	if err := validateChange(req); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	change := req.Change
	staged := m.pending[req.Schedule.ID]

	// 抵消：同一个员工和槽位上相反的暂存变更直接互相取消
	if idx := findOpposite(staged, change); idx >= 0 {
		m.pending[req.Schedule.ID] = append(staged[:idx], staged[idx+1:]...)
		return m.snapshot(req.Schedule.ID), nil
	}

	// 没有排班 ID 的 remove 只在抵消暂存 assign 时有意义
	if change.Action == domain.PendingRemove && change.AssignmentID == nil {
		return nil, &ValidationError{Message: "remove 变更缺少排班 ID"}
	}

	key := change.Key()
	for _, existing := range staged {
		if existing.Key() == key {
			return nil, ErrDuplicateChange
		}
	}

	change.Warnings = []string{}
	if change.Action == domain.PendingAssign {
		// 评估前把已暂存的变更并入上下文，
		// 暂存集合内部的重叠班次和已提交的排班一样会被拦截
		foldStaged(req.EvalCtx, req.Schedule.ID, staged)

		verdict := req.EvalCtx.Evaluate(req.Employee, change.Slot(req.Schedule.ID))
		if verdict.Kind == constraint.KindHardBlocked && verdict.Reason == constraint.ReasonUnknownShift {
			return nil, &ValidationError{Message: "变更引用的班次不存在"}
		}
		if verdict.Kind == constraint.KindHardBlocked && verdict.Reason == constraint.ReasonBusy {
			return nil, &ValidationError{
				Message: fmt.Sprintf("员工 %d 在该时段已有班次", change.EmployeeID),
			}
		}
		if verdict.Reason != constraint.ReasonNone && verdict.Kind != constraint.KindPreferred {
			change.Warnings = append(change.Warnings, verdict.Reason.Label())
		}

		// 超员只警告不拒绝
		stagedAssigns := int32(0)
		for _, existing := range staged {
			if existing.Action == domain.PendingAssign && existing.Slot(0).SameCell(change.Slot(0)) {
				stagedAssigns++
			}
		}
		if req.Assigned+stagedAssigns >= req.Required {
			change.Warnings = append(change.Warnings, "超出岗位所需人数")
		}
	}

	m.pending[req.Schedule.ID] = append(staged, change)
	return m.snapshot(req.Schedule.ID), nil
}

func validateChange(req *StageRequest) error {
	change := req.Change
	switch change.Action {
	case domain.PendingAssign:
		if req.Employee == nil || req.Employee.ID != change.EmployeeID {
			return &ValidationError{Message: "assign 变更缺少员工数据"}
		}
	case domain.PendingRemove:
	default:
		return &ValidationError{Message: fmt.Sprintf("未知的变更类型 %s", change.Action)}
	}

	if change.PositionID == 0 || change.ShiftID == 0 {
		return &ValidationError{Message: "变更引用的槽位不完整"}
	}
	if !req.Schedule.ContainsDate(change.Date) {
		return &ValidationError{Message: fmt.Sprintf("日期 %s 不在排班周期内", change.Date.Format("2006-01-02"))}
	}
	return nil
}

// foldStaged 把暂存的变更并入评估上下文：
// assign 以未落库的排班出现，remove 把引用的排班从上下文中摘掉
func foldStaged(evalCtx *constraint.Context, scheduleID int64, staged []*domain.PendingChange) {
	for _, change := range staged {
		switch change.Action {
		case domain.PendingAssign:
			evalCtx.AddAssignment(&domain.Assignment{
				ScheduleID: scheduleID,
				EmployeeID: change.EmployeeID,
				PositionID: change.PositionID,
				ShiftID:    change.ShiftID,
				WorkDate:   change.Date,
			})
		case domain.PendingRemove:
			if change.AssignmentID != nil {
				evalCtx.RemoveAssignmentByID(change.EmployeeID, *change.AssignmentID)
			}
		}
	}
}

// findOpposite 寻找同一个员工和槽位上可以与 change 抵消的暂存变更
func findOpposite(staged []*domain.PendingChange, change *domain.PendingChange) int {
	var opposite domain.PendingAction
	switch change.Action {
	case domain.PendingAssign:
		opposite = domain.PendingRemove
	case domain.PendingRemove:
		// 只有还没落库的 assign（没有排班 ID 的 remove）才能抵消
		if change.AssignmentID != nil {
			return -1
		}
		opposite = domain.PendingAssign
	default:
		return -1
	}

	for i, existing := range staged {
		if existing.Action == opposite &&
			existing.EmployeeID == change.EmployeeID &&
			existing.Slot(0).SameCell(change.Slot(0)) {
			return i
		}
	}
	return -1
}

// Commit 把一个排班表的全部暂存变更作为一个整体提交：
// 先对照当前持久化状态逐个重新校验（检测过期变更，并用
// evalCtx 重新评估每个 assign，拦截暂存之后并发产生的重叠
// 班次），全部通过后在单个事务里写入；任何一个变更校验失败
// 都会拒绝整个提交并返回失败的变更列表。
// evalCtx 必须基于当前持久化状态构造，提交过程中按暂存顺序
// 套用变更，批次内靠前的 remove 会为靠后的 assign 腾出时段。
// 同一个排班表的提交串行执行，成功后清空该排班表的暂存集合
func (m *Manager) Commit(ctx context.Context, schedule *domain.Schedule, evalCtx *constraint.Context, store Store) (int, error) {
	lock := m.lockFor(schedule.ID)
	lock.Lock()
	defer lock.Unlock()

	if schedule.Status != domain.ScheduleDraft {
		return 0, ErrScheduleNotDraft
	}

	m.mu.Lock()
	staged := m.snapshot(schedule.ID)
	m.mu.Unlock()
	if len(staged) == 0 {
		return 0, nil
	}

	current, err := store.GetAssignmentsBySchedule(ctx, schedule.ID)
	if err != nil {
		return 0, err
	}
	byID := make(map[int64]*domain.Assignment, len(current))
	for _, a := range current {
		byID[a.ID] = a
	}

	var rejected []*RejectedChange
	var adds []*domain.Assignment
	var removeIDs []int64

	for _, change := range staged {
		switch change.Action {
		case domain.PendingAssign:
			if conflict := findCurrentAssignment(current, change); conflict != nil {
				rejected = append(rejected, &RejectedChange{
					Change: change,
					Reason: "相同的排班已经存在，可能由其他操作者并发创建",
				})
				continue
			}
			verdict := evalCtx.Evaluate(&domain.Employee{ID: change.EmployeeID}, change.Slot(schedule.ID))
			if verdict.Kind == constraint.KindHardBlocked &&
				(verdict.Reason == constraint.ReasonBusy || verdict.Reason == constraint.ReasonUnknownShift) {
				rejected = append(rejected, &RejectedChange{
					Change: change,
					Reason: fmt.Sprintf("员工 %d：%s", change.EmployeeID, verdict.Reason.Label()),
				})
				continue
			}
			added := &domain.Assignment{
				ScheduleID: schedule.ID,
				EmployeeID: change.EmployeeID,
				PositionID: change.PositionID,
				ShiftID:    change.ShiftID,
				WorkDate:   change.Date,
				Status:     domain.AssignmentScheduled,
			}
			evalCtx.AddAssignment(added)
			adds = append(adds, added)
		case domain.PendingRemove:
			if _, exists := byID[*change.AssignmentID]; !exists {
				rejected = append(rejected, &RejectedChange{
					Change: change,
					Reason: fmt.Sprintf("排班 %d 已经不存在，可能被并发删除", *change.AssignmentID),
				})
				continue
			}
			evalCtx.RemoveAssignmentByID(change.EmployeeID, *change.AssignmentID)
			removeIDs = append(removeIDs, *change.AssignmentID)
		}
	}

	if len(rejected) > 0 {
		return 0, &StaleChangeError{Rejected: rejected}
	}

	if err := store.ApplyAssignmentChanges(ctx, schedule.ID, adds, removeIDs); err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.clearCommitted(schedule.ID, staged)
	m.mu.Unlock()

	return len(staged), nil
}

func findCurrentAssignment(current []*domain.Assignment, change *domain.PendingChange) *domain.Assignment {
	for _, a := range current {
		if a.EmployeeID == change.EmployeeID &&
			a.ShiftID == change.ShiftID &&
			a.WorkDate.Equal(change.Date) {
			return a
		}
	}
	return nil
}

// clearCommitted 只清掉已提交的变更，
// 提交期间新暂存的变更保持不动
func (m *Manager) clearCommitted(scheduleID int64, committed []*domain.PendingChange) {
	committedKeys := make(map[string]bool, len(committed))
	for _, change := range committed {
		committedKeys[change.Key()] = true
	}

	var remaining []*domain.PendingChange
	for _, change := range m.pending[scheduleID] {
		if !committedKeys[change.Key()] {
			remaining = append(remaining, change)
		}
	}

	if len(remaining) == 0 {
		delete(m.pending, scheduleID)
		return
	}
	m.pending[scheduleID] = remaining
}

// Discard 丢弃一个排班表中某个岗位的全部暂存变更，不产生任何写入。
// positionID 为 0 时丢弃该排班表的全部暂存变更
func (m *Manager) Discard(scheduleID int64, positionID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.pending[scheduleID]
	var remaining []*domain.PendingChange
	discarded := 0
	for _, change := range staged {
		if positionID == 0 || change.PositionID == positionID {
			discarded++
			continue
		}
		remaining = append(remaining, change)
	}

	if len(remaining) == 0 {
		delete(m.pending, scheduleID)
	} else {
		m.pending[scheduleID] = remaining
	}
	return discarded
}

// Pending 返回一个排班表暂存变更的快照
func (m *Manager) Pending(scheduleID int64) []*domain.PendingChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(scheduleID)
}

func (m *Manager) HasPending(scheduleID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[scheduleID]) > 0
}

func (m *Manager) snapshot(scheduleID int64) []*domain.PendingChange {
	staged := m.pending[scheduleID]
	out := make([]*domain.PendingChange, len(staged))
	copy(out, staged)
	return out
}

func (m *Manager) lockFor(scheduleID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, exists := m.commitMu[scheduleID]
	if !exists {
		lock = &sync.Mutex{}
		m.commitMu[scheduleID] = lock
	}
	return lock
}
