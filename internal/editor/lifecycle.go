package editor

import (
	"fmt"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

// 排班表的状态机：
// draft -> published（发布，要求没有暂存变更）
// published -> draft（撤回发布，重新允许编辑）
// draft / published -> archived（归档，终态）
var allowedTransitions = map[domain.ScheduleStatus][]domain.ScheduleStatus{
	domain.ScheduleDraft:     {domain.SchedulePublished, domain.ScheduleArchived},
	domain.SchedulePublished: {domain.ScheduleDraft, domain.ScheduleArchived},
	domain.ScheduleArchived:  {},
}

// TransitionError 表示一次不允许的状态转换
type TransitionError struct {
	From domain.ScheduleStatus
	To   domain.ScheduleStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("排班表不允许从 %s 转换到 %s", e.From, e.To)
}

// CheckTransition 校验一次状态转换是否合法。
// 发布时如果该排班表还有暂存变更会被拒绝，
// 操作者必须先提交或者丢弃暂存变更
func (m *Manager) CheckTransition(schedule *domain.Schedule, to domain.ScheduleStatus) error {
	allowed := false
	for _, status := range allowedTransitions[schedule.Status] {
		if status == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return &TransitionError{From: schedule.Status, To: to}
	}

	if to == domain.SchedulePublished && m.HasPending(schedule.ID) {
		return ErrPendingChanges
	}
	return nil
}
