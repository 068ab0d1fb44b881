package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/classifier"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/constraint"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/editor"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/solver"
)

// buildSolverInput 汇集一次求解所需要的全部数据
func (h *Handler) buildSolverInput(siteID int64, weekStart time.Time) (*solver.Input, error) {
	site, err := h.repository.GetWorkSiteByID(siteID)
	if err != nil {
		return nil, err
	}

	positions, err := h.repository.GetPositionsBySite(siteID)
	if err != nil {
		return nil, err
	}

	shifts, err := h.repository.GetShiftsBySite(siteID)
	if err != nil {
		return nil, err
	}

	employees, err := h.repository.GetSchedulableEmployees(siteID)
	if err != nil {
		return nil, err
	}

	weekly, err := h.repository.GetWeeklyConstraintsByWeek(weekStart)
	if err != nil {
		return nil, err
	}

	permanent, err := h.repository.GetAllPermanentConstraints()
	if err != nil {
		return nil, err
	}

	return &solver.Input{
		Site:      site,
		WeekStart: weekStart,
		Employees: employees,
		Positions: positions,
		Shifts:    shifts,
		Weekly:    weekly,
		Permanent: permanent,
		Rules: constraint.Rules{
			MinRestHours:       h.config.Scheduler.MinRestHours,
			MaxConsecutiveDays: h.config.Scheduler.MaxConsecutiveDays,
		},
	}, nil
}

// generationLockKey 同一个站点同一周同时只允许一次生成
func generationLockKey(siteID int64, weekStart time.Time) string {
	return fmt.Sprintf("schedule_generation_%d_%s", siteID, weekStart.Format("2006-01-02"))
}

func (h *Handler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SiteID    int64  `json:"siteID" validate:"required"`
		WeekStart string `json:"weekStart" validate:"required"`
		Algorithm string `json:"algorithm" validate:"omitempty,oneof=auto exact heuristic"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	weekStart, err := time.Parse("2006-01-02", req.WeekStart)
	if err != nil {
		h.errorResponse(w, r, "weekStart 格式错误，应为 2006-01-02")
		return
	}

	algorithm := solver.Algorithm(req.Algorithm)
	if algorithm == "" {
		algorithm = solver.AlgorithmAuto
	}

	// 抢生成锁，抢不到说明另一次生成还在进行中
	lockCtx, lockCancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Minute)
	defer lockCancel()

	lockKey := generationLockKey(req.SiteID, weekStart)
	locked, err := h.redisClient.SetNX(lockCtx, lockKey, 1, time.Duration(h.config.Scheduler.GenerationLockTTL)*time.Second).Result()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if !locked {
		h.conflictResponse(w, r, "该站点本周的排班正在生成中，请稍后再试", nil)
		return
	}
	defer func() {
		h.redisClient.Del(lockCtx, lockKey)
	}()

	input, err := h.buildSolverInput(req.SiteID, weekStart)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "站点不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	result, err := h.solver.Generate(r.Context(), input, algorithm)
	if err != nil {
		var genErr *solver.GenerationError
		switch {
		case errors.As(err, &genErr):
			h.unprocessableResponse(w, r, genErr.Message, nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	schedule := &domain.Schedule{
		SiteID:      req.SiteID,
		WeekStart:   weekStart,
		Status:      domain.ScheduleDraft,
		Algorithm:   string(result.Algorithm),
		SolveTimeMs: result.SolveTimeMs,
		Score:       result.Score,
	}

	if err := h.repository.CreateScheduleWithAssignments(schedule, result.Assignments); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "排班生成成功", map[string]any{
		"schedule": schedule,
		"result":   result,
	})
}

func (h *Handler) CompareAlgorithms(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SiteID    int64  `json:"siteID" validate:"required"`
		WeekStart string `json:"weekStart" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	weekStart, err := time.Parse("2006-01-02", req.WeekStart)
	if err != nil {
		h.errorResponse(w, r, "weekStart 格式错误，应为 2006-01-02")
		return
	}

	input, err := h.buildSolverInput(req.SiteID, weekStart)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "站点不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	comparison, err := h.solver.Compare(r.Context(), input)
	if err != nil {
		var genErr *solver.GenerationError
		switch {
		case errors.As(err, &genErr):
			h.unprocessableResponse(w, r, genErr.Message, nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "算法对比完成", comparison)
}

func (h *Handler) GetSchedules(w http.ResponseWriter, r *http.Request) {
	site := r.Context().Value(WorkSiteCtx).(*domain.WorkSite)

	schedules, err := h.repository.GetSchedulesBySite(site.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取排班表列表成功", schedules)
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule := r.Context().Value(ScheduleCtx).(*domain.Schedule)

	assignments, err := h.repository.GetAssignmentsBySchedule(r.Context(), schedule.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取排班表成功", map[string]any{
		"schedule":       schedule,
		"assignments":    assignments,
		"pendingChanges": h.editor.Pending(schedule.ID),
	})
}

func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	schedule := r.Context().Value(ScheduleCtx).(*domain.Schedule)

	if schedule.Status == domain.SchedulePublished {
		h.unprocessableResponse(w, r, "已发布的排班表不能直接删除，请先转回草稿", nil)
		return
	}

	if err := h.repository.DeleteSchedule(schedule.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.editor.Discard(schedule.ID, 0)

	h.successResponse(w, r, "删除排班表成功", nil)
}

// RecommendEmployees 对一个槽位给出分层的候选员工列表
func (h *Handler) RecommendEmployees(w http.ResponseWriter, r *http.Request) {
	schedule := r.Context().Value(ScheduleCtx).(*domain.Schedule)

	var (
		positionID int64
		shiftID    int64
	)
	if _, err := fmt.Sscan(r.URL.Query().Get("positionID"), &positionID); err != nil {
		h.errorResponse(w, r, "positionID 参数无效")
		return
	}
	if _, err := fmt.Sscan(r.URL.Query().Get("shiftID"), &shiftID); err != nil {
		h.errorResponse(w, r, "shiftID 参数无效")
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		h.errorResponse(w, r, "date 参数格式错误，应为 2006-01-02")
		return
	}
	if !schedule.ContainsDate(date) {
		h.errorResponse(w, r, "日期不在排班周期内")
		return
	}

	evalCtx, employees, err := h.buildEvalContext(r.Context(), schedule)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if evalCtx.Shift(shiftID) == nil {
		h.unprocessableResponse(w, r, "槽位引用的班次不存在", nil)
		return
	}

	slot := domain.Slot{
		ScheduleID: schedule.ID,
		PositionID: positionID,
		ShiftID:    shiftID,
		Date:       date,
	}

	h.successResponse(w, r, "获取候选员工成功", classifier.Classify(slot, employees, evalCtx))
}

// buildEvalContext 基于排班表当前的持久化状态构造约束评估上下文
func (h *Handler) buildEvalContext(ctx context.Context, schedule *domain.Schedule) (*constraint.Context, []*domain.Employee, error) {
	shifts, err := h.repository.GetShiftsBySite(schedule.SiteID)
	if err != nil {
		return nil, nil, err
	}

	employees, err := h.repository.GetSchedulableEmployees(schedule.SiteID)
	if err != nil {
		return nil, nil, err
	}

	weekly, err := h.repository.GetWeeklyConstraintsByWeek(schedule.WeekStart)
	if err != nil {
		return nil, nil, err
	}

	permanent, err := h.repository.GetAllPermanentConstraints()
	if err != nil {
		return nil, nil, err
	}

	assignments, err := h.repository.GetAssignmentsBySchedule(ctx, schedule.ID)
	if err != nil {
		return nil, nil, err
	}

	rules := constraint.Rules{
		MinRestHours:       h.config.Scheduler.MinRestHours,
		MaxConsecutiveDays: h.config.Scheduler.MaxConsecutiveDays,
	}

	return constraint.NewContext(rules, shifts, weekly, permanent, assignments), employees, nil
}

func (h *Handler) GetPendingChanges(w http.ResponseWriter, r *http.Request) {
	schedule := r.Context().Value(ScheduleCtx).(*domain.Schedule)
	h.successResponse(w, r, "获取暂存变更成功", h.editor.Pending(schedule.ID))
}

func (h *Handler) StageChange(w http.ResponseWriter, r *http.Request) {
	schedule := r.Context().Value(ScheduleCtx).(*domain.Schedule)

	var req struct {
		Action       domain.PendingAction `json:"action" validate:"required,oneof=assign remove"`
		EmployeeID   int64                `json:"employeeID" validate:"required"`
		PositionID   int64                `json:"positionID" validate:"required"`
		ShiftID      int64                `json:"shiftID" validate:"required"`
		Date         string               `json:"date" validate:"required"`
		AssignmentID *int64               `json:"assignmentID"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		h.errorResponse(w, r, "date 格式错误，应为 2006-01-02")
		return
	}

	change := &domain.PendingChange{
		Action:       req.Action,
		EmployeeID:   req.EmployeeID,
		PositionID:   req.PositionID,
		ShiftID:      req.ShiftID,
		Date:         date,
		AssignmentID: req.AssignmentID,
	}

	stageReq := &editor.StageRequest{
		Schedule: schedule,
		Change:   change,
	}

	if req.Action == domain.PendingAssign {
		employee, err := h.repository.GetEmployeeByID(req.EmployeeID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.errorResponse(w, r, "员工不存在")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		position, err := h.repository.GetPositionByID(req.PositionID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.errorResponse(w, r, "岗位不存在")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		evalCtx, _, err := h.buildEvalContext(r.Context(), schedule)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}

		assignments, err := h.repository.GetAssignmentsBySchedule(r.Context(), schedule.ID)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		assigned := int32(0)
		for _, a := range assignments {
			if a.PositionID == req.PositionID && a.ShiftID == req.ShiftID && a.WorkDate.Equal(date) {
				assigned++
			}
		}

		stageReq.Employee = employee
		stageReq.Required = position.NumOfEmp
		stageReq.Assigned = assigned
		stageReq.EvalCtx = evalCtx
	}

	staged, err := h.editor.Stage(stageReq)
	if err != nil {
		var validationErr *editor.ValidationError
		switch {
		case errors.Is(err, editor.ErrScheduleNotDraft):
			h.unprocessableResponse(w, r, "只有草稿状态的排班表可以编辑", nil)
		case errors.Is(err, editor.ErrDuplicateChange):
			h.unprocessableResponse(w, r, "相同的变更已经暂存", nil)
		case errors.As(err, &validationErr):
			h.unprocessableResponse(w, r, validationErr.Message, nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "变更已暂存", staged)
}

func (h *Handler) DiscardChanges(w http.ResponseWriter, r *http.Request) {
	schedule := r.Context().Value(ScheduleCtx).(*domain.Schedule)

	var positionID int64
	if raw := r.URL.Query().Get("positionID"); raw != "" {
		if _, err := fmt.Sscan(raw, &positionID); err != nil {
			h.errorResponse(w, r, "positionID 参数无效")
			return
		}
	}

	discarded := h.editor.Discard(schedule.ID, positionID)
	h.successResponse(w, r, "暂存变更已丢弃", map[string]any{"discarded": discarded})
}

func (h *Handler) CommitChanges(w http.ResponseWriter, r *http.Request) {
	schedule := r.Context().Value(ScheduleCtx).(*domain.Schedule)

	// 提交前基于当前持久化状态重建评估上下文，
	// 让暂存之后并发写入的排班也参与校验
	evalCtx, _, err := h.buildEvalContext(r.Context(), schedule)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	processed, err := h.editor.Commit(r.Context(), schedule, evalCtx, h.repository)
	if err != nil {
		var staleErr *editor.StaleChangeError
		switch {
		case errors.Is(err, editor.ErrScheduleNotDraft):
			h.unprocessableResponse(w, r, "只有草稿状态的排班表可以提交变更", nil)
		case errors.As(err, &staleErr):
			h.conflictResponse(w, r, "部分变更已经过期，整个提交被拒绝", staleErr.Rejected)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "变更提交成功", map[string]any{"processed": processed})
}

func (h *Handler) UpdateScheduleStatus(w http.ResponseWriter, r *http.Request) {
	schedule := r.Context().Value(ScheduleCtx).(*domain.Schedule)

	var req struct {
		Status domain.ScheduleStatus `json:"status" validate:"required,oneof=draft published archived"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.editor.CheckTransition(schedule, req.Status); err != nil {
		var transitionErr *editor.TransitionError
		switch {
		case errors.Is(err, editor.ErrPendingChanges):
			h.unprocessableResponse(w, r, "还有未提交的暂存变更，发布前请先提交或丢弃", h.editor.Pending(schedule.ID))
		case errors.As(err, &transitionErr):
			h.unprocessableResponse(w, r, transitionErr.Error(), nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 同一个站点同一周只允许有一份已发布的排班表
	if req.Status == domain.SchedulePublished {
		existing, err := h.repository.GetPublishedScheduleBySiteAndWeek(schedule.SiteID, schedule.WeekStart)
		switch {
		case err == nil && existing.ID != schedule.ID:
			h.conflictResponse(w, r, "该站点本周已有已发布的排班表", existing)
			return
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			h.internalServerError(w, r, err)
			return
		}
	}

	if err := h.repository.UpdateScheduleStatus(schedule, req.Status); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.conflictResponse(w, r, "排班表已被其他操作者修改，请刷新后重试", nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 发布时通知所有被排班的员工
	if req.Status == domain.SchedulePublished {
		if err := h.notifySchedulePublished(r.Context(), schedule); err != nil {
			// 通知失败不影响发布本身
			h.logInternalServerError(r, err)
		}
	}

	h.successResponse(w, r, "排班表状态更新成功", schedule)
}

func (h *Handler) notifySchedulePublished(ctx context.Context, schedule *domain.Schedule) error {
	site, err := h.repository.GetWorkSiteByID(schedule.SiteID)
	if err != nil {
		return err
	}

	assignments, err := h.repository.GetAssignmentsBySchedule(ctx, schedule.ID)
	if err != nil {
		return err
	}

	notified := make(map[int64]bool)
	for _, a := range assignments {
		if notified[a.EmployeeID] {
			continue
		}
		notified[a.EmployeeID] = true

		employee, err := h.repository.GetEmployeeByID(a.EmployeeID)
		if err != nil {
			return err
		}

		mailMessage := domain.MailMessage{
			Type: "schedule_published",
			To:   employee.Email,
			Data: domain.SchedulePublishedMailData{
				FullName:  employee.FullName,
				SiteName:  site.Name,
				WeekStart: schedule.WeekStart.Format("2006-01-02"),
			},
		}

		mailData, err := json.Marshal(mailMessage)
		if err != nil {
			return err
		}

		publishCtx, cancel := context.WithTimeout(ctx, time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
		err = h.mailChannel.PublishWithContext(
			publishCtx,
			"",
			"email_queue",
			true,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        mailData,
			},
		)
		cancel()
		if err != nil {
			return err
		}
	}

	return nil
}
