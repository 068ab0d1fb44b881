package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/utils"
)

func (h *Handler) GetMyWeeklyConstraints(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	weekStart, err := time.Parse("2006-01-02", r.URL.Query().Get("weekStart"))
	if err != nil {
		h.errorResponse(w, r, "weekStart 参数格式错误，应为 2006-01-02")
		return
	}

	constraints, err := h.repository.GetWeeklyConstraintsByEmployee(myInfo.ID, weekStart)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取当周约束成功", constraints)
}

// readWeeklyConstraints 解析整体覆盖一周当周约束的请求体，
// 解析或校验失败时直接写出响应并返回 false
func (h *Handler) readWeeklyConstraints(w http.ResponseWriter, r *http.Request, employeeID int64) ([]*domain.WeeklyConstraint, time.Time, bool) {
	var req struct {
		WeekStart   string `json:"weekStart" validate:"required"`
		Constraints []struct {
			Date    string                  `json:"date" validate:"required"`
			ShiftID *int64                  `json:"shiftID"`
			Status  domain.ConstraintStatus `json:"status" validate:"required"`
		} `json:"constraints"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return nil, time.Time{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return nil, time.Time{}, false
	}

	weekStart, err := time.Parse("2006-01-02", req.WeekStart)
	if err != nil {
		h.errorResponse(w, r, "weekStart 格式错误，应为 2006-01-02")
		return nil, time.Time{}, false
	}

	constraints := make([]*domain.WeeklyConstraint, 0, len(req.Constraints))
	for _, item := range req.Constraints {
		date, err := time.Parse("2006-01-02", item.Date)
		if err != nil {
			h.errorResponse(w, r, "约束日期格式错误，应为 2006-01-02")
			return nil, time.Time{}, false
		}
		constraints = append(constraints, &domain.WeeklyConstraint{
			EmployeeID: employeeID,
			Date:       date,
			ShiftID:    item.ShiftID,
			Status:     item.Status,
			Submitted:  true,
		})
	}

	if err := utils.ValidateWeeklyConstraints(weekStart, constraints); err != nil {
		h.badRequest(w, r, err)
		return nil, time.Time{}, false
	}

	return constraints, weekStart, true
}

// SubmitMyWeeklyConstraints 整体覆盖本人某一周的当周约束。
// 已提交过的周被冻结，普通员工不能再次覆盖
func (h *Handler) SubmitMyWeeklyConstraints(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	constraints, weekStart, ok := h.readWeeklyConstraints(w, r, myInfo.ID)
	if !ok {
		return
	}

	existing, err := h.repository.GetWeeklyConstraintsByEmployee(myInfo.ID, weekStart)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if !utils.CanReplaceWeeklyConstraints(existing, myInfo.Role) {
		h.unprocessableResponse(w, r, "当周约束已经提交，如需修改请联系排班经理", nil)
		return
	}

	if err := h.repository.ReplaceWeeklyConstraints(myInfo.ID, weekStart, constraints); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "提交当周约束成功", constraints)
}

// GetEmployeeWeeklyConstraints 供排班经理查看某位员工一周的当周约束
func (h *Handler) GetEmployeeWeeklyConstraints(w http.ResponseWriter, r *http.Request) {
	employee := r.Context().Value(EmployeeInfoCtx).(*domain.Employee)

	weekStart, err := time.Parse("2006-01-02", r.URL.Query().Get("weekStart"))
	if err != nil {
		h.errorResponse(w, r, "weekStart 参数格式错误，应为 2006-01-02")
		return
	}

	constraints, err := h.repository.GetWeeklyConstraintsByEmployee(employee.ID, weekStart)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取当周约束成功", constraints)
}

// OverrideWeeklyConstraints 供排班经理代替员工覆盖已冻结的当周约束
func (h *Handler) OverrideWeeklyConstraints(w http.ResponseWriter, r *http.Request) {
	employee := r.Context().Value(EmployeeInfoCtx).(*domain.Employee)

	constraints, weekStart, ok := h.readWeeklyConstraints(w, r, employee.ID)
	if !ok {
		return
	}

	if err := h.repository.ReplaceWeeklyConstraints(employee.ID, weekStart, constraints); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "覆盖当周约束成功", constraints)
}

func (h *Handler) GetPermanentConstraints(w http.ResponseWriter, r *http.Request) {
	employee := r.Context().Value(EmployeeInfoCtx).(*domain.Employee)

	constraints, err := h.repository.GetPermanentConstraintsByEmployee(employee.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取固定约束成功", constraints)
}

func (h *Handler) CreatePermanentConstraint(w http.ResponseWriter, r *http.Request) {
	employee := r.Context().Value(EmployeeInfoCtx).(*domain.Employee)

	var req struct {
		Weekday   int32                   `json:"weekday" validate:"min=0,max=6"`
		ShiftType domain.ShiftType        `json:"shiftType" validate:"required"`
		Type      domain.ConstraintStatus `json:"type" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	pc := &domain.PermanentConstraint{
		EmployeeID: employee.ID,
		Weekday:    req.Weekday,
		ShiftType:  req.ShiftType,
		Type:       req.Type,
	}

	if err := utils.ValidatePermanentConstraint(pc); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreatePermanentConstraint(pc); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "permanent_constraints_employee_id_fkey":
			h.badRequest(w, r, errors.New("员工不存在"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "固定约束创建成功", pc)
}

func (h *Handler) UpdatePermanentConstraint(w http.ResponseWriter, r *http.Request) {
	constraintIDParam := chi.URLParam(r, "id")
	constraintID, err := strconv.ParseInt(constraintIDParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "约束ID无效")
		return
	}

	var req struct {
		Weekday   *int32                   `json:"weekday" validate:"omitempty,min=0,max=6"`
		ShiftType *domain.ShiftType        `json:"shiftType"`
		Type      *domain.ConstraintStatus `json:"type"`
		IsActive  *bool                    `json:"isActive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	pc, err := h.repository.GetPermanentConstraintByID(constraintID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "固定约束不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if req.Weekday != nil {
		pc.Weekday = *req.Weekday
	}
	if req.ShiftType != nil {
		pc.ShiftType = *req.ShiftType
	}
	if req.Type != nil {
		pc.Type = *req.Type
	}
	if req.IsActive != nil {
		pc.IsActive = *req.IsActive
	}

	if err := utils.ValidatePermanentConstraint(pc); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.UpdatePermanentConstraint(pc); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新固定约束失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新固定约束成功", pc)
}

func (h *Handler) DeletePermanentConstraint(w http.ResponseWriter, r *http.Request) {
	constraintIDParam := chi.URLParam(r, "id")
	constraintID, err := strconv.ParseInt(constraintIDParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "约束ID无效")
		return
	}

	if err := h.repository.DeletePermanentConstraint(constraintID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除固定约束成功", nil)
}
