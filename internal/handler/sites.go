package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/utils"
)

func (h *Handler) GetAllWorkSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.repository.GetAllWorkSites()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取站点列表成功", sites)
}

func (h *Handler) GetWorkSite(w http.ResponseWriter, r *http.Request) {
	site := r.Context().Value(WorkSiteCtx).(*domain.WorkSite)
	h.successResponse(w, r, "获取站点信息成功", site)
}

func (h *Handler) CreateWorkSite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	site := &domain.WorkSite{
		Name: req.Name,
	}

	if err := h.repository.CreateWorkSite(site); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "work_sites_name_key":
			h.badRequest(w, r, errors.New("站点名称已存在"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "站点创建成功", site)
}

func (h *Handler) UpdateWorkSite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string `json:"name"`
		IsActive *bool   `json:"isActive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	site := r.Context().Value(WorkSiteCtx).(*domain.WorkSite)

	if req.Name != nil {
		site.Name = *req.Name
	}
	if req.IsActive != nil {
		site.IsActive = *req.IsActive
	}

	if err := h.repository.UpdateWorkSite(site); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新站点信息失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新站点信息成功", site)
}

func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	site := r.Context().Value(WorkSiteCtx).(*domain.WorkSite)

	positions, err := h.repository.GetPositionsBySite(site.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取岗位列表成功", positions)
}

func (h *Handler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	site := r.Context().Value(WorkSiteCtx).(*domain.WorkSite)

	var req struct {
		Name     string `json:"name" validate:"required"`
		NumOfEmp int32  `json:"numOfEmp" validate:"required,min=1"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	position := &domain.Position{
		SiteID:   site.ID,
		Name:     req.Name,
		NumOfEmp: req.NumOfEmp,
	}

	if err := h.repository.CreatePosition(position); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "岗位创建成功", position)
}

func (h *Handler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	positionIDParam := chi.URLParam(r, "id")
	positionID, err := strconv.ParseInt(positionIDParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "岗位ID无效")
		return
	}

	position, err := h.repository.GetPositionByID(positionID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "岗位不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	var req struct {
		Name     *string `json:"name"`
		NumOfEmp *int32  `json:"numOfEmp" validate:"omitempty,min=1"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Name != nil {
		position.Name = *req.Name
	}
	if req.NumOfEmp != nil {
		position.NumOfEmp = *req.NumOfEmp
	}

	if err := h.repository.UpdatePosition(position); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新岗位失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新岗位成功", position)
}

func (h *Handler) DeletePosition(w http.ResponseWriter, r *http.Request) {
	positionIDParam := chi.URLParam(r, "id")
	positionID, err := strconv.ParseInt(positionIDParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "岗位ID无效")
		return
	}

	if err := h.repository.DeletePosition(positionID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除岗位成功", nil)
}

func (h *Handler) GetShifts(w http.ResponseWriter, r *http.Request) {
	site := r.Context().Value(WorkSiteCtx).(*domain.WorkSite)

	shifts, err := h.repository.GetShiftsBySite(site.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取班次列表成功", shifts)
}

func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	site := r.Context().Value(WorkSiteCtx).(*domain.WorkSite)

	var req struct {
		Name          string  `json:"name" validate:"required"`
		StartTime     string  `json:"startTime" validate:"required"`
		DurationHours float64 `json:"durationHours" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	shift := &domain.Shift{
		SiteID:        site.ID,
		Name:          req.Name,
		StartTime:     req.StartTime,
		DurationHours: req.DurationHours,
	}

	if err := utils.ValidateShiftTime(shift); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 新班次不能和站点已有的班次冲突
	existing, err := h.repository.GetShiftsBySite(site.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if err := utils.ValidateShiftsNoOverlap(append(existing, shift)); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateShift(shift); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "班次创建成功", shift)
}

func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	shiftIDParam := chi.URLParam(r, "id")
	shiftID, err := strconv.ParseInt(shiftIDParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "班次ID无效")
		return
	}

	if err := h.repository.DeleteShift(shiftID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除班次成功", nil)
}
