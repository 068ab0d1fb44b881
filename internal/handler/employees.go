package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) GetAllEmployeeInfo(w http.ResponseWriter, r *http.Request) {
	employees, err := h.repository.GetAllEmployees()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取员工列表成功", employees)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string `json:"username"`
		FullName   string `json:"fullName" validate:"required"`
		Email      string `json:"email" validate:"required,email"`
		Role       string `json:"role" validate:"required,oneof=普通员工 排班经理 系统管理员"`
		PositionID *int64 `json:"positionID"`
		SiteID     *int64 `json:"siteID"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 没有指定用户名时根据姓名的拼音生成一个
	if req.Username == "" {
		req.Username = utils.GenerateUsernameFromChineseName(req.FullName)
	}

	// 生成随机密码
	password := utils.GenerateRandomPassword(h.config.NewUser.PasswordLength)

	// 对密码进行哈希
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 插入员工到数据库中
	employee := &domain.Employee{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         domain.Role(req.Role),
		PositionID:   req.PositionID,
		SiteID:       req.SiteID,
	}

	if err := h.repository.CreateEmployee(employee); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch {
			case pgErr.ConstraintName == "employees_username_key":
				h.badRequest(w, r, errors.New("用户名已存在"))
			case pgErr.ConstraintName == "employees_email_key":
				h.badRequest(w, r, errors.New("邮箱已存在"))
			case pgErr.ConstraintName == "employees_position_id_fkey":
				h.badRequest(w, r, errors.New("岗位不存在"))
			case pgErr.ConstraintName == "employees_site_id_fkey":
				h.badRequest(w, r, errors.New("站点不存在"))
			default:
				h.internalServerError(w, r, err)
			}
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 准备邮件
	mailMessage := domain.MailMessage{
		Type: "create_employee",
		To:   employee.Email,
		Data: domain.CreateEmployeeMailData{
			FullName: req.FullName,
			Username: req.Username,
			Password: password,
		},
	}

	// 对邮件进行序列化
	emailData, err := json.Marshal(mailMessage)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 将邮件发送到消息队列
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	if err := h.mailChannel.PublishWithContext(
		ctx,
		"",
		"email_queue",
		true,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        emailData,
		},
	); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 成功响应
	h.successResponse(w, r, "员工创建成功", employee)
}

func (h *Handler) GetEmployeeInfo(w http.ResponseWriter, r *http.Request) {
	employee := r.Context().Value(EmployeeInfoCtx).(*domain.Employee)
	h.successResponse(w, r, "获取员工信息成功", employee)
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName   *string `json:"fullName"`
		Email      *string `json:"email" validate:"omitempty,email"`
		Role       *string `json:"role" validate:"omitempty,oneof=普通员工 排班经理 系统管理员"`
		PositionID *int64  `json:"positionID"`
		SiteID     *int64  `json:"siteID"`
		IsActive   *bool   `json:"isActive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	employee := r.Context().Value(EmployeeInfoCtx).(*domain.Employee)

	if req.FullName != nil {
		employee.FullName = *req.FullName
	}
	if req.Email != nil {
		employee.Email = *req.Email
	}
	if req.Role != nil {
		employee.Role = domain.Role(*req.Role)
	}
	if req.PositionID != nil {
		employee.PositionID = req.PositionID
	}
	if req.SiteID != nil {
		employee.SiteID = req.SiteID
	}
	if req.IsActive != nil {
		employee.IsActive = *req.IsActive
	}

	if err := h.repository.UpdateEmployee(employee); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch {
			case pgErr.ConstraintName == "employees_email_key":
				h.badRequest(w, r, errors.New("邮箱已存在"))
			case pgErr.ConstraintName == "employees_position_id_fkey":
				h.badRequest(w, r, errors.New("岗位不存在"))
			case pgErr.ConstraintName == "employees_site_id_fkey":
				h.badRequest(w, r, errors.New("站点不存在"))
			default:
				h.internalServerError(w, r, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新员工信息失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新员工信息成功", employee)
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	employee := r.Context().Value(EmployeeInfoCtx).(*domain.Employee)

	if err := h.repository.DeleteEmployee(employee.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除员工成功", nil)
}
