package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/editor"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/repository"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/solver"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	mailChannel *amqp.Channel
	redisClient *redis.Client
	solver      *solver.Solver
	editor      *editor.Manager

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, mailCh *amqp.Channel, rdb *redis.Client, slv *solver.Solver, ed *editor.Manager) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		mailChannel: mailCh,
		redisClient: rdb,
		solver:      slv,
		editor:      ed,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/require", h.RequireResetPassword)
			r.Post("/confirm", h.ConfirmResetPassword)
		})
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Route("/update-email", func(r chi.Router) {
				r.Post("/require", h.RequireUpdateEmail)
				r.Post("/confirm", h.ConfirmUpdateEmail)
			})
			r.Get("/assignments", h.GetMyAssignments)
			r.Route("/weekly-constraints", func(r chi.Router) {
				r.Use(h.preventInactiveEmployee)
				r.Get("/", h.GetMyWeeklyConstraints)
				r.Put("/", h.SubmitMyWeeklyConstraints)
			})
		})

		r.Route("/employees", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateEmployee)
			r.Get("/", h.GetAllEmployeeInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.employeeInfo)
				r.Get("/", h.GetEmployeeInfo)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Patch("/", h.UpdateEmployee)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Delete("/", h.DeleteEmployee)
				r.Route("/permanent-constraints", func(r chi.Router) {
					r.Use(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin}))
					r.Get("/", h.GetPermanentConstraints)
					r.Post("/", h.CreatePermanentConstraint)
				})
				r.Route("/weekly-constraints", func(r chi.Router) {
					r.Use(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin}))
					r.Get("/", h.GetEmployeeWeeklyConstraints)
					r.Put("/", h.OverrideWeeklyConstraints)
				})
			})
		})

		r.Route("/permanent-constraints/{id}", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin}))
			r.Patch("/", h.UpdatePermanentConstraint)
			r.Delete("/", h.DeletePermanentConstraint)
		})

		r.Route("/work-sites", func(r chi.Router) {
			r.Get("/", h.GetAllWorkSites)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateWorkSite)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.workSite)
				r.Get("/", h.GetWorkSite)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Patch("/", h.UpdateWorkSite)
				r.Route("/positions", func(r chi.Router) {
					r.Get("/", h.GetPositions)
					r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreatePosition)
				})
				r.Route("/shifts", func(r chi.Router) {
					r.Get("/", h.GetShifts)
					r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateShift)
				})
				r.Get("/schedules", h.GetSchedules)
			})
		})

		r.Route("/positions/{id}", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
			r.Patch("/", h.UpdatePosition)
			r.Delete("/", h.DeletePosition)
		})

		r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Delete("/shifts/{id}", h.DeleteShift)

		r.Route("/schedules", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin}))
			r.Post("/generate", h.GenerateSchedule)
			r.Post("/compare-algorithms", h.CompareAlgorithms)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.schedule)
				r.Get("/", h.GetSchedule)
				r.Delete("/", h.DeleteSchedule)
				r.Get("/recommendations/employees", h.RecommendEmployees)
				r.Route("/pending-changes", func(r chi.Router) {
					r.Get("/", h.GetPendingChanges)
					r.Post("/", h.StageChange)
					r.Delete("/", h.DiscardChanges)
					r.Post("/commit", h.CommitChanges)
				})
				r.Patch("/status", h.UpdateScheduleStatus)
			})
		})
	})
}
