package seed

import (
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/repository"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/utils"
)

// demoShifts 是演示站点的班次配置，按开始时间排列且互不重叠
var demoShifts = []*domain.Shift{
	{Name: "早班", StartTime: "08:00:00", DurationHours: 4},
	{Name: "午班", StartTime: "12:30:00", DurationHours: 4.5},
	{Name: "晚班", StartTime: "17:30:00", DurationHours: 4},
	{Name: "夜班", StartTime: "22:00:00", DurationHours: 8},
}

var demoPositions = []*domain.Position{
	{Name: "前台接待", NumOfEmp: 2},
	{Name: "咨询台", NumOfEmp: 1},
}

// SeedDemoSite 创建一个带岗位和班次的演示站点
func SeedDemoSite(r *repository.Repository) *domain.WorkSite {
	site := &domain.WorkSite{Name: "演示站点" + utils.GenerateRandomPassword(4)}
	if err := r.CreateWorkSite(site); err != nil {
		slog.Error("无法创建演示站点", "error", err)
		return nil
	}

	for _, p := range demoPositions {
		position := &domain.Position{
			SiteID:   site.ID,
			Name:     p.Name,
			NumOfEmp: p.NumOfEmp,
		}
		if err := r.CreatePosition(position); err != nil {
			slog.Error("无法创建岗位", "name", p.Name, "error", err)
			return nil
		}
	}

	for _, s := range demoShifts {
		shift := &domain.Shift{
			SiteID:        site.ID,
			Name:          s.Name,
			StartTime:     s.StartTime,
			DurationHours: s.DurationHours,
		}
		if err := r.CreateShift(shift); err != nil {
			slog.Error("无法创建班次", "name", s.Name, "error", err)
			return nil
		}
	}

	slog.Info("演示站点创建成功", "site_id", site.ID, "name", site.Name)
	return site
}

// SeedEmployees 向一个站点插入 n 个随机员工，
// 员工会被随机分配到站点的某个岗位上
func SeedEmployees(r *repository.Repository, cfg *config.Config, siteID int64, n int) int {
	positions, err := r.GetPositionsBySite(siteID)
	if err != nil {
		slog.Error("无法获取站点岗位", "error", err)
		return 0
	}
	if len(positions) == 0 {
		slog.Error("站点没有任何岗位")
		return 0
	}

	cnt := 0
	for i := 0; i < n; i++ {
		position := positions[i%len(positions)]
		employee, err := utils.GenerateRandomEmployee(cfg.Seed.User.Password, cfg.Email.UserDomain, &position.ID, &siteID)
		if err != nil {
			slog.Error("无法生成随机员工", "error", err)
			continue
		}

		if err := r.CreateEmployee(employee); err != nil {
			slog.Error("无法插入员工", "error", err)
			continue
		}
		cnt++
	}

	return cnt
}

// SeedWeeklyConstraints 为站点内的每个员工生成某一周的随机当周约束
func SeedWeeklyConstraints(r *repository.Repository, siteID int64, weekStart time.Time) int {
	employees, err := r.GetSchedulableEmployees(siteID)
	if err != nil {
		slog.Error("无法获取站点员工", "error", err)
		return 0
	}

	cnt := 0
	for _, employee := range employees {
		constraints := make([]*domain.WeeklyConstraint, 0, 7)
		for day := 0; day < 7; day++ {
			status := utils.GenerateRandomWeeklyStatus()
			if status == domain.ConstraintNeutral {
				continue
			}
			constraints = append(constraints, &domain.WeeklyConstraint{
				EmployeeID: employee.ID,
				Date:       weekStart.AddDate(0, 0, day),
				Status:     status,
				Submitted:  true,
			})
		}

		if len(constraints) == 0 {
			continue
		}

		if err := r.ReplaceWeeklyConstraints(employee.ID, weekStart, constraints); err != nil {
			slog.Error("无法插入当周约束", "employee_id", employee.ID, "error", err)
			continue
		}
		cnt++
	}

	return cnt
}
