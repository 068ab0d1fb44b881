package utils

import (
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

func ValidateShiftTime(shift *domain.Shift) error {
	if _, err := time.Parse("15:04:05", shift.StartTime); err != nil {
		return fmt.Errorf("班次 %s 的开始时间格式错误", shift.Name)
	}
	if shift.DurationHours <= 0 || shift.DurationHours > 24 {
		return fmt.Errorf("班次 %s 的时长必须在 (0, 24] 小时之间", shift.Name)
	}
	return nil
}

// ValidateShiftsNoOverlap 检查同一个站点的各个班次之间是否存在时间冲突
func ValidateShiftsNoOverlap(shifts []*domain.Shift) error {
	day := time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)

	for i := 0; i < len(shifts); i++ {
		if err := ValidateShiftTime(shifts[i]); err != nil {
			return err
		}
		iStart, iEnd := shifts[i].Interval(day)

		for j := i + 1; j < len(shifts); j++ {
			jStart, jEnd := shifts[j].Interval(day)

			if iStart.Before(jEnd) && jStart.Before(iEnd) {
				return fmt.Errorf("班次 %s 和班次 %s 之间的时间冲突", shifts[i].Name, shifts[j].Name)
			}
		}
	}
	return nil
}

// ValidateWeeklyConstraints 检查一批当周约束是否都落在指定的一周内，
// 并且同一个 (日期, 班次) 上没有重复提交
func ValidateWeeklyConstraints(weekStart time.Time, constraints []*domain.WeeklyConstraint) error {
	weekEnd := weekStart.AddDate(0, 0, 7)
	seen := make(map[string]bool)

	for i, wc := range constraints {
		if wc.Date.Before(weekStart) || !wc.Date.Before(weekEnd) {
			return fmt.Errorf("第 %d 项约束的日期 %s 不在本周内", i+1, wc.Date.Format("2006-01-02"))
		}

		switch wc.Status {
		case domain.ConstraintNeutral, domain.ConstraintPreferWork, domain.ConstraintCannotWork:
		default:
			return fmt.Errorf("第 %d 项约束的状态 %s 无效", i+1, wc.Status)
		}

		key := wc.Date.Format("2006-01-02")
		if wc.ShiftID != nil {
			key = fmt.Sprintf("%s_%d", key, *wc.ShiftID)
		}
		if seen[key] {
			return fmt.Errorf("第 %d 项约束和之前的约束重复", i+1)
		}
		seen[key] = true
	}
	return nil
}

// CanReplaceWeeklyConstraints 判断能否整体覆盖某位员工一周的当周约束：
// 已提交过的周会被冻结，只有排班经理和系统管理员可以覆盖
func CanReplaceWeeklyConstraints(existing []*domain.WeeklyConstraint, role domain.Role) bool {
	for _, wc := range existing {
		if wc.Submitted {
			return role == domain.RoleManager || role == domain.RoleAdmin
		}
	}
	return true
}

// ValidatePermanentConstraint 检查固定约束的字段取值
func ValidatePermanentConstraint(pc *domain.PermanentConstraint) error {
	if pc.Weekday < 0 || pc.Weekday > 6 {
		return fmt.Errorf("星期 %d 无效", pc.Weekday)
	}

	switch pc.ShiftType {
	case domain.ShiftTypeMorning, domain.ShiftTypeEvening, domain.ShiftTypeNight, domain.ShiftTypeAll:
	default:
		return fmt.Errorf("班次类型 %s 无效", pc.ShiftType)
	}

	switch pc.Type {
	case domain.ConstraintPreferWork, domain.ConstraintCannotWork:
	default:
		return fmt.Errorf("固定约束只允许 %s 或 %s", domain.ConstraintPreferWork, domain.ConstraintCannotWork)
	}

	return nil
}
