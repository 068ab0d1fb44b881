package constraint

import (
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

// Evaluate 按固定的优先级顺序评估员工与槽位的组合：
//  1. 该时段已有重叠班次 -> 硬性不可用
//  2. 与前后班次的休息时间不足 -> 硬性不可用
//  3. 连续工作天数超出上限 -> 硬性不可用
//  4. 当周约束为不可值班 -> 硬性不可用
//  5. 当周约束为倾向值班 -> 倾向
//  6. 固定约束为不可值班 -> 软性不建议
//  7. 固定约束为倾向值班 -> 倾向
//  8. 非默认岗位 -> 软性不建议
//  9. 其余情况 -> 普通可用
//
// 当周约束（包括显式的 neutral）一旦存在就会屏蔽固定约束，
// 排班合法性规则永远先于偏好规则。
// 槽位引用了上下文中不存在的班次时返回 ReasonUnknownShift，
// 调用方应将其作为坏的槽位引用处理而不是员工不可用
func (c *Context) Evaluate(emp *domain.Employee, slot domain.Slot) Verdict {
	shift := c.shifts[slot.ShiftID]
	if shift == nil {
		return Verdict{Kind: KindHardBlocked, Reason: ReasonUnknownShift}
	}

	slotStart, slotEnd := shift.Interval(slot.Date)
	near := c.assignmentsNear(emp.ID, slot.Date)

	// 1. 重叠班次
	for _, a := range near {
		aShift := c.shifts[a.ShiftID]
		if aShift == nil {
			continue
		}
		aStart, aEnd := aShift.Interval(a.WorkDate)
		if aStart.Before(slotEnd) && slotStart.Before(aEnd) {
			return Verdict{Kind: KindHardBlocked, Reason: ReasonBusy}
		}
	}

	// 2. 休息时间
	for _, a := range near {
		aShift := c.shifts[a.ShiftID]
		if aShift == nil {
			continue
		}
		aStart, aEnd := aShift.Interval(a.WorkDate)

		var gapHours float64
		if !aEnd.After(slotStart) {
			gapHours = slotStart.Sub(aEnd).Hours()
		} else {
			gapHours = aStart.Sub(slotEnd).Hours()
		}
		if gapHours < c.rules.MinRestHours {
			return Verdict{Kind: KindHardBlocked, Reason: ReasonRestViolation}
		}
	}

	// 3. 连续工作天数（把这个槽位算进去之后的连续天数）
	streak := 1
	for d := slot.Date.AddDate(0, 0, -1); c.worksOn(emp.ID, d); d = d.AddDate(0, 0, -1) {
		streak++
	}
	for d := slot.Date.AddDate(0, 0, 1); c.worksOn(emp.ID, d); d = d.AddDate(0, 0, 1) {
		streak++
	}
	if c.rules.MaxConsecutiveDays > 0 && streak > c.rules.MaxConsecutiveDays {
		return Verdict{Kind: KindHardBlocked, Reason: ReasonConsecutiveDays}
	}

	// 4 & 5. 当周约束（精确到班次的约束和全天约束都算）
	hasWeekly := false
	weeklyPrefer := false
	for _, wc := range c.weeklyByEmp[emp.ID] {
		if !sameDay(wc.Date, slot.Date) {
			continue
		}
		if wc.ShiftID != nil && *wc.ShiftID != slot.ShiftID {
			continue
		}

		hasWeekly = true
		switch wc.Status {
		case domain.ConstraintCannotWork:
			return Verdict{Kind: KindHardBlocked, Reason: ReasonWeeklyCannotWork}
		case domain.ConstraintPreferWork:
			weeklyPrefer = true
		}
	}
	if weeklyPrefer {
		return Verdict{Kind: KindPreferred, Reason: ReasonWeeklyPreferWork}
	}

	// 6 & 7. 固定约束，仅在该时段没有任何当周约束时生效
	if !hasWeekly {
		permanentPrefer := false
		for _, pc := range c.permanentByEmp[emp.ID] {
			if !pc.Matches(slot.Date, shift.Type()) {
				continue
			}
			switch pc.Type {
			case domain.ConstraintCannotWork:
				return Verdict{Kind: KindSoftDiscouraged, Reason: ReasonPermanentCannotWork}
			case domain.ConstraintPreferWork:
				permanentPrefer = true
			}
		}
		if permanentPrefer {
			return Verdict{Kind: KindPreferred, Reason: ReasonPermanentPreferWork}
		}
	}

	// 8. 岗位不匹配（没有默认岗位的员工视为中立）
	if emp.PositionID != nil && *emp.PositionID != slot.PositionID {
		return Verdict{Kind: KindSoftDiscouraged, Reason: ReasonCrossPosition}
	}

	// 9. 普通可用
	return Verdict{Kind: KindEligible, Reason: ReasonNone}
}
