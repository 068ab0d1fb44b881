// Package classifier 为单个槽位把站点内的全部在职员工划分为五个层级，
// 供操作者在手动排班时参考。分类只读，不产生任何副作用。
package classifier

import (
	"sort"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/constraint"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

const (
	scoreWeeklyPrefer    = 100
	scorePermanentPrefer = 50
)

type Candidate struct {
	Employee *domain.Employee `json:"employee"`
	Reasons  []string         `json:"reasons"`
	Warnings []string         `json:"warnings"`
	Score    int              `json:"score"`

	verdict constraint.Verdict
}

func (c *Candidate) Verdict() constraint.Verdict {
	return c.verdict
}

// Result 的五个列表合起来恰好是站点内全部在职员工的一个划分：
// 每个员工出现且只出现一次
type Result struct {
	Available       []*Candidate `json:"available"`
	CrossPosition   []*Candidate `json:"crossPosition"`
	UnavailableBusy []*Candidate `json:"unavailableBusy"`
	UnavailableHard []*Candidate `json:"unavailableHard"`
	UnavailableSoft []*Candidate `json:"unavailableSoft"`
}

// Classify 对槽位逐个评估员工并分层：
//   - 可用 / 跨岗位：没有硬性规则命中，按分数排序（当周倾向 > 固定倾向 > 普通可用），
//     同分时优先选当周排班较少的员工，再按员工 ID 保证确定性
//   - 因忙碌不可用：重叠班次、休息不足、连续天数超限
//   - 因当周约束不可用：员工明确提交了不可值班
//   - 软性不建议：固定约束不倾向值班
//
// 不可用层级不会被静默过滤掉，操作者可以在知情的情况下显式覆盖。
func Classify(slot domain.Slot, employees []*domain.Employee, ctx *constraint.Context) *Result {
	result := &Result{
		Available:       []*Candidate{},
		CrossPosition:   []*Candidate{},
		UnavailableBusy: []*Candidate{},
		UnavailableHard: []*Candidate{},
		UnavailableSoft: []*Candidate{},
	}

	for _, emp := range employees {
		verdict := ctx.Evaluate(emp, slot)
		cand := &Candidate{
			Employee: emp,
			Reasons:  []string{},
			Warnings: []string{},
			Score:    scoreOf(verdict),
			verdict:  verdict,
		}
		if verdict.Reason != constraint.ReasonNone {
			cand.Reasons = append(cand.Reasons, verdict.Reason.Label())
		}

		switch verdict.Kind {
		case constraint.KindHardBlocked:
			switch verdict.Reason {
			case constraint.ReasonWeeklyCannotWork:
				result.UnavailableHard = append(result.UnavailableHard, cand)
			default:
				result.UnavailableBusy = append(result.UnavailableBusy, cand)
			}
		case constraint.KindSoftDiscouraged:
			if verdict.Reason == constraint.ReasonCrossPosition {
				cand.Warnings = append(cand.Warnings, constraint.ReasonCrossPosition.Label())
				result.CrossPosition = append(result.CrossPosition, cand)
			} else {
				result.UnavailableSoft = append(result.UnavailableSoft, cand)
			}
		default:
			// 可用或倾向的员工，如果默认岗位和槽位不一致，归入跨岗位层级
			if emp.PositionID != nil && *emp.PositionID != slot.PositionID {
				cand.Warnings = append(cand.Warnings, constraint.ReasonCrossPosition.Label())
				result.CrossPosition = append(result.CrossPosition, cand)
			} else {
				result.Available = append(result.Available, cand)
			}
		}
	}

	sortCandidates(result.Available, ctx)
	sortCandidates(result.CrossPosition, ctx)
	sortByID(result.UnavailableBusy)
	sortByID(result.UnavailableHard)
	sortByID(result.UnavailableSoft)

	return result
}

func scoreOf(v constraint.Verdict) int {
	if v.Kind != constraint.KindPreferred {
		return 0
	}
	if v.Reason == constraint.ReasonWeeklyPreferWork {
		return scoreWeeklyPrefer
	}
	return scorePermanentPrefer
}

func sortCandidates(list []*Candidate, ctx *constraint.Context) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		// 公平性：当周排班较少的员工排在前面
		li, lj := ctx.AssignedCount(list[i].Employee.ID), ctx.AssignedCount(list[j].Employee.ID)
		if li != lj {
			return li < lj
		}
		return list[i].Employee.ID < list[j].Employee.ID
	})
}

func sortByID(list []*Candidate) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].Employee.ID < list[j].Employee.ID
	})
}
