package solver

import (
	"context"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/classifier"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/constraint"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

// greedyStrategy 按确定性的槽位顺序逐个贪心填充：
// 每个槽位按照分类器给出的排序取可用层级的最高分候选，
// 可用层级不够时才使用跨岗位层级，绝不使用不可用层级。
// 结果完全确定，相同输入必然产生相同输出
type greedyStrategy struct {
	fairnessWeight float64
}

var _ Strategy = (*greedyStrategy)(nil)

func newGreedyStrategy(fairnessWeight float64) *greedyStrategy {
	return &greedyStrategy{fairnessWeight: fairnessWeight}
}

func (g *greedyStrategy) Name() Algorithm {
	return AlgorithmHeuristic
}

func (g *greedyStrategy) Solve(ctx context.Context, in *Input) (*Result, error) {
	employees := in.activeEmployees()
	slots := enumerateSlots(in)

	// 上下文从零排班开始，每确定一个排班就加入上下文，
	// 使后面槽位的评估能感知到重叠、休息和连续天数规则
	evalCtx := constraint.NewContext(in.Rules, in.Shifts, in.Weekly, in.Permanent, nil)

	var assignments []*domain.Assignment
	for _, slot := range slots {
		select {
		case <-ctx.Done():
			// 取消时返回已经填好的部分结果
			return buildResult(in, slots, assignments, g.fairnessWeight), nil
		default:
		}

		tiers := classifier.Classify(slot.Slot, employees, evalCtx)
		candidates := append([]*classifier.Candidate{}, tiers.Available...)
		candidates = append(candidates, tiers.CrossPosition...)

		taken := int32(0)
		for _, cand := range candidates {
			if taken >= slot.required {
				break
			}
			a := &domain.Assignment{
				EmployeeID: cand.Employee.ID,
				PositionID: slot.PositionID,
				ShiftID:    slot.ShiftID,
				WorkDate:   slot.Date,
				Status:     domain.AssignmentScheduled,
			}
			assignments = append(assignments, a)
			evalCtx.AddAssignment(a)
			taken++
		}
	}

	return buildResult(in, slots, assignments, g.fairnessWeight), nil
}
