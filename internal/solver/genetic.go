package solver

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"sort"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/constraint"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

// 适应度中各类惩罚的相对权重，
// 硬性违规的权重必须远大于其他项，保证进化方向优先消除非法排班
const (
	hardViolationPenalty = 50.0
	uncoveredPenalty     = 10.0
	softUsagePenalty     = 1.0
)

// geneticStrategy 是优化求解策略：用遗传算法搜索一周的排班矩阵。
// 染色体的每个基因对应一个槽位，基因只会从静态合法（没有被当周
// 不可值班约束排除）的候选中取值；动态的硬性规则（重叠、休息、
// 连续天数）通过惩罚项驱动进化，并在收敛后由修复步骤彻底消除，
// 因此最终结果中不存在任何硬性违规
type geneticStrategy struct {
	opts Options
}

var _ Strategy = (*geneticStrategy)(nil)

func newGeneticStrategy(opts Options) *geneticStrategy {
	return &geneticStrategy{opts: opts}
}

func (g *geneticStrategy) Name() Algorithm {
	return AlgorithmExact
}

// chromosome 表示一张完整的周排班表，genes[i] 是第 i 个槽位分到的员工
type chromosome struct {
	genes   [][]int64
	fitness float64
}

func (ch *chromosome) clone() *chromosome {
	genes := make([][]int64, len(ch.genes))
	for i, gene := range ch.genes {
		genes[i] = slices.Clone(gene)
	}
	return &chromosome{genes: genes, fitness: ch.fitness}
}

// solveState 缓存一次求解中不变的数据
type solveState struct {
	in         *Input
	opts       Options
	slots      []weekSlot
	employees  map[int64]*domain.Employee
	candidates [][]int64          // 每个槽位的静态合法候选
	soft       []map[int64]bool   // 每个槽位中候选是否属于软性不建议
	intervals  []slotInterval     // 每个槽位的时间区间
}

type slotInterval struct {
	day        int // 相对 weekStart 的天数
	startHours float64
	endHours   float64
}

func (g *geneticStrategy) Solve(ctx context.Context, in *Input) (*Result, error) {
	state, err := g.prepare(in)
	if err != nil {
		return nil, err
	}

	// 初始种群
	pop := make([]*chromosome, g.opts.PopulationSize)
	for i := range pop {
		pop[i] = state.randomChromosome()
		state.calcFitness(pop[i])
	}

	bestEver := &chromosome{fitness: -math.MaxFloat64}

loop:
	for gen := 0; gen < g.opts.MaxGenerations; gen++ {
		select {
		case <-ctx.Done():
			// 时间预算用完，带着目前最好的解退出
			break loop
		default:
		}

		// 记录历史最佳样本，深拷贝防止后续繁殖修改基因
		for _, ch := range pop {
			if ch.fitness > bestEver.fitness {
				bestEver = ch.clone()
			}
		}

		// 保留精英
		sort.Slice(pop, func(i, j int) bool {
			return pop[i].fitness > pop[j].fitness
		})

		newPop := make([]*chromosome, 0, g.opts.PopulationSize)
		for i := 0; i < g.opts.EliteCount && i < len(pop); i++ {
			newPop = append(newPop, pop[i].clone())
		}

		// 在剩余的染色体中进行交叉和变异
		for len(newPop) < g.opts.PopulationSize {
			p1 := state.selectByRoulette(pop).clone()
			p2 := state.selectByRoulette(pop).clone()

			if rand.Float64() < g.opts.CrossoverRate {
				singlePointCrossover(p1, p2)
			}

			state.mutate(p1)
			state.mutate(p2)

			newPop = append(newPop, p1)
			if len(newPop) < g.opts.PopulationSize {
				newPop = append(newPop, p2)
			}
		}

		pop = newPop
		for _, ch := range pop {
			state.calcFitness(ch)
		}
	}

	for _, ch := range pop {
		if ch.fitness > bestEver.fitness {
			bestEver = ch.clone()
		}
	}

	// 修复步骤：逐槽位重放最优染色体，丢弃所有硬性违规的成员，
	// 再用合法候选补足缺口，保证结果在构造上就满足所有硬性规则
	assignments := state.repair(bestEver)

	return buildResult(in, state.slots, assignments, g.opts.FairnessWeight), nil
}

func (g *geneticStrategy) prepare(in *Input) (*solveState, error) {
	slots := enumerateSlots(in)
	employees := in.activeEmployees()

	state := &solveState{
		in:         in,
		opts:       g.opts,
		slots:      slots,
		employees:  make(map[int64]*domain.Employee, len(employees)),
		candidates: make([][]int64, len(slots)),
		soft:       make([]map[int64]bool, len(slots)),
		intervals:  make([]slotInterval, len(slots)),
	}
	for _, emp := range employees {
		state.employees[emp.ID] = emp
	}

	shiftByID := make(map[int64]*domain.Shift, len(in.Shifts))
	for _, shift := range in.Shifts {
		shiftByID[shift.ID] = shift
	}

	// 静态候选：在没有任何排班的上下文里评估，
	// 只有当周不可值班这类静态硬约束会被排除
	baseCtx := constraint.NewContext(in.Rules, in.Shifts, in.Weekly, in.Permanent, nil)

	for i, slot := range slots {
		shift := shiftByID[slot.ShiftID]
		start, end := shift.Interval(slot.Date)
		state.intervals[i] = slotInterval{
			day:        i / (len(in.Shifts) * len(in.Positions)),
			startHours: start.Sub(in.WeekStart).Hours(),
			endHours:   end.Sub(in.WeekStart).Hours(),
		}

		state.soft[i] = make(map[int64]bool)
		for _, emp := range employees {
			verdict := baseCtx.Evaluate(emp, slot.Slot)
			if verdict.HardBlocked() {
				continue
			}
			state.candidates[i] = append(state.candidates[i], emp.ID)
			if verdict.Kind == constraint.KindSoftDiscouraged {
				state.soft[i][emp.ID] = true
			}
		}
		sort.Slice(state.candidates[i], func(a, b int) bool {
			return state.candidates[i][a] < state.candidates[i][b]
		})
	}

	return state, nil
}

// randomChromosome 随机生成一个染色体
func (st *solveState) randomChromosome() *chromosome {
	genes := make([][]int64, len(st.slots))
	for i, slot := range st.slots {
		candidates := slices.Clone(st.candidates[i])
		rand.Shuffle(len(candidates), func(a, b int) {
			candidates[a], candidates[b] = candidates[b], candidates[a]
		})

		chosen := min(int(slot.required), len(candidates))
		genes[i] = candidates[:chosen]
	}
	return &chromosome{genes: genes}
}

// calcFitness 计算染色体的适应度：
// fitness = - 硬性违规惩罚 - 未覆盖惩罚 - 软性使用惩罚 - FairnessWeight * 工作量方差
func (st *solveState) calcFitness(ch *chromosome) {
	perEmployee := make(map[int64][]int) // 员工 -> 分到的槽位下标
	uncovered := 0.0
	softUsed := 0.0

	for i, gene := range ch.genes {
		missing := int(st.slots[i].required) - len(gene)
		if missing > 0 {
			uncovered += float64(missing)
		}
		for _, empID := range gene {
			perEmployee[empID] = append(perEmployee[empID], i)
			if st.soft[i][empID] {
				softUsed++
			}
		}
	}

	violations := 0.0
	for _, slotIdxs := range perEmployee {
		violations += st.countHardViolations(slotIdxs)
	}

	// 公平性惩罚：各员工排班数量的方差
	variance := 0.0
	if len(perEmployee) > 0 {
		avg := 0.0
		for _, slotIdxs := range perEmployee {
			avg += float64(len(slotIdxs))
		}
		avg /= float64(len(perEmployee))

		for _, slotIdxs := range perEmployee {
			variance += math.Pow(float64(len(slotIdxs))-avg, 2)
		}
		variance /= float64(len(perEmployee))
	}

	ch.fitness = -hardViolationPenalty*violations -
		uncoveredPenalty*uncovered -
		softUsagePenalty*softUsed -
		st.opts.FairnessWeight*variance
}

// countHardViolations 统计一个员工的槽位组合里的动态硬性违规：
// 时间重叠、休息不足、连续工作天数超限
func (st *solveState) countHardViolations(slotIdxs []int) float64 {
	violations := 0.0

	for i := 0; i < len(slotIdxs); i++ {
		for j := i + 1; j < len(slotIdxs); j++ {
			a, b := st.intervals[slotIdxs[i]], st.intervals[slotIdxs[j]]
			if a.startHours < b.endHours && b.startHours < a.endHours {
				violations++
				continue
			}
			var gap float64
			if a.endHours <= b.startHours {
				gap = b.startHours - a.endHours
			} else {
				gap = a.startHours - b.endHours
			}
			if gap < st.in.Rules.MinRestHours {
				violations++
			}
		}
	}

	if st.in.Rules.MaxConsecutiveDays > 0 {
		days := make(map[int]bool)
		for _, idx := range slotIdxs {
			days[st.intervals[idx].day] = true
		}
		streak := 0
		for day := 0; day < 7; day++ {
			if !days[day] {
				streak = 0
				continue
			}
			streak++
			if streak > st.in.Rules.MaxConsecutiveDays {
				violations++
			}
		}
	}

	return violations
}

// selectByRoulette 轮盘赌选择。适应度都是负数，
// 先整体平移到正区间再转转盘
func (st *solveState) selectByRoulette(pop []*chromosome) *chromosome {
	minFit := pop[0].fitness
	for _, ch := range pop {
		if ch.fitness < minFit {
			minFit = ch.fitness
		}
	}

	sumFit := 0.0
	for _, ch := range pop {
		sumFit += ch.fitness - minFit + 1
	}

	pick := rand.Float64() * sumFit
	partial := 0.0
	for _, ch := range pop {
		partial += ch.fitness - minFit + 1
		if partial >= pick {
			return ch
		}
	}

	// 理论上不会运行到这个地方
	return pop[len(pop)-1]
}

// singlePointCrossover 单点交叉：交换两个染色体在随机位置之后的基因
func singlePointCrossover(ch1, ch2 *chromosome) {
	if len(ch1.genes) != len(ch2.genes) || len(ch1.genes) == 0 {
		return
	}

	point := rand.Intn(len(ch1.genes))
	for i := point; i < len(ch1.genes); i++ {
		ch1.genes[i], ch2.genes[i] = ch2.genes[i], ch1.genes[i]
	}
}

// mutate 变异：每个基因的每个成员都有一定概率被替换成
// 还没有出现在这个基因里的其他候选
func (st *solveState) mutate(ch *chromosome) {
	for i := range ch.genes {
		for j := range ch.genes[i] {
			if rand.Float64() > st.opts.MutationRate {
				continue
			}

			var replacements []int64
			for _, empID := range st.candidates[i] {
				if !slices.Contains(ch.genes[i], empID) {
					replacements = append(replacements, empID)
				}
			}
			if len(replacements) > 0 {
				ch.genes[i][j] = replacements[rand.Intn(len(replacements))]
			}
		}
	}
}

// repair 把最优染色体转换成严格合法的排班集合：
// 按确定性槽位顺序重放，对每个成员重新做完整的约束评估，
// 丢弃硬性违规的成员，再用依然合法的候选补足缺口
func (st *solveState) repair(ch *chromosome) []*domain.Assignment {
	evalCtx := constraint.NewContext(st.in.Rules, st.in.Shifts, st.in.Weekly, st.in.Permanent, nil)

	var assignments []*domain.Assignment
	place := func(empID int64, slot weekSlot) bool {
		emp := st.employees[empID]
		if emp == nil {
			return false
		}
		if evalCtx.Evaluate(emp, slot.Slot).HardBlocked() {
			return false
		}
		a := &domain.Assignment{
			EmployeeID: empID,
			PositionID: slot.PositionID,
			ShiftID:    slot.ShiftID,
			WorkDate:   slot.Date,
			Status:     domain.AssignmentScheduled,
		}
		assignments = append(assignments, a)
		evalCtx.AddAssignment(a)
		return true
	}

	for i, slot := range st.slots {
		taken := int32(0)
		placed := make(map[int64]bool)

		if i < len(ch.genes) {
			for _, empID := range ch.genes[i] {
				if taken >= slot.required || placed[empID] {
					continue
				}
				if place(empID, slot) {
					placed[empID] = true
					taken++
				}
			}
		}

		// 补足缺口
		for _, empID := range st.candidates[i] {
			if taken >= slot.required {
				break
			}
			if placed[empID] {
				continue
			}
			if place(empID, slot) {
				placed[empID] = true
				taken++
			}
		}
	}

	return assignments
}
