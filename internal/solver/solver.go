// Package solver 负责生成整周的排班：对外暴露统一的策略接口，
// 内部提供优化求解（遗传算法）和快速贪心两种可互换的策略，
// 以及一个运行两种策略并给出推荐的比较器。
package solver

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/constraint"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

type Algorithm string

const (
	AlgorithmAuto      Algorithm = "auto"
	AlgorithmExact     Algorithm = "exact"
	AlgorithmHeuristic Algorithm = "heuristic"
)

type Status string

const (
	StatusSuccess Status = "success" // 所有槽位都排满
	StatusPartial Status = "partial" // 预算内没有找到完整解，返回最优的部分解
	StatusFailed  Status = "failed"  // 内部错误，没有产生任何结果
)

// GenerationError 表示生成过程中的致命错误（例如引用数据缺失），
// 此时不会产生任何部分结果
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// UnderstaffedSlot 记录一个没有排满的槽位以及缺少的人数
type UnderstaffedSlot struct {
	PositionID int64  `json:"positionID"`
	ShiftID    int64  `json:"shiftID"`
	Date       string `json:"date"`
	Missing    int32  `json:"missing"`
}

type Stats struct {
	TotalAssignments   int                `json:"totalAssignments"`
	EmployeesUsed      int                `json:"employeesUsed"`
	CoveragePercentage float64            `json:"coveragePercentage"`
	UnderstaffedSlots  []UnderstaffedSlot `json:"understaffedSlots"`
}

type Result struct {
	Algorithm   Algorithm            `json:"algorithm"`
	Status      Status               `json:"status"`
	SolveTimeMs int64                `json:"solveTimeMs"`
	Score       float64              `json:"score"`
	Stats       Stats                `json:"stats"`
	Assignments []*domain.Assignment `json:"-"`
}

// Input 是一次求解所需要的全部只读数据
type Input struct {
	Site      *domain.WorkSite
	WeekStart time.Time
	Employees []*domain.Employee
	Positions []*domain.Position
	Shifts    []*domain.Shift
	Weekly    []*domain.WeeklyConstraint
	Permanent []*domain.PermanentConstraint
	Rules     constraint.Rules
}

func (in *Input) validate() error {
	if in.Site == nil {
		return &GenerationError{Message: "缺少站点数据"}
	}
	if len(in.Positions) == 0 {
		return &GenerationError{Message: fmt.Sprintf("站点 %d 没有任何岗位", in.Site.ID)}
	}
	if len(in.Shifts) == 0 {
		return &GenerationError{Message: fmt.Sprintf("站点 %d 没有任何班次", in.Site.ID)}
	}
	for _, pos := range in.Positions {
		if pos.SiteID != in.Site.ID {
			return &GenerationError{Message: fmt.Sprintf("岗位 %d 不属于站点 %d", pos.ID, in.Site.ID)}
		}
	}
	for _, shift := range in.Shifts {
		if shift.SiteID != in.Site.ID {
			return &GenerationError{Message: fmt.Sprintf("班次 %d 不属于站点 %d", shift.ID, in.Site.ID)}
		}
		if _, err := time.Parse("15:04:05", shift.StartTime); err != nil {
			return &GenerationError{Message: fmt.Sprintf("班次 %d 的开始时间格式错误", shift.ID), Err: err}
		}
	}
	return nil
}

// activeEmployees 过滤出可以在该站点值班的在职员工
func (in *Input) activeEmployees() []*domain.Employee {
	employees := make([]*domain.Employee, 0, len(in.Employees))
	for _, emp := range in.Employees {
		if emp.IsActive && emp.WorksAt(in.Site.ID) {
			employees = append(employees, emp)
		}
	}
	return employees
}

// weekSlot 是求解期间的内部槽位表示，附带需要的人数
type weekSlot struct {
	domain.Slot
	required int32
}

// enumerateSlots 按固定的确定性顺序枚举一周的全部槽位：
// 先按日期，再按班次开始时间，最后按岗位 ID
func enumerateSlots(in *Input) []weekSlot {
	shifts := make([]*domain.Shift, len(in.Shifts))
	copy(shifts, in.Shifts)
	sort.Slice(shifts, func(i, j int) bool {
		if shifts[i].StartTime != shifts[j].StartTime {
			return shifts[i].StartTime < shifts[j].StartTime
		}
		return shifts[i].ID < shifts[j].ID
	})

	positions := make([]*domain.Position, len(in.Positions))
	copy(positions, in.Positions)
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].ID < positions[j].ID
	})

	var slots []weekSlot
	for day := 0; day < 7; day++ {
		date := in.WeekStart.AddDate(0, 0, day)
		for _, shift := range shifts {
			for _, pos := range positions {
				slots = append(slots, weekSlot{
					Slot: domain.Slot{
						PositionID: pos.ID,
						ShiftID:    shift.ID,
						Date:       date,
					},
					required: pos.NumOfEmp,
				})
			}
		}
	}
	return slots
}

// Strategy 是所有求解策略的统一接口
type Strategy interface {
	Name() Algorithm
	Solve(ctx context.Context, in *Input) (*Result, error)
}

// Options 汇集求解的可配置参数，没有任何值是写死的
type Options struct {
	Timeout        time.Duration // 优化求解的时间预算
	FairnessWeight float64
	PopulationSize int
	MaxGenerations int
	CrossoverRate  float64
	MutationRate   float64
	EliteCount     int
}

type Solver struct {
	opts Options
}

func New(opts Options) *Solver {
	return &Solver{opts: opts}
}

// Generate 按照算法提示生成一周的排班。
// auto 会先跑优化求解，只有在预算内没有得到完整解时才退回到贪心策略，
// 并返回两者中覆盖率更高的结果
func (s *Solver) Generate(ctx context.Context, in *Input, hint Algorithm) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	switch hint {
	case AlgorithmExact:
		return s.runStrategy(ctx, in, newGeneticStrategy(s.opts))
	case AlgorithmHeuristic:
		return s.runStrategy(ctx, in, newGreedyStrategy(s.opts.FairnessWeight))
	case AlgorithmAuto, "":
		exact, err := s.runStrategy(ctx, in, newGeneticStrategy(s.opts))
		if err != nil {
			return s.runStrategy(ctx, in, newGreedyStrategy(s.opts.FairnessWeight))
		}
		if exact.Status == StatusSuccess {
			return exact, nil
		}
		heuristic, err := s.runStrategy(ctx, in, newGreedyStrategy(s.opts.FairnessWeight))
		if err != nil {
			return exact, nil
		}
		if heuristic.Stats.CoveragePercentage > exact.Stats.CoveragePercentage {
			return heuristic, nil
		}
		return exact, nil
	default:
		return nil, &GenerationError{Message: fmt.Sprintf("未知的算法 %s", hint)}
	}
}

func (s *Solver) runStrategy(ctx context.Context, in *Input, strategy Strategy) (*Result, error) {
	runCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := strategy.Solve(runCtx, in)
	if err != nil {
		return nil, err
	}

	result.Algorithm = strategy.Name()
	result.SolveTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// Summary 是比较器给每个策略输出的摘要
type Summary struct {
	Status      Status  `json:"status"`
	SolveTimeMs int64   `json:"solveTimeMs"`
	Score       float64 `json:"score"`
	Stats       *Stats  `json:"stats,omitempty"`
	Error       string  `json:"error,omitempty"`
}

type Comparison struct {
	Exact       *Summary  `json:"exact"`
	Heuristic   *Summary  `json:"heuristic"`
	Recommended Algorithm `json:"recommended"`

	// 推荐算法产生的结果，供调用方直接持久化
	RecommendedResult *Result `json:"-"`
}

// Compare 运行两种策略并按照以下顺序推荐其一：
// 先比状态（成功优先），再比覆盖率，覆盖率也平手时推荐优化求解；
// 求解耗时在摘要中一并返回，供操作者自行权衡
func (s *Solver) Compare(ctx context.Context, in *Input) (*Comparison, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	exactResult, exactErr := s.runStrategy(ctx, in, newGeneticStrategy(s.opts))
	heuristicResult, heuristicErr := s.runStrategy(ctx, in, newGreedyStrategy(s.opts.FairnessWeight))

	comparison := &Comparison{
		Exact:     summarize(exactResult, exactErr),
		Heuristic: summarize(heuristicResult, heuristicErr),
	}

	switch {
	case exactErr != nil && heuristicErr != nil:
		return nil, &GenerationError{Message: "两种算法都求解失败", Err: exactErr}
	case exactErr != nil:
		comparison.Recommended = AlgorithmHeuristic
		comparison.RecommendedResult = heuristicResult
	case heuristicErr != nil:
		comparison.Recommended = AlgorithmExact
		comparison.RecommendedResult = exactResult
	case preferExact(exactResult, heuristicResult):
		comparison.Recommended = AlgorithmExact
		comparison.RecommendedResult = exactResult
	default:
		comparison.Recommended = AlgorithmHeuristic
		comparison.RecommendedResult = heuristicResult
	}

	return comparison, nil
}

func summarize(result *Result, err error) *Summary {
	if err != nil {
		return &Summary{Status: StatusFailed, Error: err.Error()}
	}
	return &Summary{
		Status:      result.Status,
		SolveTimeMs: result.SolveTimeMs,
		Score:       result.Score,
		Stats:       &result.Stats,
	}
}

func preferExact(exact, heuristic *Result) bool {
	if exact.Status != heuristic.Status {
		return exact.Status == StatusSuccess
	}
	return exact.Stats.CoveragePercentage >= heuristic.Stats.CoveragePercentage
}

// buildResult 根据最终的排班集合计算统计信息和得分
func buildResult(in *Input, slots []weekSlot, assignments []*domain.Assignment, fairnessWeight float64) *Result {
	assignedCount := make(map[string]int32)
	employeesUsed := make(map[int64]bool)
	for _, a := range assignments {
		key := slotKey(a.PositionID, a.ShiftID, a.WorkDate)
		assignedCount[key]++
		employeesUsed[a.EmployeeID] = true
	}

	covered := 0
	understaffed := []UnderstaffedSlot{}
	for _, slot := range slots {
		assigned := assignedCount[slotKey(slot.PositionID, slot.ShiftID, slot.Date)]
		if assigned >= slot.required {
			covered++
			continue
		}
		understaffed = append(understaffed, UnderstaffedSlot{
			PositionID: slot.PositionID,
			ShiftID:    slot.ShiftID,
			Date:       slot.Date.Format("2006-01-02"),
			Missing:    slot.required - assigned,
		})
	}

	coverage := 100.0
	if len(slots) > 0 {
		coverage = float64(covered) / float64(len(slots)) * 100
	}

	status := StatusSuccess
	if covered < len(slots) {
		status = StatusPartial
	}

	return &Result{
		Status:      status,
		Score:       scoreAssignments(assignments, len(slots), covered, fairnessWeight),
		Assignments: assignments,
		Stats: Stats{
			TotalAssignments:   len(assignments),
			EmployeesUsed:      len(employeesUsed),
			CoveragePercentage: coverage,
			UnderstaffedSlots:  understaffed,
		},
	}
}

// scoreAssignments 用统一的目标函数给结果打分，便于跨策略比较：
// 未覆盖的槽位是主要惩罚，其次是各员工排班数量的方差（乘以公平性权重）
func scoreAssignments(assignments []*domain.Assignment, totalSlots, covered int, fairnessWeight float64) float64 {
	perEmployee := make(map[int64]float64)
	for _, a := range assignments {
		perEmployee[a.EmployeeID]++
	}

	variance := 0.0
	if len(perEmployee) > 0 {
		avg := 0.0
		for _, cnt := range perEmployee {
			avg += cnt
		}
		avg /= float64(len(perEmployee))

		for _, cnt := range perEmployee {
			variance += math.Pow(cnt-avg, 2)
		}
		variance /= float64(len(perEmployee))
	}

	return -float64(totalSlots-covered) - fairnessWeight*variance
}

func slotKey(positionID, shiftID int64, date time.Time) string {
	return fmt.Sprintf("%d_%d_%s", positionID, shiftID, date.Format("2006-01-02"))
}
