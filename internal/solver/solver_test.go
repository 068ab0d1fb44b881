package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/constraint"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

func int64Ptr(v int64) *int64 { return &v }

func testOptions() Options {
	return Options{
		Timeout:        5 * time.Second,
		FairnessWeight: 0.5,
		PopulationSize: 30,
		MaxGenerations: 40,
		CrossoverRate:  0.8,
		MutationRate:   0.1,
		EliteCount:     3,
	}
}

func weekStart() time.Time {
	// 2024-01-07 是周日
	return time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
}

// testInput 构造一个小而完整的求解输入：
// 一个站点、一个需要 2 人的岗位、早晚两个班次、6 名员工
func testInput() *Input {
	return &Input{
		Site:      &domain.WorkSite{ID: 1, Name: "东校区服务台", IsActive: true},
		WeekStart: weekStart(),
		Positions: []*domain.Position{
			{ID: 10, SiteID: 1, Name: "前台", NumOfEmp: 2},
		},
		Shifts: []*domain.Shift{
			{ID: 1, SiteID: 1, Name: "早班", StartTime: "08:00:00", DurationHours: 8},
			{ID: 2, SiteID: 1, Name: "晚班", StartTime: "16:00:00", DurationHours: 8},
		},
		Employees: []*domain.Employee{
			{ID: 1, FullName: "张伟", PositionID: int64Ptr(10), SiteID: int64Ptr(1), IsActive: true},
			{ID: 2, FullName: "李敏", PositionID: int64Ptr(10), SiteID: int64Ptr(1), IsActive: true},
			{ID: 3, FullName: "王芳", PositionID: int64Ptr(10), SiteID: int64Ptr(1), IsActive: true},
			{ID: 4, FullName: "刘洋", PositionID: int64Ptr(10), SiteID: int64Ptr(1), IsActive: true},
			{ID: 5, FullName: "陈静", PositionID: int64Ptr(10), SiteID: int64Ptr(1), IsActive: true},
			{ID: 6, FullName: "杨磊", PositionID: int64Ptr(10), IsActive: true},
		},
		Rules: constraint.Rules{MinRestHours: 8, MaxConsecutiveDays: 6},
	}
}

// assertNoHardViolations 校验结果不存在重叠班次，也没有违反当周不可值班约束
func assertNoHardViolations(t *testing.T, in *Input, assignments []*domain.Assignment) {
	t.Helper()

	shiftByID := make(map[int64]*domain.Shift)
	for _, shift := range in.Shifts {
		shiftByID[shift.ID] = shift
	}

	byEmployee := make(map[int64][]*domain.Assignment)
	for _, a := range assignments {
		byEmployee[a.EmployeeID] = append(byEmployee[a.EmployeeID], a)
	}

	for empID, list := range byEmployee {
		for i := 0; i < len(list); i++ {
			si, ei := shiftByID[list[i].ShiftID].Interval(list[i].WorkDate)
			for j := i + 1; j < len(list); j++ {
				sj, ej := shiftByID[list[j].ShiftID].Interval(list[j].WorkDate)
				require.False(t, si.Before(ej) && sj.Before(ei),
					"员工 %d 存在重叠班次", empID)
			}
		}
	}

	for _, a := range assignments {
		for _, wc := range in.Weekly {
			if wc.EmployeeID != a.EmployeeID || wc.Status != domain.ConstraintCannotWork {
				continue
			}
			if !wc.Date.Equal(a.WorkDate) {
				continue
			}
			if wc.ShiftID == nil || *wc.ShiftID == a.ShiftID {
				require.Failf(t, "违反当周约束", "员工 %d 在 %s 被排班", a.EmployeeID, a.WorkDate.Format("2006-01-02"))
			}
		}
	}
}

func TestHeuristicFullCoverage(t *testing.T) {
	in := testInput()
	s := New(testOptions())

	result, err := s.Generate(context.Background(), in, AlgorithmHeuristic)
	require.NoError(t, err)
	require.Equal(t, AlgorithmHeuristic, result.Algorithm)
	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, 100.0, result.Stats.CoveragePercentage)
	require.Empty(t, result.Stats.UnderstaffedSlots)
	// 7 天 × 2 班次 × 2 人
	require.Equal(t, 28, result.Stats.TotalAssignments)

	assertNoHardViolations(t, in, result.Assignments)
}

func TestHeuristicPrefersWeeklyPreferCandidate(t *testing.T) {
	in := testInput()
	// 员工 5 当周倾向周日早班（岗位需要 2 人，应该第一个被选中）
	in.Weekly = []*domain.WeeklyConstraint{
		{ID: 1, EmployeeID: 5, Date: weekStart(), ShiftID: int64Ptr(1), Status: domain.ConstraintPreferWork},
	}
	s := New(testOptions())

	result, err := s.Generate(context.Background(), in, AlgorithmHeuristic)
	require.NoError(t, err)

	var sundayMorning []int64
	for _, a := range result.Assignments {
		if a.WorkDate.Equal(weekStart()) && a.ShiftID == 1 {
			sundayMorning = append(sundayMorning, a.EmployeeID)
		}
	}
	require.Len(t, sundayMorning, 2)
	require.Contains(t, sundayMorning, int64(5))
}

func TestHeuristicDeterministic(t *testing.T) {
	in := testInput()
	s := New(testOptions())

	first, err := s.Generate(context.Background(), in, AlgorithmHeuristic)
	require.NoError(t, err)
	second, err := s.Generate(context.Background(), in, AlgorithmHeuristic)
	require.NoError(t, err)

	require.Equal(t, len(first.Assignments), len(second.Assignments))
	for i := range first.Assignments {
		require.Equal(t, first.Assignments[i].EmployeeID, second.Assignments[i].EmployeeID)
		require.Equal(t, first.Assignments[i].ShiftID, second.Assignments[i].ShiftID)
		require.True(t, first.Assignments[i].WorkDate.Equal(second.Assignments[i].WorkDate))
	}
}

func TestHeuristicNeverUsesHardBlocked(t *testing.T) {
	in := testInput()
	// 员工 1、2 整周都不可值班，只剩 4 个人可用
	in.Weekly = []*domain.WeeklyConstraint{}
	for day := 0; day < 7; day++ {
		for _, empID := range []int64{1, 2} {
			in.Weekly = append(in.Weekly, &domain.WeeklyConstraint{
				EmployeeID: empID,
				Date:       weekStart().AddDate(0, 0, day),
				Status:     domain.ConstraintCannotWork,
			})
		}
	}
	s := New(testOptions())

	result, err := s.Generate(context.Background(), in, AlgorithmHeuristic)
	require.NoError(t, err)

	for _, a := range result.Assignments {
		require.NotContains(t, []int64{1, 2}, a.EmployeeID)
	}
	assertNoHardViolations(t, in, result.Assignments)
}

func TestExactHonorsHardConstraints(t *testing.T) {
	in := testInput()
	in.Weekly = []*domain.WeeklyConstraint{
		// 员工 3 周一全天不可值班
		{ID: 1, EmployeeID: 3, Date: weekStart().AddDate(0, 0, 1), Status: domain.ConstraintCannotWork},
	}
	s := New(testOptions())

	result, err := s.Generate(context.Background(), in, AlgorithmExact)
	require.NoError(t, err)
	require.Equal(t, AlgorithmExact, result.Algorithm)

	assertNoHardViolations(t, in, result.Assignments)
	for _, a := range result.Assignments {
		if a.EmployeeID == 3 {
			require.False(t, a.WorkDate.Equal(weekStart().AddDate(0, 0, 1)), "员工 3 周一不应被排班")
		}
	}
}

func TestExactReportsPartialWhenUnderstaffed(t *testing.T) {
	in := testInput()
	// 只留一名员工，岗位需要 2 人，必然是部分解
	in.Employees = in.Employees[:1]
	s := New(testOptions())

	result, err := s.Generate(context.Background(), in, AlgorithmExact)
	require.NoError(t, err)
	require.Equal(t, StatusPartial, result.Status)
	require.NotEmpty(t, result.Stats.UnderstaffedSlots)
	require.Less(t, result.Stats.CoveragePercentage, 100.0)
	assertNoHardViolations(t, in, result.Assignments)
}

func TestExactCancellationReturnsPartialResult(t *testing.T) {
	in := testInput()
	opts := testOptions()
	opts.MaxGenerations = 1000000
	opts.Timeout = 50 * time.Millisecond
	s := New(opts)

	start := time.Now()
	result, err := s.Generate(context.Background(), in, AlgorithmExact)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Less(t, time.Since(start), 5*time.Second)
	assertNoHardViolations(t, in, result.Assignments)
}

func TestGenerateValidatesInput(t *testing.T) {
	s := New(testOptions())

	in := testInput()
	in.Positions = nil
	_, err := s.Generate(context.Background(), in, AlgorithmHeuristic)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)

	in = testInput()
	in.Shifts[0].SiteID = 99
	_, err = s.Generate(context.Background(), in, AlgorithmHeuristic)
	require.ErrorAs(t, err, &genErr)

	_, err = s.Generate(context.Background(), testInput(), Algorithm("simulated-annealing"))
	require.ErrorAs(t, err, &genErr)
}

func TestAutoFallsBackToHigherCoverage(t *testing.T) {
	in := testInput()
	s := New(testOptions())

	result, err := s.Generate(context.Background(), in, AlgorithmAuto)
	require.NoError(t, err)
	require.Contains(t, []Algorithm{AlgorithmExact, AlgorithmHeuristic}, result.Algorithm)
	assertNoHardViolations(t, in, result.Assignments)
}

func TestCompareRecommendsByCoverage(t *testing.T) {
	in := testInput()
	s := New(testOptions())

	comparison, err := s.Compare(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, comparison.Exact)
	require.NotNil(t, comparison.Heuristic)
	require.NotNil(t, comparison.RecommendedResult)

	exactCov := comparison.Exact.Stats.CoveragePercentage
	heuristicCov := comparison.Heuristic.Stats.CoveragePercentage
	switch {
	case exactCov > heuristicCov:
		require.Equal(t, AlgorithmExact, comparison.Recommended)
	case heuristicCov > exactCov:
		require.Equal(t, AlgorithmHeuristic, comparison.Recommended)
	default:
		// 覆盖率平手时推荐优化求解
		require.Equal(t, AlgorithmExact, comparison.Recommended)
	}
}

func TestFlexibleEmployeeIncluded(t *testing.T) {
	in := testInput()
	// 只保留没有固定站点的员工 6
	in.Employees = []*domain.Employee{in.Employees[5]}
	s := New(testOptions())

	result, err := s.Generate(context.Background(), in, AlgorithmHeuristic)
	require.NoError(t, err)
	require.Equal(t, 1, result.Stats.EmployeesUsed)
}
