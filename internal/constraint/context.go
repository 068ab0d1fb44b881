package constraint

import (
	"time"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

// Rules 是排班的硬性规则参数，由配置提供而不是写死在代码里
type Rules struct {
	MinRestHours       float64 // 相邻两个班次之间的最小休息小时数
	MaxConsecutiveDays int     // 最大连续工作天数
}

// Context 汇集评估一个 (员工, 槽位) 组合所需要的只读数据：
// 当周约束、固定约束、以及员工当周已有的排班（包括暂存的变更）
type Context struct {
	rules            Rules
	shifts           map[int64]*domain.Shift
	weeklyByEmp      map[int64][]*domain.WeeklyConstraint
	permanentByEmp   map[int64][]*domain.PermanentConstraint
	assignmentsByEmp map[int64][]*domain.Assignment
}

func NewContext(
	rules Rules,
	shifts []*domain.Shift,
	weekly []*domain.WeeklyConstraint,
	permanent []*domain.PermanentConstraint,
	assignments []*domain.Assignment,
) *Context {
	c := &Context{
		rules:            rules,
		shifts:           make(map[int64]*domain.Shift, len(shifts)),
		weeklyByEmp:      make(map[int64][]*domain.WeeklyConstraint),
		permanentByEmp:   make(map[int64][]*domain.PermanentConstraint),
		assignmentsByEmp: make(map[int64][]*domain.Assignment),
	}

	for _, shift := range shifts {
		c.shifts[shift.ID] = shift
	}
	for _, wc := range weekly {
		c.weeklyByEmp[wc.EmployeeID] = append(c.weeklyByEmp[wc.EmployeeID], wc)
	}
	for _, pc := range permanent {
		c.permanentByEmp[pc.EmployeeID] = append(c.permanentByEmp[pc.EmployeeID], pc)
	}
	for _, a := range assignments {
		c.assignmentsByEmp[a.EmployeeID] = append(c.assignmentsByEmp[a.EmployeeID], a)
	}

	return c
}

func (c *Context) Rules() Rules {
	return c.rules
}

func (c *Context) Shift(id int64) *domain.Shift {
	return c.shifts[id]
}

// AddAssignment 将一个排班（已提交的或暂存的）加入上下文，
// 使后续的评估能感知到它
func (c *Context) AddAssignment(a *domain.Assignment) {
	c.assignmentsByEmp[a.EmployeeID] = append(c.assignmentsByEmp[a.EmployeeID], a)
}

// RemoveAssignmentByID 将一个排班从上下文中移除，用于暂存的 remove 变更
func (c *Context) RemoveAssignmentByID(employeeID int64, assignmentID int64) {
	list := c.assignmentsByEmp[employeeID]
	for i, a := range list {
		if a.ID == assignmentID {
			c.assignmentsByEmp[employeeID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// AssignedCount 返回员工当周已有的排班数量，用于公平性排序
func (c *Context) AssignedCount(employeeID int64) int {
	return len(c.assignmentsByEmp[employeeID])
}

func (c *Context) assignmentsNear(employeeID int64, date time.Time) []*domain.Assignment {
	var near []*domain.Assignment
	for _, a := range c.assignmentsByEmp[employeeID] {
		diff := a.WorkDate.Sub(date)
		if diff >= -36*time.Hour && diff <= 36*time.Hour {
			near = append(near, a)
		}
	}
	return near
}

func (c *Context) worksOn(employeeID int64, date time.Time) bool {
	for _, a := range c.assignmentsByEmp[employeeID] {
		if sameDay(a.WorkDate, date) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
