package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

func TestCanReplaceWeeklyConstraints(t *testing.T) {
	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	submitted := []*domain.WeeklyConstraint{
		{EmployeeID: 7, Date: date, Status: domain.ConstraintPreferWork, Submitted: true},
	}
	unsubmitted := []*domain.WeeklyConstraint{
		{EmployeeID: 7, Date: date, Status: domain.ConstraintPreferWork},
	}

	// 没有提交记录时谁都可以覆盖
	require.True(t, CanReplaceWeeklyConstraints(nil, domain.RoleEmployee))
	require.True(t, CanReplaceWeeklyConstraints(unsubmitted, domain.RoleEmployee))

	// 已提交的周对普通员工冻结，排班经理和管理员可以覆盖
	require.False(t, CanReplaceWeeklyConstraints(submitted, domain.RoleEmployee))
	require.True(t, CanReplaceWeeklyConstraints(submitted, domain.RoleManager))
	require.True(t, CanReplaceWeeklyConstraints(submitted, domain.RoleAdmin))
}
