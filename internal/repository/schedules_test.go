package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

func TestApplyAssignmentChangesBumpsScheduleVersion(t *testing.T) {
	// 手动编辑的写入事务必须同时推进排班表自身的版本号，
	// 轮询方靠 version / updated_at 感知变化
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := &config.Config{}
	cfg.Database.TransactionTimeout = 5
	r := NewRepository(cfg, db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM assignments").
		WithArgs(int64(9), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO assignments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "version"}).
			AddRow(int64(1000), time.Now(), int32(1)))
	mock.ExpectExec("UPDATE schedules SET updated_at = now").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	adds := []*domain.Assignment{{
		EmployeeID: 7,
		PositionID: 10,
		ShiftID:    1,
		WorkDate:   time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		Status:     domain.AssignmentScheduled,
	}}

	err = r.ApplyAssignmentChanges(context.Background(), 1, adds, []int64{9})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, int64(1000), adds[0].ID)
}
