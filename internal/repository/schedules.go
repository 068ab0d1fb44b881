package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

// CreateScheduleWithAssignments 在单个事务里插入排班表和它的全部排班
func (r *Repository) CreateScheduleWithAssignments(schedule *domain.Schedule, assignments []*domain.Assignment) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO schedules (site_id, week_start, status, algorithm, solve_time_ms, score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at, version
	`
	args := []any{schedule.SiteID, schedule.WeekStart, schedule.Status, schedule.Algorithm, schedule.SolveTimeMs, schedule.Score}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&schedule.ID, &schedule.CreatedAt, &schedule.UpdatedAt, &schedule.Version); err != nil {
		return err
	}

	for _, a := range assignments {
		query := `
			INSERT INTO assignments (schedule_id, employee_id, position_id, shift_id, work_date, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, version
		`
		args := []any{schedule.ID, a.EmployeeID, a.PositionID, a.ShiftID, a.WorkDate, a.Status}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.CreatedAt, &a.Version); err != nil {
			return err
		}
		a.ScheduleID = schedule.ID
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetScheduleByID(id int64) (*domain.Schedule, error) {
	query := `
		SELECT site_id, week_start, status, algorithm, solve_time_ms, score, created_at, updated_at, version
		FROM schedules WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	schedule := &domain.Schedule{
		ID: id,
	}

	dst := []any{&schedule.SiteID, &schedule.WeekStart, &schedule.Status, &schedule.Algorithm, &schedule.SolveTimeMs, &schedule.Score, &schedule.CreatedAt, &schedule.UpdatedAt, &schedule.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return schedule, nil
}

func (r *Repository) GetSchedulesBySite(siteID int64) ([]*domain.Schedule, error) {
	query := `
		SELECT id, week_start, status, algorithm, solve_time_ms, score, created_at, updated_at, version
		FROM schedules WHERE site_id = $1
		ORDER BY week_start DESC
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := make([]*domain.Schedule, 0)
	for rows.Next() {
		schedule := &domain.Schedule{
			SiteID: siteID,
		}
		dst := []any{&schedule.ID, &schedule.WeekStart, &schedule.Status, &schedule.Algorithm, &schedule.SolveTimeMs, &schedule.Score, &schedule.CreatedAt, &schedule.UpdatedAt, &schedule.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return schedules, nil
}

// GetPublishedScheduleBySiteAndWeek 返回某个站点某一周的已发布排班表，
// 不存在时返回 sql.ErrNoRows
func (r *Repository) GetPublishedScheduleBySiteAndWeek(siteID int64, weekStart time.Time) (*domain.Schedule, error) {
	query := `
		SELECT id, status, algorithm, solve_time_ms, score, created_at, updated_at, version
		FROM schedules
		WHERE site_id = $1 AND week_start = $2 AND status = 'published'
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	schedule := &domain.Schedule{
		SiteID:    siteID,
		WeekStart: weekStart,
	}

	dst := []any{&schedule.ID, &schedule.Status, &schedule.Algorithm, &schedule.SolveTimeMs, &schedule.Score, &schedule.CreatedAt, &schedule.UpdatedAt, &schedule.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, siteID, weekStart).Scan(dst...); err != nil {
		return nil, err
	}

	return schedule, nil
}

// UpdateScheduleStatus 更新排班表状态并推进版本号
func (r *Repository) UpdateScheduleStatus(schedule *domain.Schedule, status domain.ScheduleStatus) error {
	query := `
		UPDATE schedules
		SET
			status = $1,
			updated_at = now(),
			version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING status, updated_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{status, schedule.ID, schedule.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&schedule.Status, &schedule.UpdatedAt, &schedule.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteSchedule(id int64) error {
	query := `
		DELETE FROM schedules WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, id); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetAssignmentsBySchedule(ctx context.Context, scheduleID int64) ([]*domain.Assignment, error) {
	query := `
		SELECT id, employee_id, position_id, shift_id, work_date, status, created_at, version
		FROM assignments WHERE schedule_id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]*domain.Assignment, 0)
	for rows.Next() {
		a := &domain.Assignment{
			ScheduleID: scheduleID,
		}
		dst := []any{&a.ID, &a.EmployeeID, &a.PositionID, &a.ShiftID, &a.WorkDate, &a.Status, &a.CreatedAt, &a.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *Repository) GetAssignmentsByEmployee(employeeID int64, weekStart time.Time) ([]*domain.Assignment, error) {
	query := `
		SELECT a.id, a.schedule_id, a.position_id, a.shift_id, a.work_date, a.status, a.created_at, a.version
		FROM assignments a
		JOIN schedules s ON s.id = a.schedule_id
		WHERE a.employee_id = $1 AND s.week_start = $2 AND s.status = 'published'
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, employeeID, weekStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]*domain.Assignment, 0)
	for rows.Next() {
		a := &domain.Assignment{
			EmployeeID: employeeID,
		}
		dst := []any{&a.ID, &a.ScheduleID, &a.PositionID, &a.ShiftID, &a.WorkDate, &a.Status, &a.CreatedAt, &a.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

// ApplyAssignmentChanges 在单个事务里写入一批排班变更，
// 要么全部成功要么全部回滚
func (r *Repository) ApplyAssignmentChanges(ctx context.Context, scheduleID int64, adds []*domain.Assignment, removeIDs []int64) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, id := range removeIDs {
		query := `DELETE FROM assignments WHERE id = $1 AND schedule_id = $2`
		if _, err := tx.ExecContext(ctx, query, id, scheduleID); err != nil {
			return err
		}
	}

	for _, a := range adds {
		query := `
			INSERT INTO assignments (schedule_id, employee_id, position_id, shift_id, work_date, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, version
		`
		args := []any{scheduleID, a.EmployeeID, a.PositionID, a.ShiftID, a.WorkDate, a.Status}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.CreatedAt, &a.Version); err != nil {
			return err
		}
		a.ScheduleID = scheduleID
	}

	// 手动编辑也要推进排班表自身的版本号，轮询方靠它感知变化
	bump := `UPDATE schedules SET updated_at = now(), version = version + 1 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, scheduleID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}
