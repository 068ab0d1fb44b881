package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

// ReplaceWeeklyConstraints 覆盖一个员工在某一周内的当周约束：
// 先把原先的记录删除再插入
func (r *Repository) ReplaceWeeklyConstraints(employeeID int64, weekStart time.Time, constraints []*domain.WeeklyConstraint) error {
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
		DELETE FROM weekly_constraints
		WHERE employee_id = $1 AND date >= $2 AND date < $3
	`
	weekEnd := weekStart.AddDate(0, 0, 7)
	if _, err := tx.ExecContext(ctx, query, employeeID, weekStart, weekEnd); err != nil {
		return err
	}

	for _, wc := range constraints {
		query := `
			INSERT INTO weekly_constraints (employee_id, date, shift_id, status, submitted)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, version
		`
		args := []any{employeeID, wc.Date, wc.ShiftID, wc.Status, wc.Submitted}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&wc.ID, &wc.CreatedAt, &wc.Version); err != nil {
			return err
		}
		wc.EmployeeID = employeeID
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// GetWeeklyConstraintsByWeek 返回某一周内全部员工已提交的当周约束
func (r *Repository) GetWeeklyConstraintsByWeek(weekStart time.Time) ([]*domain.WeeklyConstraint, error) {
	query := `
		SELECT id, employee_id, date, shift_id, status, submitted, created_at, version
		FROM weekly_constraints
		WHERE date >= $1 AND date < $2 AND submitted = true
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	weekEnd := weekStart.AddDate(0, 0, 7)
	rows, err := r.dbpool.QueryContext(ctx, query, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	constraints := make([]*domain.WeeklyConstraint, 0)
	for rows.Next() {
		wc := &domain.WeeklyConstraint{}
		dst := []any{&wc.ID, &wc.EmployeeID, &wc.Date, &wc.ShiftID, &wc.Status, &wc.Submitted, &wc.CreatedAt, &wc.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		constraints = append(constraints, wc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return constraints, nil
}

func (r *Repository) GetWeeklyConstraintsByEmployee(employeeID int64, weekStart time.Time) ([]*domain.WeeklyConstraint, error) {
	query := `
		SELECT id, date, shift_id, status, submitted, created_at, version
		FROM weekly_constraints
		WHERE employee_id = $1 AND date >= $2 AND date < $3
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	weekEnd := weekStart.AddDate(0, 0, 7)
	rows, err := r.dbpool.QueryContext(ctx, query, employeeID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	constraints := make([]*domain.WeeklyConstraint, 0)
	for rows.Next() {
		wc := &domain.WeeklyConstraint{
			EmployeeID: employeeID,
		}
		dst := []any{&wc.ID, &wc.Date, &wc.ShiftID, &wc.Status, &wc.Submitted, &wc.CreatedAt, &wc.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		constraints = append(constraints, wc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return constraints, nil
}

func (r *Repository) GetAllPermanentConstraints() ([]*domain.PermanentConstraint, error) {
	query := `
		SELECT id, employee_id, weekday, shift_type, type, is_active, created_at, version
		FROM permanent_constraints
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	constraints := make([]*domain.PermanentConstraint, 0)
	for rows.Next() {
		pc := &domain.PermanentConstraint{}
		dst := []any{&pc.ID, &pc.EmployeeID, &pc.Weekday, &pc.ShiftType, &pc.Type, &pc.IsActive, &pc.CreatedAt, &pc.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		constraints = append(constraints, pc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return constraints, nil
}

func (r *Repository) GetPermanentConstraintsByEmployee(employeeID int64) ([]*domain.PermanentConstraint, error) {
	query := `
		SELECT id, weekday, shift_type, type, is_active, created_at, version
		FROM permanent_constraints WHERE employee_id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	constraints := make([]*domain.PermanentConstraint, 0)
	for rows.Next() {
		pc := &domain.PermanentConstraint{
			EmployeeID: employeeID,
		}
		dst := []any{&pc.ID, &pc.Weekday, &pc.ShiftType, &pc.Type, &pc.IsActive, &pc.CreatedAt, &pc.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		constraints = append(constraints, pc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return constraints, nil
}

func (r *Repository) GetPermanentConstraintByID(id int64) (*domain.PermanentConstraint, error) {
	query := `
		SELECT employee_id, weekday, shift_type, type, is_active, created_at, version
		FROM permanent_constraints WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	pc := &domain.PermanentConstraint{
		ID: id,
	}

	dst := []any{&pc.EmployeeID, &pc.Weekday, &pc.ShiftType, &pc.Type, &pc.IsActive, &pc.CreatedAt, &pc.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return pc, nil
}

func (r *Repository) CreatePermanentConstraint(pc *domain.PermanentConstraint) error {
	query := `
		INSERT INTO permanent_constraints (employee_id, weekday, shift_type, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{pc.EmployeeID, pc.Weekday, pc.ShiftType, pc.Type}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&pc.ID, &pc.IsActive, &pc.CreatedAt, &pc.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) UpdatePermanentConstraint(pc *domain.PermanentConstraint) error {
	query := `
		UPDATE permanent_constraints
		SET
			weekday = $1,
			shift_type = $2,
			type = $3,
			is_active = $4,
			version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING employee_id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{pc.Weekday, pc.ShiftType, pc.Type, pc.IsActive, pc.ID, pc.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&pc.EmployeeID, &pc.CreatedAt, &pc.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeletePermanentConstraint(id int64) error {
	query := `
		DELETE FROM permanent_constraints WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, id); err != nil {
		return err
	}

	return nil
}
