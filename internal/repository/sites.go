package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
)

func (r *Repository) GetAllWorkSites() ([]*domain.WorkSite, error) {
	query := `
		SELECT id, name, is_active, created_at, version FROM work_sites
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sites := make([]*domain.WorkSite, 0)
	for rows.Next() {
		site := &domain.WorkSite{}
		if err := rows.Scan(&site.ID, &site.Name, &site.IsActive, &site.CreatedAt, &site.Version); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sites, nil
}

func (r *Repository) GetWorkSiteByID(id int64) (*domain.WorkSite, error) {
	query := `
		SELECT name, is_active, created_at, version FROM work_sites WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	site := &domain.WorkSite{
		ID: id,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(&site.Name, &site.IsActive, &site.CreatedAt, &site.Version); err != nil {
		return nil, err
	}

	return site, nil
}

func (r *Repository) CreateWorkSite(site *domain.WorkSite) error {
	query := `
		INSERT INTO work_sites (name)
		VALUES ($1)
		RETURNING id, is_active, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if err := r.dbpool.QueryRowContext(ctx, query, site.Name).Scan(&site.ID, &site.IsActive, &site.CreatedAt, &site.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) UpdateWorkSite(site *domain.WorkSite) error {
	query := `
		UPDATE work_sites
		SET
			name = $1,
			is_active = $2,
			version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{site.Name, site.IsActive, site.ID, site.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&site.CreatedAt, &site.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetPositionsBySite(siteID int64) ([]*domain.Position, error) {
	query := `
		SELECT id, name, num_of_emp, created_at, version
		FROM positions WHERE site_id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		position := &domain.Position{
			SiteID: siteID,
		}
		if err := rows.Scan(&position.ID, &position.Name, &position.NumOfEmp, &position.CreatedAt, &position.Version); err != nil {
			return nil, err
		}
		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return positions, nil
}

func (r *Repository) GetPositionByID(id int64) (*domain.Position, error) {
	query := `
		SELECT site_id, name, num_of_emp, created_at, version
		FROM positions WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	position := &domain.Position{
		ID: id,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(&position.SiteID, &position.Name, &position.NumOfEmp, &position.CreatedAt, &position.Version); err != nil {
		return nil, err
	}

	return position, nil
}

func (r *Repository) CreatePosition(position *domain.Position) error {
	query := `
		INSERT INTO positions (site_id, name, num_of_emp)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if err := r.dbpool.QueryRowContext(ctx, query, position.SiteID, position.Name, position.NumOfEmp).Scan(&position.ID, &position.CreatedAt, &position.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) UpdatePosition(position *domain.Position) error {
	query := `
		UPDATE positions
		SET
			name = $1,
			num_of_emp = $2,
			version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING site_id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{position.Name, position.NumOfEmp, position.ID, position.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&position.SiteID, &position.CreatedAt, &position.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeletePosition(id int64) error {
	query := `
		DELETE FROM positions WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, id); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetShiftsBySite(siteID int64) ([]*domain.Shift, error) {
	query := `
		SELECT id, name, start_time, duration_hours, created_at, version
		FROM shifts WHERE site_id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]*domain.Shift, 0)
	for rows.Next() {
		shift := &domain.Shift{
			SiteID: siteID,
		}
		if err := rows.Scan(&shift.ID, &shift.Name, &shift.StartTime, &shift.DurationHours, &shift.CreatedAt, &shift.Version); err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return shifts, nil
}

func (r *Repository) CreateShift(shift *domain.Shift) error {
	query := `
		INSERT INTO shifts (site_id, name, start_time, duration_hours)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{shift.SiteID, shift.Name, shift.StartTime, shift.DurationHours}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&shift.ID, &shift.CreatedAt, &shift.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteShift(id int64) error {
	query := `
		DELETE FROM shifts WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, id); err != nil {
		return err
	}

	return nil
}
