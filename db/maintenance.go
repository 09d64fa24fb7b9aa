package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"playjelly/events"
	"playjelly/models"
)

const maintenanceColumns = `id,service_id,title,description,start_time,end_time,author_id,created_at`

func scanMaintenance(row rowScanner, now time.Time) (models.Maintenance, error) {
	var m models.Maintenance
	var serviceID sql.NullString
	if err := row.Scan(&m.ID, &serviceID, &m.Title, &m.Description, &m.StartTime, &m.EndTime, &m.AuthorID, &m.CreatedAt); err != nil {
		return m, err
	}
	m.ServiceID = stringPtr(serviceID)
	m.StartTime = m.StartTime.UTC()
	m.EndTime = m.EndTime.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	m.InProgress = m.ActiveAt(now)
	return m, nil
}

func (r *Repository) CreateMaintenance(ctx context.Context, m models.Maintenance) (models.Maintenance, error) {
	now := r.timestamp()
	m.ID = newID()
	m.CreatedAt = now
	m.StartTime = m.StartTime.UTC()
	m.EndTime = m.EndTime.UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO scheduled_maintenances (id,service_id,title,description,start_time,end_time,author_id,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, nullString(m.ServiceID), m.Title, m.Description, m.StartTime, m.EndTime, m.AuthorID, now)
	if err != nil {
		return m, err
	}
	m.InProgress = m.ActiveAt(now)
	r.events.Publish("scheduled_maintenances", events.OpInsert, m.ID)
	return m, nil
}

func (r *Repository) GetMaintenance(ctx context.Context, id string) (models.Maintenance, error) {
	m, err := scanMaintenance(r.db.QueryRowContext(ctx, `SELECT `+maintenanceColumns+` FROM scheduled_maintenances WHERE id = $1`, id), r.now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	return m, err
}

// ListMaintenances returns windows ordered by start time. upcomingOnly keeps
// windows whose end is still in the future, including ones in progress.
func (r *Repository) ListMaintenances(ctx context.Context, upcomingOnly bool) ([]models.Maintenance, error) {
	now := r.now().UTC()
	query := `SELECT ` + maintenanceColumns + ` FROM scheduled_maintenances`
	var args []any
	if upcomingOnly {
		query += ` WHERE end_time > $1`
		args = append(args, now)
	}
	query += ` ORDER BY start_time ASC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Maintenance{}
	for rows.Next() {
		m, err := scanMaintenance(rows, now)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteMaintenance(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_maintenances WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.events.Publish("scheduled_maintenances", events.OpDelete, id)
	return nil
}
