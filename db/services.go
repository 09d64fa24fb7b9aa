package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"playjelly/events"
	"playjelly/models"
)

const serviceColumns = `id,name,description,status,url,ip_address,port,uptime_percentage,position,last_response_time_ms,last_checked_at,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (models.Service, error) {
	var s models.Service
	var url, ip sql.NullString
	var port, lastMs sql.NullInt64
	var lastChecked sql.NullTime
	var status string
	err := row.Scan(&s.ID, &s.Name, &s.Description, &status, &url, &ip, &port, &s.UptimePercentage, &s.Position, &lastMs, &lastChecked, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	s.Status = models.ServiceStatus(status)
	s.URL = stringPtr(url)
	s.IPAddress = stringPtr(ip)
	s.Port = intPtr(port)
	s.LastResponseTimeMs = int64Ptr(lastMs)
	s.LastCheckedAt = timePtr(lastChecked)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func (r *Repository) ListServices(ctx context.Context) ([]models.Service, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY position ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) GetService(ctx context.Context, id string) (models.Service, error) {
	s, err := scanService(r.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

func (r *Repository) GetServiceByName(ctx context.Context, name string) (models.Service, error) {
	s, err := scanService(r.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE name = $1`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

func (r *Repository) CreateService(ctx context.Context, s models.Service) (models.Service, error) {
	now := r.timestamp()
	s.ID = newID()
	if s.Status == "" {
		s.Status = models.StatusOperational
	}
	s.UptimePercentage = 100
	s.CreatedAt, s.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `INSERT INTO services (id,name,description,status,url,ip_address,port,uptime_percentage,position,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		s.ID, s.Name, s.Description, string(s.Status), nullString(s.URL), nullString(s.IPAddress), nullInt(s.Port), s.UptimePercentage, s.Position, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return s, fmt.Errorf("service %q: %w", s.Name, ErrDuplicate)
		}
		return s, err
	}
	r.events.Publish("services", events.OpInsert, s.ID)
	return s, nil
}

// UpdateService overwrites the admin-editable fields of a service. Status
// is not touched; it changes only through ApplyCheck and SetServiceStatus.
func (r *Repository) UpdateService(ctx context.Context, s models.Service) (models.Service, error) {
	now := r.timestamp()
	res, err := r.db.ExecContext(ctx, `UPDATE services SET name=$1,description=$2,url=$3,ip_address=$4,port=$5,position=$6,updated_at=$7 WHERE id=$8`,
		s.Name, s.Description, nullString(s.URL), nullString(s.IPAddress), nullInt(s.Port), s.Position, now, s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return s, fmt.Errorf("service %q: %w", s.Name, ErrDuplicate)
		}
		return s, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s, ErrNotFound
	}
	r.events.Publish("services", events.OpUpdate, s.ID)
	return r.GetService(ctx, s.ID)
}

func (r *Repository) DeleteService(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.events.Publish("services", events.OpDelete, id)
	return nil
}

// SetServiceStatus is the manual override path. It returns the status the
// service had before the write.
func (r *Repository) SetServiceStatus(ctx context.Context, id string, status models.ServiceStatus) (models.ServiceStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var prev string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM services WHERE id = $1`, id).Scan(&prev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE services SET status=$1,updated_at=$2 WHERE id=$3`, string(status), r.timestamp(), id); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	r.events.Publish("services", events.OpUpdate, id)
	return models.ServiceStatus(prev), nil
}

// ApplyCheck writes the probe-derived status onto a service. A service in
// maintenance is left untouched and applied is false.
func (r *Repository) ApplyCheck(ctx context.Context, id string, status models.ServiceStatus, responseMs *int64, checkedAt time.Time) (prev models.ServiceStatus, applied bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM services WHERE id = $1`, id).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, ErrNotFound
		}
		return "", false, err
	}
	prev = models.ServiceStatus(current)
	if prev == models.StatusMaintenance {
		return prev, false, nil
	}
	_, err = tx.ExecContext(ctx, `UPDATE services SET status=$1,last_response_time_ms=$2,last_checked_at=$3,updated_at=$4 WHERE id=$5 AND status <> 'maintenance'`,
		string(status), nullInt64(responseMs), checkedAt.UTC(), r.timestamp(), id)
	if err != nil {
		return prev, false, err
	}
	if err := tx.Commit(); err != nil {
		return prev, false, err
	}
	r.events.Publish("services", events.OpUpdate, id)
	return prev, true, nil
}

func (r *Repository) SetServiceUptime(ctx context.Context, id string, pct float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE services SET uptime_percentage=$1 WHERE id=$2`, pct, id)
	if err != nil {
		return err
	}
	r.events.Publish("services", events.OpUpdate, id)
	return nil
}
