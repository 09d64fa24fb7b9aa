package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"playjelly/events"
	"playjelly/models"
)

// InsertResult persists a probe outcome. Results are never updated. It
// returns ErrInMaintenance and writes nothing when the service has entered
// maintenance since it was listed.
func (r *Repository) InsertResult(ctx context.Context, res models.HealthCheckResult) (models.HealthCheckResult, error) {
	res.ID = newID()
	if res.CheckedAt.IsZero() {
		res.CheckedAt = r.timestamp()
	}
	res.CheckedAt = res.CheckedAt.UTC()
	var reason any
	if res.FailureReason != "" {
		reason = string(res.FailureReason)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM services WHERE id = $1`+r.lockClause(), res.ServiceID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return res, ErrNotFound
		}
		return res, err
	}
	if models.ServiceStatus(status) == models.StatusMaintenance {
		return res, ErrInMaintenance
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO health_check_results (id,service_id,status,response_time_ms,status_code,failure_reason,checked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		res.ID, res.ServiceID, string(res.Status), nullInt64(res.ResponseTimeMs), nullInt(res.StatusCode), reason, res.CheckedAt); err != nil {
		return res, err
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	r.events.Publish("health_check_results", events.OpInsert, res.ID)
	return res, nil
}

func scanResult(row rowScanner) (models.HealthCheckResult, error) {
	var res models.HealthCheckResult
	var status string
	var ms, code sql.NullInt64
	var reason sql.NullString
	if err := row.Scan(&res.ID, &res.ServiceID, &status, &ms, &code, &reason, &res.CheckedAt); err != nil {
		return res, err
	}
	res.Status = models.CheckStatus(status)
	res.ResponseTimeMs = int64Ptr(ms)
	res.StatusCode = intPtr(code)
	res.FailureReason = models.FailureReason(reason.String)
	res.CheckedAt = res.CheckedAt.UTC()
	return res, nil
}

func (r *Repository) ListResults(ctx context.Context, serviceID string, limit int) ([]models.HealthCheckResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id,service_id,status,response_time_ms,status_code,failure_reason,checked_at
		FROM health_check_results WHERE service_id = $1 ORDER BY checked_at DESC LIMIT $2`, serviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.HealthCheckResult, 0, limit)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *Repository) LatestResult(ctx context.Context, serviceID string) (models.HealthCheckResult, error) {
	res, err := scanResult(r.db.QueryRowContext(ctx, `SELECT id,service_id,status,response_time_ms,status_code,failure_reason,checked_at
		FROM health_check_results WHERE service_id = $1 ORDER BY checked_at DESC LIMIT 1`, serviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return res, ErrNotFound
	}
	return res, err
}

func (r *Repository) CountResults(ctx context.Context, serviceID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM health_check_results WHERE service_id = $1`, serviceID).Scan(&n)
	return n, err
}

func (r *Repository) DeleteResultsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM health_check_results WHERE checked_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err == nil && n > 0 {
		r.events.Publish("health_check_results", events.OpDelete, "")
	}
	return n, err
}
