package db

import (
	"context"
	"database/sql"
	"time"

	"playjelly/events"
	"playjelly/models"
)

// RecomputeUptimeDay rebuilds the rollup for the UTC day containing at from
// that day's raw results and upserts it. Running it twice is harmless. ok is
// false when the day has no results.
func (r *Repository) RecomputeUptimeDay(ctx context.Context, serviceID string, at time.Time) (rec models.UptimeRecord, ok bool, err error) {
	start := time.Date(at.UTC().Year(), at.UTC().Month(), at.UTC().Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	var total, up int
	var avg sql.NullFloat64
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'up' THEN 1 ELSE 0 END), 0),
			AVG(response_time_ms)
		FROM health_check_results
		WHERE service_id = $1 AND checked_at >= $2 AND checked_at < $3`,
		serviceID, start, end).Scan(&total, &up, &avg)
	if err != nil {
		return rec, false, err
	}
	if total == 0 {
		return rec, false, nil
	}

	rec = models.UptimeRecord{
		ServiceID:        serviceID,
		Date:             DayKey(start),
		UpChecks:         up,
		TotalChecks:      total,
		UptimePercentage: UptimePercentage(up, total),
	}
	if avg.Valid {
		v := avg.Float64
		rec.AvgResponseTimeMs = &v
	}

	var avgArg any
	if rec.AvgResponseTimeMs != nil {
		avgArg = *rec.AvgResponseTimeMs
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO uptime_history (service_id,day,up_checks,total_checks,uptime_percentage,avg_response_time_ms)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (service_id, day) DO UPDATE SET up_checks=excluded.up_checks,total_checks=excluded.total_checks,
			uptime_percentage=excluded.uptime_percentage,avg_response_time_ms=excluded.avg_response_time_ms`,
		rec.ServiceID, rec.Date, rec.UpChecks, rec.TotalChecks, rec.UptimePercentage, avgArg)
	if err != nil {
		return rec, false, err
	}
	r.events.Publish("uptime_history", events.OpUpdate, serviceID)
	return rec, true, nil
}

// UptimePercentage is the simple average of binary outcomes, 100*up/total.
func UptimePercentage(up, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(up) / float64(total)
}

func scanUptime(row rowScanner) (models.UptimeRecord, error) {
	var rec models.UptimeRecord
	var avg sql.NullFloat64
	if err := row.Scan(&rec.ServiceID, &rec.Date, &rec.UpChecks, &rec.TotalChecks, &rec.UptimePercentage, &avg); err != nil {
		return rec, err
	}
	if avg.Valid {
		v := avg.Float64
		rec.AvgResponseTimeMs = &v
	}
	return rec, nil
}

func (r *Repository) queryUptime(ctx context.Context, query string, args ...any) ([]models.UptimeRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.UptimeRecord{}
	for rows.Next() {
		rec, err := scanUptime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UptimeHistory returns a service's rollups from sinceDay onwards, oldest first.
func (r *Repository) UptimeHistory(ctx context.Context, serviceID, sinceDay string) ([]models.UptimeRecord, error) {
	return r.queryUptime(ctx, `SELECT service_id,day,up_checks,total_checks,uptime_percentage,avg_response_time_ms
		FROM uptime_history WHERE service_id = $1 AND day >= $2 ORDER BY day ASC`, serviceID, sinceDay)
}

// UptimeRatio aggregates a service's rollups from sinceDay onwards.
func (r *Repository) UptimeRatio(ctx context.Context, serviceID, sinceDay string) (pct float64, ok bool, err error) {
	var up, total int
	err = r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(up_checks),0), COALESCE(SUM(total_checks),0)
		FROM uptime_history WHERE service_id = $1 AND day >= $2`, serviceID, sinceDay).Scan(&up, &total)
	if err != nil || total == 0 {
		return 0, false, err
	}
	return UptimePercentage(up, total), true, nil
}

// UptimeBefore lists every rollup strictly older than cutoffDay.
func (r *Repository) UptimeBefore(ctx context.Context, cutoffDay string) ([]models.UptimeRecord, error) {
	return r.queryUptime(ctx, `SELECT service_id,day,up_checks,total_checks,uptime_percentage,avg_response_time_ms
		FROM uptime_history WHERE day < $1 ORDER BY day ASC, service_id ASC`, cutoffDay)
}

// DeleteUptimeRecords removes exactly the given (service_id, day) keys in one
// transaction and returns how many rows went away.
func (r *Repository) DeleteUptimeRecords(ctx context.Context, recs []models.UptimeRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `DELETE FROM uptime_history WHERE service_id = $1 AND day = $2`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var deleted int64
	for _, rec := range recs {
		res, err := stmt.ExecContext(ctx, rec.ServiceID, rec.Date)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		deleted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	r.events.Publish("uptime_history", events.OpDelete, "")
	return deleted, nil
}

func (r *Repository) CountUptimeRecords(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uptime_history`).Scan(&n)
	return n, err
}

// InsertUptimeRecord writes a rollup directly. Used by imports and tests.
func (r *Repository) InsertUptimeRecord(ctx context.Context, rec models.UptimeRecord) error {
	var avgArg any
	if rec.AvgResponseTimeMs != nil {
		avgArg = *rec.AvgResponseTimeMs
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO uptime_history (service_id,day,up_checks,total_checks,uptime_percentage,avg_response_time_ms)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ServiceID, rec.Date, rec.UpChecks, rec.TotalChecks, rec.UptimePercentage, avgArg)
	return err
}
