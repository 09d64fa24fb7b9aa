package db

import (
	"context"
	"database/sql"
	"errors"

	"playjelly/events"
	"playjelly/models"
)

const incidentColumns = `id,title,description,status,service_id,author_id,created_at,updated_at,resolved_at`

func scanIncident(row rowScanner) (models.Incident, error) {
	var inc models.Incident
	var status string
	var serviceID sql.NullString
	var resolved sql.NullTime
	if err := row.Scan(&inc.ID, &inc.Title, &inc.Description, &status, &serviceID, &inc.AuthorID, &inc.CreatedAt, &inc.UpdatedAt, &resolved); err != nil {
		return inc, err
	}
	inc.Status = models.IncidentStatus(status)
	inc.ServiceID = stringPtr(serviceID)
	inc.ResolvedAt = timePtr(resolved)
	inc.CreatedAt = inc.CreatedAt.UTC()
	inc.UpdatedAt = inc.UpdatedAt.UTC()
	return inc, nil
}

func (r *Repository) CreateIncident(ctx context.Context, inc models.Incident) (models.Incident, error) {
	now := r.timestamp()
	inc.ID = newID()
	if inc.Status == "" {
		inc.Status = models.IncidentInvestigating
	}
	inc.CreatedAt, inc.UpdatedAt = now, now
	var resolved any
	if inc.Status == models.IncidentResolved {
		inc.ResolvedAt = &now
		resolved = now
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO incidents (id,title,description,status,service_id,author_id,created_at,updated_at,resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		inc.ID, inc.Title, inc.Description, string(inc.Status), nullString(inc.ServiceID), inc.AuthorID, now, now, resolved)
	if err != nil {
		return inc, err
	}
	r.events.Publish("incidents", events.OpInsert, inc.ID)
	return inc, nil
}

// GetIncident loads an incident and its updates, oldest first.
func (r *Repository) GetIncident(ctx context.Context, id string) (models.Incident, error) {
	inc, err := scanIncident(r.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return inc, ErrNotFound
	}
	if err != nil {
		return inc, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id,incident_id,status,message,author_id,created_at
		FROM incident_updates WHERE incident_id = $1 ORDER BY created_at ASC`, id)
	if err != nil {
		return inc, err
	}
	defer rows.Close()
	inc.Updates = []models.IncidentUpdate{}
	for rows.Next() {
		var u models.IncidentUpdate
		var status string
		if err := rows.Scan(&u.ID, &u.IncidentID, &status, &u.Message, &u.AuthorID, &u.CreatedAt); err != nil {
			return inc, err
		}
		u.Status = models.IncidentStatus(status)
		u.CreatedAt = u.CreatedAt.UTC()
		inc.Updates = append(inc.Updates, u)
	}
	return inc, rows.Err()
}

// ListIncidents returns incidents newest first. activeOnly drops resolved ones.
func (r *Repository) ListIncidents(ctx context.Context, activeOnly bool) ([]models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if activeOnly {
		query += ` WHERE status <> 'resolved'`
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// UpdateIncident overwrites title, description, status and service. A
// resolved incident may still be edited but cannot leave resolved.
func (r *Repository) UpdateIncident(ctx context.Context, inc models.Incident) (models.Incident, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return inc, err
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM incidents WHERE id = $1`+r.lockClause(), inc.ID).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inc, ErrNotFound
		}
		return inc, err
	}
	if models.IncidentStatus(current) == models.IncidentResolved && inc.Status != models.IncidentResolved {
		return inc, ErrIncidentResolved
	}

	now := r.timestamp()
	if _, err := tx.ExecContext(ctx, `UPDATE incidents SET title=$1,description=$2,status=$3,service_id=$4,updated_at=$5,
			resolved_at = CASE WHEN $3 = 'resolved' THEN COALESCE(resolved_at, $5) ELSE NULL END
		WHERE id=$6`,
		inc.Title, inc.Description, string(inc.Status), nullString(inc.ServiceID), now, inc.ID); err != nil {
		return inc, err
	}
	if err := tx.Commit(); err != nil {
		return inc, err
	}
	r.events.Publish("incidents", events.OpUpdate, inc.ID)
	return r.GetIncident(ctx, inc.ID)
}

func (r *Repository) DeleteIncident(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.events.Publish("incidents", events.OpDelete, id)
	return nil
}

// AddIncidentUpdate appends an update and moves the incident to the
// update's status. Resolved incidents take no further updates.
func (r *Repository) AddIncidentUpdate(ctx context.Context, u models.IncidentUpdate) (models.IncidentUpdate, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return u, err
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM incidents WHERE id = $1`, u.IncidentID).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, ErrNotFound
		}
		return u, err
	}
	if models.IncidentStatus(current) == models.IncidentResolved {
		return u, ErrIncidentResolved
	}

	now := r.timestamp()
	u.ID = newID()
	u.CreatedAt = now
	if _, err := tx.ExecContext(ctx, `INSERT INTO incident_updates (id,incident_id,status,message,author_id,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.IncidentID, string(u.Status), u.Message, u.AuthorID, now); err != nil {
		return u, err
	}
	var resolved any
	if u.Status == models.IncidentResolved {
		resolved = now
	}
	if _, err := tx.ExecContext(ctx, `UPDATE incidents SET status=$1,updated_at=$2,resolved_at=$3 WHERE id=$4`,
		string(u.Status), now, resolved, u.IncidentID); err != nil {
		return u, err
	}
	if err := tx.Commit(); err != nil {
		return u, err
	}
	r.events.Publish("incident_updates", events.OpInsert, u.ID)
	r.events.Publish("incidents", events.OpUpdate, u.IncidentID)
	return u, nil
}
