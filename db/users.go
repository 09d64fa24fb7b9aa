package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"playjelly/models"
)

func (r *Repository) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	u.ID = newID()
	u.CreatedAt = r.timestamp()
	if u.Role == "" {
		u.Role = models.RoleViewer
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id,email,password_hash,role,created_at) VALUES ($1,$2,$3,$4,$5)`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return u, fmt.Errorf("user %q: %w", u.Email, ErrDuplicate)
		}
		return u, err
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `SELECT id,email,password_hash,role,created_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}
