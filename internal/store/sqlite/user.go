package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lexcal-scheduler/internal/model"
	"lexcal-scheduler/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.Name, string(u.Role), toMillis(now), toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s", store.ErrDuplicate, u.Email)
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	var (
		role             string
		created, updated   int64
	)
	err := s.q.QueryRowContext(ctx,
		`SELECT id, email, password_hash, name, role, created_at, updated_at
		 FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &role, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = model.Role(role)
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}

func (s *Store) UsersByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, email, name, role, created_at, updated_at
		 FROM users WHERE role = ? ORDER BY name`, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var (
			u                model.User
			r                string
			created, updated int64
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &r, &created, &updated); err != nil {
			return nil, err
		}
		u.Role = model.Role(r)
		u.CreatedAt = fromMillis(created)
		u.UpdatedAt = fromMillis(updated)
		out = append(out, u)
	}
	return out, rows.Err()
}
