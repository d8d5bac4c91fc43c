package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/user"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

const userColumns = `id, name, email, phone, role, points, created_at, updated_at`

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	ts := now()
	u.CreatedAt = ts
	u.UpdatedAt = ts

	_, err := sqlx.NamedExecContext(ctx, s.q, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :email, :phone, :role, :points, :created_at, :updated_at)
	`, u)
	if err != nil {
		return user.User{}, conflict(err, "user "+u.ID)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	err := sqlx.GetContext(ctx, s.q, &u, `
		UPDATE users
		SET name = $2, email = $3, phone = $4, role = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+userColumns,
		u.ID, u.Name, u.Email, u.Phone, u.Role, now())
	if err != nil {
		return user.User{}, conflict(notFound(err, "user", u.ID), "email "+u.Email)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	if err := sqlx.GetContext(ctx, s.q, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return user.User{}, notFound(err, "user", id)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, req pagination.Request) (pagination.Page[user.User], error) {
	return selectPage(ctx, s.q, keyset{base: `SELECT ` + userColumns + ` FROM users`}, req, user.User.PageKey)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "user", id)
}

func (s *Store) AdjustUserPoints(ctx context.Context, id string, delta int64) (int64, error) {
	return s.guardedAdjust(ctx, `
		UPDATE users
		SET points = points + $2, updated_at = $3
		WHERE id = $1 AND points + $2 >= 0
		RETURNING points
	`, "users", "user", id, delta)
}

// --- PointStore --------------------------------------------------------------

const entryColumns = `id, user_id, type, source, amount, balance_after, reference_id, description, created_at`

func (s *Store) CreatePointEntry(ctx context.Context, entry points.Entry) (points.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	_, err := sqlx.NamedExecContext(ctx, s.q, `
		INSERT INTO point_entries (`+entryColumns+`)
		VALUES (:id, :user_id, :type, :source, :amount, :balance_after, :reference_id, :description, :created_at)
	`, entry)
	if err != nil {
		return points.Entry{}, err
	}
	return entry, nil
}

func (s *Store) ListPointEntries(ctx context.Context, userID string, filter points.Filter, req pagination.Request) (pagination.Page[points.Entry], error) {
	k := keyset{base: `SELECT ` + entryColumns + ` FROM point_entries`}
	k.add("user_id = ?", userID)
	if filter.Type != "" {
		k.add("type = ?", filter.Type)
	}
	return selectPage(ctx, s.q, k, req, points.Entry.PageKey)
}
