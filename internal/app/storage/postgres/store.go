package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

// Open connects to dsn and applies pool settings.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
	return db, nil
}

// WithinTx runs fn inside a database transaction. Calls made while already
// inside a transaction join it.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return s.withTx(ctx, func(st *Store) error { return fn(ctx, st) })
}

func (s *Store) withTx(ctx context.Context, fn func(st *Store) error) (err error) {
	if s.inTx() {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) inTx() bool {
	_, ok := s.q.(*sqlx.Tx)
	return ok
}

// forUpdate locks selected rows when running inside a transaction.
func (s *Store) forUpdate() string {
	if s.inTx() {
		return " FOR UPDATE"
	}
	return ""
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return err
}

func requireRow(res sql.Result, kind, id string) error {
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

// conflict maps unique (23505) and foreign key (23503) violations onto
// storage.ErrConflict.
func conflict(err error, what string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == "23505" || pqErr.Code == "23503") {
		return fmt.Errorf("%s: %w", what, storage.ErrConflict)
	}
	return err
}

// guardedAdjust runs a conditional counter update and tells a missing row
// apart from a rejected decrement.
func (s *Store) guardedAdjust(ctx context.Context, update, table, kind, id string, delta int64) (int64, error) {
	var value int64
	err := sqlx.GetContext(ctx, s.q, &value, update, id, delta, now())
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	var exists bool
	if err := sqlx.GetContext(ctx, s.q, &exists, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return 0, fmt.Errorf("%s %s: %w", kind, id, storage.ErrInsufficient)
}

// keyset assembles a newest-first page query. where clauses use ? placeholders.
type keyset struct {
	base    string
	orderBy string
	where   []string
	args    []interface{}
}

func (k *keyset) add(clause string, args ...interface{}) {
	k.where = append(k.where, clause)
	k.args = append(k.args, args...)
}

func selectPage[T any](ctx context.Context, q sqlx.ExtContext, k keyset, req pagination.Request, key func(T) pagination.Cursor) (pagination.Page[T], error) {
	limit, cursor, err := pagination.Normalize(req)
	if err != nil {
		return pagination.Page[T]{}, err
	}
	orderBy := k.orderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	if !cursor.IsZero() {
		k.add(fmt.Sprintf(`(%s, id COLLATE "C") < (?, ?)`, orderBy), cursor.CreatedAt, cursor.ID)
	}

	query := k.base
	if len(k.where) > 0 {
		query += " WHERE " + strings.Join(k.where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY %s DESC, id COLLATE "C" DESC LIMIT ?`, orderBy)
	args := append(k.args, limit+1)

	var rows []T
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return pagination.Page[T]{}, err
	}
	return pagination.Build(rows, limit, key), nil
}
