package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/voucher"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

const voucherColumns = `id, code, name, description, discount_type, discount_value, points_cost, stock, active,
	valid_from, valid_until, claim_valid_days, terms, created_at, updated_at`

const userVoucherColumns = `id, user_id, voucher_id, code, status, claimed_at, expires_at, used_at, used_ref, created_at`

// --- VoucherStore ------------------------------------------------------------

func (s *Store) CreateVoucher(ctx context.Context, v voucher.Voucher) (voucher.Voucher, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	ts := now()
	v.CreatedAt = ts
	v.UpdatedAt = ts

	_, err := sqlx.NamedExecContext(ctx, s.q, `
		INSERT INTO vouchers (`+voucherColumns+`)
		VALUES (:id, :code, :name, :description, :discount_type, :discount_value, :points_cost, :stock, :active,
			:valid_from, :valid_until, :claim_valid_days, :terms, :created_at, :updated_at)
	`, v)
	if err != nil {
		return voucher.Voucher{}, conflict(err, "voucher code "+v.Code)
	}
	return v, nil
}

func (s *Store) UpdateVoucher(ctx context.Context, v voucher.Voucher) (voucher.Voucher, error) {
	err := sqlx.GetContext(ctx, s.q, &v, `
		UPDATE vouchers
		SET code = $2, name = $3, description = $4, discount_type = $5, discount_value = $6, points_cost = $7,
			stock = $8, active = $9, valid_from = $10, valid_until = $11, claim_valid_days = $12, terms = $13,
			updated_at = $14
		WHERE id = $1
		RETURNING `+voucherColumns,
		v.ID, v.Code, v.Name, v.Description, v.DiscountType, v.DiscountValue, v.PointsCost,
		v.Stock, v.Active, v.ValidFrom, v.ValidUntil, v.ClaimValidDays, v.Terms, now())
	if err != nil {
		return voucher.Voucher{}, conflict(notFound(err, "voucher", v.ID), "voucher code "+v.Code)
	}
	return v, nil
}

func (s *Store) GetVoucher(ctx context.Context, id string) (voucher.Voucher, error) {
	var v voucher.Voucher
	if err := sqlx.GetContext(ctx, s.q, &v, `SELECT `+voucherColumns+` FROM vouchers WHERE id = $1`, id); err != nil {
		return voucher.Voucher{}, notFound(err, "voucher", id)
	}
	return v, nil
}

func (s *Store) ListVouchers(ctx context.Context, filter voucher.Filter, req pagination.Request) (pagination.Page[voucher.Voucher], error) {
	k := keyset{base: `SELECT ` + voucherColumns + ` FROM vouchers`}
	if filter.Available {
		k.add("active AND stock > 0")
		k.add("(valid_from IS NULL OR valid_from <= ?)", filter.At)
		k.add("(valid_until IS NULL OR valid_until > ?)", filter.At)
	}
	return selectPage(ctx, s.q, k, req, voucher.Voucher.PageKey)
}

func (s *Store) DeleteVoucher(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM vouchers WHERE id = $1`, id)
	if err != nil {
		return conflict(err, "voucher "+id+" has been claimed")
	}
	return requireRow(res, "voucher", id)
}

func (s *Store) AdjustVoucherStock(ctx context.Context, id string, delta int) (int, error) {
	stock, err := s.guardedAdjust(ctx, `
		UPDATE vouchers
		SET stock = stock + $2, updated_at = $3
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock
	`, "vouchers", "voucher", id, int64(delta))
	return int(stock), err
}

func (s *Store) CreateUserVoucher(ctx context.Context, uv voucher.UserVoucher) (voucher.UserVoucher, error) {
	if uv.ID == "" {
		uv.ID = uuid.NewString()
	}
	uv.CreatedAt = now()
	if uv.ClaimedAt.IsZero() {
		uv.ClaimedAt = uv.CreatedAt
	}
	_, err := sqlx.NamedExecContext(ctx, s.q, `
		INSERT INTO user_vouchers (`+userVoucherColumns+`)
		VALUES (:id, :user_id, :voucher_id, :code, :status, :claimed_at, :expires_at, :used_at, :used_ref, :created_at)
	`, uv)
	if err != nil {
		return voucher.UserVoucher{}, err
	}
	return uv, nil
}

func (s *Store) UpdateUserVoucher(ctx context.Context, uv voucher.UserVoucher) (voucher.UserVoucher, error) {
	err := sqlx.GetContext(ctx, s.q, &uv, `
		UPDATE user_vouchers
		SET status = $2, expires_at = $3, used_at = $4, used_ref = $5
		WHERE id = $1
		RETURNING `+userVoucherColumns,
		uv.ID, uv.Status, uv.ExpiresAt, uv.UsedAt, uv.UsedRef)
	if err != nil {
		return voucher.UserVoucher{}, notFound(err, "user voucher", uv.ID)
	}
	return uv, nil
}

func (s *Store) GetUserVoucher(ctx context.Context, id string) (voucher.UserVoucher, error) {
	var uv voucher.UserVoucher
	if err := sqlx.GetContext(ctx, s.q, &uv, `SELECT `+userVoucherColumns+` FROM user_vouchers WHERE id = $1`+s.forUpdate(), id); err != nil {
		return voucher.UserVoucher{}, notFound(err, "user voucher", id)
	}
	return uv, nil
}

func (s *Store) ListUserVouchers(ctx context.Context, userID string, filter voucher.UserFilter, req pagination.Request) (pagination.Page[voucher.UserVoucher], error) {
	k := keyset{base: `SELECT ` + userVoucherColumns + ` FROM user_vouchers`, orderBy: "claimed_at"}
	k.add("user_id = ?", userID)
	if filter.Status != "" {
		k.add("status = ?", filter.Status)
	}
	return selectPage(ctx, s.q, k, req, voucher.UserVoucher.PageKey)
}

func (s *Store) ExpireUserVouchers(ctx context.Context, at time.Time) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE user_vouchers
		SET status = $2
		WHERE status = $3 AND expires_at <= $1
	`, at, voucher.UserVoucherExpired, voucher.UserVoucherAvailable)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
