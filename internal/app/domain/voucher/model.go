package voucher

import (
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

// DiscountType selects how a voucher reduces an exchange total.
type DiscountType string

const (
	DiscountFixedPoints DiscountType = "fixed_points"
	DiscountPercentage  DiscountType = "percentage"
)

// Voucher is a catalog entry users claim with points.
type Voucher struct {
	ID             string       `json:"id" db:"id"`
	Code           string       `json:"code" db:"code"`
	Name           string       `json:"name" db:"name"`
	Description    string       `json:"description,omitempty" db:"description"`
	DiscountType   DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue  int64        `json:"discount_value" db:"discount_value"`
	PointsCost     int64        `json:"points_cost" db:"points_cost"`
	Stock          int          `json:"stock" db:"stock"`
	Active         bool         `json:"active" db:"active"`
	ValidFrom      *time.Time   `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil     *time.Time   `json:"valid_until,omitempty" db:"valid_until"`
	ClaimValidDays int          `json:"claim_valid_days" db:"claim_valid_days"`
	Terms          string       `json:"terms,omitempty" db:"terms"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// InWindow reports whether t falls within the voucher's validity window.
func (v Voucher) InWindow(t time.Time) bool {
	if v.ValidFrom != nil && t.Before(*v.ValidFrom) {
		return false
	}
	if v.ValidUntil != nil && !t.Before(*v.ValidUntil) {
		return false
	}
	return true
}

// UserVoucherStatus tracks a claimed voucher.
type UserVoucherStatus string

const (
	UserVoucherAvailable UserVoucherStatus = "available"
	UserVoucherUsed      UserVoucherStatus = "used"
	UserVoucherExpired   UserVoucherStatus = "expired"
)

// UserVoucher is a voucher instance owned by a user.
type UserVoucher struct {
	ID        string            `json:"id" db:"id"`
	UserID    string            `json:"user_id" db:"user_id"`
	VoucherID string            `json:"voucher_id" db:"voucher_id"`
	Code      string            `json:"code" db:"code"`
	Status    UserVoucherStatus `json:"status" db:"status"`
	ClaimedAt time.Time         `json:"claimed_at" db:"claimed_at"`
	ExpiresAt time.Time         `json:"expires_at" db:"expires_at"`
	UsedAt    *time.Time        `json:"used_at,omitempty" db:"used_at"`
	UsedRef   string            `json:"used_ref,omitempty" db:"used_ref"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// Filter narrows a voucher listing. Available keeps only active, in-stock
// vouchers whose window contains At.
type Filter struct {
	Available bool
	At        time.Time
}

// UserFilter narrows a user voucher listing.
type UserFilter struct {
	Status UserVoucherStatus
}

// PageKey returns the keyset position used for newest-first listings.
func (v Voucher) PageKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: v.CreatedAt, ID: v.ID}
}

// PageKey returns the keyset position used for newest-first listings.
func (uv UserVoucher) PageKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: uv.ClaimedAt, ID: uv.ID}
}
