package exchange

import (
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

// Item is a reward that can be exchanged for points.
type Item struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	PointsCost  int64     `json:"points_cost" db:"points_cost"`
	Stock       int       `json:"stock" db:"stock"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Status tracks an exchange transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// Line is one item within an exchange. PointsEach is snapshotted at creation.
type Line struct {
	TransactionID string `json:"-" db:"transaction_id"`
	ItemID        string `json:"item_id" db:"item_id"`
	Name          string `json:"name" db:"name"`
	Quantity      int    `json:"quantity" db:"quantity"`
	PointsEach    int64  `json:"points_each" db:"points_each"`
}

// Transaction is a multi-step points-for-items exchange.
type Transaction struct {
	ID            string     `json:"id" db:"id"`
	UserID        string     `json:"user_id" db:"user_id"`
	Status        Status     `json:"status" db:"status"`
	Lines         []Line     `json:"lines" db:"-"`
	Subtotal      int64      `json:"subtotal" db:"subtotal"`
	Discount      int64      `json:"discount" db:"discount"`
	TotalPoints   int64      `json:"total_points" db:"total_points"`
	UserVoucherID string     `json:"user_voucher_id,omitempty" db:"user_voucher_id"`
	RejectReason  string     `json:"reject_reason,omitempty" db:"reject_reason"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Filter narrows a transaction listing.
type Filter struct {
	UserID string
	Status Status
}

// PageKey returns the keyset position used for newest-first listings.
func (i Item) PageKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: i.CreatedAt, ID: i.ID}
}

// PageKey returns the keyset position used for newest-first listings.
func (t Transaction) PageKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
}
