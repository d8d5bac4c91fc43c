package points

import (
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

// EntryType is the direction of a ledger movement.
type EntryType string

const (
	EntryEarn   EntryType = "earn"
	EntryDeduct EntryType = "deduct"
)

// Source names the workflow that produced a ledger entry.
type Source string

const (
	SourceLogisticOrder  Source = "logistic_order"
	SourceMission        Source = "mission"
	SourceVoucher        Source = "voucher"
	SourceExchange       Source = "exchange"
	SourceExchangeRefund Source = "exchange_refund"
	SourceAdjustment     Source = "adjustment"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceLogisticOrder, SourceMission, SourceVoucher, SourceExchange, SourceExchangeRefund, SourceAdjustment:
		return true
	}
	return false
}

// Entry is an immutable point history record. Amount is always positive;
// Type carries the sign.
type Entry struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Type         EntryType `json:"type" db:"type"`
	Source       Source    `json:"source" db:"source"`
	Amount       int64     `json:"amount" db:"amount"`
	BalanceAfter int64     `json:"balance_after" db:"balance_after"`
	ReferenceID  string    `json:"reference_id,omitempty" db:"reference_id"`
	Description  string    `json:"description,omitempty" db:"description"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Filter narrows a history listing.
type Filter struct {
	Type EntryType
}

// PageKey returns the keyset position used for newest-first listings.
func (e Entry) PageKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
}
