package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/dropoff"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/exchange"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/logistics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/user"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/voucher"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("storage: conflict")
	// ErrInsufficient is returned when a guarded counter would go negative.
	ErrInsufficient = errors.New("storage: insufficient")
)

// UserStore persists users. Points only change through AdjustUserPoints.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	ListUsers(ctx context.Context, req pagination.Request) (pagination.Page[user.User], error)
	DeleteUser(ctx context.Context, id string) error
	// AdjustUserPoints adds delta to the balance and returns the new balance.
	AdjustUserPoints(ctx context.Context, id string, delta int64) (int64, error)
}

// PointStore persists the append-only points history.
type PointStore interface {
	CreatePointEntry(ctx context.Context, entry points.Entry) (points.Entry, error)
	ListPointEntries(ctx context.Context, userID string, filter points.Filter, req pagination.Request) (pagination.Page[points.Entry], error)
}

// LogisticStore persists logistic orders together with their items.
type LogisticStore interface {
	CreateLogisticOrder(ctx context.Context, order logistics.Order) (logistics.Order, error)
	UpdateLogisticOrder(ctx context.Context, order logistics.Order) (logistics.Order, error)
	GetLogisticOrder(ctx context.Context, id string) (logistics.Order, error)
	ListLogisticOrders(ctx context.Context, filter logistics.Filter, req pagination.Request) (pagination.Page[logistics.Order], error)
}

// DropPointStore persists drop-off points.
type DropPointStore interface {
	CreateDropPoint(ctx context.Context, dp dropoff.DropPoint) (dropoff.DropPoint, error)
	UpdateDropPoint(ctx context.Context, dp dropoff.DropPoint) (dropoff.DropPoint, error)
	GetDropPoint(ctx context.Context, id string) (dropoff.DropPoint, error)
	ListDropPoints(ctx context.Context, activeOnly bool) ([]dropoff.DropPoint, error)
	DeleteDropPoint(ctx context.Context, id string) error
}

// MissionStore persists missions and per-period user progress.
type MissionStore interface {
	CreateMission(ctx context.Context, m mission.Mission) (mission.Mission, error)
	UpdateMission(ctx context.Context, m mission.Mission) (mission.Mission, error)
	GetMission(ctx context.Context, id string) (mission.Mission, error)
	ListMissions(ctx context.Context, activeOnly bool) ([]mission.Mission, error)
	DeleteMission(ctx context.Context, id string) error
	DeactivateEndedMissions(ctx context.Context, now time.Time) (int, error)

	GetMissionProgress(ctx context.Context, userID, missionID, periodKey string) (mission.Progress, error)
	// SaveMissionProgress inserts or replaces the row keyed by user, mission and period.
	SaveMissionProgress(ctx context.Context, p mission.Progress) (mission.Progress, error)
}

// VoucherStore persists the voucher catalog and claimed user vouchers.
type VoucherStore interface {
	CreateVoucher(ctx context.Context, v voucher.Voucher) (voucher.Voucher, error)
	UpdateVoucher(ctx context.Context, v voucher.Voucher) (voucher.Voucher, error)
	GetVoucher(ctx context.Context, id string) (voucher.Voucher, error)
	ListVouchers(ctx context.Context, filter voucher.Filter, req pagination.Request) (pagination.Page[voucher.Voucher], error)
	DeleteVoucher(ctx context.Context, id string) error
	AdjustVoucherStock(ctx context.Context, id string, delta int) (int, error)

	CreateUserVoucher(ctx context.Context, uv voucher.UserVoucher) (voucher.UserVoucher, error)
	UpdateUserVoucher(ctx context.Context, uv voucher.UserVoucher) (voucher.UserVoucher, error)
	GetUserVoucher(ctx context.Context, id string) (voucher.UserVoucher, error)
	ListUserVouchers(ctx context.Context, userID string, filter voucher.UserFilter, req pagination.Request) (pagination.Page[voucher.UserVoucher], error)
	ExpireUserVouchers(ctx context.Context, now time.Time) (int, error)
}

// ExchangeStore persists exchange items and transactions.
type ExchangeStore interface {
	CreateExchangeItem(ctx context.Context, item exchange.Item) (exchange.Item, error)
	UpdateExchangeItem(ctx context.Context, item exchange.Item) (exchange.Item, error)
	GetExchangeItem(ctx context.Context, id string) (exchange.Item, error)
	ListExchangeItems(ctx context.Context, activeOnly bool, req pagination.Request) (pagination.Page[exchange.Item], error)
	DeleteExchangeItem(ctx context.Context, id string) error
	AdjustExchangeStock(ctx context.Context, id string, delta int) (int, error)

	CreateExchangeTransaction(ctx context.Context, tx exchange.Transaction) (exchange.Transaction, error)
	UpdateExchangeTransaction(ctx context.Context, tx exchange.Transaction) (exchange.Transaction, error)
	GetExchangeTransaction(ctx context.Context, id string) (exchange.Transaction, error)
	ListExchangeTransactions(ctx context.Context, filter exchange.Filter, req pagination.Request) (pagination.Page[exchange.Transaction], error)
	ListPendingExchangesBefore(ctx context.Context, before time.Time) ([]exchange.Transaction, error)
}

// Tx is the full set of stores available inside a transaction.
type Tx interface {
	UserStore
	PointStore
	LogisticStore
	DropPointStore
	MissionStore
	VoucherStore
	ExchangeStore
}

// Transactor runs fn atomically. Writes made through tx are committed when fn
// returns nil and discarded when it returns an error or panics.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store is a backend usable both directly and transactionally.
type Store interface {
	Tx
	Transactor
}
