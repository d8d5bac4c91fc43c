// Package exchange implements the multi-step points-for-items exchange.
// A transaction is created pending with snapshotted prices, may take a
// voucher, and only moves stock and points when confirmed.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/exchange"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/metrics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/missions"
	pointsvc "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/vouchers"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

var (
	ErrInvalidExchange   = errors.New("invalid exchange")
	ErrOutOfStock        = errors.New("exchange item out of stock")
	ErrItemUnavailable   = errors.New("exchange item is not available")
	ErrInvalidTransition = errors.New("invalid exchange status transition")
	ErrNotOwner          = errors.New("exchange belongs to another user")
)

// LineRequest asks for Quantity units of an item.
type LineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Service manages exchange items and transactions.
type Service struct {
	store    storage.Store
	ledger   *pointsvc.Service
	vouchers *vouchers.Service
	missions *missions.Service
	log      *logger.Logger
	now      func() time.Time
}

// New constructs an exchange service. missions may be nil.
func New(store storage.Store, ledger *pointsvc.Service, vs *vouchers.Service, ms *missions.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("exchange")
	}
	return &Service{store: store, ledger: ledger, vouchers: vs, missions: ms, log: log, now: time.Now}
}

// --- items -------------------------------------------------------------------

func (s *Service) CreateItem(ctx context.Context, item exchange.Item) (exchange.Item, error) {
	if err := validateItem(&item); err != nil {
		return exchange.Item{}, err
	}
	created, err := s.store.CreateExchangeItem(ctx, item)
	if err != nil {
		return exchange.Item{}, err
	}
	s.log.Infof("exchange item %s created with stock %d", created.ID, created.Stock)
	return created, nil
}

func (s *Service) UpdateItem(ctx context.Context, item exchange.Item) (exchange.Item, error) {
	if err := validateItem(&item); err != nil {
		return exchange.Item{}, err
	}
	return s.store.UpdateExchangeItem(ctx, item)
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	return s.store.DeleteExchangeItem(ctx, id)
}

func (s *Service) GetItem(ctx context.Context, id string) (exchange.Item, error) {
	return s.store.GetExchangeItem(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, activeOnly bool, req pagination.Request) (pagination.Page[exchange.Item], error) {
	return s.store.ListExchangeItems(ctx, activeOnly, req)
}

// --- transactions ------------------------------------------------------------

// Create opens a pending transaction. Duplicate items are merged and prices
// are fixed at the current catalog cost.
func (s *Service) Create(ctx context.Context, userID string, lines []LineRequest) (exchange.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return exchange.Transaction{}, fmt.Errorf("%w: user_id is required", ErrInvalidExchange)
	}
	if len(lines) == 0 {
		return exchange.Transaction{}, fmt.Errorf("%w: at least one line is required", ErrInvalidExchange)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return exchange.Transaction{}, err
	}

	var (
		order  []string
		merged = make(map[string]int, len(lines))
	)
	for _, l := range lines {
		if l.Quantity <= 0 {
			return exchange.Transaction{}, fmt.Errorf("%w: quantity for %s must be positive", ErrInvalidExchange, l.ItemID)
		}
		if _, seen := merged[l.ItemID]; !seen {
			order = append(order, l.ItemID)
		}
		merged[l.ItemID] += l.Quantity
	}

	tx := exchange.Transaction{UserID: userID, Status: exchange.StatusPending}
	for _, id := range order {
		item, err := s.store.GetExchangeItem(ctx, id)
		if err != nil {
			return exchange.Transaction{}, err
		}
		if !item.Active {
			return exchange.Transaction{}, fmt.Errorf("%w: %s", ErrItemUnavailable, item.Name)
		}
		qty := merged[id]
		if item.Stock < qty {
			return exchange.Transaction{}, fmt.Errorf("%w: %s has %d left", ErrOutOfStock, item.Name, item.Stock)
		}
		tx.Lines = append(tx.Lines, exchange.Line{ItemID: item.ID, Name: item.Name, Quantity: qty, PointsEach: item.PointsCost})
		tx.Subtotal += item.PointsCost * int64(qty)
	}
	tx.TotalPoints = tx.Subtotal

	created, err := s.store.CreateExchangeTransaction(ctx, tx)
	if err != nil {
		return exchange.Transaction{}, err
	}
	metrics.RecordExchangeTransition(string(created.Status))
	s.log.Infof("exchange %s opened by %s for %d points", created.ID, userID, created.TotalPoints)
	return created, nil
}

// ApplyVoucher attaches a claimed voucher to a pending transaction and
// recomputes its total. An empty userVoucherID removes the voucher.
func (s *Service) ApplyVoucher(ctx context.Context, userID, txID, userVoucherID string) (exchange.Transaction, error) {
	return s.ownerUpdate(ctx, userID, txID, func(ctx context.Context, tx storage.Tx, t *exchange.Transaction) error {
		if t.Status != exchange.StatusPending {
			return fmt.Errorf("%w: cannot apply a voucher to a %s exchange", ErrInvalidTransition, t.Status)
		}
		if userVoucherID == "" {
			t.UserVoucherID = ""
			t.Discount = 0
			t.TotalPoints = t.Subtotal
			return nil
		}
		uv, v, err := s.vouchers.UsableTx(ctx, tx, userVoucherID, userID)
		if err != nil {
			return err
		}
		t.UserVoucherID = uv.ID
		t.Discount = vouchers.Discount(v, t.Subtotal)
		t.TotalPoints = t.Subtotal - t.Discount
		return nil
	})
}

// Confirm completes a pending transaction. Stock, the voucher and the
// points balance change together or not at all.
func (s *Service) Confirm(ctx context.Context, userID, txID string) (exchange.Transaction, error) {
	var entry points.Entry
	t, err := s.ownerUpdate(ctx, userID, txID, func(ctx context.Context, tx storage.Tx, t *exchange.Transaction) error {
		if t.Status != exchange.StatusPending {
			return fmt.Errorf("%w: cannot confirm a %s exchange", ErrInvalidTransition, t.Status)
		}
		for _, line := range t.Lines {
			item, err := tx.GetExchangeItem(ctx, line.ItemID)
			if err != nil {
				return err
			}
			if !item.Active {
				return fmt.Errorf("%w: %s", ErrItemUnavailable, item.Name)
			}
			if _, err := tx.AdjustExchangeStock(ctx, line.ItemID, -line.Quantity); err != nil {
				if errors.Is(err, storage.ErrInsufficient) {
					return fmt.Errorf("%w: %s", ErrOutOfStock, line.Name)
				}
				return err
			}
		}
		if t.UserVoucherID != "" {
			if _, err := s.vouchers.UseTx(ctx, tx, t.UserVoucherID, userID, t.ID); err != nil {
				return err
			}
		}
		if t.TotalPoints > 0 {
			var err error
			entry, err = s.ledger.DeductTx(ctx, tx, pointsvc.DeductRequest{
				UserID:      userID,
				Amount:      t.TotalPoints,
				Source:      points.SourceExchange,
				ReferenceID: t.ID,
				Description: "exchange confirmed",
			})
			if err != nil {
				return err
			}
		}

		at := s.now().UTC()
		t.Status = exchange.StatusCompleted
		t.CompletedAt = &at
		if s.missions == nil {
			return nil
		}
		_, err := s.missions.RecordTx(ctx, tx, userID, mission.EventExchangeCompleted, 1)
		return err
	})
	if err != nil {
		return exchange.Transaction{}, err
	}
	s.ledger.Committed(entry)
	metrics.RecordExchangeTransition(string(t.Status))
	s.log.Infof("exchange %s completed for %d points", t.ID, t.TotalPoints)
	return t, nil
}

// Cancel abandons a pending transaction.
func (s *Service) Cancel(ctx context.Context, userID, txID string) (exchange.Transaction, error) {
	t, err := s.ownerUpdate(ctx, userID, txID, func(_ context.Context, _ storage.Tx, t *exchange.Transaction) error {
		if t.Status != exchange.StatusPending {
			return fmt.Errorf("%w: cannot cancel a %s exchange", ErrInvalidTransition, t.Status)
		}
		t.Status = exchange.StatusCancelled
		return nil
	})
	if err != nil {
		return exchange.Transaction{}, err
	}
	metrics.RecordExchangeTransition(string(t.Status))
	return t, nil
}

// Reject reverses a completed transaction: stock goes back on the shelf and
// the points are refunded. A used voucher stays used.
func (s *Service) Reject(ctx context.Context, txID, reason string) (exchange.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return exchange.Transaction{}, fmt.Errorf("%w: reject reason is required", ErrInvalidExchange)
	}
	var entry points.Entry
	t, err := s.update(ctx, txID, func(ctx context.Context, tx storage.Tx, t *exchange.Transaction) error {
		if t.Status != exchange.StatusCompleted {
			return fmt.Errorf("%w: cannot reject a %s exchange", ErrInvalidTransition, t.Status)
		}
		for _, line := range t.Lines {
			if _, err := tx.AdjustExchangeStock(ctx, line.ItemID, line.Quantity); err != nil {
				return err
			}
		}
		if t.TotalPoints > 0 {
			var err error
			entry, err = s.ledger.EarnTx(ctx, tx, pointsvc.EarnRequest{
				UserID:      t.UserID,
				Amount:      t.TotalPoints,
				Source:      points.SourceExchangeRefund,
				ReferenceID: t.ID,
				Description: reason,
			})
			if err != nil {
				return err
			}
		}
		t.Status = exchange.StatusRejected
		t.RejectReason = reason
		return nil
	})
	if err != nil {
		return exchange.Transaction{}, err
	}
	s.ledger.Committed(entry)
	metrics.RecordExchangeTransition(string(t.Status))
	s.log.Infof("exchange %s rejected, %d points refunded", t.ID, t.TotalPoints)
	return t, nil
}

// Get returns a transaction visible to requesterID. Admins see every one.
func (s *Service) Get(ctx context.Context, txID, requesterID string, admin bool) (exchange.Transaction, error) {
	t, err := s.store.GetExchangeTransaction(ctx, txID)
	if err != nil {
		return exchange.Transaction{}, err
	}
	if !admin && t.UserID != requesterID {
		return exchange.Transaction{}, ErrNotOwner
	}
	return t, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, req pagination.Request) (pagination.Page[exchange.Transaction], error) {
	return s.store.ListExchangeTransactions(ctx, exchange.Filter{UserID: userID}, req)
}

func (s *Service) List(ctx context.Context, status exchange.Status, req pagination.Request) (pagination.Page[exchange.Transaction], error) {
	switch status {
	case "", exchange.StatusPending, exchange.StatusCompleted, exchange.StatusCancelled, exchange.StatusRejected:
	default:
		return pagination.Page[exchange.Transaction]{}, fmt.Errorf("%w: unknown status %q", ErrInvalidExchange, status)
	}
	return s.store.ListExchangeTransactions(ctx, exchange.Filter{Status: status}, req)
}

// ExpirePending cancels pending transactions created before the cutoff.
func (s *Service) ExpirePending(ctx context.Context, before time.Time) (int, error) {
	stale, err := s.store.ListPendingExchangesBefore(ctx, before.UTC())
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, candidate := range stale {
		_, err := s.update(ctx, candidate.ID, func(_ context.Context, _ storage.Tx, t *exchange.Transaction) error {
			if t.Status != exchange.StatusPending {
				return errSkip
			}
			t.Status = exchange.StatusCancelled
			return nil
		})
		switch {
		case errors.Is(err, errSkip):
			continue
		case err != nil:
			return expired, fmt.Errorf("expire exchange %s: %w", candidate.ID, err)
		}
		metrics.RecordExchangeTransition(string(exchange.StatusCancelled))
		expired++
	}
	return expired, nil
}

var errSkip = errors.New("skip")

func (s *Service) ownerUpdate(ctx context.Context, userID, txID string, fn func(context.Context, storage.Tx, *exchange.Transaction) error) (exchange.Transaction, error) {
	return s.update(ctx, txID, func(ctx context.Context, tx storage.Tx, t *exchange.Transaction) error {
		if t.UserID != userID {
			return ErrNotOwner
		}
		return fn(ctx, tx, t)
	})
}

func (s *Service) update(ctx context.Context, txID string, fn func(context.Context, storage.Tx, *exchange.Transaction) error) (exchange.Transaction, error) {
	var t exchange.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		if t, err = tx.GetExchangeTransaction(ctx, txID); err != nil {
			return err
		}
		if err := fn(ctx, tx, &t); err != nil {
			return err
		}
		t, err = tx.UpdateExchangeTransaction(ctx, t)
		return err
	})
	if err != nil {
		return exchange.Transaction{}, err
	}
	return t, nil
}

func validateItem(item *exchange.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	switch {
	case item.Name == "":
		return fmt.Errorf("%w: item name is required", ErrInvalidExchange)
	case item.PointsCost <= 0:
		return fmt.Errorf("%w: points cost must be positive", ErrInvalidExchange)
	case item.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidExchange)
	}
	return nil
}
