// Package points implements the points ledger. Every balance change is paired
// with a history entry carrying the balance right after it, and both are
// written in the same transaction.
package points

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/metrics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

var (
	// ErrInvalidAmount is returned for non-positive amounts and zero adjustments.
	ErrInvalidAmount = errors.New("points amount must be positive")
	// ErrInsufficientPoints is returned when a deduction would make the balance negative.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrInvalidRequest is returned when a ledger request is missing its user or source.
	ErrInvalidRequest = errors.New("invalid points request")
)

// EarnRequest describes a credit to a user's balance.
type EarnRequest struct {
	UserID      string
	Amount      int64
	Source      points.Source
	ReferenceID string
	Description string
}

// DeductRequest describes a debit from a user's balance.
type DeductRequest EarnRequest

// Service manages user point balances and history.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New constructs a points ledger service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("points")
	}
	return &Service{store: store, log: log}
}

// Earn credits points in its own transaction.
func (s *Service) Earn(ctx context.Context, req EarnRequest) (points.Entry, error) {
	var entry points.Entry
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		entry, err = s.EarnTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return points.Entry{}, err
	}
	s.Committed(entry)
	return entry, nil
}

// Deduct debits points in its own transaction.
func (s *Service) Deduct(ctx context.Context, req DeductRequest) (points.Entry, error) {
	var entry points.Entry
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		entry, err = s.DeductTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return points.Entry{}, err
	}
	s.Committed(entry)
	return entry, nil
}

// Adjust applies an administrative correction. Positive deltas earn and
// negative deltas deduct.
func (s *Service) Adjust(ctx context.Context, userID string, delta int64, reason string) (points.Entry, error) {
	switch {
	case delta > 0:
		return s.Earn(ctx, EarnRequest{UserID: userID, Amount: delta, Source: points.SourceAdjustment, Description: reason})
	case delta < 0:
		return s.Deduct(ctx, DeductRequest{UserID: userID, Amount: -delta, Source: points.SourceAdjustment, Description: reason})
	default:
		return points.Entry{}, fmt.Errorf("%w: adjustment delta is zero", ErrInvalidAmount)
	}
}

// EarnTx credits points inside the caller's transaction. Call Committed with
// the returned entry once the transaction commits.
func (s *Service) EarnTx(ctx context.Context, tx storage.Tx, req EarnRequest) (points.Entry, error) {
	if err := validate(req); err != nil {
		return points.Entry{}, err
	}
	balance, err := tx.AdjustUserPoints(ctx, req.UserID, req.Amount)
	if err != nil {
		return points.Entry{}, fmt.Errorf("earn points for %s: %w", req.UserID, err)
	}
	return tx.CreatePointEntry(ctx, points.Entry{
		UserID:       req.UserID,
		Type:         points.EntryEarn,
		Source:       req.Source,
		Amount:       req.Amount,
		BalanceAfter: balance,
		ReferenceID:  req.ReferenceID,
		Description:  req.Description,
	})
}

// DeductTx debits points inside the caller's transaction.
func (s *Service) DeductTx(ctx context.Context, tx storage.Tx, req DeductRequest) (points.Entry, error) {
	if err := validate(EarnRequest(req)); err != nil {
		return points.Entry{}, err
	}
	balance, err := tx.AdjustUserPoints(ctx, req.UserID, -req.Amount)
	if errors.Is(err, storage.ErrInsufficient) {
		return points.Entry{}, fmt.Errorf("%w: %d required", ErrInsufficientPoints, req.Amount)
	}
	if err != nil {
		return points.Entry{}, fmt.Errorf("deduct points for %s: %w", req.UserID, err)
	}
	return tx.CreatePointEntry(ctx, points.Entry{
		UserID:       req.UserID,
		Type:         points.EntryDeduct,
		Source:       req.Source,
		Amount:       req.Amount,
		BalanceAfter: balance,
		ReferenceID:  req.ReferenceID,
		Description:  req.Description,
	})
}

// Committed records metrics and logs for entries whose transaction committed.
func (s *Service) Committed(entries ...points.Entry) {
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		metrics.RecordPointEntry(string(e.Type), string(e.Source), e.Amount)
		s.log.WithFields(map[string]interface{}{
			"user_id":       e.UserID,
			"type":          e.Type,
			"source":        e.Source,
			"amount":        e.Amount,
			"balance_after": e.BalanceAfter,
			"reference_id":  e.ReferenceID,
		}).Info("points ledger entry")
	}
}

// Balance returns the user's current balance.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

// History lists ledger entries newest first.
func (s *Service) History(ctx context.Context, userID string, filter points.Filter, req pagination.Request) (pagination.Page[points.Entry], error) {
	switch filter.Type {
	case "", points.EntryEarn, points.EntryDeduct:
	default:
		return pagination.Page[points.Entry]{}, fmt.Errorf("%w: unknown entry type %q", ErrInvalidRequest, filter.Type)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return pagination.Page[points.Entry]{}, err
	}
	return s.store.ListPointEntries(ctx, userID, filter, req)
}

func validate(req EarnRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if req.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidRequest)
	}
	if !req.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRequest, req.Source)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, req.Amount)
	}
	return nil
}
