// Package vouchers manages the voucher catalog and the vouchers users claim
// from it with points.
package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/voucher"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/metrics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/missions"
	pointsvc "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

var (
	ErrInvalidVoucher     = errors.New("invalid voucher")
	ErrOutOfStock         = errors.New("voucher out of stock")
	ErrVoucherUnavailable = errors.New("voucher is not available")
	ErrVoucherNotUsable   = errors.New("voucher cannot be used")
)

// DefaultClaimValidDays applies to vouchers that do not set ClaimValidDays.
const DefaultClaimValidDays = 30

// Service manages vouchers.
type Service struct {
	store     storage.Store
	ledger    *pointsvc.Service
	missions  *missions.Service
	claimDays int
	log       *logger.Logger
	now       func() time.Time
}

// New constructs a voucher service. missions may be nil.
func New(store storage.Store, ledger *pointsvc.Service, ms *missions.Service, claimDays int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("vouchers")
	}
	if claimDays <= 0 {
		claimDays = DefaultClaimValidDays
	}
	return &Service{store: store, ledger: ledger, missions: ms, claimDays: claimDays, log: log, now: time.Now}
}

func (s *Service) Create(ctx context.Context, v voucher.Voucher) (voucher.Voucher, error) {
	if err := validate(&v); err != nil {
		return voucher.Voucher{}, err
	}
	created, err := s.store.CreateVoucher(ctx, v)
	if err != nil {
		return voucher.Voucher{}, err
	}
	s.log.Infof("voucher %s (%s) created with stock %d", created.ID, created.Code, created.Stock)
	return created, nil
}

func (s *Service) Update(ctx context.Context, v voucher.Voucher) (voucher.Voucher, error) {
	if err := validate(&v); err != nil {
		return voucher.Voucher{}, err
	}
	return s.store.UpdateVoucher(ctx, v)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteVoucher(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (voucher.Voucher, error) {
	return s.store.GetVoucher(ctx, id)
}

// List returns the whole catalog, newest first.
func (s *Service) List(ctx context.Context, req pagination.Request) (pagination.Page[voucher.Voucher], error) {
	return s.store.ListVouchers(ctx, voucher.Filter{}, req)
}

// ListAvailable returns active, in-stock vouchers whose window contains now.
func (s *Service) ListAvailable(ctx context.Context, req pagination.Request) (pagination.Page[voucher.Voucher], error) {
	return s.store.ListVouchers(ctx, voucher.Filter{Available: true, At: s.now().UTC()}, req)
}

// Claim takes one unit of stock, charges the voucher's cost and issues a user
// voucher, all in one transaction.
func (s *Service) Claim(ctx context.Context, userID, voucherID string) (voucher.UserVoucher, error) {
	var (
		issued voucher.UserVoucher
		entry  points.Entry
	)
	at := s.now().UTC()
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		v, err := tx.GetVoucher(ctx, voucherID)
		if err != nil {
			return err
		}
		if !v.Active || !v.InWindow(at) {
			return fmt.Errorf("%w: %s", ErrVoucherUnavailable, v.Code)
		}
		if _, err := tx.AdjustVoucherStock(ctx, v.ID, -1); err != nil {
			if errors.Is(err, storage.ErrInsufficient) {
				return fmt.Errorf("%w: %s", ErrOutOfStock, v.Code)
			}
			return err
		}
		if v.PointsCost > 0 {
			entry, err = s.ledger.DeductTx(ctx, tx, pointsvc.DeductRequest{
				UserID:      userID,
				Amount:      v.PointsCost,
				Source:      points.SourceVoucher,
				ReferenceID: v.ID,
				Description: v.Name,
			})
			if err != nil {
				return err
			}
		}

		issued, err = tx.CreateUserVoucher(ctx, voucher.UserVoucher{
			UserID:    userID,
			VoucherID: v.ID,
			Code:      v.Code,
			Status:    voucher.UserVoucherAvailable,
			ClaimedAt: at,
			ExpiresAt: s.expiry(v, at),
		})
		if err != nil {
			return err
		}
		if s.missions != nil {
			_, err = s.missions.RecordTx(ctx, tx, userID, mission.EventVoucherClaimed, 1)
		}
		return err
	})
	if err != nil {
		return voucher.UserVoucher{}, err
	}
	s.ledger.Committed(entry)
	metrics.RecordClaim("voucher")
	s.log.Infof("user %s claimed voucher %s as %s", userID, voucherID, issued.ID)
	return issued, nil
}

// ListForUser lists the user's claimed vouchers, newest claim first.
func (s *Service) ListForUser(ctx context.Context, userID string, status voucher.UserVoucherStatus, req pagination.Request) (pagination.Page[voucher.UserVoucher], error) {
	switch status {
	case "", voucher.UserVoucherAvailable, voucher.UserVoucherUsed, voucher.UserVoucherExpired:
	default:
		return pagination.Page[voucher.UserVoucher]{}, fmt.Errorf("%w: unknown status %q", ErrInvalidVoucher, status)
	}
	return s.store.ListUserVouchers(ctx, userID, voucher.UserFilter{Status: status}, req)
}

// Usable returns the user voucher and its catalog entry when userID may
// redeem it now.
func (s *Service) Usable(ctx context.Context, userVoucherID, userID string) (voucher.UserVoucher, voucher.Voucher, error) {
	return s.usable(ctx, s.store, userVoucherID, userID)
}

// UsableTx is Usable inside the caller's transaction.
func (s *Service) UsableTx(ctx context.Context, tx storage.Tx, userVoucherID, userID string) (voucher.UserVoucher, voucher.Voucher, error) {
	return s.usable(ctx, tx, userVoucherID, userID)
}

// UseTx marks a user voucher used inside the caller's transaction.
func (s *Service) UseTx(ctx context.Context, tx storage.Tx, userVoucherID, userID, ref string) (voucher.UserVoucher, error) {
	uv, _, err := s.usable(ctx, tx, userVoucherID, userID)
	if err != nil {
		return voucher.UserVoucher{}, err
	}
	at := s.now().UTC()
	uv.Status = voucher.UserVoucherUsed
	uv.UsedAt = &at
	uv.UsedRef = ref
	return tx.UpdateUserVoucher(ctx, uv)
}

// ExpireClaimed marks available user vouchers past their expiry as expired.
func (s *Service) ExpireClaimed(ctx context.Context, at time.Time) (int, error) {
	return s.store.ExpireUserVouchers(ctx, at.UTC())
}

func (s *Service) usable(ctx context.Context, vs storage.VoucherStore, userVoucherID, userID string) (voucher.UserVoucher, voucher.Voucher, error) {
	uv, err := vs.GetUserVoucher(ctx, userVoucherID)
	if err != nil {
		return voucher.UserVoucher{}, voucher.Voucher{}, err
	}
	if uv.UserID != userID {
		return voucher.UserVoucher{}, voucher.Voucher{}, fmt.Errorf("user voucher %s: %w", userVoucherID, storage.ErrNotFound)
	}
	if uv.Status != voucher.UserVoucherAvailable {
		return voucher.UserVoucher{}, voucher.Voucher{}, fmt.Errorf("%w: status is %s", ErrVoucherNotUsable, uv.Status)
	}
	if !s.now().Before(uv.ExpiresAt) {
		return voucher.UserVoucher{}, voucher.Voucher{}, fmt.Errorf("%w: expired at %s", ErrVoucherNotUsable, uv.ExpiresAt.Format(time.RFC3339))
	}
	v, err := vs.GetVoucher(ctx, uv.VoucherID)
	if err != nil {
		return voucher.UserVoucher{}, voucher.Voucher{}, err
	}
	return uv, v, nil
}

func (s *Service) expiry(v voucher.Voucher, at time.Time) time.Time {
	days := v.ClaimValidDays
	if days <= 0 {
		days = s.claimDays
	}
	expires := at.AddDate(0, 0, days)
	if v.ValidUntil != nil && v.ValidUntil.Before(expires) {
		expires = *v.ValidUntil
	}
	return expires
}

// Discount returns the points a voucher takes off subtotal, never more than
// the subtotal itself.
func Discount(v voucher.Voucher, subtotal int64) int64 {
	var d int64
	switch v.DiscountType {
	case voucher.DiscountFixedPoints:
		d = v.DiscountValue
	case voucher.DiscountPercentage:
		d = subtotal * v.DiscountValue / 100
	}
	if d > subtotal {
		d = subtotal
	}
	if d < 0 {
		d = 0
	}
	return d
}

func validate(v *voucher.Voucher) error {
	v.Code = strings.ToUpper(strings.TrimSpace(v.Code))
	v.Name = strings.TrimSpace(v.Name)
	switch {
	case v.Code == "":
		return fmt.Errorf("%w: code is required", ErrInvalidVoucher)
	case strings.ContainsAny(v.Code, " \t\n"):
		return fmt.Errorf("%w: code must not contain whitespace", ErrInvalidVoucher)
	case v.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidVoucher)
	case v.DiscountType != voucher.DiscountFixedPoints && v.DiscountType != voucher.DiscountPercentage:
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidVoucher, v.DiscountType)
	case v.DiscountValue <= 0:
		return fmt.Errorf("%w: discount value must be positive", ErrInvalidVoucher)
	case v.DiscountType == voucher.DiscountPercentage && v.DiscountValue > 100:
		return fmt.Errorf("%w: percentage cannot exceed 100", ErrInvalidVoucher)
	case v.PointsCost < 0:
		return fmt.Errorf("%w: points cost cannot be negative", ErrInvalidVoucher)
	case v.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidVoucher)
	case v.ClaimValidDays < 0:
		return fmt.Errorf("%w: claim validity cannot be negative", ErrInvalidVoucher)
	case v.ValidFrom != nil && v.ValidUntil != nil && !v.ValidUntil.After(*v.ValidFrom):
		return fmt.Errorf("%w: valid_until must be after valid_from", ErrInvalidVoucher)
	}
	return nil
}
