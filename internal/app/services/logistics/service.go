// Package logistics runs logistic orders through draft, review and payout.
package logistics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/logistics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/metrics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/missions"
	pointsvc "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

var (
	ErrInvalidOrder      = errors.New("invalid logistic order")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotOwner          = errors.New("order belongs to another user")
	ErrDropPointInactive = errors.New("drop point is not active")
)

// CreateRequest describes a new draft order. Drop-offs name a drop point;
// pick-ups carry an address and a pickup time.
type CreateRequest struct {
	UserID      string
	Type        logistics.OrderType
	DropPointID string
	Address     string
	PickupAt    *time.Time
	Notes       string
}

// Service manages logistic orders.
type Service struct {
	store    storage.Store
	ledger   *pointsvc.Service
	missions *missions.Service
	log      *logger.Logger
	now      func() time.Time
}

// New constructs a logistics service. missions may be nil.
func New(store storage.Store, ledger *pointsvc.Service, ms *missions.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("logistics")
	}
	return &Service{store: store, ledger: ledger, missions: ms, log: log, now: time.Now}
}

// Create opens a draft order.
func (s *Service) Create(ctx context.Context, req CreateRequest) (logistics.Order, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return logistics.Order{}, fmt.Errorf("%w: user_id is required", ErrInvalidOrder)
	}
	if _, err := s.store.GetUser(ctx, req.UserID); err != nil {
		return logistics.Order{}, err
	}

	order := logistics.Order{
		UserID: req.UserID,
		Type:   req.Type,
		Status: logistics.StatusDraft,
		Notes:  strings.TrimSpace(req.Notes),
		Items:  []logistics.Item{},
	}
	switch req.Type {
	case logistics.TypeDropOff:
		dp, err := s.store.GetDropPoint(ctx, req.DropPointID)
		if err != nil {
			return logistics.Order{}, err
		}
		if !dp.Active {
			return logistics.Order{}, fmt.Errorf("%w: %s", ErrDropPointInactive, dp.Name)
		}
		order.DropPointID = dp.ID
	case logistics.TypePickUp:
		order.Address = strings.TrimSpace(req.Address)
		if order.Address == "" {
			return logistics.Order{}, fmt.Errorf("%w: address is required for pick-up", ErrInvalidOrder)
		}
		if req.PickupAt == nil || !req.PickupAt.After(s.now()) {
			return logistics.Order{}, fmt.Errorf("%w: pickup time must be in the future", ErrInvalidOrder)
		}
		at := req.PickupAt.UTC()
		order.PickupAt = &at
	default:
		return logistics.Order{}, fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, req.Type)
	}

	created, err := s.store.CreateLogisticOrder(ctx, order)
	if err != nil {
		return logistics.Order{}, err
	}
	metrics.RecordOrderTransition(string(logistics.StatusDraft))
	s.log.Infof("logistic order %s (%s) created for user %s", created.ID, created.Type, created.UserID)
	return created, nil
}

// AddItem appends an item to a draft order.
func (s *Service) AddItem(ctx context.Context, userID, orderID string, item logistics.Item) (logistics.Order, error) {
	item.Name = strings.TrimSpace(item.Name)
	switch {
	case item.Name == "":
		return logistics.Order{}, fmt.Errorf("%w: item name is required", ErrInvalidOrder)
	case !item.Category.Valid():
		return logistics.Order{}, fmt.Errorf("%w: unknown category %q", ErrInvalidOrder, item.Category)
	case item.Quantity <= 0:
		return logistics.Order{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	case item.WeightKg < 0:
		return logistics.Order{}, fmt.Errorf("%w: weight cannot be negative", ErrInvalidOrder)
	}
	item.ID = ""
	item.Points = 0

	return s.ownerUpdate(ctx, userID, orderID, func(o *logistics.Order) error {
		if o.Status != logistics.StatusDraft {
			return fmt.Errorf("%w: items can only change while draft", ErrInvalidTransition)
		}
		o.Items = append(o.Items, item)
		return nil
	})
}

// RemoveItem drops an item from a draft order.
func (s *Service) RemoveItem(ctx context.Context, userID, orderID, itemID string) (logistics.Order, error) {
	return s.ownerUpdate(ctx, userID, orderID, func(o *logistics.Order) error {
		if o.Status != logistics.StatusDraft {
			return fmt.Errorf("%w: items can only change while draft", ErrInvalidTransition)
		}
		for i, it := range o.Items {
			if it.ID == itemID {
				o.Items = append(o.Items[:i], o.Items[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("item %s: %w", itemID, storage.ErrNotFound)
	})
}

// Submit sends a draft order with at least one item for review.
func (s *Service) Submit(ctx context.Context, userID, orderID string) (logistics.Order, error) {
	order, err := s.ownerUpdate(ctx, userID, orderID, func(o *logistics.Order) error {
		if o.Status != logistics.StatusDraft {
			return fmt.Errorf("%w: cannot submit a %s order", ErrInvalidTransition, o.Status)
		}
		if len(o.Items) == 0 {
			return fmt.Errorf("%w: order has no items", ErrInvalidOrder)
		}
		at := s.now().UTC()
		o.Status = logistics.StatusSubmitted
		o.SubmittedAt = &at
		return nil
	})
	if err != nil {
		return logistics.Order{}, err
	}
	metrics.RecordOrderTransition(string(order.Status))
	return order, nil
}

// Cancel withdraws a draft or submitted order.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (logistics.Order, error) {
	order, err := s.ownerUpdate(ctx, userID, orderID, func(o *logistics.Order) error {
		if o.Status != logistics.StatusDraft && o.Status != logistics.StatusSubmitted {
			return fmt.Errorf("%w: cannot cancel a %s order", ErrInvalidTransition, o.Status)
		}
		o.Status = logistics.StatusCancelled
		return nil
	})
	if err != nil {
		return logistics.Order{}, err
	}
	metrics.RecordOrderTransition(string(order.Status))
	return order, nil
}

// Approve assigns points to every item of a submitted order and pays the
// total to its owner. The status change, the ledger entry and mission
// progress commit together.
func (s *Service) Approve(ctx context.Context, orderID, reviewerID string, itemPoints map[string]int64) (logistics.Order, error) {
	var (
		order logistics.Order
		entry points.Entry
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		order, err = tx.GetLogisticOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != logistics.StatusSubmitted {
			return fmt.Errorf("%w: cannot approve a %s order", ErrInvalidTransition, order.Status)
		}
		if len(itemPoints) != len(order.Items) {
			return fmt.Errorf("%w: points required for each of %d items", ErrInvalidOrder, len(order.Items))
		}

		var total int64
		quantity := 0
		for i := range order.Items {
			p, ok := itemPoints[order.Items[i].ID]
			if !ok {
				return fmt.Errorf("%w: no points for item %s", ErrInvalidOrder, order.Items[i].ID)
			}
			if p < 0 {
				return fmt.Errorf("%w: points for item %s cannot be negative", ErrInvalidOrder, order.Items[i].ID)
			}
			order.Items[i].Points = p
			total += p
			quantity += order.Items[i].Quantity
		}
		if total <= 0 {
			return fmt.Errorf("%w: approved total must be positive", ErrInvalidOrder)
		}

		at := s.now().UTC()
		order.Status = logistics.StatusApproved
		order.TotalPoints = total
		order.ReviewedBy = reviewerID
		order.ReviewedAt = &at
		if order, err = tx.UpdateLogisticOrder(ctx, order); err != nil {
			return err
		}

		entry, err = s.ledger.EarnTx(ctx, tx, pointsvc.EarnRequest{
			UserID:      order.UserID,
			Amount:      total,
			Source:      points.SourceLogisticOrder,
			ReferenceID: order.ID,
			Description: fmt.Sprintf("%s order approved", order.Type),
		})
		if err != nil {
			return err
		}

		if s.missions == nil {
			return nil
		}
		if _, err := s.missions.RecordTx(ctx, tx, order.UserID, mission.EventLogisticOrderApproved, 1); err != nil {
			return err
		}
		_, err = s.missions.RecordTx(ctx, tx, order.UserID, mission.EventItemsRecycled, quantity)
		return err
	})
	if err != nil {
		return logistics.Order{}, err
	}
	s.ledger.Committed(entry)
	metrics.RecordOrderTransition(string(order.Status))
	s.log.Infof("logistic order %s approved by %s for %d points", order.ID, reviewerID, order.TotalPoints)
	return order, nil
}

// Reject closes a submitted order without payout.
func (s *Service) Reject(ctx context.Context, orderID, reviewerID, reason string) (logistics.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return logistics.Order{}, fmt.Errorf("%w: reject reason is required", ErrInvalidOrder)
	}
	order, err := s.update(ctx, orderID, func(o *logistics.Order) error {
		if o.Status != logistics.StatusSubmitted {
			return fmt.Errorf("%w: cannot reject a %s order", ErrInvalidTransition, o.Status)
		}
		at := s.now().UTC()
		o.Status = logistics.StatusRejected
		o.RejectReason = reason
		o.ReviewedBy = reviewerID
		o.ReviewedAt = &at
		return nil
	})
	if err != nil {
		return logistics.Order{}, err
	}
	metrics.RecordOrderTransition(string(order.Status))
	s.log.Infof("logistic order %s rejected by %s", order.ID, reviewerID)
	return order, nil
}

// Get returns an order visible to requesterID. Admins see every order.
func (s *Service) Get(ctx context.Context, orderID, requesterID string, admin bool) (logistics.Order, error) {
	order, err := s.store.GetLogisticOrder(ctx, orderID)
	if err != nil {
		return logistics.Order{}, err
	}
	if !admin && order.UserID != requesterID {
		return logistics.Order{}, ErrNotOwner
	}
	return order, nil
}

// ListForUser lists one user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, status logistics.Status, req pagination.Request) (pagination.Page[logistics.Order], error) {
	if err := validStatus(status); err != nil {
		return pagination.Page[logistics.Order]{}, err
	}
	return s.store.ListLogisticOrders(ctx, logistics.Filter{UserID: userID, Status: status}, req)
}

// List lists every order, newest first.
func (s *Service) List(ctx context.Context, status logistics.Status, req pagination.Request) (pagination.Page[logistics.Order], error) {
	if err := validStatus(status); err != nil {
		return pagination.Page[logistics.Order]{}, err
	}
	return s.store.ListLogisticOrders(ctx, logistics.Filter{Status: status}, req)
}

func (s *Service) ownerUpdate(ctx context.Context, userID, orderID string, fn func(*logistics.Order) error) (logistics.Order, error) {
	return s.update(ctx, orderID, func(o *logistics.Order) error {
		if o.UserID != userID {
			return ErrNotOwner
		}
		return fn(o)
	})
}

func (s *Service) update(ctx context.Context, orderID string, fn func(*logistics.Order) error) (logistics.Order, error) {
	var order logistics.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		if order, err = tx.GetLogisticOrder(ctx, orderID); err != nil {
			return err
		}
		if err := fn(&order); err != nil {
			return err
		}
		order, err = tx.UpdateLogisticOrder(ctx, order)
		return err
	})
	return order, err
}

func validStatus(status logistics.Status) error {
	switch status {
	case "", logistics.StatusDraft, logistics.StatusSubmitted, logistics.StatusApproved,
		logistics.StatusRejected, logistics.StatusCancelled:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, status)
}
