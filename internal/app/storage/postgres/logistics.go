package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/logistics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

const orderColumns = `id, user_id, type, status, drop_point_id, address, pickup_at, total_points, notes,
	reject_reason, reviewed_by, submitted_at, reviewed_at, created_at, updated_at`

const itemColumns = `id, order_id, name, category, quantity, weight_kg, points`

// --- LogisticStore -----------------------------------------------------------

func (s *Store) CreateLogisticOrder(ctx context.Context, order logistics.Order) (logistics.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	ts := now()
	order.CreatedAt = ts
	order.UpdatedAt = ts

	err := s.withTx(ctx, func(st *Store) error {
		_, err := sqlx.NamedExecContext(ctx, st.q, `
			INSERT INTO logistic_orders (`+orderColumns+`)
			VALUES (:id, :user_id, :type, :status, :drop_point_id, :address, :pickup_at, :total_points, :notes,
				:reject_reason, :reviewed_by, :submitted_at, :reviewed_at, :created_at, :updated_at)
		`, order)
		if err != nil {
			return err
		}
		return st.replaceItems(ctx, &order)
	})
	if err != nil {
		return logistics.Order{}, err
	}
	return order, nil
}

func (s *Store) UpdateLogisticOrder(ctx context.Context, order logistics.Order) (logistics.Order, error) {
	order.UpdatedAt = now()

	err := s.withTx(ctx, func(st *Store) error {
		var created struct {
			UserID    string    `db:"user_id"`
			CreatedAt time.Time `db:"created_at"`
		}
		err := sqlx.GetContext(ctx, st.q, &created, `
			UPDATE logistic_orders
			SET status = $2, drop_point_id = $3, address = $4, pickup_at = $5, total_points = $6, notes = $7,
				reject_reason = $8, reviewed_by = $9, submitted_at = $10, reviewed_at = $11, updated_at = $12
			WHERE id = $1
			RETURNING user_id, created_at
		`, order.ID, order.Status, order.DropPointID, order.Address, order.PickupAt, order.TotalPoints, order.Notes,
			order.RejectReason, order.ReviewedBy, order.SubmittedAt, order.ReviewedAt, order.UpdatedAt)
		if err != nil {
			return notFound(err, "logistic order", order.ID)
		}
		order.UserID = created.UserID
		order.CreatedAt = created.CreatedAt
		return st.replaceItems(ctx, &order)
	})
	if err != nil {
		return logistics.Order{}, err
	}
	return order, nil
}

func (s *Store) replaceItems(ctx context.Context, order *logistics.Order) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM logistic_items WHERE order_id = $1`, order.ID); err != nil {
		return err
	}
	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.OrderID = order.ID
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO logistic_items (id, order_id, position, name, category, quantity, weight_kg, points)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, item.ID, item.OrderID, i, item.Name, item.Category, item.Quantity, item.WeightKg, item.Points)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetLogisticOrder(ctx context.Context, id string) (logistics.Order, error) {
	var order logistics.Order
	if err := sqlx.GetContext(ctx, s.q, &order, `SELECT `+orderColumns+` FROM logistic_orders WHERE id = $1`+s.forUpdate(), id); err != nil {
		return logistics.Order{}, notFound(err, "logistic order", id)
	}
	orders := []logistics.Order{order}
	if err := s.attachItems(ctx, orders); err != nil {
		return logistics.Order{}, err
	}
	return orders[0], nil
}

func (s *Store) ListLogisticOrders(ctx context.Context, filter logistics.Filter, req pagination.Request) (pagination.Page[logistics.Order], error) {
	k := keyset{base: `SELECT ` + orderColumns + ` FROM logistic_orders`}
	if filter.UserID != "" {
		k.add("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		k.add("status = ?", filter.Status)
	}
	page, err := selectPage(ctx, s.q, k, req, logistics.Order.PageKey)
	if err != nil {
		return page, err
	}
	return page, s.attachItems(ctx, page.Items)
}

func (s *Store) attachItems(ctx context.Context, orders []logistics.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	query, args, err := sqlx.In(`SELECT `+itemColumns+` FROM logistic_items WHERE order_id IN (?) ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	var items []logistics.Item
	if err := sqlx.SelectContext(ctx, s.q, &items, s.q.Rebind(query), args...); err != nil {
		return err
	}
	byOrder := make(map[string][]logistics.Item, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []logistics.Item{}
		}
	}
	return nil
}
