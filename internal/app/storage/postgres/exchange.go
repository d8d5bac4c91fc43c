package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/exchange"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

const exchangeItemColumns = `id, name, description, points_cost, stock, active, created_at, updated_at`

const exchangeTxColumns = `id, user_id, status, subtotal, discount, total_points, user_voucher_id, reject_reason,
	completed_at, created_at, updated_at`

const exchangeLineColumns = `transaction_id, item_id, name, quantity, points_each`

// --- ExchangeStore: items ----------------------------------------------------

func (s *Store) CreateExchangeItem(ctx context.Context, item exchange.Item) (exchange.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	ts := now()
	item.CreatedAt = ts
	item.UpdatedAt = ts

	_, err := sqlx.NamedExecContext(ctx, s.q, `
		INSERT INTO exchange_items (`+exchangeItemColumns+`)
		VALUES (:id, :name, :description, :points_cost, :stock, :active, :created_at, :updated_at)
	`, item)
	if err != nil {
		return exchange.Item{}, conflict(err, "exchange item "+item.ID)
	}
	return item, nil
}

func (s *Store) UpdateExchangeItem(ctx context.Context, item exchange.Item) (exchange.Item, error) {
	err := sqlx.GetContext(ctx, s.q, &item, `
		UPDATE exchange_items
		SET name = $2, description = $3, points_cost = $4, stock = $5, active = $6, updated_at = $7
		WHERE id = $1
		RETURNING `+exchangeItemColumns,
		item.ID, item.Name, item.Description, item.PointsCost, item.Stock, item.Active, now())
	if err != nil {
		return exchange.Item{}, notFound(err, "exchange item", item.ID)
	}
	return item, nil
}

func (s *Store) GetExchangeItem(ctx context.Context, id string) (exchange.Item, error) {
	var item exchange.Item
	if err := sqlx.GetContext(ctx, s.q, &item, `SELECT `+exchangeItemColumns+` FROM exchange_items WHERE id = $1`, id); err != nil {
		return exchange.Item{}, notFound(err, "exchange item", id)
	}
	return item, nil
}

func (s *Store) ListExchangeItems(ctx context.Context, activeOnly bool, req pagination.Request) (pagination.Page[exchange.Item], error) {
	k := keyset{base: `SELECT ` + exchangeItemColumns + ` FROM exchange_items`}
	if activeOnly {
		k.add("active")
	}
	return selectPage(ctx, s.q, k, req, exchange.Item.PageKey)
}

func (s *Store) DeleteExchangeItem(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM exchange_items WHERE id = $1`, id)
	if err != nil {
		return conflict(err, "exchange item "+id+" is used by exchanges")
	}
	return requireRow(res, "exchange item", id)
}

func (s *Store) AdjustExchangeStock(ctx context.Context, id string, delta int) (int, error) {
	stock, err := s.guardedAdjust(ctx, `
		UPDATE exchange_items
		SET stock = stock + $2, updated_at = $3
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock
	`, "exchange_items", "exchange item", id, int64(delta))
	return int(stock), err
}

// --- ExchangeStore: transactions ---------------------------------------------

func (s *Store) CreateExchangeTransaction(ctx context.Context, tx exchange.Transaction) (exchange.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	ts := now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = ts
	}
	tx.UpdatedAt = ts

	err := s.withTx(ctx, func(st *Store) error {
		_, err := sqlx.NamedExecContext(ctx, st.q, `
			INSERT INTO exchange_transactions (`+exchangeTxColumns+`)
			VALUES (:id, :user_id, :status, :subtotal, :discount, :total_points, :user_voucher_id, :reject_reason,
				:completed_at, :created_at, :updated_at)
		`, tx)
		if err != nil {
			return err
		}
		return st.insertLines(ctx, &tx)
	})
	if err != nil {
		return exchange.Transaction{}, err
	}
	return tx, nil
}

// UpdateExchangeTransaction updates the header. Lines are fixed at creation.
func (s *Store) UpdateExchangeTransaction(ctx context.Context, tx exchange.Transaction) (exchange.Transaction, error) {
	lines := tx.Lines
	err := sqlx.GetContext(ctx, s.q, &tx, `
		UPDATE exchange_transactions
		SET status = $2, subtotal = $3, discount = $4, total_points = $5, user_voucher_id = $6,
			reject_reason = $7, completed_at = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+exchangeTxColumns,
		tx.ID, tx.Status, tx.Subtotal, tx.Discount, tx.TotalPoints, tx.UserVoucherID,
		tx.RejectReason, tx.CompletedAt, now())
	if err != nil {
		return exchange.Transaction{}, notFound(err, "exchange transaction", tx.ID)
	}
	tx.Lines = lines
	return tx, nil
}

func (s *Store) insertLines(ctx context.Context, tx *exchange.Transaction) error {
	for i := range tx.Lines {
		line := &tx.Lines[i]
		line.TransactionID = tx.ID
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO exchange_lines (transaction_id, position, item_id, name, quantity, points_each)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, line.TransactionID, i, line.ItemID, line.Name, line.Quantity, line.PointsEach)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetExchangeTransaction(ctx context.Context, id string) (exchange.Transaction, error) {
	var tx exchange.Transaction
	if err := sqlx.GetContext(ctx, s.q, &tx, `SELECT `+exchangeTxColumns+` FROM exchange_transactions WHERE id = $1`+s.forUpdate(), id); err != nil {
		return exchange.Transaction{}, notFound(err, "exchange transaction", id)
	}
	txs := []exchange.Transaction{tx}
	if err := s.attachLines(ctx, txs); err != nil {
		return exchange.Transaction{}, err
	}
	return txs[0], nil
}

func (s *Store) ListExchangeTransactions(ctx context.Context, filter exchange.Filter, req pagination.Request) (pagination.Page[exchange.Transaction], error) {
	k := keyset{base: `SELECT ` + exchangeTxColumns + ` FROM exchange_transactions`}
	if filter.UserID != "" {
		k.add("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		k.add("status = ?", filter.Status)
	}
	page, err := selectPage(ctx, s.q, k, req, exchange.Transaction.PageKey)
	if err != nil {
		return page, err
	}
	return page, s.attachLines(ctx, page.Items)
}

func (s *Store) ListPendingExchangesBefore(ctx context.Context, before time.Time) ([]exchange.Transaction, error) {
	var txs []exchange.Transaction
	err := sqlx.SelectContext(ctx, s.q, &txs, `
		SELECT `+exchangeTxColumns+`
		FROM exchange_transactions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
	`, exchange.StatusPending, before)
	if err != nil {
		return nil, err
	}
	return txs, s.attachLines(ctx, txs)
}

func (s *Store) attachLines(ctx context.Context, txs []exchange.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	query, args, err := sqlx.In(`SELECT `+exchangeLineColumns+` FROM exchange_lines WHERE transaction_id IN (?) ORDER BY transaction_id, position`, ids)
	if err != nil {
		return err
	}
	var lines []exchange.Line
	if err := sqlx.SelectContext(ctx, s.q, &lines, s.q.Rebind(query), args...); err != nil {
		return err
	}
	byTx := make(map[string][]exchange.Line, len(txs))
	for _, line := range lines {
		byTx[line.TransactionID] = append(byTx[line.TransactionID], line)
	}
	for i := range txs {
		txs[i].Lines = byTx[txs[i].ID]
		if txs[i].Lines == nil {
			txs[i].Lines = []exchange.Line{}
		}
	}
	return nil
}
