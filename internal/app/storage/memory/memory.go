package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/dropoff"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/exchange"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/logistics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/user"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/voucher"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
//
// Transactions work on a private copy of the state which replaces the shared
// state only when the callback succeeds.
type Store struct {
	*view
	mu sync.RWMutex
}

var _ storage.Store = (*Store)(nil)
var _ storage.Tx = (*view)(nil)

// New creates an empty store.
func New() *Store {
	s := &Store{}
	s.view = &view{mu: &s.mu, st: newState()}
	return s
}

// WithinTx runs fn against a snapshot and publishes it if fn returns nil.
// Other callers block until the transaction finishes.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.view.st.clone()
	if err := fn(ctx, &view{st: snapshot}); err != nil {
		return err
	}
	s.view.st = snapshot
	return nil
}

type state struct {
	users        map[string]user.User
	entries      map[string][]points.Entry
	orders       map[string]logistics.Order
	dropPoints   map[string]dropoff.DropPoint
	missions     map[string]mission.Mission
	progress     map[string]mission.Progress
	vouchers     map[string]voucher.Voucher
	userVouchers map[string]voucher.UserVoucher
	items        map[string]exchange.Item
	exchanges    map[string]exchange.Transaction
}

func newState() *state {
	return &state{
		users:        make(map[string]user.User),
		entries:      make(map[string][]points.Entry),
		orders:       make(map[string]logistics.Order),
		dropPoints:   make(map[string]dropoff.DropPoint),
		missions:     make(map[string]mission.Mission),
		progress:     make(map[string]mission.Progress),
		vouchers:     make(map[string]voucher.Voucher),
		userVouchers: make(map[string]voucher.UserVoucher),
		items:        make(map[string]exchange.Item),
		exchanges:    make(map[string]exchange.Transaction),
	}
}

func (st *state) clone() *state {
	out := newState()
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.entries {
		out.entries[k] = append([]points.Entry(nil), v...)
	}
	for k, v := range st.orders {
		out.orders[k] = cloneOrder(v)
	}
	for k, v := range st.dropPoints {
		out.dropPoints[k] = v
	}
	for k, v := range st.missions {
		out.missions[k] = v
	}
	for k, v := range st.progress {
		out.progress[k] = v
	}
	for k, v := range st.vouchers {
		out.vouchers[k] = v
	}
	for k, v := range st.userVouchers {
		out.userVouchers[k] = v
	}
	for k, v := range st.items {
		out.items[k] = v
	}
	for k, v := range st.exchanges {
		out.exchanges[k] = cloneTransaction(v)
	}
	return out
}

// view implements the stores over a state. mu is nil inside a transaction,
// where the owning Store already holds the write lock.
type view struct {
	mu *sync.RWMutex
	st *state
}

func (v *view) lock() func() {
	if v.mu == nil {
		return func() {}
	}
	v.mu.Lock()
	return v.mu.Unlock
}

func (v *view) rlock() func() {
	if v.mu == nil {
		return func() {}
	}
	v.mu.RLock()
	return v.mu.RUnlock
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
}

func stamp(created *time.Time, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

// UserStore implementation ----------------------------------------------------

func (v *view) CreateUser(_ context.Context, u user.User) (user.User, error) {
	defer v.lock()()

	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, exists := v.st.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrConflict)
	}
	for _, existing := range v.st.users {
		if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, fmt.Errorf("email %s: %w", u.Email, storage.ErrConflict)
		}
	}
	stamp(&u.CreatedAt, &u.UpdatedAt)
	v.st.users[u.ID] = u
	return u, nil
}

func (v *view) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	defer v.lock()()

	original, ok := v.st.users[u.ID]
	if !ok {
		return user.User{}, notFound("user", u.ID)
	}
	for id, existing := range v.st.users {
		if id != u.ID && u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, fmt.Errorf("email %s: %w", u.Email, storage.ErrConflict)
		}
	}
	u.Points = original.Points
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	v.st.users[u.ID] = u
	return u, nil
}

func (v *view) GetUser(_ context.Context, id string) (user.User, error) {
	defer v.rlock()()

	u, ok := v.st.users[id]
	if !ok {
		return user.User{}, notFound("user", id)
	}
	return u, nil
}

func (v *view) ListUsers(_ context.Context, req pagination.Request) (pagination.Page[user.User], error) {
	defer v.rlock()()

	all := make([]user.User, 0, len(v.st.users))
	for _, u := range v.st.users {
		all = append(all, u)
	}
	return pagination.Paginate(all, user.User.PageKey, req)
}

func (v *view) DeleteUser(_ context.Context, id string) error {
	defer v.lock()()

	if _, ok := v.st.users[id]; !ok {
		return notFound("user", id)
	}
	delete(v.st.users, id)
	delete(v.st.entries, id)
	for key, o := range v.st.orders {
		if o.UserID == id {
			delete(v.st.orders, key)
		}
	}
	for key, p := range v.st.progress {
		if p.UserID == id {
			delete(v.st.progress, key)
		}
	}
	for key, uv := range v.st.userVouchers {
		if uv.UserID == id {
			delete(v.st.userVouchers, key)
		}
	}
	for key, t := range v.st.exchanges {
		if t.UserID == id {
			delete(v.st.exchanges, key)
		}
	}
	return nil
}

func (v *view) AdjustUserPoints(_ context.Context, id string, delta int64) (int64, error) {
	defer v.lock()()

	u, ok := v.st.users[id]
	if !ok {
		return 0, notFound("user", id)
	}
	if u.Points+delta < 0 {
		return u.Points, fmt.Errorf("user %s balance %d: %w", id, u.Points, storage.ErrInsufficient)
	}
	u.Points += delta
	u.UpdatedAt = time.Now().UTC()
	v.st.users[id] = u
	return u.Points, nil
}

// PointStore implementation ---------------------------------------------------

func (v *view) CreatePointEntry(_ context.Context, entry points.Entry) (points.Entry, error) {
	defer v.lock()()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	stamp(&entry.CreatedAt, nil)
	v.st.entries[entry.UserID] = append(v.st.entries[entry.UserID], entry)
	return entry, nil
}

func (v *view) ListPointEntries(_ context.Context, userID string, filter points.Filter, req pagination.Request) (pagination.Page[points.Entry], error) {
	defer v.rlock()()

	var matched []points.Entry
	for _, e := range v.st.entries[userID] {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		matched = append(matched, e)
	}
	return pagination.Paginate(matched, points.Entry.PageKey, req)
}

// LogisticStore implementation ------------------------------------------------

func (v *view) CreateLogisticOrder(_ context.Context, order logistics.Order) (logistics.Order, error) {
	defer v.lock()()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	stamp(&order.CreatedAt, &order.UpdatedAt)
	order = assignItemIDs(order)
	v.st.orders[order.ID] = cloneOrder(order)
	return cloneOrder(order), nil
}

func (v *view) UpdateLogisticOrder(_ context.Context, order logistics.Order) (logistics.Order, error) {
	defer v.lock()()

	original, ok := v.st.orders[order.ID]
	if !ok {
		return logistics.Order{}, notFound("logistic order", order.ID)
	}
	order.UserID = original.UserID
	order.CreatedAt = original.CreatedAt
	order.UpdatedAt = time.Now().UTC()
	order = assignItemIDs(order)
	v.st.orders[order.ID] = cloneOrder(order)
	return cloneOrder(order), nil
}

func (v *view) GetLogisticOrder(_ context.Context, id string) (logistics.Order, error) {
	defer v.rlock()()

	order, ok := v.st.orders[id]
	if !ok {
		return logistics.Order{}, notFound("logistic order", id)
	}
	return cloneOrder(order), nil
}

func (v *view) ListLogisticOrders(_ context.Context, filter logistics.Filter, req pagination.Request) (pagination.Page[logistics.Order], error) {
	defer v.rlock()()

	var matched []logistics.Order
	for _, o := range v.st.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	return pagination.Paginate(matched, logistics.Order.PageKey, req)
}

func assignItemIDs(order logistics.Order) logistics.Order {
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.NewString()
		}
		order.Items[i].OrderID = order.ID
	}
	return order
}

func cloneOrder(o logistics.Order) logistics.Order {
	o.Items = append([]logistics.Item(nil), o.Items...)
	return o
}

// DropPointStore implementation -----------------------------------------------

func (v *view) CreateDropPoint(_ context.Context, dp dropoff.DropPoint) (dropoff.DropPoint, error) {
	defer v.lock()()

	if dp.ID == "" {
		dp.ID = uuid.NewString()
	} else if _, exists := v.st.dropPoints[dp.ID]; exists {
		return dropoff.DropPoint{}, fmt.Errorf("drop point %s: %w", dp.ID, storage.ErrConflict)
	}
	stamp(&dp.CreatedAt, &dp.UpdatedAt)
	v.st.dropPoints[dp.ID] = dp
	return dp, nil
}

func (v *view) UpdateDropPoint(_ context.Context, dp dropoff.DropPoint) (dropoff.DropPoint, error) {
	defer v.lock()()

	original, ok := v.st.dropPoints[dp.ID]
	if !ok {
		return dropoff.DropPoint{}, notFound("drop point", dp.ID)
	}
	dp.CreatedAt = original.CreatedAt
	dp.UpdatedAt = time.Now().UTC()
	v.st.dropPoints[dp.ID] = dp
	return dp, nil
}

func (v *view) GetDropPoint(_ context.Context, id string) (dropoff.DropPoint, error) {
	defer v.rlock()()

	dp, ok := v.st.dropPoints[id]
	if !ok {
		return dropoff.DropPoint{}, notFound("drop point", id)
	}
	return dp, nil
}

func (v *view) ListDropPoints(_ context.Context, activeOnly bool) ([]dropoff.DropPoint, error) {
	defer v.rlock()()

	out := make([]dropoff.DropPoint, 0, len(v.st.dropPoints))
	for _, dp := range v.st.dropPoints {
		if activeOnly && !dp.Active {
			continue
		}
		out = append(out, dp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) DeleteDropPoint(_ context.Context, id string) error {
	defer v.lock()()

	if _, ok := v.st.dropPoints[id]; !ok {
		return notFound("drop point", id)
	}
	delete(v.st.dropPoints, id)
	return nil
}

// MissionStore implementation -------------------------------------------------

func (v *view) CreateMission(_ context.Context, m mission.Mission) (mission.Mission, error) {
	defer v.lock()()

	if m.ID == "" {
		m.ID = uuid.NewString()
	} else if _, exists := v.st.missions[m.ID]; exists {
		return mission.Mission{}, fmt.Errorf("mission %s: %w", m.ID, storage.ErrConflict)
	}
	stamp(&m.CreatedAt, &m.UpdatedAt)
	v.st.missions[m.ID] = m
	return m, nil
}

func (v *view) UpdateMission(_ context.Context, m mission.Mission) (mission.Mission, error) {
	defer v.lock()()

	original, ok := v.st.missions[m.ID]
	if !ok {
		return mission.Mission{}, notFound("mission", m.ID)
	}
	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()
	v.st.missions[m.ID] = m
	return m, nil
}

func (v *view) GetMission(_ context.Context, id string) (mission.Mission, error) {
	defer v.rlock()()

	m, ok := v.st.missions[id]
	if !ok {
		return mission.Mission{}, notFound("mission", id)
	}
	return m, nil
}

func (v *view) ListMissions(_ context.Context, activeOnly bool) ([]mission.Mission, error) {
	defer v.rlock()()

	out := make([]mission.Mission, 0, len(v.st.missions))
	for _, m := range v.st.missions {
		if activeOnly && !m.Active {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) DeleteMission(_ context.Context, id string) error {
	defer v.lock()()

	if _, ok := v.st.missions[id]; !ok {
		return notFound("mission", id)
	}
	delete(v.st.missions, id)
	for key, p := range v.st.progress {
		if p.MissionID == id {
			delete(v.st.progress, key)
		}
	}
	return nil
}

func (v *view) DeactivateEndedMissions(_ context.Context, now time.Time) (int, error) {
	defer v.lock()()

	count := 0
	for id, m := range v.st.missions {
		if !m.Active || m.EndsAt == nil || m.EndsAt.After(now) {
			continue
		}
		m.Active = false
		m.UpdatedAt = time.Now().UTC()
		v.st.missions[id] = m
		count++
	}
	return count, nil
}

func progressKey(userID, missionID, periodKey string) string {
	return userID + "|" + missionID + "|" + periodKey
}

func (v *view) GetMissionProgress(_ context.Context, userID, missionID, periodKey string) (mission.Progress, error) {
	defer v.rlock()()

	p, ok := v.st.progress[progressKey(userID, missionID, periodKey)]
	if !ok {
		return mission.Progress{}, notFound("mission progress", missionID)
	}
	return p, nil
}

func (v *view) SaveMissionProgress(_ context.Context, p mission.Progress) (mission.Progress, error) {
	defer v.lock()()

	key := progressKey(p.UserID, p.MissionID, p.PeriodKey)
	if existing, ok := v.st.progress[key]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	v.st.progress[key] = p
	return p, nil
}

// VoucherStore implementation -------------------------------------------------

func (v *view) codeTaken(code, exceptID string) bool {
	for id, existing := range v.st.vouchers {
		if id != exceptID && strings.EqualFold(existing.Code, code) {
			return true
		}
	}
	return false
}

func (v *view) CreateVoucher(_ context.Context, vc voucher.Voucher) (voucher.Voucher, error) {
	defer v.lock()()

	if vc.ID == "" {
		vc.ID = uuid.NewString()
	} else if _, exists := v.st.vouchers[vc.ID]; exists {
		return voucher.Voucher{}, fmt.Errorf("voucher %s: %w", vc.ID, storage.ErrConflict)
	}
	if v.codeTaken(vc.Code, vc.ID) {
		return voucher.Voucher{}, fmt.Errorf("voucher code %s: %w", vc.Code, storage.ErrConflict)
	}
	stamp(&vc.CreatedAt, &vc.UpdatedAt)
	v.st.vouchers[vc.ID] = vc
	return vc, nil
}

func (v *view) UpdateVoucher(_ context.Context, vc voucher.Voucher) (voucher.Voucher, error) {
	defer v.lock()()

	original, ok := v.st.vouchers[vc.ID]
	if !ok {
		return voucher.Voucher{}, notFound("voucher", vc.ID)
	}
	if v.codeTaken(vc.Code, vc.ID) {
		return voucher.Voucher{}, fmt.Errorf("voucher code %s: %w", vc.Code, storage.ErrConflict)
	}
	vc.CreatedAt = original.CreatedAt
	vc.UpdatedAt = time.Now().UTC()
	v.st.vouchers[vc.ID] = vc
	return vc, nil
}

func (v *view) GetVoucher(_ context.Context, id string) (voucher.Voucher, error) {
	defer v.rlock()()

	vc, ok := v.st.vouchers[id]
	if !ok {
		return voucher.Voucher{}, notFound("voucher", id)
	}
	return vc, nil
}

func (v *view) ListVouchers(_ context.Context, filter voucher.Filter, req pagination.Request) (pagination.Page[voucher.Voucher], error) {
	defer v.rlock()()

	var matched []voucher.Voucher
	for _, vc := range v.st.vouchers {
		if filter.Available && (!vc.Active || vc.Stock <= 0 || !vc.InWindow(filter.At)) {
			continue
		}
		matched = append(matched, vc)
	}
	return pagination.Paginate(matched, voucher.Voucher.PageKey, req)
}

func (v *view) DeleteVoucher(_ context.Context, id string) error {
	defer v.lock()()

	if _, ok := v.st.vouchers[id]; !ok {
		return notFound("voucher", id)
	}
	for _, uv := range v.st.userVouchers {
		if uv.VoucherID == id {
			return fmt.Errorf("voucher %s has been claimed: %w", id, storage.ErrConflict)
		}
	}
	delete(v.st.vouchers, id)
	return nil
}

func (v *view) AdjustVoucherStock(_ context.Context, id string, delta int) (int, error) {
	defer v.lock()()

	vc, ok := v.st.vouchers[id]
	if !ok {
		return 0, notFound("voucher", id)
	}
	if vc.Stock+delta < 0 {
		return vc.Stock, fmt.Errorf("voucher %s stock %d: %w", id, vc.Stock, storage.ErrInsufficient)
	}
	vc.Stock += delta
	vc.UpdatedAt = time.Now().UTC()
	v.st.vouchers[id] = vc
	return vc.Stock, nil
}

func (v *view) CreateUserVoucher(_ context.Context, uv voucher.UserVoucher) (voucher.UserVoucher, error) {
	defer v.lock()()

	if uv.ID == "" {
		uv.ID = uuid.NewString()
	}
	stamp(&uv.CreatedAt, nil)
	if uv.ClaimedAt.IsZero() {
		uv.ClaimedAt = uv.CreatedAt
	}
	v.st.userVouchers[uv.ID] = uv
	return uv, nil
}

func (v *view) UpdateUserVoucher(_ context.Context, uv voucher.UserVoucher) (voucher.UserVoucher, error) {
	defer v.lock()()

	original, ok := v.st.userVouchers[uv.ID]
	if !ok {
		return voucher.UserVoucher{}, notFound("user voucher", uv.ID)
	}
	uv.UserID = original.UserID
	uv.VoucherID = original.VoucherID
	uv.CreatedAt = original.CreatedAt
	v.st.userVouchers[uv.ID] = uv
	return uv, nil
}

func (v *view) GetUserVoucher(_ context.Context, id string) (voucher.UserVoucher, error) {
	defer v.rlock()()

	uv, ok := v.st.userVouchers[id]
	if !ok {
		return voucher.UserVoucher{}, notFound("user voucher", id)
	}
	return uv, nil
}

func (v *view) ListUserVouchers(_ context.Context, userID string, filter voucher.UserFilter, req pagination.Request) (pagination.Page[voucher.UserVoucher], error) {
	defer v.rlock()()

	var matched []voucher.UserVoucher
	for _, uv := range v.st.userVouchers {
		if uv.UserID != userID {
			continue
		}
		if filter.Status != "" && uv.Status != filter.Status {
			continue
		}
		matched = append(matched, uv)
	}
	return pagination.Paginate(matched, voucher.UserVoucher.PageKey, req)
}

func (v *view) ExpireUserVouchers(_ context.Context, now time.Time) (int, error) {
	defer v.lock()()

	count := 0
	for id, uv := range v.st.userVouchers {
		if uv.Status != voucher.UserVoucherAvailable || uv.ExpiresAt.After(now) {
			continue
		}
		uv.Status = voucher.UserVoucherExpired
		v.st.userVouchers[id] = uv
		count++
	}
	return count, nil
}

// ExchangeStore implementation ------------------------------------------------

func (v *view) CreateExchangeItem(_ context.Context, item exchange.Item) (exchange.Item, error) {
	defer v.lock()()

	if item.ID == "" {
		item.ID = uuid.NewString()
	} else if _, exists := v.st.items[item.ID]; exists {
		return exchange.Item{}, fmt.Errorf("exchange item %s: %w", item.ID, storage.ErrConflict)
	}
	stamp(&item.CreatedAt, &item.UpdatedAt)
	v.st.items[item.ID] = item
	return item, nil
}

func (v *view) UpdateExchangeItem(_ context.Context, item exchange.Item) (exchange.Item, error) {
	defer v.lock()()

	original, ok := v.st.items[item.ID]
	if !ok {
		return exchange.Item{}, notFound("exchange item", item.ID)
	}
	item.CreatedAt = original.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	v.st.items[item.ID] = item
	return item, nil
}

func (v *view) GetExchangeItem(_ context.Context, id string) (exchange.Item, error) {
	defer v.rlock()()

	item, ok := v.st.items[id]
	if !ok {
		return exchange.Item{}, notFound("exchange item", id)
	}
	return item, nil
}

func (v *view) ListExchangeItems(_ context.Context, activeOnly bool, req pagination.Request) (pagination.Page[exchange.Item], error) {
	defer v.rlock()()

	var matched []exchange.Item
	for _, item := range v.st.items {
		if activeOnly && !item.Active {
			continue
		}
		matched = append(matched, item)
	}
	return pagination.Paginate(matched, exchange.Item.PageKey, req)
}

func (v *view) DeleteExchangeItem(_ context.Context, id string) error {
	defer v.lock()()

	if _, ok := v.st.items[id]; !ok {
		return notFound("exchange item", id)
	}
	for _, t := range v.st.exchanges {
		for _, line := range t.Lines {
			if line.ItemID == id {
				return fmt.Errorf("exchange item %s is used by exchanges: %w", id, storage.ErrConflict)
			}
		}
	}
	delete(v.st.items, id)
	return nil
}

func (v *view) AdjustExchangeStock(_ context.Context, id string, delta int) (int, error) {
	defer v.lock()()

	item, ok := v.st.items[id]
	if !ok {
		return 0, notFound("exchange item", id)
	}
	if item.Stock+delta < 0 {
		return item.Stock, fmt.Errorf("exchange item %s stock %d: %w", id, item.Stock, storage.ErrInsufficient)
	}
	item.Stock += delta
	item.UpdatedAt = time.Now().UTC()
	v.st.items[id] = item
	return item.Stock, nil
}

func (v *view) CreateExchangeTransaction(_ context.Context, tx exchange.Transaction) (exchange.Transaction, error) {
	defer v.lock()()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	stamp(&tx.CreatedAt, &tx.UpdatedAt)
	for i := range tx.Lines {
		tx.Lines[i].TransactionID = tx.ID
	}
	v.st.exchanges[tx.ID] = cloneTransaction(tx)
	return cloneTransaction(tx), nil
}

func (v *view) UpdateExchangeTransaction(_ context.Context, tx exchange.Transaction) (exchange.Transaction, error) {
	defer v.lock()()

	original, ok := v.st.exchanges[tx.ID]
	if !ok {
		return exchange.Transaction{}, notFound("exchange transaction", tx.ID)
	}
	tx.UserID = original.UserID
	tx.CreatedAt = original.CreatedAt
	tx.UpdatedAt = time.Now().UTC()
	for i := range tx.Lines {
		tx.Lines[i].TransactionID = tx.ID
	}
	v.st.exchanges[tx.ID] = cloneTransaction(tx)
	return cloneTransaction(tx), nil
}

func (v *view) GetExchangeTransaction(_ context.Context, id string) (exchange.Transaction, error) {
	defer v.rlock()()

	tx, ok := v.st.exchanges[id]
	if !ok {
		return exchange.Transaction{}, notFound("exchange transaction", id)
	}
	return cloneTransaction(tx), nil
}

func (v *view) ListExchangeTransactions(_ context.Context, filter exchange.Filter, req pagination.Request) (pagination.Page[exchange.Transaction], error) {
	defer v.rlock()()

	var matched []exchange.Transaction
	for _, tx := range v.st.exchanges {
		if filter.UserID != "" && tx.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		matched = append(matched, cloneTransaction(tx))
	}
	return pagination.Paginate(matched, exchange.Transaction.PageKey, req)
}

func (v *view) ListPendingExchangesBefore(_ context.Context, before time.Time) ([]exchange.Transaction, error) {
	defer v.rlock()()

	var out []exchange.Transaction
	for _, tx := range v.st.exchanges {
		if tx.Status == exchange.StatusPending && tx.CreatedAt.Before(before) {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneTransaction(tx exchange.Transaction) exchange.Transaction {
	tx.Lines = append([]exchange.Line(nil), tx.Lines...)
	return tx
}
