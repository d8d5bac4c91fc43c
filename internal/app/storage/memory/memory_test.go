package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/exchange"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/logistics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/user"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/voucher"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New()

	u, err := store.CreateUser(ctx, user.User{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: user.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.CreatedAt.IsZero() {
		t.Fatalf("expected timestamps")
	}
	if _, err := store.CreateUser(ctx, user.User{ID: "u1", Name: "dup"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{ID: "u2", Email: "ANA@example.com"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected email conflict, got %v", err)
	}

	if _, err := store.AdjustUserPoints(ctx, "u1", 50); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	u.Name = "Ana B"
	u.Points = 9999
	updated, err := store.UpdateUser(ctx, u)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Points != 50 {
		t.Fatalf("update must not touch points, got %d", updated.Points)
	}

	if err := store.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetUser(ctx, "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdjustUserPointsGuardsBalance(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.CreateUser(ctx, user.User{ID: "u1", Name: "Ana"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.AdjustUserPoints(ctx, "u1", 10); err != nil {
		t.Fatalf("earn: %v", err)
	}
	if _, err := store.AdjustUserPoints(ctx, "u1", -11); !errors.Is(err, storage.ErrInsufficient) {
		t.Fatalf("expected insufficient, got %v", err)
	}
	bal, err := store.AdjustUserPoints(ctx, "u1", -10)
	if err != nil || bal != 0 {
		t.Fatalf("balance = %d, %v", bal, err)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.CreateUser(ctx, user.User{ID: "u1", Name: "Ana"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	item, err := store.CreateExchangeItem(ctx, exchange.Item{Name: "Tote", PointsCost: 10, Stock: 1, Active: true})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.AdjustUserPoints(ctx, "u1", 100); err != nil {
			return err
		}
		if _, err := tx.AdjustExchangeStock(ctx, item.ID, -1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	u, _ := store.GetUser(ctx, "u1")
	got, _ := store.GetExchangeItem(ctx, item.ID)
	if u.Points != 0 || got.Stock != 1 {
		t.Fatalf("rollback failed: points=%d stock=%d", u.Points, got.Stock)
	}
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.CreateUser(ctx, user.User{ID: "u1", Name: "Ana"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	func() {
		defer func() { _ = recover() }()
		_ = store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			_, _ = tx.AdjustUserPoints(ctx, "u1", 5)
			panic("boom")
		})
	}()

	u, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("store unusable after panic: %v", err)
	}
	if u.Points != 0 {
		t.Fatalf("points = %d, want 0", u.Points)
	}
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.CreateUser(ctx, user.User{ID: "u1", Name: "Ana"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.AdjustUserPoints(ctx, "u1", 25)
		return err
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	u, _ := store.GetUser(ctx, "u1")
	if u.Points != 25 {
		t.Fatalf("points = %d", u.Points)
	}
}

func TestLogisticOrdersAreCopied(t *testing.T) {
	ctx := context.Background()
	store := New()
	order, err := store.CreateLogisticOrder(ctx, logistics.Order{
		UserID: "u1",
		Type:   logistics.TypeDropOff,
		Status: logistics.StatusDraft,
		Items:  []logistics.Item{{Name: "Bottles", Category: logistics.CategoryPlastic, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Items[0].ID == "" || order.Items[0].OrderID != order.ID {
		t.Fatalf("item ids not assigned: %+v", order.Items[0])
	}

	order.Items[0].Name = "mutated"
	stored, _ := store.GetLogisticOrder(ctx, order.ID)
	if stored.Items[0].Name != "Bottles" {
		t.Fatalf("store leaked its slice")
	}

	page, err := store.ListLogisticOrders(ctx, logistics.Filter{UserID: "u1", Status: logistics.StatusDraft}, pagination.Request{})
	if err != nil || len(page.Items) != 1 {
		t.Fatalf("list = %+v, %v", page, err)
	}
	page, _ = store.ListLogisticOrders(ctx, logistics.Filter{Status: logistics.StatusApproved}, pagination.Request{})
	if len(page.Items) != 0 {
		t.Fatalf("status filter ignored")
	}
}

func TestMissionProgressUpsert(t *testing.T) {
	ctx := context.Background()
	store := New()

	first, err := store.SaveMissionProgress(ctx, mission.Progress{UserID: "u1", MissionID: "m1", PeriodKey: "once", Count: 1, Status: mission.ProgressInProgress})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := store.SaveMissionProgress(ctx, mission.Progress{UserID: "u1", MissionID: "m1", PeriodKey: "once", Count: 2, Status: mission.ProgressCompleted})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same row, got %s and %s", first.ID, second.ID)
	}
	got, err := store.GetMissionProgress(ctx, "u1", "m1", "once")
	if err != nil || got.Count != 2 {
		t.Fatalf("progress = %+v, %v", got, err)
	}
	if _, err := store.GetMissionProgress(ctx, "u1", "m1", "2024-01-01"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for other period, got %v", err)
	}
}

func TestDeactivateEndedMissions(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if _, err := store.CreateMission(ctx, mission.Mission{ID: "ended", Active: true, EndsAt: &past}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateMission(ctx, mission.Mission{ID: "running", Active: true, EndsAt: &future}); err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := store.DeactivateEndedMissions(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("deactivated = %d, %v", n, err)
	}
	active, _ := store.ListMissions(ctx, true)
	if len(active) != 1 || active[0].ID != "running" {
		t.Fatalf("active = %+v", active)
	}
}

func TestVoucherCodeUniqueAndExpiry(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.CreateVoucher(ctx, voucher.Voucher{Code: "GREEN10", Active: true, Stock: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateVoucher(ctx, voucher.Voucher{Code: "green10"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected code conflict, got %v", err)
	}

	now := time.Now().UTC()
	if _, err := store.CreateUserVoucher(ctx, voucher.UserVoucher{UserID: "u1", Status: voucher.UserVoucherAvailable, ExpiresAt: now.Add(-time.Minute)}); err != nil {
		t.Fatalf("create user voucher: %v", err)
	}
	if _, err := store.CreateUserVoucher(ctx, voucher.UserVoucher{UserID: "u1", Status: voucher.UserVoucherAvailable, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create user voucher: %v", err)
	}
	n, err := store.ExpireUserVouchers(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("expired = %d, %v", n, err)
	}
	page, _ := store.ListUserVouchers(ctx, "u1", voucher.UserFilter{Status: voucher.UserVoucherAvailable}, pagination.Request{})
	if len(page.Items) != 1 {
		t.Fatalf("available = %d", len(page.Items))
	}
}

func TestListPendingExchangesBefore(t *testing.T) {
	ctx := context.Background()
	store := New()
	old := time.Now().UTC().Add(-48 * time.Hour)

	if _, err := store.CreateExchangeTransaction(ctx, exchange.Transaction{UserID: "u1", Status: exchange.StatusPending, CreatedAt: old}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateExchangeTransaction(ctx, exchange.Transaction{UserID: "u1", Status: exchange.StatusPending}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateExchangeTransaction(ctx, exchange.Transaction{UserID: "u1", Status: exchange.StatusCompleted, CreatedAt: old}); err != nil {
		t.Fatalf("create: %v", err)
	}
	stale, err := store.ListPendingExchangesBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil || len(stale) != 1 {
		t.Fatalf("stale = %d, %v", len(stale), err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, id := range []string{"u1", "u2"} {
		if _, err := store.CreateUser(ctx, user.User{ID: id, Name: id, Email: id + "@example.com"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := store.CreatePointEntry(ctx, points.Entry{UserID: "u1", Type: points.EntryEarn, Amount: 5}); err != nil {
		t.Fatalf("entry: %v", err)
	}
	order, err := store.CreateLogisticOrder(ctx, logistics.Order{UserID: "u1", Status: logistics.StatusSubmitted})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if _, err := store.SaveMissionProgress(ctx, mission.Progress{UserID: "u1", MissionID: "m1", PeriodKey: "once", Count: 1}); err != nil {
		t.Fatalf("progress: %v", err)
	}
	uv, err := store.CreateUserVoucher(ctx, voucher.UserVoucher{UserID: "u1", Status: voucher.UserVoucherAvailable})
	if err != nil {
		t.Fatalf("user voucher: %v", err)
	}
	tx, err := store.CreateExchangeTransaction(ctx, exchange.Transaction{UserID: "u1", Status: exchange.StatusPending})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	kept, err := store.CreateExchangeTransaction(ctx, exchange.Transaction{UserID: "u2", Status: exchange.StatusPending})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	if err := store.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entries, err := store.ListPointEntries(ctx, "u1", points.Filter{}, pagination.Request{})
	if err != nil || len(entries.Items) != 0 {
		t.Fatalf("entries = %d, %v", len(entries.Items), err)
	}
	if _, err := store.GetLogisticOrder(ctx, order.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected order gone, got %v", err)
	}
	if _, err := store.GetMissionProgress(ctx, "u1", "m1", "once"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected progress gone, got %v", err)
	}
	if _, err := store.GetUserVoucher(ctx, uv.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected user voucher gone, got %v", err)
	}
	if _, err := store.GetExchangeTransaction(ctx, tx.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected exchange gone, got %v", err)
	}
	if _, err := store.GetExchangeTransaction(ctx, kept.ID); err != nil {
		t.Fatalf("other user's exchange removed: %v", err)
	}
}

func TestDeleteReferencedRowsConflict(t *testing.T) {
	ctx := context.Background()
	store := New()

	vc, err := store.CreateVoucher(ctx, voucher.Voucher{Code: "GREEN10", Active: true, Stock: 1})
	if err != nil {
		t.Fatalf("voucher: %v", err)
	}
	if _, err := store.CreateUserVoucher(ctx, voucher.UserVoucher{UserID: "u1", VoucherID: vc.ID, Status: voucher.UserVoucherAvailable}); err != nil {
		t.Fatalf("user voucher: %v", err)
	}
	if err := store.DeleteVoucher(ctx, vc.ID); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict for claimed voucher, got %v", err)
	}

	item, err := store.CreateExchangeItem(ctx, exchange.Item{Name: "Tote", PointsCost: 40, Stock: 3, Active: true})
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if _, err := store.CreateExchangeTransaction(ctx, exchange.Transaction{
		UserID: "u1",
		Status: exchange.StatusPending,
		Lines:  []exchange.Line{{ItemID: item.ID, Name: item.Name, Quantity: 1, PointsEach: 40}},
	}); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if err := store.DeleteExchangeItem(ctx, item.ID); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict for used item, got %v", err)
	}
	if _, err := store.GetExchangeItem(ctx, item.ID); err != nil {
		t.Fatalf("item must survive: %v", err)
	}

	unused, err := store.CreateVoucher(ctx, voucher.Voucher{Code: "SPARE", Active: true})
	if err != nil {
		t.Fatalf("voucher: %v", err)
	}
	if err := store.DeleteVoucher(ctx, unused.ID); err != nil {
		t.Fatalf("delete unclaimed voucher: %v", err)
	}
}
