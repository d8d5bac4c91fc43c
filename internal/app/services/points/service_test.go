package points

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage/memory"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/testutil"
)

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := testutil.NewStore(t, "u1")
	return New(store, nil), store
}

func TestEarnAndDeduct(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	entry, err := svc.Earn(ctx, EarnRequest{UserID: "u1", Amount: 100, Source: points.SourceLogisticOrder, ReferenceID: "o1"})
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
	if entry.BalanceAfter != 100 || entry.Type != points.EntryEarn {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	entry, err = svc.Deduct(ctx, DeductRequest{UserID: "u1", Amount: 30, Source: points.SourceExchange})
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if entry.BalanceAfter != 70 {
		t.Fatalf("balance after = %d", entry.BalanceAfter)
	}

	bal, err := svc.Balance(ctx, "u1")
	if err != nil || bal != 70 {
		t.Fatalf("balance = %d, %v", bal, err)
	}
}

func TestDeductInsufficientWritesNothing(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	if _, err := svc.Earn(ctx, EarnRequest{UserID: "u1", Amount: 10, Source: points.SourceMission}); err != nil {
		t.Fatalf("earn: %v", err)
	}
	_, err := svc.Deduct(ctx, DeductRequest{UserID: "u1", Amount: 11, Source: points.SourceVoucher})
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("expected insufficient points, got %v", err)
	}

	page, _ := store.ListPointEntries(ctx, "u1", points.Filter{}, pagination.Request{})
	if len(page.Items) != 1 {
		t.Fatalf("failed deduction must not write history, got %d entries", len(page.Items))
	}
	if bal, _ := svc.Balance(ctx, "u1"); bal != 10 {
		t.Fatalf("balance = %d", bal)
	}
}

func TestValidation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  EarnRequest
		want error
	}{
		{"zero amount", EarnRequest{UserID: "u1", Amount: 0, Source: points.SourceMission}, ErrInvalidAmount},
		{"negative amount", EarnRequest{UserID: "u1", Amount: -5, Source: points.SourceMission}, ErrInvalidAmount},
		{"missing user", EarnRequest{Amount: 5, Source: points.SourceMission}, ErrInvalidRequest},
		{"missing source", EarnRequest{UserID: "u1", Amount: 5}, ErrInvalidRequest},
		{"unknown source", EarnRequest{UserID: "u1", Amount: 5, Source: "lottery"}, ErrInvalidRequest},
		{"unknown user", EarnRequest{UserID: "ghost", Amount: 5, Source: points.SourceMission}, storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Earn(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAdjust(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.Adjust(ctx, "u1", 0, "noop"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for zero delta, got %v", err)
	}
	entry, err := svc.Adjust(ctx, "u1", 50, "welcome bonus")
	if err != nil || entry.Type != points.EntryEarn || entry.Source != points.SourceAdjustment {
		t.Fatalf("positive adjust = %+v, %v", entry, err)
	}
	entry, err = svc.Adjust(ctx, "u1", -20, "correction")
	if err != nil || entry.Type != points.EntryDeduct || entry.Amount != 20 || entry.BalanceAfter != 30 {
		t.Fatalf("negative adjust = %+v, %v", entry, err)
	}
}

func TestHistoryBalancesReconcile(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		if _, err := svc.Earn(ctx, EarnRequest{UserID: "u1", Amount: int64(i + 1), Source: points.SourceMission}); err != nil {
			t.Fatalf("earn: %v", err)
		}
		if i%3 == 0 {
			if _, err := svc.Deduct(ctx, DeductRequest{UserID: "u1", Amount: 1, Source: points.SourceExchange}); err != nil {
				t.Fatalf("deduct: %v", err)
			}
		}
	}

	var earned, deducted int64
	seen := map[string]bool{}
	req := pagination.Request{Limit: 7}
	for {
		page, err := svc.History(ctx, "u1", points.Filter{}, req)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		for _, e := range page.Items {
			if seen[e.ID] {
				t.Fatalf("entry %s returned twice", e.ID)
			}
			seen[e.ID] = true
			if e.Type == points.EntryEarn {
				earned += e.Amount
			} else {
				deducted += e.Amount
			}
		}
		if !page.HasMore {
			break
		}
		req.Cursor = page.NextCursor
	}

	bal, _ := svc.Balance(ctx, "u1")
	if earned-deducted != bal {
		t.Fatalf("earned %d - deducted %d != balance %d", earned, deducted, bal)
	}
	if len(seen) != 40 {
		t.Fatalf("expected 40 entries, got %d", len(seen))
	}

	if _, err := svc.History(ctx, "u1", points.Filter{Type: "bogus"}, pagination.Request{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for bad type, got %v", err)
	}
}

func TestConcurrentDeductionsNeverOverdraw(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	if _, err := svc.Earn(ctx, EarnRequest{UserID: "u1", Amount: 50, Source: points.SourceMission}); err != nil {
		t.Fatalf("earn: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Deduct(ctx, DeductRequest{UserID: "u1", Amount: 10, Source: points.SourceExchange}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Fatalf("expected 5 successful deductions, got %d", succeeded)
	}
	if bal, _ := svc.Balance(ctx, "u1"); bal != 0 {
		t.Fatalf("balance = %d", bal)
	}
}
