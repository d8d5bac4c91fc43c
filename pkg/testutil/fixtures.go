// Package testutil provides shared fixtures for service and handler tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/user"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage/memory"
)

// NewStore returns an in-memory store holding a regular user for each id.
func NewStore(t testing.TB, userIDs ...string) *memory.Store {
	t.Helper()
	store := memory.New()
	for _, id := range userIDs {
		SeedUser(t, store, id)
	}
	return store
}

// SeedUser creates a regular user named after id.
func SeedUser(t testing.TB, store storage.UserStore, id string) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		ID:    id,
		Name:  "User " + id,
		Email: id + "@example.com",
		Role:  user.RoleUser,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return u
}

// Fund credits amount to userID with a matching adjustment entry, bypassing
// the ledger service. A non-positive amount is a no-op.
func Fund(t testing.TB, store storage.Store, userID string, amount int64) {
	t.Helper()
	if amount <= 0 {
		return
	}
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		balance, err := tx.AdjustUserPoints(ctx, userID, amount)
		if err != nil {
			return err
		}
		_, err = tx.CreatePointEntry(ctx, points.Entry{
			UserID:       userID,
			Type:         points.EntryEarn,
			Source:       points.SourceAdjustment,
			Amount:       amount,
			BalanceAfter: balance,
			Description:  "test funding",
		})
		return err
	})
	if err != nil {
		t.Fatalf("fund %s: %v", userID, err)
	}
}

// Clock returns a clock frozen at t.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
