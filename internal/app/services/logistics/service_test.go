package logistics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/dropoff"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/logistics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/missions"
	pointsvc "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage/memory"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/testutil"
)

type fixture struct {
	svc      *Service
	ledger   *pointsvc.Service
	missions *missions.Service
	store    *memory.Store
	point    dropoff.DropPoint
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := testutil.NewStore(t, "u1", "u2")
	dp, err := store.CreateDropPoint(ctx, dropoff.DropPoint{Name: "Bank Sampah", Address: "Jl. Merdeka 1", Active: true})
	require.NoError(t, err)

	ledger := pointsvc.New(store, nil)
	ms := missions.New(store, ledger, nil, 0, nil)
	return fixture{svc: New(store, ledger, ms, nil), ledger: ledger, missions: ms, store: store, point: dp}
}

func (f fixture) submitted(t *testing.T, items ...logistics.Item) logistics.Order {
	t.Helper()
	ctx := context.Background()
	order, err := f.svc.Create(ctx, CreateRequest{UserID: "u1", Type: logistics.TypeDropOff, DropPointID: f.point.ID})
	require.NoError(t, err)
	for _, it := range items {
		order, err = f.svc.AddItem(ctx, "u1", order.ID, it)
		require.NoError(t, err)
	}
	order, err = f.svc.Submit(ctx, "u1", order.ID)
	require.NoError(t, err)
	return order
}

func bottles(qty int) logistics.Item {
	return logistics.Item{Name: "PET bottles", Category: logistics.CategoryPlastic, Quantity: qty, WeightKg: 1.5}
}

func TestCreateValidatesType(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{UserID: "u1", Type: logistics.TypePickUp, Address: "Jl. Sudirman"})
	assert.True(t, errors.Is(err, ErrInvalidOrder), "got %v", err)

	past := time.Now().Add(-time.Hour)
	_, err = f.svc.Create(ctx, CreateRequest{UserID: "u1", Type: logistics.TypePickUp, Address: "Jl. Sudirman", PickupAt: &past})
	assert.True(t, errors.Is(err, ErrInvalidOrder), "got %v", err)

	future := time.Now().Add(24 * time.Hour)
	order, err := f.svc.Create(ctx, CreateRequest{UserID: "u1", Type: logistics.TypePickUp, Address: "Jl. Sudirman", PickupAt: &future})
	require.NoError(t, err)
	assert.Equal(t, logistics.StatusDraft, order.Status)

	closed, err := f.store.CreateDropPoint(ctx, dropoff.DropPoint{Name: "Closed", Address: "x"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateRequest{UserID: "u1", Type: logistics.TypeDropOff, DropPointID: closed.ID})
	assert.True(t, errors.Is(err, ErrDropPointInactive), "got %v", err)

	_, err = f.svc.Create(ctx, CreateRequest{UserID: "u1", Type: "courier"})
	assert.True(t, errors.Is(err, ErrInvalidOrder), "got %v", err)
}

func TestItemsOnlyChangeWhileDraft(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, CreateRequest{UserID: "u1", Type: logistics.TypeDropOff, DropPointID: f.point.ID})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, "u1", order.ID)
	assert.True(t, errors.Is(err, ErrInvalidOrder), "empty order must not submit: %v", err)

	_, err = f.svc.AddItem(ctx, "u2", order.ID, bottles(1))
	assert.True(t, errors.Is(err, ErrNotOwner), "got %v", err)

	order, err = f.svc.AddItem(ctx, "u1", order.ID, bottles(2))
	require.NoError(t, err)
	order, err = f.svc.AddItem(ctx, "u1", order.ID, logistics.Item{Name: "Cans", Category: logistics.CategoryMetal, Quantity: 4})
	require.NoError(t, err)
	require.Len(t, order.Items, 2)

	order, err = f.svc.RemoveItem(ctx, "u1", order.ID, order.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Cans", order.Items[0].Name)

	_, err = f.svc.AddItem(ctx, "u1", order.ID, logistics.Item{Name: "x", Category: "wood", Quantity: 1})
	assert.True(t, errors.Is(err, ErrInvalidOrder), "got %v", err)

	order, err = f.svc.Submit(ctx, "u1", order.ID)
	require.NoError(t, err)
	assert.NotNil(t, order.SubmittedAt)

	_, err = f.svc.AddItem(ctx, "u1", order.ID, bottles(1))
	assert.True(t, errors.Is(err, ErrInvalidTransition), "got %v", err)
}

func TestApprovePaysAndRecordsMissions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.missions.Create(ctx, mission.Mission{Title: "First order", Event: mission.EventLogisticOrderApproved, Target: 1, Points: 10, Active: true})
	require.NoError(t, err)
	_, err = f.missions.Create(ctx, mission.Mission{Title: "Recycle 10", Event: mission.EventItemsRecycled, Target: 10, Points: 20, Active: true})
	require.NoError(t, err)

	order := f.submitted(t, bottles(3), logistics.Item{Name: "Paper", Category: logistics.CategoryPaper, Quantity: 2})
	approved, err := f.svc.Approve(ctx, order.ID, "admin1", map[string]int64{
		order.Items[0].ID: 30,
		order.Items[1].ID: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, logistics.StatusApproved, approved.Status)
	assert.Equal(t, int64(30), approved.TotalPoints)
	assert.Equal(t, "admin1", approved.ReviewedBy)

	bal, err := f.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), bal)

	history, err := f.ledger.History(ctx, "u1", points.Filter{}, pagination.Request{})
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.Equal(t, points.SourceLogisticOrder, history.Items[0].Source)
	assert.Equal(t, order.ID, history.Items[0].ReferenceID)

	list, err := f.missions.ListForUser(ctx, "u1", time.Now())
	require.NoError(t, err)
	counts := map[string]int{}
	for _, um := range list {
		counts[um.Mission.Title] = um.Progress.Count
	}
	assert.Equal(t, map[string]int{"First order": 1, "Recycle 10": 5}, counts)

	_, err = f.svc.Approve(ctx, order.ID, "admin1", map[string]int64{order.Items[0].ID: 1, order.Items[1].ID: 1})
	assert.True(t, errors.Is(err, ErrInvalidTransition), "got %v", err)
}

func TestApproveRejectsBadPointsWithoutSideEffects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	order := f.submitted(t, bottles(1), bottles(1))

	cases := map[string]map[string]int64{
		"missing item": {order.Items[0].ID: 5},
		"unknown item": {order.Items[0].ID: 5, "ghost": 5},
		"negative":     {order.Items[0].ID: 5, order.Items[1].ID: -1},
		"zero total":   {order.Items[0].ID: 0, order.Items[1].ID: 0},
	}
	for name, pts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Approve(ctx, order.ID, "admin1", pts)
			assert.True(t, errors.Is(err, ErrInvalidOrder), "got %v", err)
		})
	}

	got, err := f.svc.Get(ctx, order.ID, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, logistics.StatusSubmitted, got.Status)
	bal, err := f.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestApproveRollsBackWhenLedgerFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	order := f.submitted(t, bottles(1))

	require.NoError(t, f.store.DeleteUser(ctx, "u1"))
	_, err := f.svc.Approve(ctx, order.ID, "admin1", map[string]int64{order.Items[0].ID: 10})
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)

	got, err := f.store.GetLogisticOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, logistics.StatusSubmitted, got.Status)
	assert.Zero(t, got.Items[0].Points)
}

func TestRejectAndCancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order := f.submitted(t, bottles(1))
	_, err := f.svc.Reject(ctx, order.ID, "admin1", " ")
	assert.True(t, errors.Is(err, ErrInvalidOrder))

	rejected, err := f.svc.Reject(ctx, order.ID, "admin1", "contaminated")
	require.NoError(t, err)
	assert.Equal(t, logistics.StatusRejected, rejected.Status)
	assert.Equal(t, "contaminated", rejected.RejectReason)

	_, err = f.svc.Cancel(ctx, "u1", order.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "got %v", err)

	other := f.submitted(t, bottles(1))
	cancelled, err := f.svc.Cancel(ctx, "u1", other.ID)
	require.NoError(t, err)
	assert.Equal(t, logistics.StatusCancelled, cancelled.Status)
}

func TestGetAndList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order := f.submitted(t, bottles(1))
	_, err := f.svc.Get(ctx, order.ID, "u2", false)
	assert.True(t, errors.Is(err, ErrNotOwner))
	_, err = f.svc.Get(ctx, order.ID, "admin1", true)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, CreateRequest{UserID: "u2", Type: logistics.TypeDropOff, DropPointID: f.point.ID})
	require.NoError(t, err)

	mine, err := f.svc.ListForUser(ctx, "u1", "", pagination.Request{})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)

	submitted, err := f.svc.List(ctx, logistics.StatusSubmitted, pagination.Request{})
	require.NoError(t, err)
	assert.Len(t, submitted.Items, 1)

	all, err := f.svc.List(ctx, "", pagination.Request{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	_, err = f.svc.List(ctx, "lost", pagination.Request{})
	assert.True(t, errors.Is(err, ErrInvalidOrder))
}
