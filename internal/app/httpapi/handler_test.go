package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	app "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/dropoff"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/exchange"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/logistics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/voucher"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/config"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/middleware"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

const (
	testUser  = "user-1"
	testAdmin = "admin-1"
)

func newTestAPI(t *testing.T, mutate func(*config.Config)) *API {
	t.Helper()
	cfg := config.Default()
	cfg.Scheduler.Enabled = false
	cfg.RateLimit.RequestsPerSecond = 0
	cfg.Admin.UserIDs = []string{testAdmin}
	if mutate != nil {
		mutate(cfg)
	}

	application, err := app.New(app.Stores{}, cfg, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(context.Background()) })

	api, err := NewHandler(application, cfg, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	t.Cleanup(func() { _ = api.Close() })
	return api
}

func do(t *testing.T, h http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func expect[T any](t *testing.T, rec *httptest.ResponseRecorder, status int) T {
	t.Helper()
	var out T
	if rec.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder, status int) string {
	t.Helper()
	body := expect[map[string]any](t, rec, status)
	code, _ := body["code"].(string)
	return code
}

func balance(t *testing.T, h http.Handler, userID string) int64 {
	t.Helper()
	return expect[map[string]int64](t, do(t, h, http.MethodGet, "/me/points", userID, nil), http.StatusOK)["balance"]
}

func TestHealthAndIdentity(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := do(t, api, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec.Header().Get(middleware.TraceHeader) == "" {
		t.Fatalf("expected trace header on response")
	}

	if code := errorCode(t, do(t, api, http.MethodGet, "/me", "", nil), http.StatusUnauthorized); code != "UNAUTHORIZED" {
		t.Fatalf("code = %s", code)
	}
	if code := errorCode(t, do(t, api, http.MethodGet, "/me", testUser, nil), http.StatusNotFound); code != "NOT_FOUND" {
		t.Fatalf("code = %s", code)
	}
	if code := errorCode(t, do(t, api, http.MethodGet, "/admin/users", testUser, nil), http.StatusForbidden); code != "FORBIDDEN" {
		t.Fatalf("code = %s", code)
	}
	if rec := do(t, api, http.MethodGet, "/drop-points", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("public drop points: %d", rec.Code)
	}
}

func TestRecycleClaimAndExchangeFlow(t *testing.T) {
	api := newTestAPI(t, nil)

	expect[map[string]any](t, do(t, api, http.MethodPost, "/users/register", testUser,
		map[string]string{"name": "Ana", "email": "ana@example.com"}), http.StatusCreated)
	// Registering twice returns the same profile.
	expect[map[string]any](t, do(t, api, http.MethodPost, "/users/register", testUser,
		map[string]string{"name": "Ana", "email": "ana@example.com"}), http.StatusCreated)

	dp := expect[dropoff.DropPoint](t, do(t, api, http.MethodPost, "/admin/drop-points", testAdmin,
		map[string]any{"name": "Bank Sampah", "address": "Jl. Merdeka 1", "active": true}), http.StatusCreated)
	expect[mission.Mission](t, do(t, api, http.MethodPost, "/admin/missions", testAdmin,
		map[string]any{"title": "First drop", "event": "logistic_order_approved", "target": 1, "points": 25, "active": true}), http.StatusCreated)

	order := expect[logistics.Order](t, do(t, api, http.MethodPost, "/logistic-orders", testUser, map[string]any{
		"type":          "drop_off",
		"drop_point_id": dp.ID,
		"items": []map[string]any{
			{"name": "PET bottles", "category": "plastic", "quantity": 3, "weight_kg": 0.6},
			{"name": "Cardboard", "category": "paper", "quantity": 1, "weight_kg": 1.2},
		},
	}), http.StatusCreated)
	if len(order.Items) != 2 || order.Status != logistics.StatusDraft {
		t.Fatalf("unexpected order: %+v", order)
	}

	// Another user cannot touch the order.
	if code := errorCode(t, do(t, api, http.MethodPost, "/logistic-orders/"+order.ID+"/submit", "user-2", nil), http.StatusForbidden); code != "FORBIDDEN" {
		t.Fatalf("code = %s", code)
	}

	expect[logistics.Order](t, do(t, api, http.MethodPost, "/logistic-orders/"+order.ID+"/submit", testUser, nil), http.StatusOK)
	approved := expect[logistics.Order](t, do(t, api, http.MethodPost, "/admin/logistic-orders/"+order.ID+"/approve", testAdmin,
		map[string]any{"item_points": map[string]int64{order.Items[0].ID: 30, order.Items[1].ID: 20}}), http.StatusOK)
	if approved.TotalPoints != 50 || approved.ReviewedBy != testAdmin {
		t.Fatalf("unexpected approval: %+v", approved)
	}
	if got := balance(t, api, testUser); got != 50 {
		t.Fatalf("balance after approval = %d", got)
	}

	missions := expect[[]mission.UserMission](t, do(t, api, http.MethodGet, "/missions", testUser, nil), http.StatusOK)
	if len(missions) != 1 || missions[0].Progress.Status != mission.ProgressCompleted {
		t.Fatalf("missions = %+v", missions)
	}
	expect[map[string]any](t, do(t, api, http.MethodPost, "/missions/"+missions[0].Mission.ID+"/claim", testUser, nil), http.StatusOK)
	errorCode(t, do(t, api, http.MethodPost, "/missions/"+missions[0].Mission.ID+"/claim", testUser, nil), http.StatusConflict)
	if got := balance(t, api, testUser); got != 75 {
		t.Fatalf("balance after mission = %d", got)
	}

	v := expect[voucher.Voucher](t, do(t, api, http.MethodPost, "/admin/vouchers", testAdmin, map[string]any{
		"code": "hemat10", "name": "Hemat 10", "discount_type": "fixed_points", "discount_value": 10,
		"points_cost": 15, "stock": 5, "active": true,
	}), http.StatusCreated)
	if v.Code != "HEMAT10" {
		t.Fatalf("code not normalised: %s", v.Code)
	}
	uv := expect[voucher.UserVoucher](t, do(t, api, http.MethodPost, "/vouchers/"+v.ID+"/claim", testUser, nil), http.StatusCreated)
	if got := balance(t, api, testUser); got != 60 {
		t.Fatalf("balance after voucher = %d", got)
	}

	item := expect[exchange.Item](t, do(t, api, http.MethodPost, "/admin/exchange/items", testAdmin,
		map[string]any{"name": "Tote bag", "points_cost": 20, "stock": 3, "active": true}), http.StatusCreated)

	tx := expect[exchange.Transaction](t, do(t, api, http.MethodPost, "/exchange/transactions", testUser,
		map[string]any{"lines": []map[string]any{{"item_id": item.ID, "quantity": 1}, {"item_id": item.ID, "quantity": 1}}}), http.StatusCreated)
	if len(tx.Lines) != 1 || tx.Subtotal != 40 {
		t.Fatalf("lines not merged: %+v", tx)
	}
	tx = expect[exchange.Transaction](t, do(t, api, http.MethodPut, "/exchange/transactions/"+tx.ID+"/voucher", testUser,
		map[string]string{"user_voucher_id": uv.ID}), http.StatusOK)
	if tx.Discount != 10 || tx.TotalPoints != 30 {
		t.Fatalf("discount not applied: %+v", tx)
	}
	tx = expect[exchange.Transaction](t, do(t, api, http.MethodPost, "/exchange/transactions/"+tx.ID+"/confirm", testUser, nil), http.StatusOK)
	if tx.Status != exchange.StatusCompleted {
		t.Fatalf("status = %s", tx.Status)
	}
	errorCode(t, do(t, api, http.MethodPost, "/exchange/transactions/"+tx.ID+"/confirm", testUser, nil), http.StatusConflict)
	if got := balance(t, api, testUser); got != 30 {
		t.Fatalf("balance after exchange = %d", got)
	}

	stocked := expect[exchange.Item](t, do(t, api, http.MethodGet, "/exchange/items/"+item.ID, testUser, nil), http.StatusOK)
	if stocked.Stock != 1 {
		t.Fatalf("stock = %d", stocked.Stock)
	}

	// Not enough points for a second exchange of the last item.
	big := expect[exchange.Transaction](t, do(t, api, http.MethodPost, "/exchange/transactions", testUser,
		map[string]any{"lines": []map[string]any{{"item_id": item.ID, "quantity": 1}}}), http.StatusCreated)
	do(t, api, http.MethodPost, "/admin/users/"+testUser+"/points", testAdmin, map[string]any{"delta": -25, "reason": "correction"})
	if code := errorCode(t, do(t, api, http.MethodPost, "/exchange/transactions/"+big.ID+"/confirm", testUser, nil), http.StatusUnprocessableEntity); code != "UNPROCESSABLE" {
		t.Fatalf("code = %s", code)
	}

	history := expect[pagination.Page[points.Entry]](t, do(t, api, http.MethodGet, "/me/points/history?limit=2", testUser, nil), http.StatusOK)
	if len(history.Items) != 2 || !history.HasMore || history.NextCursor == "" {
		t.Fatalf("history page = %+v", history)
	}
	next := expect[pagination.Page[points.Entry]](t, do(t, api, http.MethodGet, "/me/points/history?limit=10&cursor="+history.NextCursor, testUser, nil), http.StatusOK)
	if len(next.Items) != 3 || next.HasMore {
		t.Fatalf("second history page = %+v", next)
	}

	rejected := expect[exchange.Transaction](t, do(t, api, http.MethodPost, "/admin/exchange/transactions/"+tx.ID+"/reject", testAdmin,
		map[string]string{"reason": "item damaged"}), http.StatusOK)
	if rejected.Status != exchange.StatusRejected {
		t.Fatalf("status = %s", rejected.Status)
	}
	if got := balance(t, api, testUser); got != 35 {
		t.Fatalf("balance after refund = %d", got)
	}

	if code := errorCode(t, do(t, api, http.MethodDelete, "/admin/vouchers/"+v.ID, testAdmin, nil), http.StatusConflict); code != "CONFLICT" {
		t.Fatalf("delete claimed voucher code = %s", code)
	}
	errorCode(t, do(t, api, http.MethodDelete, "/admin/exchange/items/"+item.ID, testAdmin, nil), http.StatusConflict)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t, nil)
	expect[map[string]any](t, do(t, api, http.MethodPost, "/users/register", testUser,
		map[string]string{"name": "Ana", "email": "ana@example.com"}), http.StatusCreated)

	cases := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
	}{
		{"bad cursor", http.MethodGet, "/me/points/history?cursor=!!", testUser, nil, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/me/points/history?limit=abc", testUser, nil, http.StatusBadRequest},
		{"unknown field", http.MethodPatch, "/me", testUser, map[string]any{"nickname": "x"}, http.StatusBadRequest},
		{"zero adjustment", http.MethodPost, "/admin/users/" + testUser + "/points", testAdmin, map[string]any{"delta": 0}, http.StatusBadRequest},
		{"missing order", http.MethodGet, "/logistic-orders/nope", testUser, nil, http.StatusNotFound},
		{"unknown job", http.MethodPost, "/admin/maintenance/nope", testAdmin, nil, http.StatusNotFound},
		{"insufficient deduction", http.MethodPost, "/admin/users/" + testUser + "/points", testAdmin, map[string]any{"delta": -5}, http.StatusUnprocessableEntity},
		{"wrong method", http.MethodPut, "/me", testUser, nil, http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, api, tc.method, tc.path, tc.user, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMaintenanceEndpointRunsJob(t *testing.T) {
	api := newTestAPI(t, nil)
	out := expect[map[string]any](t, do(t, api, http.MethodPost, "/admin/maintenance/voucher_expiry", testAdmin, nil), http.StatusOK)
	if out["job"] != "voucher_expiry" || out["affected"] != float64(0) {
		t.Fatalf("unexpected result: %v", out)
	}
}

func TestAuditRecordsAdminRequests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	api := newTestAPI(t, func(cfg *config.Config) { cfg.Server.AuditLogPath = path })

	do(t, api, http.MethodGet, "/admin/users", testAdmin, nil)
	do(t, api, http.MethodGet, "/admin/users", testUser, nil)
	do(t, api, http.MethodGet, "/me", testUser, nil)

	entries := expect[[]auditEntry](t, do(t, api, http.MethodGet, "/admin/audit?limit=2", testAdmin, nil), http.StatusOK)
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].User != testUser || entries[0].Status != http.StatusForbidden {
		t.Fatalf("newest entry = %+v", entries[0])
	}
	if entries[1].User != testAdmin || entries[1].Status != http.StatusOK {
		t.Fatalf("older entry = %+v", entries[1])
	}

	denied := expect[[]auditEntry](t, do(t, api, http.MethodGet, "/admin/audit?min_status=400", testAdmin, nil), http.StatusOK)
	if len(denied) != 1 || denied[0].User != testUser {
		t.Fatalf("denied entries = %+v", denied)
	}
	mine := expect[[]auditEntry](t, do(t, api, http.MethodGet, "/admin/audit?user="+testAdmin, testAdmin, nil), http.StatusOK)
	for _, e := range mine {
		if e.User != testAdmin {
			t.Fatalf("user filter leaked %+v", e)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	if lines := strings.Count(string(raw), "\n"); lines < 2 {
		t.Fatalf("expected jsonl entries, got %q", raw)
	}
}
