// Package httpapi exposes the application services over a JSON REST API.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	app "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/metrics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/config"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/httputil"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/middleware"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

const rateLimitCleanupInterval = time.Minute

// Catalog listings that anonymous callers may browse.
var publicPaths = []string{"/healthz", "/metrics", "/drop-points", "/vouchers", "/exchange/items"}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	log   *logger.Logger
	audit *auditLog
}

// API is the assembled HTTP surface: routes plus the middleware chain.
type API struct {
	handler http.Handler
	limiter *middleware.RateLimiter
	sink    *fileAuditSink
}

// NewHandler builds the router and wraps it with the middleware chain
// CORS, tracing, metrics, identity, rate limiting and auditing, in that order.
func NewHandler(application *app.Application, cfg *config.Config, log *logger.Logger) (*API, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("httpapi")
	}

	sink, err := newFileAuditSink(cfg.Server.AuditLogPath)
	if err != nil {
		return nil, err
	}
	h := &handler{app: application, log: log, audit: newAuditLog(500, sink, log.Named("audit"))}

	identity := middleware.NewIdentityMiddleware(cfg.Admin.UserIDs, log.Named("identity"), publicPaths)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.Named("ratelimit"))

	router := mux.NewRouter()
	router.Use(middleware.MetricsMiddleware(), identity.Handler, limiter.Handler, h.audit.middleware)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, r, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorResponse(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	h.routes(router)

	var root http.Handler = router
	root = middleware.NewTracingMiddleware(log.Named("http")).Handler(root)
	root = middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins).Handler(root)

	return &API{handler: root, limiter: limiter, sink: sink}, nil
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// StartBackground starts housekeeping goroutines that stop with ctx.
func (a *API) StartBackground(ctx context.Context) {
	a.limiter.StartCleanup(ctx, rateLimitCleanupInterval)
}

// Close releases the audit log file.
func (a *API) Close() error {
	return a.sink.Close()
}

func (h *handler) routes(r *mux.Router) {
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/users/register", h.registerUser).Methods(http.MethodPost)
	r.HandleFunc("/me", h.me).Methods(http.MethodGet)
	r.HandleFunc("/me", h.updateMe).Methods(http.MethodPatch)
	r.HandleFunc("/me/points", h.myBalance).Methods(http.MethodGet)
	r.HandleFunc("/me/points/history", h.myHistory).Methods(http.MethodGet)
	r.HandleFunc("/me/vouchers", h.myVouchers).Methods(http.MethodGet)

	r.HandleFunc("/logistic-orders", h.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/logistic-orders", h.listMyOrders).Methods(http.MethodGet)
	r.HandleFunc("/logistic-orders/{id}", h.getMyOrder).Methods(http.MethodGet)
	r.HandleFunc("/logistic-orders/{id}/items", h.addOrderItem).Methods(http.MethodPost)
	r.HandleFunc("/logistic-orders/{id}/items/{itemID}", h.removeOrderItem).Methods(http.MethodDelete)
	r.HandleFunc("/logistic-orders/{id}/submit", h.submitOrder).Methods(http.MethodPost)
	r.HandleFunc("/logistic-orders/{id}/cancel", h.cancelOrder).Methods(http.MethodPost)

	r.HandleFunc("/drop-points", h.listActiveDropPoints).Methods(http.MethodGet)
	r.HandleFunc("/drop-points/{id}", h.getDropPoint).Methods(http.MethodGet)

	r.HandleFunc("/missions", h.myMissions).Methods(http.MethodGet)
	r.HandleFunc("/missions/{id}/claim", h.claimMission).Methods(http.MethodPost)

	r.HandleFunc("/vouchers", h.listAvailableVouchers).Methods(http.MethodGet)
	r.HandleFunc("/vouchers/{id}", h.getVoucher).Methods(http.MethodGet)
	r.HandleFunc("/vouchers/{id}/claim", h.claimVoucher).Methods(http.MethodPost)

	r.HandleFunc("/exchange/items", h.listActiveItems).Methods(http.MethodGet)
	r.HandleFunc("/exchange/items/{id}", h.getItem).Methods(http.MethodGet)
	r.HandleFunc("/exchange/transactions", h.createExchange).Methods(http.MethodPost)
	r.HandleFunc("/exchange/transactions", h.listMyExchanges).Methods(http.MethodGet)
	r.HandleFunc("/exchange/transactions/{id}", h.getMyExchange).Methods(http.MethodGet)
	r.HandleFunc("/exchange/transactions/{id}/voucher", h.applyVoucher).Methods(http.MethodPut)
	r.HandleFunc("/exchange/transactions/{id}/voucher", h.removeVoucher).Methods(http.MethodDelete)
	r.HandleFunc("/exchange/transactions/{id}/confirm", h.confirmExchange).Methods(http.MethodPost)
	r.HandleFunc("/exchange/transactions/{id}/cancel", h.cancelExchange).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin(h.log.Named("admin")))
	h.adminRoutes(admin)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pageRequest reads the limit and cursor query parameters.
func pageRequest(r *http.Request) (pagination.Request, error) {
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		return pagination.Request{}, err
	}
	return pagination.Request{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}, nil
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

func callerID(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		h.badRequest(w, r, err)
		return false
	}
	return true
}

// respond writes v with status or maps err onto the error envelope.
func respond[T any](h *handler, w http.ResponseWriter, r *http.Request, status int, v T, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, status, v)
}

func (h *handler) noContent(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
