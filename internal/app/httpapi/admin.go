package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/dropoff"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/exchange"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/logistics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/user"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/voucher"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/httputil"
)

func (h *handler) adminRoutes(r *mux.Router) {
	r.HandleFunc("/users", h.adminListUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", h.adminGetUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", h.adminDeleteUser).Methods(http.MethodDelete)
	r.HandleFunc("/users/{id}/role", h.adminSetRole).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}/points", h.adminAdjustPoints).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/points/history", h.adminHistory).Methods(http.MethodGet)

	r.HandleFunc("/logistic-orders", h.adminListOrders).Methods(http.MethodGet)
	r.HandleFunc("/logistic-orders/{id}", h.adminGetOrder).Methods(http.MethodGet)
	r.HandleFunc("/logistic-orders/{id}/approve", h.adminApproveOrder).Methods(http.MethodPost)
	r.HandleFunc("/logistic-orders/{id}/reject", h.adminRejectOrder).Methods(http.MethodPost)

	r.HandleFunc("/drop-points", h.adminListDropPoints).Methods(http.MethodGet)
	r.HandleFunc("/drop-points", h.adminCreateDropPoint).Methods(http.MethodPost)
	r.HandleFunc("/drop-points/{id}", h.adminUpdateDropPoint).Methods(http.MethodPut)
	r.HandleFunc("/drop-points/{id}", h.adminDeleteDropPoint).Methods(http.MethodDelete)

	r.HandleFunc("/missions", h.adminListMissions).Methods(http.MethodGet)
	r.HandleFunc("/missions", h.adminCreateMission).Methods(http.MethodPost)
	r.HandleFunc("/missions/{id}", h.adminGetMission).Methods(http.MethodGet)
	r.HandleFunc("/missions/{id}", h.adminUpdateMission).Methods(http.MethodPut)
	r.HandleFunc("/missions/{id}", h.adminDeleteMission).Methods(http.MethodDelete)

	r.HandleFunc("/vouchers", h.adminListVouchers).Methods(http.MethodGet)
	r.HandleFunc("/vouchers", h.adminCreateVoucher).Methods(http.MethodPost)
	r.HandleFunc("/vouchers/{id}", h.adminUpdateVoucher).Methods(http.MethodPut)
	r.HandleFunc("/vouchers/{id}", h.adminDeleteVoucher).Methods(http.MethodDelete)

	r.HandleFunc("/exchange/items", h.adminListItems).Methods(http.MethodGet)
	r.HandleFunc("/exchange/items", h.adminCreateItem).Methods(http.MethodPost)
	r.HandleFunc("/exchange/items/{id}", h.adminUpdateItem).Methods(http.MethodPut)
	r.HandleFunc("/exchange/items/{id}", h.adminDeleteItem).Methods(http.MethodDelete)
	r.HandleFunc("/exchange/transactions", h.adminListExchanges).Methods(http.MethodGet)
	r.HandleFunc("/exchange/transactions/{id}", h.adminGetExchange).Methods(http.MethodGet)
	r.HandleFunc("/exchange/transactions/{id}/reject", h.adminRejectExchange).Methods(http.MethodPost)

	r.HandleFunc("/maintenance/{job}", h.adminRunMaintenance).Methods(http.MethodPost)
	r.HandleFunc("/audit", h.adminAudit).Methods(http.MethodGet)
}

// --- users -------------------------------------------------------------------

func (h *handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	page, err := h.app.Users.List(r.Context(), req)
	respond(h, w, r, http.StatusOK, page, err)
}

func (h *handler) adminGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), pathID(r))
	respond(h, w, r, http.StatusOK, u, err)
}

func (h *handler) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.app.Users.Delete(r.Context(), pathID(r)))
}

func (h *handler) adminSetRole(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role user.Role `json:"role"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	u, err := h.app.Users.SetRole(r.Context(), pathID(r), payload.Role)
	respond(h, w, r, http.StatusOK, u, err)
}

func (h *handler) adminAdjustPoints(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Delta  int64  `json:"delta"`
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	entry, err := h.app.Points.Adjust(r.Context(), pathID(r), payload.Delta, payload.Reason)
	respond(h, w, r, http.StatusCreated, entry, err)
}

func (h *handler) adminHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, pathID(r))
}

// --- logistic orders ---------------------------------------------------------

func (h *handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	page, err := h.app.Logistics.List(r.Context(), logistics.Status(r.URL.Query().Get("status")), req)
	respond(h, w, r, http.StatusOK, page, err)
}

func (h *handler) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.app.Logistics.Get(r.Context(), pathID(r), callerID(r), true)
	respond(h, w, r, http.StatusOK, order, err)
}

func (h *handler) adminApproveOrder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ItemPoints map[string]int64 `json:"item_points"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	order, err := h.app.Logistics.Approve(r.Context(), pathID(r), callerID(r), payload.ItemPoints)
	respond(h, w, r, http.StatusOK, order, err)
}

func (h *handler) adminRejectOrder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	order, err := h.app.Logistics.Reject(r.Context(), pathID(r), callerID(r), payload.Reason)
	respond(h, w, r, http.StatusOK, order, err)
}

// --- drop points -------------------------------------------------------------

func (h *handler) adminListDropPoints(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.DropPoints.List(r.Context())
	respond(h, w, r, http.StatusOK, list, err)
}

func (h *handler) adminCreateDropPoint(w http.ResponseWriter, r *http.Request) {
	var dp dropoff.DropPoint
	if !h.decode(w, r, &dp) {
		return
	}
	created, err := h.app.DropPoints.Create(r.Context(), dp)
	respond(h, w, r, http.StatusCreated, created, err)
}

func (h *handler) adminUpdateDropPoint(w http.ResponseWriter, r *http.Request) {
	var dp dropoff.DropPoint
	if !h.decode(w, r, &dp) {
		return
	}
	dp.ID = pathID(r)
	updated, err := h.app.DropPoints.Update(r.Context(), dp)
	respond(h, w, r, http.StatusOK, updated, err)
}

func (h *handler) adminDeleteDropPoint(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.app.DropPoints.Delete(r.Context(), pathID(r)))
}

// --- missions ----------------------------------------------------------------

func (h *handler) adminListMissions(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Missions.List(r.Context())
	respond(h, w, r, http.StatusOK, list, err)
}

func (h *handler) adminCreateMission(w http.ResponseWriter, r *http.Request) {
	var m mission.Mission
	if !h.decode(w, r, &m) {
		return
	}
	created, err := h.app.Missions.Create(r.Context(), m)
	respond(h, w, r, http.StatusCreated, created, err)
}

func (h *handler) adminGetMission(w http.ResponseWriter, r *http.Request) {
	m, err := h.app.Missions.Get(r.Context(), pathID(r))
	respond(h, w, r, http.StatusOK, m, err)
}

func (h *handler) adminUpdateMission(w http.ResponseWriter, r *http.Request) {
	var m mission.Mission
	if !h.decode(w, r, &m) {
		return
	}
	m.ID = pathID(r)
	updated, err := h.app.Missions.Update(r.Context(), m)
	respond(h, w, r, http.StatusOK, updated, err)
}

func (h *handler) adminDeleteMission(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.app.Missions.Delete(r.Context(), pathID(r)))
}

// --- vouchers ----------------------------------------------------------------

func (h *handler) adminListVouchers(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	page, err := h.app.Vouchers.List(r.Context(), req)
	respond(h, w, r, http.StatusOK, page, err)
}

func (h *handler) adminCreateVoucher(w http.ResponseWriter, r *http.Request) {
	var v voucher.Voucher
	if !h.decode(w, r, &v) {
		return
	}
	created, err := h.app.Vouchers.Create(r.Context(), v)
	respond(h, w, r, http.StatusCreated, created, err)
}

func (h *handler) adminUpdateVoucher(w http.ResponseWriter, r *http.Request) {
	var v voucher.Voucher
	if !h.decode(w, r, &v) {
		return
	}
	v.ID = pathID(r)
	updated, err := h.app.Vouchers.Update(r.Context(), v)
	respond(h, w, r, http.StatusOK, updated, err)
}

func (h *handler) adminDeleteVoucher(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.app.Vouchers.Delete(r.Context(), pathID(r)))
}

// --- exchange ----------------------------------------------------------------

func (h *handler) adminListItems(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	page, err := h.app.Exchange.ListItems(r.Context(), false, req)
	respond(h, w, r, http.StatusOK, page, err)
}

func (h *handler) adminCreateItem(w http.ResponseWriter, r *http.Request) {
	var item exchange.Item
	if !h.decode(w, r, &item) {
		return
	}
	created, err := h.app.Exchange.CreateItem(r.Context(), item)
	respond(h, w, r, http.StatusCreated, created, err)
}

func (h *handler) adminUpdateItem(w http.ResponseWriter, r *http.Request) {
	var item exchange.Item
	if !h.decode(w, r, &item) {
		return
	}
	item.ID = pathID(r)
	updated, err := h.app.Exchange.UpdateItem(r.Context(), item)
	respond(h, w, r, http.StatusOK, updated, err)
}

func (h *handler) adminDeleteItem(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.app.Exchange.DeleteItem(r.Context(), pathID(r)))
}

func (h *handler) adminListExchanges(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	page, err := h.app.Exchange.List(r.Context(), exchange.Status(r.URL.Query().Get("status")), req)
	respond(h, w, r, http.StatusOK, page, err)
}

func (h *handler) adminGetExchange(w http.ResponseWriter, r *http.Request) {
	tx, err := h.app.Exchange.Get(r.Context(), pathID(r), callerID(r), true)
	respond(h, w, r, http.StatusOK, tx, err)
}

func (h *handler) adminRejectExchange(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	tx, err := h.app.Exchange.Reject(r.Context(), pathID(r), payload.Reason)
	respond(h, w, r, http.StatusOK, tx, err)
}

// --- operations --------------------------------------------------------------

func (h *handler) adminRunMaintenance(w http.ResponseWriter, r *http.Request) {
	job := mux.Vars(r)["job"]
	affected, err := h.app.Maintenance.Run(r.Context(), job)
	respond(h, w, r, http.StatusOK, map[string]interface{}{"job": job, "affected": affected}, err)
}

func (h *handler) adminAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", 100)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	minStatus, err := httputil.QueryInt(r, "min_status", 0)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.audit.query(auditQuery{
		User:      r.URL.Query().Get("user"),
		MinStatus: minStatus,
		Limit:     limit,
	}))
}
