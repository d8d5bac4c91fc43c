package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/logistics"
	logisticsvc "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/logistics"
)

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Type        logistics.OrderType `json:"type"`
		DropPointID string              `json:"drop_point_id"`
		Address     string              `json:"address"`
		PickupAt    *time.Time          `json:"pickup_at"`
		Notes       string              `json:"notes"`
		Items       []logistics.Item    `json:"items"`
	}
	if !h.decode(w, r, &payload) {
		return
	}

	ctx := r.Context()
	order, err := h.app.Logistics.Create(ctx, logisticsvc.CreateRequest{
		UserID:      callerID(r),
		Type:        payload.Type,
		DropPointID: payload.DropPointID,
		Address:     payload.Address,
		PickupAt:    payload.PickupAt,
		Notes:       payload.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	for _, item := range payload.Items {
		if order, err = h.app.Logistics.AddItem(ctx, order.UserID, order.ID, item); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	respond(h, w, r, http.StatusCreated, order, nil)
}

func (h *handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	status := logistics.Status(r.URL.Query().Get("status"))
	page, err := h.app.Logistics.ListForUser(r.Context(), callerID(r), status, req)
	respond(h, w, r, http.StatusOK, page, err)
}

func (h *handler) getMyOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.app.Logistics.Get(r.Context(), pathID(r), callerID(r), false)
	respond(h, w, r, http.StatusOK, order, err)
}

func (h *handler) addOrderItem(w http.ResponseWriter, r *http.Request) {
	var item logistics.Item
	if !h.decode(w, r, &item) {
		return
	}
	order, err := h.app.Logistics.AddItem(r.Context(), callerID(r), pathID(r), item)
	respond(h, w, r, http.StatusCreated, order, err)
}

func (h *handler) removeOrderItem(w http.ResponseWriter, r *http.Request) {
	order, err := h.app.Logistics.RemoveItem(r.Context(), callerID(r), pathID(r), mux.Vars(r)["itemID"])
	respond(h, w, r, http.StatusOK, order, err)
}

func (h *handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.app.Logistics.Submit(r.Context(), callerID(r), pathID(r))
	respond(h, w, r, http.StatusOK, order, err)
}

func (h *handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.app.Logistics.Cancel(r.Context(), callerID(r), pathID(r))
	respond(h, w, r, http.StatusOK, order, err)
}

func (h *handler) listActiveDropPoints(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.DropPoints.ListActive(r.Context())
	respond(h, w, r, http.StatusOK, list, err)
}

func (h *handler) getDropPoint(w http.ResponseWriter, r *http.Request) {
	dp, err := h.app.DropPoints.Get(r.Context(), pathID(r))
	respond(h, w, r, http.StatusOK, dp, err)
}
