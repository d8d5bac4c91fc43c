package httpapi

import (
	"net/http"

	exchangesvc "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/exchange"
)

func (h *handler) listActiveItems(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	page, err := h.app.Exchange.ListItems(r.Context(), true, req)
	respond(h, w, r, http.StatusOK, page, err)
}

func (h *handler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.app.Exchange.GetItem(r.Context(), pathID(r))
	respond(h, w, r, http.StatusOK, item, err)
}

func (h *handler) createExchange(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Lines []exchangesvc.LineRequest `json:"lines"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	tx, err := h.app.Exchange.Create(r.Context(), callerID(r), payload.Lines)
	respond(h, w, r, http.StatusCreated, tx, err)
}

func (h *handler) listMyExchanges(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	page, err := h.app.Exchange.ListForUser(r.Context(), callerID(r), req)
	respond(h, w, r, http.StatusOK, page, err)
}

func (h *handler) getMyExchange(w http.ResponseWriter, r *http.Request) {
	tx, err := h.app.Exchange.Get(r.Context(), pathID(r), callerID(r), false)
	respond(h, w, r, http.StatusOK, tx, err)
}

func (h *handler) applyVoucher(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserVoucherID string `json:"user_voucher_id"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	tx, err := h.app.Exchange.ApplyVoucher(r.Context(), callerID(r), pathID(r), payload.UserVoucherID)
	respond(h, w, r, http.StatusOK, tx, err)
}

func (h *handler) removeVoucher(w http.ResponseWriter, r *http.Request) {
	tx, err := h.app.Exchange.ApplyVoucher(r.Context(), callerID(r), pathID(r), "")
	respond(h, w, r, http.StatusOK, tx, err)
}

func (h *handler) confirmExchange(w http.ResponseWriter, r *http.Request) {
	tx, err := h.app.Exchange.Confirm(r.Context(), callerID(r), pathID(r))
	respond(h, w, r, http.StatusOK, tx, err)
}

func (h *handler) cancelExchange(w http.ResponseWriter, r *http.Request) {
	tx, err := h.app.Exchange.Cancel(r.Context(), callerID(r), pathID(r))
	respond(h, w, r, http.StatusOK, tx, err)
}
