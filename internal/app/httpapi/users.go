package httpapi

import (
	"net/http"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/voucher"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/users"
)

func (h *handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	u, err := h.app.Users.Register(r.Context(), callerID(r), payload.Name, payload.Email, payload.Phone)
	respond(h, w, r, http.StatusCreated, u, err)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), callerID(r))
	respond(h, w, r, http.StatusOK, u, err)
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var upd users.ProfileUpdate
	if !h.decode(w, r, &upd) {
		return
	}
	u, err := h.app.Users.UpdateProfile(r.Context(), callerID(r), upd)
	respond(h, w, r, http.StatusOK, u, err)
}

func (h *handler) myBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.app.Points.Balance(r.Context(), callerID(r))
	respond(h, w, r, http.StatusOK, map[string]int64{"balance": balance}, err)
}

func (h *handler) myHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, callerID(r))
}

func (h *handler) history(w http.ResponseWriter, r *http.Request, userID string) {
	req, err := pageRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	filter := points.Filter{Type: points.EntryType(r.URL.Query().Get("type"))}
	page, err := h.app.Points.History(r.Context(), userID, filter, req)
	respond(h, w, r, http.StatusOK, page, err)
}

func (h *handler) myVouchers(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	status := voucher.UserVoucherStatus(r.URL.Query().Get("status"))
	page, err := h.app.Vouchers.ListForUser(r.Context(), callerID(r), status, req)
	respond(h, w, r, http.StatusOK, page, err)
}
