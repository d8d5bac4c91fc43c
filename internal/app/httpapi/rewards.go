package httpapi

import (
	"net/http"
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
)

func (h *handler) myMissions(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Missions.ListForUser(r.Context(), callerID(r), time.Now())
	respond(h, w, r, http.StatusOK, list, err)
}

func (h *handler) claimMission(w http.ResponseWriter, r *http.Request) {
	progress, entry, err := h.app.Missions.Claim(r.Context(), callerID(r), pathID(r))
	respond(h, w, r, http.StatusOK, struct {
		Progress mission.Progress `json:"progress"`
		Entry    points.Entry     `json:"entry"`
	}{progress, entry}, err)
}

func (h *handler) listAvailableVouchers(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	page, err := h.app.Vouchers.ListAvailable(r.Context(), req)
	respond(h, w, r, http.StatusOK, page, err)
}

func (h *handler) getVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := h.app.Vouchers.Get(r.Context(), pathID(r))
	respond(h, w, r, http.StatusOK, v, err)
}

func (h *handler) claimVoucher(w http.ResponseWriter, r *http.Request) {
	uv, err := h.app.Vouchers.Claim(r.Context(), callerID(r), pathID(r))
	respond(h, w, r, http.StatusCreated, uv, err)
}
