package httpapi

import (
	"errors"
	"net/http"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/dropoff"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/exchange"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/logistics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/maintenance"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/missions"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/users"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/vouchers"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	svcerrors "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/errors"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/httputil"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

var (
	badRequestErrors = []error{
		pagination.ErrInvalidCursor,
		points.ErrInvalidAmount,
		points.ErrInvalidRequest,
		users.ErrInvalidProfile,
		users.ErrInvalidRole,
		dropoff.ErrInvalidDropPoint,
		missions.ErrInvalidMission,
		vouchers.ErrInvalidVoucher,
		logistics.ErrInvalidOrder,
		exchange.ErrInvalidExchange,
	}

	unprocessableErrors = []error{
		points.ErrInsufficientPoints,
		storage.ErrInsufficient,
		missions.ErrNotCompleted,
		vouchers.ErrOutOfStock,
		vouchers.ErrVoucherUnavailable,
		vouchers.ErrVoucherNotUsable,
		logistics.ErrDropPointInactive,
		exchange.ErrOutOfStock,
		exchange.ErrItemUnavailable,
	}

	conflictErrors = []error{
		storage.ErrConflict,
		missions.ErrAlreadyClaimed,
		logistics.ErrInvalidTransition,
		exchange.ErrInvalidTransition,
	}
)

// toServiceError maps a service error onto the HTTP error envelope. Unknown
// errors become 500s and their message is not exposed.
func toServiceError(err error) *svcerrors.ServiceError {
	if se := svcerrors.GetServiceError(err); se != nil {
		return se
	}
	switch {
	case matchesAny(err, badRequestErrors):
		return svcerrors.BadRequest(err.Error(), err)
	case matchesAny(err, unprocessableErrors):
		return svcerrors.Unprocessable(err.Error(), err)
	case matchesAny(err, conflictErrors):
		return svcerrors.Conflict(err.Error(), err)
	case errors.Is(err, logistics.ErrNotOwner), errors.Is(err, exchange.ErrNotOwner):
		return svcerrors.Forbidden(err.Error())
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, maintenance.ErrUnknownJob):
		return svcerrors.NotFound(err.Error(), err)
	default:
		return svcerrors.Internal("internal server error", err)
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := toServiceError(err)
	entry := h.log.WithContext(r.Context()).WithError(err).WithField("status", se.HTTPStatus)
	if se.HTTPStatus >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	httputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

func (h *handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, svcerrors.BadRequest(err.Error(), err))
}
