package orders

import (
	"fmt"
	"net/http"

	"github.com/tobiumeh/vendora-backend/api/responses"
	"github.com/tobiumeh/vendora-backend/api/validators"
	"github.com/tobiumeh/vendora-backend/internal/availability"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
)

type markUnavailableRequest struct {
	Reason   string `json:"reason" validate:"required"`
	WaitDays *int   `json:"wait_days,omitempty"`
}

type availabilityResponseRequest struct {
	Response string `json:"response" validate:"required"`
}

// MarkNotAvailable lets the seller put a processing order on an availability
// hold with an optional wait estimate.
func MarkNotAvailable(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "availability service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload markUnavailableRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.MarkNotAvailable(r.Context(), availability.MarkInput{
			OrderID:  orderID,
			Actor:    actor,
			Reason:   payload.Reason,
			WaitDays: payload.WaitDays,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// RespondToAvailability records the buyer's decision on a held order: wait,
// or cancel for a full refund of the remaining balance.
func RespondToAvailability(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "availability service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload availabilityResponseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		response, err := enums.ParseBuyerWaitResponse(payload.Response)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid response %q", payload.Response)))
			return
		}

		order, err := svc.RespondToAvailability(r.Context(), availability.RespondInput{
			OrderID:  orderID,
			Actor:    actor,
			Response: response,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
