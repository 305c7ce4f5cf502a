package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/api/middleware"
	"github.com/tobiumeh/vendora-backend/api/responses"
	"github.com/tobiumeh/vendora-backend/api/validators"
	"github.com/tobiumeh/vendora-backend/internal/payments"
	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
	"github.com/tobiumeh/vendora-backend/pkg/types"
)

type verifyCheckoutRequest struct {
	PaymentReference string           `json:"payment_reference" validate:"required"`
	TotalCents       int64            `json:"total_cents" validate:"required,min=1"`
	Currency         string           `json:"currency,omitempty"`
	Items            []verifyCartItem `json:"items" validate:"required,min=1,dive"`
	Delivery         *types.Delivery  `json:"delivery,omitempty"`
}

type verifyCartItem struct {
	ProductID      uuid.UUID `json:"product_id" validate:"required"`
	SellerID       uuid.UUID `json:"seller_id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	UnitPriceCents int64     `json:"unit_price_cents" validate:"min=0"`
	Quantity       int       `json:"quantity" validate:"required,min=1"`
}

type verifyCheckoutResponse struct {
	Order   *models.Order `json:"order"`
	Created bool          `json:"created"`
}

// VerifyCheckout confirms a gateway charge against the submitted cart and
// creates the backing order. Replays with the same payment reference return
// the existing order.
func VerifyCheckout(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		rawUser := middleware.UserIDFromContext(r.Context())
		if rawUser == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		buyerID, err := uuid.Parse(rawUser)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id"))
			return
		}

		var payload verifyCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency := enums.CurrencyUSD
		if payload.Currency != "" {
			currency, err = enums.ParseCurrency(payload.Currency)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency"))
				return
			}
		}

		items := make([]payments.CartItem, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, payments.CartItem{
				ProductID:      item.ProductID,
				SellerID:       item.SellerID,
				Name:           item.Name,
				UnitPriceCents: item.UnitPriceCents,
				Quantity:       item.Quantity,
			})
		}

		result, err := svc.VerifyAndCreateOrder(r.Context(), payments.VerifyInput{
			PaymentReference:  payload.PaymentReference,
			ClaimedTotalCents: payload.TotalCents,
			Currency:          currency,
			BuyerID:           buyerID,
			Items:             items,
			Delivery:          payload.Delivery,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, verifyCheckoutResponse{Order: result.Order, Created: result.Created})
	}
}
