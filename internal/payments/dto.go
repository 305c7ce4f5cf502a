package payments

import (
	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	"github.com/tobiumeh/vendora-backend/pkg/types"
)

// CartItem is one priced line submitted at checkout. The seller is carried per
// item so a mixed-seller cart can be rejected before any money moves.
type CartItem struct {
	ProductID      uuid.UUID
	SellerID       uuid.UUID
	Name           string
	UnitPriceCents int64
	Quantity       int
}

// VerifyInput carries a buyer's claim that a gateway charge paid for a cart.
type VerifyInput struct {
	PaymentReference  string
	ClaimedTotalCents int64
	Currency          enums.Currency
	BuyerID           uuid.UUID
	Items             []CartItem
	Delivery          *types.Delivery
}

// VerifyResult reports the order backing a charge and whether this call
// created it or found it already recorded.
type VerifyResult struct {
	Order   *models.Order
	Created bool
}
