package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	"github.com/tobiumeh/vendora-backend/pkg/types"
)

// TransitionInput captures a requested status change and its actor context.
type TransitionInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Actor   Actor
	// Fulfillment carries optional carrier metadata, persisted only on the
	// transition into sent.
	Fulfillment *types.Fulfillment
	// Reason is required when targeting canceled or disputed.
	Reason *string
}

// OrderFilters describe the inputs supported by the order list reads.
type OrderFilters struct {
	Status   *enums.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor *string        `json:"next_cursor,omitempty"`
}

// DeliveredSignal is the payout hand-off computed when an order completes.
type DeliveredSignal struct {
	OrderID         uuid.UUID `json:"order_id"`
	SellerID        uuid.UUID `json:"seller_id"`
	TotalCents      int64     `json:"total_cents"`
	CommissionCents int64     `json:"commission_cents"`
	NetPayoutCents  int64     `json:"net_payout_cents"`
	CommissionRate  string    `json:"commission_rate"`
}
