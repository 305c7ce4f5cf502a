package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/pkg/enums"
)

// OrderCreatedEvent signals a verified payment turned into an order.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID      `json:"order_id"`
	BuyerID          uuid.UUID      `json:"buyer_id"`
	SellerID         uuid.UUID      `json:"seller_id"`
	PaymentReference string         `json:"payment_reference"`
	TotalCents       int64          `json:"total_cents"`
	Currency         enums.Currency `json:"currency"`
}

// OrderStateChangedEvent is emitted on every lifecycle transition.
type OrderStateChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	BuyerID    uuid.UUID         `json:"buyer_id"`
	SellerID   uuid.UUID         `json:"seller_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	Actor      enums.ActorRole   `json:"actor"`
}

// OrderCanceledEvent is emitted whenever an order reaches canceled.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	SellerID   uuid.UUID `json:"seller_id"`
	CanceledAt time.Time `json:"canceled_at"`
	Reason     string    `json:"reason,omitempty"`
}

// OrderDeliveredEvent signals the payout pipeline that funds can be released.
type OrderDeliveredEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	SellerID        uuid.UUID `json:"seller_id"`
	TotalCents      int64     `json:"total_cents"`
	CommissionCents int64     `json:"commission_cents"`
	NetPayoutCents  int64     `json:"net_payout_cents"`
	CommissionRate  string    `json:"commission_rate"`
	DeliveredAt     time.Time `json:"delivered_at"`
}

// OrderDisputedEvent is emitted when a buyer disputes a sent order.
type OrderDisputedEvent struct {
	OrderID  uuid.UUID `json:"order_id"`
	BuyerID  uuid.UUID `json:"buyer_id"`
	SellerID uuid.UUID `json:"seller_id"`
	Reason   string    `json:"reason,omitempty"`
}

// AvailabilityHoldPlacedEvent tells the buyer an item is not immediately available.
type AvailabilityHoldPlacedEvent struct {
	OrderID      uuid.UUID  `json:"order_id"`
	BuyerID      uuid.UUID  `json:"buyer_id"`
	SellerID     uuid.UUID  `json:"seller_id"`
	Reason       string     `json:"reason"`
	WaitTimeDays *int       `json:"wait_time_days,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// RefundRequestedEvent is emitted when a refund row is created.
type RefundRequestedEvent struct {
	RefundID    uuid.UUID          `json:"refund_id"`
	OrderID     uuid.UUID          `json:"order_id"`
	BuyerID     uuid.UUID          `json:"buyer_id"`
	AmountCents int64              `json:"amount_cents"`
	Method      enums.RefundMethod `json:"method"`
	Reason      string             `json:"reason"`
}

// RefundStateChangedEvent is emitted when refund settlement resolves.
type RefundStateChangedEvent struct {
	RefundID uuid.UUID         `json:"refund_id"`
	OrderID  uuid.UUID         `json:"order_id"`
	Status   enums.RefundState `json:"status"`
}

// PaymentSettledEvent records gateway settlement confirmation for a ledger entry.
type PaymentSettledEvent struct {
	PaymentReference string    `json:"payment_reference"`
	OrderID          uuid.UUID `json:"order_id"`
	AmountCents      int64     `json:"amount_cents"`
	SettledAt        time.Time `json:"settled_at"`
}

// NotificationRequestedEvent tells downstream systems to alert a user.
type NotificationRequestedEvent struct {
	UserID  uuid.UUID              `json:"user_id"`
	OrderID *uuid.UUID             `json:"order_id,omitempty"`
	Type    enums.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
}
