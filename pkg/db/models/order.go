package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/pkg/enums"
	"github.com/tobiumeh/vendora-backend/pkg/types"
)

// Order is the aggregate root for the order lifecycle. Status changes are
// guarded by the version column: updates must match the loaded version or fail.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID          uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID         uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'processing'"`
	Currency         enums.Currency    `gorm:"column:currency;type:text;not null;default:'USD'"`
	TotalCents       int64             `gorm:"column:total_cents;not null"`
	PaymentReference string            `gorm:"column:payment_reference;type:text;not null"`
	Delivery         *types.Delivery   `gorm:"column:delivery;type:jsonb;serializer:json"`
	Fulfillment      *types.Fulfillment `gorm:"column:fulfillment;type:jsonb;serializer:json"`

	AvailabilityReason *string                  `gorm:"column:availability_reason"`
	WaitTimeDays       *int                     `gorm:"column:wait_time_days"`
	WaitTimeExpiresAt  *time.Time               `gorm:"column:wait_time_expires_at"`
	BuyerWaitResponse  *enums.BuyerWaitResponse `gorm:"column:buyer_wait_response;type:text"`

	CancellationReason *string `gorm:"column:cancellation_reason"`
	DisputeReason      *string `gorm:"column:dispute_reason"`

	RefundStatus    enums.RefundStatus    `gorm:"column:refund_status;type:refund_status;not null;default:'none'"`
	RefundSummaries types.RefundSummaries `gorm:"column:refund_summaries;type:jsonb"`

	Version int `gorm:"column:version;not null;default:1"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	SentAt      *time.Time `gorm:"column:sent_at"`
	ReceivedAt  *time.Time `gorm:"column:received_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CanceledAt  *time.Time `gorm:"column:canceled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a priced line captured at checkout time.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;type:text;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
