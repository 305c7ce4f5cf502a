package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/pkg/enums"
)

// LedgerEvent records an immutable money lifecycle event tied to an order.
// ActorUserID is nil for gateway-driven events that have no acting user.
type LedgerEvent struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	BuyerID     uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID    uuid.UUID             `gorm:"column:seller_id;type:uuid;not null"`
	ActorUserID *uuid.UUID            `gorm:"column:actor_user_id;type:uuid"`
	Type        enums.LedgerEventType `gorm:"column:type;type:ledger_event_type_enum;not null"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
