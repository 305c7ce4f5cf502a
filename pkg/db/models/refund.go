package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/pkg/enums"
)

// Refund is an append-only ledger row. Rows are never deleted; a failed refund
// keeps its row and releases its amount back to the order's refundable budget.
type Refund struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents int64              `gorm:"column:amount_cents;not null"`
	Currency    enums.Currency     `gorm:"column:currency;type:text;not null;default:'USD'"`
	Reason      string             `gorm:"column:reason;type:text;not null"`
	Method      enums.RefundMethod `gorm:"column:method;type:text;not null"`
	Status      enums.RefundState  `gorm:"column:status;type:text;not null;default:'pending'"`
	ProcessedBy enums.ActorRole    `gorm:"column:processed_by;type:text;not null"`
	ProcessorID *uuid.UUID         `gorm:"column:processor_id;type:uuid"`
	FailureNote *string            `gorm:"column:failure_note"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
