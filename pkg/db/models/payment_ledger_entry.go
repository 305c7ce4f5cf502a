package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/pkg/enums"
)

// PaymentLedgerEntry records a verified gateway charge. The unique constraint
// on payment_reference is what makes order creation idempotent per charge.
type PaymentLedgerEntry struct {
	ID               uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentReference string         `gorm:"column:payment_reference;type:text;not null;uniqueIndex:uniq_payment_ledger_reference"`
	OrderID          uuid.UUID      `gorm:"column:order_id;type:uuid;not null"`
	AmountCents      int64          `gorm:"column:amount_cents;not null"`
	Currency         enums.Currency `gorm:"column:currency;type:text;not null;default:'USD'"`
	GatewayStatus    string         `gorm:"column:gateway_status;type:text;not null"`
	SettledAt        *time.Time     `gorm:"column:settled_at"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// UniqPaymentLedgerReference names the constraint used for race detection.
const UniqPaymentLedgerReference = "uniq_payment_ledger_reference"
