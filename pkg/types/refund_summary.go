package types

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/pkg/enums"
)

// RefundSummary mirrors one refund record on its parent order.
type RefundSummary struct {
	RefundID    uuid.UUID          `json:"refund_id"`
	AmountCents int64              `json:"amount_cents"`
	Status      enums.RefundState  `json:"status"`
	Method      enums.RefundMethod `json:"method"`
	Reason      string             `json:"reason"`
	ProcessedBy enums.ActorRole    `json:"processed_by"`
	CreatedAt   time.Time          `json:"created_at"`
}

// RefundSummaries persist the order-side refund mirror as JSONB.
type RefundSummaries []RefundSummary

// Value serializes the summaries to JSON.
func (r RefundSummaries) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

// Scan decodes JSONB into the summary slice.
func (r *RefundSummaries) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded RefundSummaries
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*r = decoded
	return nil
}

// CapConsumedCents sums the amounts that still count against the refundable cap.
func (r RefundSummaries) CapConsumedCents() int64 {
	var total int64
	for _, summary := range r {
		if summary.Status.CountsTowardCap() {
			total += summary.AmountCents
		}
	}
	return total
}
