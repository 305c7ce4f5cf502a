package types

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Fulfillment stores carrier details attached when a seller marks an order sent.
type Fulfillment struct {
	Carrier        string     `json:"carrier"`
	TrackingNumber string     `json:"tracking_number"`
	Note           *string    `json:"note,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
}

// Value serializes the fulfillment to JSON.
func (f *Fulfillment) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan decodes JSONB into the fulfillment struct.
func (f *Fulfillment) Scan(value interface{}) error {
	if value == nil {
		*f = Fulfillment{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, f)
}
