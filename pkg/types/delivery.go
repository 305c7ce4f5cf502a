package types

import (
	"database/sql/driver"
	"encoding/json"
)

// Delivery stores buyer-supplied delivery details captured at checkout.
type Delivery struct {
	Method       string   `json:"method"`
	Address      *Address `json:"address,omitempty"`
	Instructions *string  `json:"instructions,omitempty"`
}

// Value serializes the delivery details to JSON.
func (d *Delivery) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan decodes JSONB into the delivery struct.
func (d *Delivery) Scan(value interface{}) error {
	if value == nil {
		*d = Delivery{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, d)
}
