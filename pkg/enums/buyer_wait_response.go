package enums

import "fmt"

// BuyerWaitResponse records the buyer's decision during an availability hold.
type BuyerWaitResponse string

const (
	BuyerWaitResponseAccepted  BuyerWaitResponse = "accepted"
	BuyerWaitResponseCancelled BuyerWaitResponse = "cancelled"
)

var validBuyerWaitResponses = []BuyerWaitResponse{
	BuyerWaitResponseAccepted,
	BuyerWaitResponseCancelled,
}

// String implements fmt.Stringer.
func (b BuyerWaitResponse) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BuyerWaitResponse.
func (b BuyerWaitResponse) IsValid() bool {
	for _, candidate := range validBuyerWaitResponses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBuyerWaitResponse converts raw input into a BuyerWaitResponse.
func ParseBuyerWaitResponse(value string) (BuyerWaitResponse, error) {
	for _, candidate := range validBuyerWaitResponses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid buyer wait response %q", value)
}
