package enums

import "fmt"

// RefundState tracks the settlement lifecycle of an individual refund.
type RefundState string

const (
	RefundStatePending   RefundState = "pending"
	RefundStateCompleted RefundState = "completed"
	RefundStateFailed    RefundState = "failed"
)

var validRefundStates = []RefundState{
	RefundStatePending,
	RefundStateCompleted,
	RefundStateFailed,
}

// String implements fmt.Stringer.
func (r RefundState) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundState.
func (r RefundState) IsValid() bool {
	for _, candidate := range validRefundStates {
		if candidate == r {
			return true
		}
	}
	return false
}

// CountsTowardCap reports whether the refund still consumes refundable budget.
// Failed refunds release their amount back to the order.
func (r RefundState) CountsTowardCap() bool {
	return r == RefundStatePending || r == RefundStateCompleted
}

// ParseRefundState converts raw input into a RefundState.
func ParseRefundState(value string) (RefundState, error) {
	for _, candidate := range validRefundStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund state %q", value)
}
