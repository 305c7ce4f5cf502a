package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusProcessing        OrderStatus = "processing"
	OrderStatusAvailabilityCheck OrderStatus = "availability_check"
	OrderStatusSent              OrderStatus = "sent"
	OrderStatusReceived          OrderStatus = "received"
	OrderStatusCompleted         OrderStatus = "completed"
	OrderStatusCanceled          OrderStatus = "canceled"
	OrderStatusDisputed          OrderStatus = "disputed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusAvailabilityCheck,
	OrderStatusSent,
	OrderStatusReceived,
	OrderStatusCompleted,
	OrderStatusCanceled,
	OrderStatusDisputed,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusCompleted || o == OrderStatusCanceled
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
