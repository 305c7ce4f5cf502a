package enums

import "fmt"

// TimelineSender identifies the author of a timeline entry.
type TimelineSender string

const (
	TimelineSenderSystem TimelineSender = "system"
	TimelineSenderBuyer  TimelineSender = "buyer"
	TimelineSenderSeller TimelineSender = "seller"
)

var validTimelineSenders = []TimelineSender{
	TimelineSenderSystem,
	TimelineSenderBuyer,
	TimelineSenderSeller,
}

// String implements fmt.Stringer.
func (t TimelineSender) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TimelineSender.
func (t TimelineSender) IsValid() bool {
	for _, candidate := range validTimelineSenders {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTimelineSender converts raw input into a TimelineSender.
func ParseTimelineSender(value string) (TimelineSender, error) {
	for _, candidate := range validTimelineSenders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid timeline sender %q", value)
}
