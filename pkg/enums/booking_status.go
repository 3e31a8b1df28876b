package enums

import "fmt"

// BookingStatus tracks the lifecycle of a slot reservation.
type BookingStatus string

const (
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusActive,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

// String implements fmt.Stringer.
func (s BookingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BookingStatus.
func (s BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// ParseBookingStatus converts raw input into a BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}
