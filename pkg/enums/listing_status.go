package enums

import "fmt"

// ListingStatus tracks a listing's availability.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusReserved  ListingStatus = "reserved"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusCancelled ListingStatus = "cancelled"
)

var validListingStatuses = []ListingStatus{
	ListingStatusActive,
	ListingStatusReserved,
	ListingStatusSold,
	ListingStatusCancelled,
}

// listingTransitions is the only place listing status moves are defined.
// active→cancelled is the withdrawal path used when a listing cannot be
// deleted because historical transactions still reference it.
var listingTransitions = map[ListingStatus][]ListingStatus{
	ListingStatusActive:   {ListingStatusReserved, ListingStatusCancelled},
	ListingStatusReserved: {ListingStatusSold, ListingStatusActive},
}

// String implements fmt.Stringer.
func (s ListingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ListingStatus.
func (s ListingStatus) IsValid() bool {
	for _, candidate := range validListingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the listing can never change status again.
func (s ListingStatus) IsTerminal() bool {
	return s == ListingStatusSold || s == ListingStatusCancelled
}

// CanTransition reports whether from → to is a legal listing move.
func (s ListingStatus) CanTransition(to ListingStatus) bool {
	for _, next := range listingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseListingStatus converts raw input into ListingStatus.
func ParseListingStatus(value string) (ListingStatus, error) {
	for _, candidate := range validListingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing status %q", value)
}
