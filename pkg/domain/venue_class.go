package domain

import dErrors "chronocert/pkg/domain-errors"

// VenueClass selects the MiFID II divergence tier a timestamp is judged
// against. Invariant: the value must be one of the supported classes.
//
// Usage: construct via ParseVenueClass at trust boundaries; an absent value
// defaults to the strictest tier so omission can only under-claim compliance.
type VenueClass string

const (
	// VenueClassHFT covers high-frequency and algorithmic trading venues,
	// held to a 1 millisecond divergence tolerance.
	VenueClassHFT VenueClass = "hft"
	// VenueClassGateway covers gateway and other venues, held to a
	// 0.1 millisecond divergence tolerance.
	VenueClassGateway VenueClass = "gateway"
)

var validVenueClasses = map[VenueClass]bool{
	VenueClassHFT:     true,
	VenueClassGateway: true,
}

// ParseVenueClass constructs a VenueClass from external input. Empty input
// defaults to VenueClassGateway, the tighter tolerance.
func ParseVenueClass(s string) (VenueClass, error) {
	if s == "" {
		return VenueClassGateway, nil
	}
	c := VenueClass(s)
	if !validVenueClasses[c] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid venue class")
	}
	return c, nil
}

// IsValid checks if the venue class is one of the supported enum values.
func (c VenueClass) IsValid() bool {
	return validVenueClasses[c]
}

func (c VenueClass) String() string { return string(c) }
