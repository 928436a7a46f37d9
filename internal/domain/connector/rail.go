// Package connector defines the contract between the claims hub and the
// external adjudication rails it submits to.
package connector

import "fmt"

// Rail identifies an adjudication network. The set is closed: adding a
// rail means adding a constant here and a case to every exhaustive switch
// over rails, which the compiler then checks.
type Rail string

const (
	// RailCDAnet is the dental claim standard used by most Canadian insurers.
	RailCDAnet Rail = "cdanet"
	// RailEClaims is the provider eClaims submission network.
	RailEClaims Rail = "eclaims"
	// RailPortal is the manual insurer web portal fallback.
	RailPortal Rail = "portal"
)

// Rails returns all known rails in a stable order.
func Rails() []Rail {
	return []Rail{RailCDAnet, RailEClaims, RailPortal}
}

// ParseRail validates a rail name from external input.
func ParseRail(s string) (Rail, error) {
	switch Rail(s) {
	case RailCDAnet:
		return RailCDAnet, nil
	case RailEClaims:
		return RailEClaims, nil
	case RailPortal:
		return RailPortal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRail, s)
}

// Valid returns true if r is a known rail.
func (r Rail) Valid() bool {
	_, err := ParseRail(string(r))
	return err == nil
}

// String returns the wire name of the rail.
func (r Rail) String() string {
	return string(r)
}
