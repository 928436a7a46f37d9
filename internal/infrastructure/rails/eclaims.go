package rails

import (
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
)

// EClaims submits through the provider eClaims network.
type EClaims struct {
	railConnector
}

// NewEClaims creates the eClaims connector.
func NewEClaims(d Deps) *EClaims {
	return &EClaims{
		railConnector: newRailConnector(connector.RailEClaims, d, validateEClaims),
	}
}

func validateEClaims(b connector.Bundle) *connector.ValidationError {
	if b.Provider.LicenseNumber == "" {
		return connector.NewValidationError(connector.RailEClaims, "provider.licenseNumber", "required by eClaims")
	}
	if b.Patient.MemberID == "" {
		return connector.NewValidationError(connector.RailEClaims, "patient.memberId", "required by eClaims")
	}
	return nil
}
