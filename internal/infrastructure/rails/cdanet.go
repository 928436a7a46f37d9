package rails

import (
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
)

// CDAnet submits dental claims over the CDAnet standard. Most Canadian
// dental insurers adjudicate through it, so its validation is the
// strictest of the three rails.
type CDAnet struct {
	railConnector
}

// NewCDAnet creates the CDAnet connector.
func NewCDAnet(d Deps) *CDAnet {
	return &CDAnet{
		railConnector: newRailConnector(connector.RailCDAnet, d, validateCDAnet),
	}
}

func validateCDAnet(b connector.Bundle) *connector.ValidationError {
	if b.Provider.LicenseNumber == "" {
		return connector.NewValidationError(connector.RailCDAnet, "provider.licenseNumber", "required by CDAnet")
	}
	if b.Patient.DateOfBirth.IsZero() {
		return connector.NewValidationError(connector.RailCDAnet, "patient.dateOfBirth", "required by CDAnet")
	}
	return nil
}
