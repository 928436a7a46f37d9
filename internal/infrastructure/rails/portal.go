package rails

import (
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
)

// Portal models manual submission through an insurer's web portal. It is
// the fallback when neither electronic rail reaches the insurer, so it
// only enforces the common requirements.
type Portal struct {
	railConnector
}

// NewPortal creates the portal connector.
func NewPortal(d Deps) *Portal {
	return &Portal{
		railConnector: newRailConnector(connector.RailPortal, d, nil),
	}
}
