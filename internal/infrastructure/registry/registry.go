// Package registry resolves the connector for an organization and rail.
package registry

import (
	"context"
	"net/http"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/netguard"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/rails"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/simulator"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
)

// Stores is the slice of the store the registry reads.
type Stores interface {
	GetConnectorConfig(ctx context.Context, orgID string, rail connector.Rail) (*connector.Config, error)
	ListConnectorConfigs(ctx context.Context, orgID string) ([]*connector.Config, error)
	GetClaim(ctx context.Context, id string) (*claim.Claim, error)
}

// Options tunes how connectors are built.
type Options struct {
	// AllowedPrefixes extends the sandbox allowlist beyond local hosts.
	AllowedPrefixes []string

	// HTTPTimeout bounds one rail round trip. Default 30s.
	HTTPTimeout time.Duration

	// Sleep overrides the simulated carrier latency. Nil keeps the real
	// 300-800ms delay; tests inject a no-op.
	Sleep func(ctx context.Context) error
}

// Registry builds rail connectors on demand. Configuration is read from
// the store on every Resolve call, so an operator's change takes effect
// on the next submission without a restart.
type Registry struct {
	stores Stores
	sim    *simulator.Simulator
	clock  shared.Clock
	sleep  func(ctx context.Context) error

	sandboxClient *http.Client
	liveClient    *http.Client
}

// New creates a registry.
func New(stores Stores, sim *simulator.Simulator, clock shared.Clock, opts Options) *Registry {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Registry{
		stores:        stores,
		sim:           sim,
		clock:         clock,
		sleep:         opts.Sleep,
		sandboxClient: netguard.NewClient(true, opts.AllowedPrefixes, timeout),
		liveClient:    netguard.NewClient(false, opts.AllowedPrefixes, timeout),
	}
}

// Resolve returns the connector for the rail, configured for the org.
// Missing, disabled or unknown rails come back as a *connector.ConfigError.
func (r *Registry) Resolve(ctx context.Context, rail connector.Rail, orgID string) (connector.Connector, error) {
	if !rail.Valid() {
		return nil, connector.NewConfigError(rail, orgID, "unsupported rail")
	}

	cfg, err := r.stores.GetConnectorConfig(ctx, orgID, rail)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, connector.NewConfigError(rail, orgID, "connector disabled")
	}

	client := r.sandboxClient
	if !cfg.Sandbox() {
		client = r.liveClient
	}

	deps := rails.Deps{
		Config: cfg,
		Sim:    r.sim,
		Claims: r.stores,
		Clock:  r.clock,
		Client: client,
		Sleep:  r.sleep,
	}

	switch rail {
	case connector.RailCDAnet:
		return rails.NewCDAnet(deps), nil
	case connector.RailEClaims:
		return rails.NewEClaims(deps), nil
	case connector.RailPortal:
		return rails.NewPortal(deps), nil
	default:
		return nil, connector.NewConfigError(rail, orgID, "unsupported rail")
	}
}

// Configured returns the org's connector configs, every rail it has set up.
func (r *Registry) Configured(ctx context.Context, orgID string) ([]*connector.Config, error) {
	return r.stores.ListConnectorConfigs(ctx, orgID)
}
