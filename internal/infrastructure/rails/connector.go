package rails

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/simulator"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/pkg/logger"
)

// ClaimReader is the claim lookup polling needs. External ids embed the
// claim id, so a poll re-reads the claim to adjudicate against its
// current amount.
type ClaimReader interface {
	GetClaim(ctx context.Context, id string) (*claim.Claim, error)
}

// Deps carries everything a rail connector is built from. The HTTP client
// must already be wrapped by the sandbox allowlist guard; connectors never
// construct their own transport.
type Deps struct {
	Config *connector.Config
	Sim    *simulator.Simulator
	Claims ClaimReader
	Clock  shared.Clock
	Client *http.Client

	// Sleep overrides the simulated carrier latency. Nil means the real
	// 300-800ms sleep; tests inject a no-op.
	Sleep func(ctx context.Context) error
}

// railConnector holds the behavior all three rails share. Rail-specific
// types embed it and contribute only their extra validation rules.
type railConnector struct {
	rail   connector.Rail
	cfg    *connector.Config
	sim    *simulator.Simulator
	claims ClaimReader
	clock  shared.Clock
	client *http.Client
	sleep  func(ctx context.Context) error

	// extraValidate holds the rail's additional requirements.
	extraValidate func(b connector.Bundle) *connector.ValidationError
}

func newRailConnector(rail connector.Rail, d Deps, extra func(b connector.Bundle) *connector.ValidationError) railConnector {
	sleep := d.Sleep
	if sleep == nil {
		sleep = carrierLatency
	}
	clock := d.Clock
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return railConnector{
		rail:          rail,
		cfg:           d.Config,
		sim:           d.Sim,
		claims:        d.Claims,
		clock:         clock,
		client:        d.Client,
		sleep:         sleep,
		extraValidate: extra,
	}
}

// carrierLatency imitates the round trip to a clearinghouse: 300-800ms,
// cancellable.
func carrierLatency(ctx context.Context) error {
	d := 300*time.Millisecond + time.Duration(rand.Intn(501))*time.Millisecond
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Rail identifies the network this connector speaks to.
func (r *railConnector) Rail() connector.Rail {
	return r.rail
}

// Validate checks the bundle against the rail's requirements. Pure: no
// I/O, no state, so repeated calls agree.
func (r *railConnector) Validate(_ context.Context, b connector.Bundle) error {
	if b.Claim == nil {
		return connector.NewValidationError(r.rail, "claim", "record missing")
	}
	if b.Patient == nil {
		return connector.NewValidationError(r.rail, "patient", "record missing")
	}
	if b.Provider == nil {
		return connector.NewValidationError(r.rail, "provider", "record missing")
	}
	if b.Claim.PatientID == "" {
		return connector.NewValidationError(r.rail, "patientId", "required")
	}
	if b.Claim.ProviderID == "" {
		return connector.NewValidationError(r.rail, "providerId", "required")
	}
	if b.Claim.InsurerID == "" {
		return connector.NewValidationError(r.rail, "insurerId", "required")
	}
	if !b.Claim.Amount.IsPositive() {
		return connector.NewValidationError(r.rail, "amount", "must be positive")
	}
	if r.extraValidate != nil {
		if ve := r.extraValidate(b); ve != nil {
			return ve
		}
	}
	return nil
}

// Submit hands the claim to the rail. Sandbox mode sleeps the simulated
// carrier latency and adjudicates against the simulator; live mode fails
// loudly until a real adapter exists.
func (r *railConnector) Submit(ctx context.Context, b connector.Bundle) (*connector.SubmissionResult, error) {
	if err := r.Validate(ctx, b); err != nil {
		return nil, err
	}

	if !r.cfg.Sandbox() {
		return nil, fmt.Errorf("%w: %s submit", connector.ErrNotImplemented, r.rail)
	}

	if err := r.sleep(ctx); err != nil {
		return nil, &connector.NetworkError{Rail: r.rail, Op: "submit", Err: err}
	}

	// Build the wire payload exactly as a live adapter would transmit it.
	// Only its size is logged: payloads carry patient health information.
	raw, err := BuildPayload(r.rail, r.cfg.Setting(connector.SettingOfficeSequence, ""), b).Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", r.rail, err)
	}
	logger.Debug(ctx, "rail payload encoded", "rail", r.rail.String(), "bytes", len(raw))

	out := r.sim.Adjudicate(r.rail, b.Claim)

	return &connector.SubmissionResult{
		ExternalID: ExternalID(r.rail, b.Claim.ID),
		Status:     out.Status,
		Message:    out.Message,
		Raw:        out.Detail,
	}, nil
}

// PollStatus fetches the current adjudication status for an external id
// this rail issued.
func (r *railConnector) PollStatus(ctx context.Context, externalID string) (*connector.PollResult, error) {
	claimID, err := ParseExternalID(r.rail, externalID)
	if err != nil {
		return nil, err
	}

	if !r.cfg.Sandbox() {
		return nil, fmt.Errorf("%w: %s pollStatus", connector.ErrNotImplemented, r.rail)
	}

	c, err := r.claims.GetClaim(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", externalID, err)
	}

	out := r.sim.Adjudicate(r.rail, c)

	return &connector.PollResult{
		ExternalID: externalID,
		Status:     out.Status,
		Message:    out.Message,
		Raw:        out.Detail,
		Payment:    out.Payment,
	}, nil
}
