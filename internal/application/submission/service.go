// Package submission provides the application services for claim
// submission: the synchronous enqueue and dry-run checks, the durable
// job handler that performs the actual rail submit, and the connector
// status read model.
package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/events"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/rails"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/store"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/pkg/logger"
)

// ErrForbidden indicates the caller may not act on the claim's org.
var ErrForbidden = errors.New("caller may not act on this claim")

// RoleAdmin callers may act across orgs and run dry-runs.
const RoleAdmin = "admin"

// Principal identifies the caller as asserted by the trusted gateway.
type Principal struct {
	OrgID string
	Role  string
}

// CanActOn reports whether the principal may touch claims of the org.
func (p Principal) CanActOn(orgID string) bool {
	return p.Role == RoleAdmin || (p.OrgID != "" && p.OrgID == orgID)
}

// Stores is the slice of the store the submission service needs.
type Stores interface {
	store.ClaimStore
	store.PatientStore
	store.ProviderStore
	store.ConfigStore
	store.PollStore
	store.EventStore
}

// Resolver turns a rail and org into a ready connector.
type Resolver interface {
	Resolve(ctx context.Context, rail connector.Rail, orgID string) (connector.Connector, error)
}

// Enqueuer hands submission jobs to the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, claimID, rail, orgID string) (*queue.Job, bool, error)
}

// DefaultFirstPollDelay is how long after a successful submit the first
// status poll runs.
const DefaultFirstPollDelay = 5 * time.Minute

// Service coordinates claim submission.
type Service struct {
	stores         Stores
	resolver       Resolver
	enqueuer       Enqueuer
	recorder       *events.Recorder
	clock          shared.Clock
	firstPollDelay time.Duration
}

// NewService creates the submission service. firstPollDelay <= 0 falls
// back to DefaultFirstPollDelay.
func NewService(stores Stores, resolver Resolver, enqueuer Enqueuer, recorder *events.Recorder, clock shared.Clock, firstPollDelay time.Duration) *Service {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if firstPollDelay <= 0 {
		firstPollDelay = DefaultFirstPollDelay
	}
	return &Service{
		stores:         stores,
		resolver:       resolver,
		enqueuer:       enqueuer,
		recorder:       recorder,
		clock:          clock,
		firstPollDelay: firstPollDelay,
	}
}

// Enqueue queues a claim for submission on a rail. The claim must exist,
// belong to the caller's org, and not already be past draft. A second
// enqueue of the same claim and rail converges on the existing queued
// job instead of creating another.
func (s *Service) Enqueue(ctx context.Context, claimID, railName string, p Principal) (*queue.Job, bool, error) {
	rail, err := connector.ParseRail(railName)
	if err != nil {
		return nil, false, err
	}

	c, err := s.stores.GetClaim(ctx, claimID)
	if err != nil {
		return nil, false, err
	}
	if !p.CanActOn(c.OrgID) {
		return nil, false, ErrForbidden
	}

	if c.IsInFlight() {
		return nil, false, fmt.Errorf("%w: %s is %s on %s", claim.ErrDuplicateSubmission, c.ID, c.Status, c.Rail)
	}
	if c.IsTerminal() {
		return nil, false, fmt.Errorf("%w: claim %s already %s", claim.ErrInvalidTransition, c.ID, c.Status)
	}

	job, created, err := s.enqueuer.Enqueue(ctx, c.ID, rail.String(), c.OrgID)
	if err != nil {
		return nil, false, fmt.Errorf("enqueue submission: %w", err)
	}

	ctx = logger.WithClaim(ctx, c.ID, rail.String())
	if created {
		logger.Info(ctx, "submission queued", "jobId", job.ID)
	} else {
		logger.Info(ctx, "submission already queued", "jobId", job.ID)
	}
	return job, created, nil
}

// DryRunResult is the outcome of a successful dry-run.
type DryRunResult struct {
	Rail    connector.Rail `json:"rail"`
	Payload *rails.Payload `json:"payload"`
}

// DryRun validates the claim against a rail and returns the wire payload
// that a submission would transmit, without submitting or enqueueing
// anything. Admin only: the payload exposes patient details.
func (s *Service) DryRun(ctx context.Context, claimID, railName string, p Principal) (*DryRunResult, error) {
	if p.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: dry-run requires role %s", ErrForbidden, RoleAdmin)
	}

	rail, err := connector.ParseRail(railName)
	if err != nil {
		return nil, err
	}

	b, err := s.loadBundle(ctx, claimID, rail)
	if err != nil {
		return nil, err
	}

	conn, err := s.resolver.Resolve(ctx, rail, b.Claim.OrgID)
	if err != nil {
		return nil, err
	}
	if err := conn.Validate(ctx, b); err != nil {
		return nil, err
	}

	// Resolve already established the connector config exists.
	cc, err := s.stores.GetConnectorConfig(ctx, b.Claim.OrgID, rail)
	if err != nil {
		return nil, fmt.Errorf("load connector config: %w", err)
	}
	payload := rails.BuildPayload(rail, cc.Setting(connector.SettingOfficeSequence, ""), b)
	return &DryRunResult{Rail: rail, Payload: payload}, nil
}

// StatusView is the connector-status read model for one claim.
type StatusView struct {
	ClaimID         string           `json:"claimId"`
	Status          claim.Status     `json:"status"`
	Rail            string           `json:"rail,omitempty"`
	ExternalID      string           `json:"externalId,omitempty"`
	ReferenceNumber string           `json:"referenceNumber,omitempty"`
	LastSyncAt      *time.Time       `json:"lastSync,omitempty"`
	LastEvent       *connector.Event `json:"lastEvent,omitempty"`
}

// Status returns the claim's adjudication status together with the most
// recent connector event.
func (s *Service) Status(ctx context.Context, claimID string, p Principal) (*StatusView, error) {
	c, err := s.stores.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !p.CanActOn(c.OrgID) {
		return nil, ErrForbidden
	}

	last, err := s.stores.LatestEventByClaim(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("load latest event: %w", err)
	}

	return &StatusView{
		ClaimID:         c.ID,
		Status:          c.Status,
		Rail:            c.Rail,
		ExternalID:      c.ExternalID,
		ReferenceNumber: c.ReferenceNumber,
		LastSyncAt:      c.LastSyncAt,
		LastEvent:       last,
	}, nil
}

// loadBundle assembles the claim, patient and provider records a rail
// needs. Missing reference data comes back as a validation error so the
// caller fails permanently instead of retrying a data problem.
func (s *Service) loadBundle(ctx context.Context, claimID string, rail connector.Rail) (connector.Bundle, error) {
	var b connector.Bundle

	c, err := s.stores.GetClaim(ctx, claimID)
	if err != nil {
		return b, err
	}
	b.Claim = c

	patient, err := s.stores.GetPatient(ctx, c.PatientID)
	if err != nil {
		if errors.Is(err, claim.ErrPatientNotFound) {
			return b, connector.NewValidationError(rail, "patient", fmt.Sprintf("patient %s not found", c.PatientID))
		}
		return b, fmt.Errorf("load patient: %w", err)
	}
	b.Patient = patient

	provider, err := s.stores.GetProvider(ctx, c.ProviderID)
	if err != nil {
		if errors.Is(err, claim.ErrProviderNotFound) {
			return b, connector.NewValidationError(rail, "provider", fmt.Sprintf("provider %s not found", c.ProviderID))
		}
		return b, fmt.Errorf("load provider: %w", err)
	}
	b.Provider = provider

	return b, nil
}
