package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/schedule"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/rails"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/pkg/logger"
)

// ErrBadChecksum indicates a webhook whose checksum does not verify.
var ErrBadChecksum = errors.New("webhook checksum mismatch")

// casRetries bounds reload-and-retry after a version conflict.
const casRetries = 3

// Observation is one status report for a submitted claim, whether pulled
// by the poll loop or pushed by a carrier webhook.
type Observation struct {
	ExternalID string
	Rail       connector.Rail
	Kind       connector.EventKind
	Status     connector.RailStatus
	Message    string
	Detail     json.RawMessage
	Payment    *connector.PaymentInfo
}

// Reconcile maps one observation onto the claim record: translate the
// rail status, compare-and-set the claim, append the audit event, record
// the remittance when payment arrived, and retire the schedule entry
// once the claim settles. Observations with a status the hub does not
// recognize are recorded verbatim and leave the claim untouched.
func (s *Scheduler) Reconcile(ctx context.Context, claimID string, obs Observation) (*claim.Claim, error) {
	now := s.clock.Now()

	c, err := s.stores.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	mapped, known := connector.MapStatus(obs.Status)
	if !known {
		s.recorder.Record(ctx, claimID, obs.Rail, obs.Kind, obs.Status, obs.Message, obs.Detail)
		logger.Warn(ctx, "unrecognized rail status recorded", "railStatus", string(obs.Status))
		return c, nil
	}

	updated := false
	for attempt := 0; attempt < casRetries; attempt++ {
		if c.IsTerminal() {
			// A concurrent observation settled the claim first.
			break
		}
		expected := c.Version
		if !c.ApplyStatus(mapped, now) {
			logger.Warn(ctx, "status transition refused",
				"from", string(c.Status), "to", string(mapped))
			break
		}
		if obs.Payment != nil && obs.Payment.ReferenceNumber != "" && c.ReferenceNumber == "" {
			c.SetReferenceNumber(obs.Payment.ReferenceNumber, now)
		}
		err = s.stores.UpdateClaim(ctx, c, expected)
		if err == nil {
			updated = true
			break
		}
		if !errors.Is(err, claim.ErrVersionConflict) {
			return nil, fmt.Errorf("reconcile claim %s: %w", claimID, err)
		}
		c, err = s.stores.GetClaim(ctx, claimID)
		if err != nil {
			return nil, fmt.Errorf("reload after version conflict: %w", err)
		}
	}

	s.recorder.Record(ctx, claimID, obs.Rail, obs.Kind, obs.Status, obs.Message, obs.Detail)

	if obs.Payment != nil {
		if err := s.ensureRemittance(ctx, c, obs, now); err != nil {
			return nil, fmt.Errorf("record remittance: %w", err)
		}
	}

	if c.IsTerminal() || mapped.IsTerminal() {
		if err := s.stores.DeletePoll(ctx, schedule.PollID(obs.ExternalID)); err != nil {
			logger.Error(ctx, "retiring poll failed", "error", err)
		}
	}

	if updated {
		logger.Info(ctx, "claim status reconciled",
			"status", string(c.Status),
			"source", string(obs.Kind),
		)
	}
	return c, nil
}

// applyStatus compare-and-sets one status transition onto the claim,
// reloading on version conflicts. Refused transitions and already
// settled claims are not errors: someone else resolved the claim first.
func (s *Scheduler) applyStatus(ctx context.Context, c *claim.Claim, status claim.Status, now time.Time) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		if c.IsTerminal() {
			return nil
		}
		expected := c.Version
		if !c.ApplyStatus(status, now) {
			return nil
		}
		err := s.stores.UpdateClaim(ctx, c, expected)
		if err == nil {
			return nil
		}
		if !errors.Is(err, claim.ErrVersionConflict) {
			return err
		}
		if c, err = s.stores.GetClaim(ctx, c.ID); err != nil {
			return err
		}
	}
	return claim.ErrVersionConflict
}

// ensureRemittance appends the payment exactly once. Reconciliation runs
// at least once per observation, so the append dedupes on the rail and
// reference number.
func (s *Scheduler) ensureRemittance(ctx context.Context, c *claim.Claim, obs Observation, now time.Time) error {
	existing, err := s.stores.ListRemittancesByClaim(ctx, c.ID)
	if err != nil {
		return err
	}
	for _, r := range existing {
		if r.Rail == obs.Rail.String() && r.ReferenceNumber == obs.Payment.ReferenceNumber {
			return nil
		}
	}

	amount, err := claim.ParseAmount(obs.Payment.Amount)
	if err != nil {
		return fmt.Errorf("payment amount %q: %w", obs.Payment.Amount, err)
	}
	return s.stores.AppendRemittance(ctx, &claim.Remittance{
		ID:              shared.NewID(),
		ClaimID:         c.ID,
		Rail:            obs.Rail.String(),
		Amount:          amount,
		PaymentDate:     obs.Payment.PaymentDate,
		ReferenceNumber: obs.Payment.ReferenceNumber,
		CreatedAt:       now,
	})
}

// WebhookRequest is the carrier-push status report.
type WebhookRequest struct {
	ExternalID string          `json:"externalId"`
	Status     string          `json:"status"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	Checksum   string          `json:"checksum"`
}

// WebhookChecksum computes the expected webhook checksum: SHA-256 hex
// over externalId + seed + status.
func WebhookChecksum(externalID, seed, status string) string {
	sum := sha256.Sum256([]byte(externalID + seed + status))
	return hex.EncodeToString(sum[:])
}

// HandleWebhook authenticates one pushed status report and feeds it into
// the same reconciliation path the poll loop uses. The seed comes from
// the org's connector settings, falling back to the deployment seed.
func (s *Scheduler) HandleWebhook(ctx context.Context, rail connector.Rail, req WebhookRequest) (*claim.Claim, error) {
	claimID, err := rails.ParseExternalID(rail, req.ExternalID)
	if err != nil {
		return nil, err
	}

	c, err := s.stores.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	seed := s.config.WebhookSeed
	if cfg, err := s.stores.GetConnectorConfig(ctx, c.OrgID, rail); err == nil {
		seed = cfg.Setting(connector.SettingWebhookSeed, seed)
	}
	if req.Checksum == "" || req.Checksum != WebhookChecksum(req.ExternalID, seed, req.Status) {
		return nil, fmt.Errorf("%w: claim %s", ErrBadChecksum, claimID)
	}

	// Carriers that settle a claim may attach the payment block.
	var detail struct {
		Payment *connector.PaymentInfo `json:"payment"`
	}
	if len(req.Detail) > 0 {
		_ = json.Unmarshal(req.Detail, &detail)
	}

	ctx = logger.WithClaim(ctx, claimID, rail.String())
	return s.Reconcile(ctx, claimID, Observation{
		ExternalID: req.ExternalID,
		Rail:       rail,
		Kind:       connector.EventKindWebhook,
		Status:     connector.RailStatus(req.Status),
		Message:    "carrier webhook",
		Detail:     req.Detail,
		Payment:    detail.Payment,
	})
}
