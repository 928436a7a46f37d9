package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/schedule"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/pkg/logger"
)

// casRetries bounds reload-and-retry after a version conflict.
const casRetries = 3

// HandleSubmitJob executes one submission job: validate the bundle,
// submit to the rail, record the handoff on the claim and register the
// first status poll. Execution is at least once, so every step tolerates
// re-delivery: external ids are deterministic, the claim write is
// compare-and-set and the poll registration upserts.
func (s *Service) HandleSubmitJob(ctx context.Context, job *queue.Job) error {
	rail, err := connector.ParseRail(job.Rail)
	if err != nil {
		return err
	}

	b, err := s.loadBundle(ctx, job.ClaimID, rail)
	if err != nil {
		if errors.Is(err, claim.ErrNotFound) {
			// Claims are never deleted; a missing row is a data problem
			// retrying cannot heal.
			return connector.NewValidationError(rail, "claim", fmt.Sprintf("claim %s not found", job.ClaimID))
		}
		return err
	}
	c := b.Claim

	// Re-delivery after a crash between the claim write and the poll
	// registration: the rail already has this claim, so converge on the
	// recorded submission instead of submitting again.
	if c.ExternalID != "" && c.Rail == rail.String() && c.Status != claim.StatusDraft {
		return s.registerPoll(ctx, c, s.clock.Now())
	}
	if c.IsTerminal() {
		logger.Warn(ctx, "submit job for settled claim ignored", "status", string(c.Status))
		return nil
	}

	conn, err := s.resolver.Resolve(ctx, rail, job.OrgID)
	if err != nil {
		return err
	}
	if err := conn.Validate(ctx, b); err != nil {
		return err
	}

	res, err := conn.Submit(ctx, b)
	if err != nil {
		return fmt.Errorf("submit claim %s on %s: %w", job.ClaimID, rail, err)
	}

	now := s.clock.Now()
	recorded := false
	for attempt := 0; attempt < casRetries; attempt++ {
		if c.ExternalID != "" && c.Rail == rail.String() && c.Status != claim.StatusDraft {
			// A concurrent execution won the race; its submission is the
			// one of record.
			return s.registerPoll(ctx, c, now)
		}
		expected := c.Version
		c.MarkSubmitted(rail.String(), res.ExternalID, now)
		err = s.stores.UpdateClaim(ctx, c, expected)
		if err == nil {
			recorded = true
			break
		}
		if !errors.Is(err, claim.ErrVersionConflict) {
			return fmt.Errorf("record submission: %w", err)
		}
		c, err = s.stores.GetClaim(ctx, job.ClaimID)
		if err != nil {
			return fmt.Errorf("reload after version conflict: %w", err)
		}
	}
	if !recorded {
		return fmt.Errorf("record submission: %w", claim.ErrVersionConflict)
	}

	s.recorder.Record(ctx, c.ID, rail, connector.EventKindSubmit, res.Status, res.Message, res.Raw)

	if err := s.registerPoll(ctx, c, now); err != nil {
		return err
	}

	logger.Info(ctx, "claim submitted",
		"externalId", res.ExternalID,
		"railStatus", string(res.Status),
	)
	return nil
}

// registerPoll schedules the first status check for a submitted claim.
// The poll id derives from the external id, so re-registering after a
// re-delivered job overwrites instead of duplicating.
func (s *Service) registerPoll(ctx context.Context, c *claim.Claim, now time.Time) error {
	if c.ExternalID == "" || c.IsTerminal() {
		return nil
	}
	p := schedule.NewPoll(c.ID, c.ExternalID, c.Rail, c.OrgID, now.Add(s.firstPollDelay))
	if err := s.stores.UpsertPoll(ctx, p); err != nil {
		return fmt.Errorf("register poll: %w", err)
	}
	return nil
}
