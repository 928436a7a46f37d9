package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/events"
	infraQueue "github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/rails"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/registry"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/simulator"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/store"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
)

func submitJobFor(c *claim.Claim, rail string, now time.Time) *queue.Job {
	return queue.NewSubmitJob(shared.NewID(), c.ID, rail, c.OrgID, now)
}

func TestHandleSubmitJobSubmitsAndSchedulesPoll(t *testing.T) {
	svc, s, clock := newTestService(t)
	c := seedClaim(t, s, "claim-1", "125.00", clock.Now())
	seedReferenceData(t, s)
	seedConfig(t, s, connector.RailPortal)
	ctx := context.Background()

	// The handler must satisfy the queue's handler contract.
	var _ infraQueue.HandlerFunc = svc.HandleSubmitJob

	job := submitJobFor(c, "portal", clock.Now())
	if err := svc.HandleSubmitJob(ctx, job); err != nil {
		t.Fatalf("handle submit job: %v", err)
	}

	wantExternal := rails.ExternalID(connector.RailPortal, "claim-1")
	got, err := s.GetClaim(ctx, "claim-1")
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if got.Status != claim.StatusSubmitted {
		t.Errorf("status = %s, want submitted", got.Status)
	}
	if got.ExternalID != wantExternal {
		t.Errorf("externalId = %s, want %s", got.ExternalID, wantExternal)
	}
	if got.Rail != "portal" || got.Version != 2 || got.SubmittedAt == nil {
		t.Errorf("submission not recorded on claim: %+v", got)
	}

	poll, err := s.GetPoll(ctx, "poll-"+wantExternal)
	if err != nil {
		t.Fatalf("get poll: %v", err)
	}
	if !poll.NextRunAt.Equal(testOrigin.Add(5 * time.Minute)) {
		t.Errorf("first poll at %v, want %v", poll.NextRunAt, testOrigin.Add(5*time.Minute))
	}
	if poll.ClaimID != "claim-1" || poll.Rail != "portal" || poll.OrgID != "org-1" {
		t.Errorf("poll carries wrong identity: %+v", poll)
	}

	evs, err := s.ListEventsByClaim(ctx, "claim-1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("recorded %d events, want 1", len(evs))
	}
	if evs[0].Kind != connector.EventKindSubmit {
		t.Errorf("event kind = %s", evs[0].Kind)
	}
	// A .00 amount adjudicates paid in the rail's acknowledgment.
	if evs[0].Status != connector.RailStatusPaid {
		t.Errorf("event status = %s, want paid", evs[0].Status)
	}
}

func TestHandleSubmitJobConvergesOnRedelivery(t *testing.T) {
	svc, s, clock := newTestService(t)
	c := seedClaim(t, s, "claim-1", "201.50", clock.Now())
	seedReferenceData(t, s)
	seedConfig(t, s, connector.RailEClaims)
	ctx := context.Background()

	job := submitJobFor(c, "eclaims", clock.Now())
	if err := svc.HandleSubmitJob(ctx, job); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	first, err := s.GetClaim(ctx, "claim-1")
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}

	// An expired lease re-delivers the same job; the second run must not
	// submit again.
	if err := svc.HandleSubmitJob(ctx, job); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	second, err := s.GetClaim(ctx, "claim-1")
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if second.Version != first.Version {
		t.Errorf("redelivery bumped claim version %d -> %d", first.Version, second.Version)
	}
	evs, err := s.ListEventsByClaim(ctx, "claim-1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(evs) != 1 {
		t.Errorf("redelivery recorded %d events, want 1", len(evs))
	}
	polls, err := s.ListPolls(ctx)
	if err != nil {
		t.Fatalf("list polls: %v", err)
	}
	if len(polls) != 1 {
		t.Errorf("redelivery left %d polls, want 1", len(polls))
	}
}

func TestHandleSubmitJobValidationFailureIsPermanent(t *testing.T) {
	svc, s, clock := newTestService(t)
	c := seedClaim(t, s, "claim-1", "125.00", clock.Now())
	seedConfig(t, s, connector.RailCDAnet)
	ctx := context.Background()

	// cdanet requires a patient birth date; this patient has none.
	err := s.PutPatient(ctx, &claim.Patient{
		ID: "pat-1", OrgID: "org-1", FirstName: "Dana", LastName: "Roy", MemberID: "M-221",
	})
	if err != nil {
		t.Fatalf("put patient: %v", err)
	}
	err = s.PutProvider(ctx, &claim.Provider{
		ID: "prov-1", OrgID: "org-1", FirstName: "Ira", LastName: "Shaw", LicenseNumber: "L-4452",
	})
	if err != nil {
		t.Fatalf("put provider: %v", err)
	}

	job := submitJobFor(c, "cdanet", clock.Now())
	handleErr := svc.HandleSubmitJob(ctx, job)

	var ve *connector.ValidationError
	if !errors.As(handleErr, &ve) {
		t.Fatalf("expected ValidationError, got %v", handleErr)
	}
	if connector.IsRetryable(handleErr) {
		t.Error("validation failures must not be retryable")
	}

	got, err := s.GetClaim(ctx, "claim-1")
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if got.Status != claim.StatusDraft || got.Version != 1 {
		t.Errorf("failed submit mutated the claim: %+v", got)
	}
	polls, err := s.ListPolls(ctx)
	if err != nil {
		t.Fatalf("list polls: %v", err)
	}
	if len(polls) != 0 {
		t.Errorf("failed submit registered %d polls", len(polls))
	}
}

func TestHandleSubmitJobMissingClaimIsPermanent(t *testing.T) {
	svc, _, clock := newTestService(t)

	job := queue.NewSubmitJob(shared.NewID(), "claim-ghost", "portal", "org-1", clock.Now())
	err := svc.HandleSubmitJob(context.Background(), job)

	var ve *connector.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for missing claim, got %v", err)
	}
	if connector.IsRetryable(err) {
		t.Error("a missing claim must not be retried")
	}
}

func TestHandleSubmitJobUnconfiguredRailIsPermanent(t *testing.T) {
	svc, s, clock := newTestService(t)
	c := seedClaim(t, s, "claim-1", "125.00", clock.Now())
	seedReferenceData(t, s)

	job := submitJobFor(c, "portal", clock.Now())
	err := svc.HandleSubmitJob(context.Background(), job)

	var ce *connector.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if connector.IsRetryable(err) {
		t.Error("config errors must not be retryable")
	}
}

// conflictingStore injects one version conflict on the first claim
// update, as a concurrent writer would.
type conflictingStore struct {
	*store.Memory
	conflicts int
}

func (cs *conflictingStore) UpdateClaim(ctx context.Context, c *claim.Claim, expectedVersion int) error {
	if cs.conflicts == 0 {
		cs.conflicts++
		return claim.ErrVersionConflict
	}
	return cs.Memory.UpdateClaim(ctx, c, expectedVersion)
}

func TestHandleSubmitJobRetriesVersionConflict(t *testing.T) {
	mem := store.NewMemory()
	t.Cleanup(func() { mem.Close() })
	cs := &conflictingStore{Memory: mem}
	clock := shared.NewManualClock(testOrigin)
	reg := registry.New(mem, simulator.New(clock), clock, registry.Options{Sleep: noSleep})
	rec := events.NewRecorder(mem, clock)
	runner := infraQueue.NewRunner(mem, clock, infraQueue.DefaultConfig())
	svc := NewService(cs, reg, runner, rec, clock, 5*time.Minute)

	c := seedClaim(t, mem, "claim-1", "125.00", clock.Now())
	seedReferenceData(t, mem)
	seedConfig(t, mem, connector.RailPortal)
	ctx := context.Background()

	job := submitJobFor(c, "portal", clock.Now())
	if err := svc.HandleSubmitJob(ctx, job); err != nil {
		t.Fatalf("handle submit job: %v", err)
	}
	if cs.conflicts != 1 {
		t.Fatalf("conflict was not exercised")
	}

	got, err := mem.GetClaim(ctx, "claim-1")
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if got.Status != claim.StatusSubmitted {
		t.Errorf("status = %s, want submitted after reload-and-retry", got.Status)
	}
	evs, err := mem.ListEventsByClaim(ctx, "claim-1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(evs) != 1 {
		t.Errorf("recorded %d events, want 1", len(evs))
	}
}
