package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/schedule"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
)

func mustAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse amount %q: %v", s, err)
	}
	return d
}

func suiteClaim(t *testing.T, id string, now time.Time) *claim.Claim {
	t.Helper()
	c := claim.New(id, "org-1", "pat-1", "prov-1", "ins-1", mustAmount(t, "125.00"), now)
	c.Codes = []claim.ServiceCode{
		{Code: "27201", Description: "crown, porcelain fused to metal", Fee: mustAmount(t, "125.00")},
	}
	c.Diagnosis = []string{"K02.9"}
	return c
}

// runStoreSuite exercises the full Store contract. Every backend has to
// pass it unchanged: callers never know which implementation they hold.
func runStoreSuite(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("claims", func(t *testing.T) {
		now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

		c := suiteClaim(t, "claim-a", now)
		if err := s.CreateClaim(ctx, c); err != nil {
			t.Fatalf("create claim: %v", err)
		}
		if err := s.CreateClaim(ctx, c); err == nil {
			t.Error("expected error on duplicate create, got nil")
		}

		got, err := s.GetClaim(ctx, "claim-a")
		if err != nil {
			t.Fatalf("get claim: %v", err)
		}
		if got.Status != claim.StatusDraft {
			t.Errorf("expected status draft, got %s", got.Status)
		}
		if got.Version != 1 {
			t.Errorf("expected version 1, got %d", got.Version)
		}
		if !got.Amount.Equal(mustAmount(t, "125.00")) {
			t.Errorf("expected amount 125.00, got %s", got.Amount)
		}
		if len(got.Codes) != 1 || got.Codes[0].Code != "27201" {
			t.Errorf("expected one code 27201, got %+v", got.Codes)
		}
		if len(got.Diagnosis) != 1 || got.Diagnosis[0] != "K02.9" {
			t.Errorf("expected diagnosis K02.9, got %v", got.Diagnosis)
		}
		if !got.CreatedAt.Equal(now) {
			t.Errorf("expected createdAt %v, got %v", now, got.CreatedAt)
		}
		if got.SubmittedAt != nil {
			t.Errorf("expected nil submittedAt, got %v", got.SubmittedAt)
		}

		if _, err := s.GetClaim(ctx, "missing"); !errors.Is(err, claim.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		// CAS on version.
		later := now.Add(time.Minute)
		got.MarkSubmitted("cdanet", "CDN-claim-a-a1b2c3", later)
		if err := s.UpdateClaim(ctx, got, 1); err != nil {
			t.Fatalf("update claim: %v", err)
		}

		got, err = s.GetClaim(ctx, "claim-a")
		if err != nil {
			t.Fatalf("get claim after update: %v", err)
		}
		if got.Status != claim.StatusSubmitted {
			t.Errorf("expected status submitted, got %s", got.Status)
		}
		if got.Version != 2 {
			t.Errorf("expected version 2, got %d", got.Version)
		}
		if got.Rail != "cdanet" || got.ExternalID != "CDN-claim-a-a1b2c3" {
			t.Errorf("rail/external id not persisted: %s %s", got.Rail, got.ExternalID)
		}
		if got.SubmittedAt == nil || !got.SubmittedAt.Equal(later) {
			t.Errorf("expected submittedAt %v, got %v", later, got.SubmittedAt)
		}

		stale := suiteClaim(t, "claim-a", now)
		stale.MarkSubmitted("portal", "PRT-claim-a-ffffff", later)
		if err := s.UpdateClaim(ctx, stale, 1); !errors.Is(err, claim.ErrVersionConflict) {
			t.Errorf("expected ErrVersionConflict on stale write, got %v", err)
		}

		phantom := suiteClaim(t, "claim-ghost", now)
		if err := s.UpdateClaim(ctx, phantom, 1); !errors.Is(err, claim.ErrNotFound) {
			t.Errorf("expected ErrNotFound for phantom claim, got %v", err)
		}

		c2 := suiteClaim(t, "claim-b", now)
		if err := s.CreateClaim(ctx, c2); err != nil {
			t.Fatalf("create second claim: %v", err)
		}

		submitted, err := s.ListClaimsByStatus(ctx, claim.StatusSubmitted)
		if err != nil {
			t.Fatalf("list submitted: %v", err)
		}
		if len(submitted) != 1 || submitted[0].ID != "claim-a" {
			t.Errorf("expected [claim-a], got %+v", submitted)
		}

		both, err := s.ListClaimsByStatus(ctx, claim.StatusDraft, claim.StatusSubmitted)
		if err != nil {
			t.Fatalf("list draft+submitted: %v", err)
		}
		if len(both) != 2 || both[0].ID != "claim-a" || both[1].ID != "claim-b" {
			t.Errorf("expected [claim-a claim-b], got %+v", both)
		}

		none, err := s.ListClaimsByStatus(ctx)
		if err != nil {
			t.Fatalf("list with no statuses: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected empty list, got %d claims", len(none))
		}
	})

	t.Run("patients and providers", func(t *testing.T) {
		dob := time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)
		p := &claim.Patient{
			ID: "pat-1", OrgID: "org-1", FirstName: "Dana", LastName: "Roy",
			DateOfBirth: dob, Gender: "F", MemberID: "M-778", GroupNumber: "G-12",
		}
		if err := s.PutPatient(ctx, p); err != nil {
			t.Fatalf("put patient: %v", err)
		}
		got, err := s.GetPatient(ctx, "pat-1")
		if err != nil {
			t.Fatalf("get patient: %v", err)
		}
		if got.LastName != "Roy" || got.MemberID != "M-778" {
			t.Errorf("patient fields not persisted: %+v", got)
		}
		if !got.DateOfBirth.Equal(dob) {
			t.Errorf("expected dob %v, got %v", dob, got.DateOfBirth)
		}

		p.GroupNumber = "G-77"
		if err := s.PutPatient(ctx, p); err != nil {
			t.Fatalf("replace patient: %v", err)
		}
		got, err = s.GetPatient(ctx, "pat-1")
		if err != nil {
			t.Fatalf("get patient after replace: %v", err)
		}
		if got.GroupNumber != "G-77" {
			t.Errorf("expected group G-77, got %s", got.GroupNumber)
		}

		if _, err := s.GetPatient(ctx, "missing"); !errors.Is(err, claim.ErrPatientNotFound) {
			t.Errorf("expected ErrPatientNotFound, got %v", err)
		}

		noDOB := &claim.Patient{ID: "pat-2", OrgID: "org-1", FirstName: "Ira", LastName: "Shaw"}
		if err := s.PutPatient(ctx, noDOB); err != nil {
			t.Fatalf("put patient without dob: %v", err)
		}
		got, err = s.GetPatient(ctx, "pat-2")
		if err != nil {
			t.Fatalf("get patient without dob: %v", err)
		}
		if !got.DateOfBirth.IsZero() {
			t.Errorf("expected zero dob, got %v", got.DateOfBirth)
		}

		pr := &claim.Provider{
			ID: "prov-1", OrgID: "org-1", FirstName: "Ira", LastName: "Shaw",
			LicenseNumber: "L-5521", NPI: "1234567890", Specialty: "general dentistry",
		}
		if err := s.PutProvider(ctx, pr); err != nil {
			t.Fatalf("put provider: %v", err)
		}
		gotPr, err := s.GetProvider(ctx, "prov-1")
		if err != nil {
			t.Fatalf("get provider: %v", err)
		}
		if gotPr.LicenseNumber != "L-5521" || gotPr.NPI != "1234567890" {
			t.Errorf("provider fields not persisted: %+v", gotPr)
		}

		if _, err := s.GetProvider(ctx, "missing"); !errors.Is(err, claim.ErrProviderNotFound) {
			t.Errorf("expected ErrProviderNotFound, got %v", err)
		}
	})

	t.Run("connector configs", func(t *testing.T) {
		now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

		cfg := &connector.Config{
			OrgID: "org-1", Rail: connector.RailCDAnet, Enabled: true, Mode: connector.ModeSandbox,
			Settings:  map[string]string{"officeSequence": "000042"},
			UpdatedAt: now,
		}
		if err := s.PutConnectorConfig(ctx, cfg); err != nil {
			t.Fatalf("put config: %v", err)
		}

		got, err := s.GetConnectorConfig(ctx, "org-1", connector.RailCDAnet)
		if err != nil {
			t.Fatalf("get config: %v", err)
		}
		if !got.Enabled || got.Mode != connector.ModeSandbox {
			t.Errorf("config fields not persisted: %+v", got)
		}
		if got.Settings["officeSequence"] != "000042" {
			t.Errorf("expected setting officeSequence=000042, got %v", got.Settings)
		}

		var cfgErr *connector.ConfigError
		if _, err := s.GetConnectorConfig(ctx, "org-1", connector.RailPortal); !errors.As(err, &cfgErr) {
			t.Errorf("expected ConfigError for unconfigured rail, got %v", err)
		}

		cfg.Enabled = false
		if err := s.PutConnectorConfig(ctx, cfg); err != nil {
			t.Fatalf("replace config: %v", err)
		}
		got, err = s.GetConnectorConfig(ctx, "org-1", connector.RailCDAnet)
		if err != nil {
			t.Fatalf("get config after replace: %v", err)
		}
		if got.Enabled {
			t.Error("expected config disabled after replace")
		}

		second := &connector.Config{
			OrgID: "org-1", Rail: connector.RailEClaims, Enabled: true, Mode: connector.ModeSandbox,
			UpdatedAt: now,
		}
		if err := s.PutConnectorConfig(ctx, second); err != nil {
			t.Fatalf("put second config: %v", err)
		}

		list, err := s.ListConnectorConfigs(ctx, "org-1")
		if err != nil {
			t.Fatalf("list configs: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 configs, got %d", len(list))
		}
		if list[0].Rail != connector.RailCDAnet || list[1].Rail != connector.RailEClaims {
			t.Errorf("expected rail order cdanet, eclaims; got %s, %s", list[0].Rail, list[1].Rail)
		}

		other, err := s.ListConnectorConfigs(ctx, "org-none")
		if err != nil {
			t.Fatalf("list configs for empty org: %v", err)
		}
		if len(other) != 0 {
			t.Errorf("expected no configs for other org, got %d", len(other))
		}
	})

	t.Run("jobs", func(t *testing.T) {
		now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

		j1 := queue.NewSubmitJob("job-1", "claim-a", "cdanet", "org-1", now)
		j2 := queue.NewSubmitJob("job-2", "claim-b", "portal", "org-1", now.Add(time.Minute))
		j3 := queue.NewSubmitJob("job-3", "claim-c", "eclaims", "org-1", now.Add(time.Hour))
		for _, j := range []*queue.Job{j1, j2, j3} {
			if err := s.CreateJob(ctx, j); err != nil {
				t.Fatalf("create job %s: %v", j.ID, err)
			}
		}

		got, err := s.GetJob(ctx, "job-1")
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if got.IdempotencyKey != "claim-a:cdanet" {
			t.Errorf("expected key claim-a:cdanet, got %s", got.IdempotencyKey)
		}
		if got.Status != queue.JobQueued || got.Attempts != 0 {
			t.Errorf("expected fresh queued job, got %s attempts=%d", got.Status, got.Attempts)
		}

		if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, queue.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}

		active, err := s.ActiveJobByKey(ctx, queue.IdempotencyKey("claim-a", "cdanet"))
		if err != nil {
			t.Fatalf("active job by key: %v", err)
		}
		if active.ID != "job-1" {
			t.Errorf("expected job-1, got %s", active.ID)
		}
		if _, err := s.ActiveJobByKey(ctx, "nope:rail"); !errors.Is(err, queue.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound for unknown key, got %v", err)
		}

		// Lease respects due time, order and limit.
		leaseAt := now.Add(2 * time.Minute)
		leaseUntil := leaseAt.Add(time.Minute)
		first, err := s.LeaseDueJobs(ctx, leaseAt, leaseUntil, 1)
		if err != nil {
			t.Fatalf("lease first job: %v", err)
		}
		if len(first) != 1 || first[0].ID != "job-1" {
			t.Fatalf("expected [job-1], got %+v", first)
		}
		if first[0].Status != queue.JobRunning || first[0].Attempts != 1 {
			t.Errorf("expected running attempts=1, got %s attempts=%d", first[0].Status, first[0].Attempts)
		}
		if first[0].StartedAt == nil || first[0].LeaseExpiresAt == nil {
			t.Error("expected lease to stamp startedAt and leaseExpiresAt")
		}

		rest, err := s.LeaseDueJobs(ctx, leaseAt, leaseUntil, 10)
		if err != nil {
			t.Fatalf("lease remaining jobs: %v", err)
		}
		if len(rest) != 1 || rest[0].ID != "job-2" {
			t.Fatalf("expected [job-2], got %+v", rest)
		}

		empty, err := s.LeaseDueJobs(ctx, leaseAt, leaseUntil, 10)
		if err != nil {
			t.Fatalf("lease with nothing due: %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("expected no leasable jobs, got %d", len(empty))
		}

		// Complete job-1.
		done := first[0]
		done.Status = queue.JobCompleted
		fin := leaseAt.Add(time.Second)
		done.FinishedAt = &fin
		done.LeaseExpiresAt = nil
		if err := s.UpdateJob(ctx, done); err != nil {
			t.Fatalf("update job: %v", err)
		}
		got, err = s.GetJob(ctx, "job-1")
		if err != nil {
			t.Fatalf("get completed job: %v", err)
		}
		if got.Status != queue.JobCompleted || got.FinishedAt == nil {
			t.Errorf("expected completed job, got %s finishedAt=%v", got.Status, got.FinishedAt)
		}

		if err := s.UpdateJob(ctx, queue.NewSubmitJob("missing", "x", "portal", "org-1", now)); !errors.Is(err, queue.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound updating missing job, got %v", err)
		}

		// job-2's lease lapses; it must return to the queue.
		n, err := s.RequeueExpiredLeases(ctx, leaseAt.Add(10*time.Minute))
		if err != nil {
			t.Fatalf("requeue expired leases: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 requeued job, got %d", n)
		}
		got, err = s.GetJob(ctx, "job-2")
		if err != nil {
			t.Fatalf("get requeued job: %v", err)
		}
		if got.Status != queue.JobQueued {
			t.Errorf("expected requeued job queued, got %s", got.Status)
		}
		if got.LeaseExpiresAt != nil {
			t.Errorf("expected cleared lease, got %v", got.LeaseExpiresAt)
		}
		if got.Attempts != 1 {
			t.Errorf("expected attempts preserved at 1, got %d", got.Attempts)
		}

		stats, err := s.JobStats(ctx)
		if err != nil {
			t.Fatalf("job stats: %v", err)
		}
		if stats.Queued != 2 || stats.Running != 0 || stats.Completed != 1 {
			t.Errorf("expected queued=2 running=0 completed=1, got %+v", stats)
		}
	})

	t.Run("polls", func(t *testing.T) {
		now := time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC)

		p1 := schedule.NewPoll("claim-a", "CDN-claim-a-a1b2c3", "cdanet", "org-1", now)
		p2 := schedule.NewPoll("claim-b", "PRT-claim-b-d4e5f6", "portal", "org-1", now.Add(time.Minute))
		for _, p := range []*schedule.Poll{p1, p2} {
			if err := s.UpsertPoll(ctx, p); err != nil {
				t.Fatalf("upsert poll %s: %v", p.ID, err)
			}
		}

		got, err := s.GetPoll(ctx, "poll-CDN-claim-a-a1b2c3")
		if err != nil {
			t.Fatalf("get poll: %v", err)
		}
		if got.ClaimID != "claim-a" || got.MaxAttempts != schedule.DefaultMaxAttempts {
			t.Errorf("poll fields not persisted: %+v", got)
		}
		if !got.NextRunAt.Equal(now) {
			t.Errorf("expected nextRunAt %v, got %v", now, got.NextRunAt)
		}

		if _, err := s.GetPoll(ctx, "poll-missing"); !errors.Is(err, schedule.ErrPollNotFound) {
			t.Errorf("expected ErrPollNotFound, got %v", err)
		}

		due, err := s.DuePolls(ctx, now, 10)
		if err != nil {
			t.Fatalf("due polls: %v", err)
		}
		if len(due) != 1 || due[0].ID != p1.ID {
			t.Fatalf("expected only %s due, got %+v", p1.ID, due)
		}

		due, err = s.DuePolls(ctx, now.Add(time.Minute), 10)
		if err != nil {
			t.Fatalf("due polls later: %v", err)
		}
		if len(due) != 2 || due[0].ID != p1.ID || due[1].ID != p2.ID {
			t.Errorf("expected both due earliest first, got %+v", due)
		}

		limited, err := s.DuePolls(ctx, now.Add(time.Minute), 1)
		if err != nil {
			t.Fatalf("due polls limited: %v", err)
		}
		if len(limited) != 1 || limited[0].ID != p1.ID {
			t.Errorf("expected limit to keep earliest, got %+v", limited)
		}

		p1.Attempts = 3
		p1.NextRunAt = now.Add(5 * time.Minute)
		p1.LastError = "carrier timeout"
		p1.UpdatedAt = now.Add(time.Second)
		if err := s.UpdatePoll(ctx, p1); err != nil {
			t.Fatalf("update poll: %v", err)
		}
		got, err = s.GetPoll(ctx, p1.ID)
		if err != nil {
			t.Fatalf("get updated poll: %v", err)
		}
		if got.Attempts != 3 || got.LastError != "carrier timeout" {
			t.Errorf("poll update not persisted: %+v", got)
		}

		missing := schedule.NewPoll("claim-x", "ECL-claim-x-999999", "eclaims", "org-1", now)
		if err := s.UpdatePoll(ctx, missing); !errors.Is(err, schedule.ErrPollNotFound) {
			t.Errorf("expected ErrPollNotFound updating missing poll, got %v", err)
		}

		// Re-registering the same submission overwrites, never duplicates.
		if err := s.UpsertPoll(ctx, p1); err != nil {
			t.Fatalf("re-upsert poll: %v", err)
		}
		all, err := s.ListPolls(ctx)
		if err != nil {
			t.Fatalf("list polls: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 polls after re-upsert, got %d", len(all))
		}

		if err := s.DeletePoll(ctx, p1.ID); err != nil {
			t.Fatalf("delete poll: %v", err)
		}
		if _, err := s.GetPoll(ctx, p1.ID); !errors.Is(err, schedule.ErrPollNotFound) {
			t.Errorf("expected poll gone, got %v", err)
		}
		if err := s.DeletePoll(ctx, p1.ID); err != nil {
			t.Errorf("expected deleting missing poll to be a no-op, got %v", err)
		}

		all, err = s.ListPolls(ctx)
		if err != nil {
			t.Fatalf("list polls after delete: %v", err)
		}
		if len(all) != 1 {
			t.Errorf("expected 1 poll left, got %d", len(all))
		}
	})

	t.Run("events", func(t *testing.T) {
		base := time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)

		e1 := &connector.Event{
			ID: shared.NewEventID(base), ClaimID: "claim-a", Rail: connector.RailCDAnet,
			Kind: connector.EventKindSubmit, Status: connector.RailStatusProcessing,
			Message: "claim accepted for processing", CreatedAt: base,
		}
		e2 := &connector.Event{
			ID: shared.NewEventID(base.Add(time.Minute)), ClaimID: "claim-a", Rail: connector.RailCDAnet,
			Kind: connector.EventKindPoll, Status: connector.RailStatusPaid,
			Message: "claim paid", Detail: json.RawMessage(`{"referenceNumber":"RA-CLAIMA1234"}`),
			CreatedAt: base.Add(time.Minute),
		}
		e3 := &connector.Event{
			ID: shared.NewEventID(base.Add(2 * time.Minute)), ClaimID: "claim-b", Rail: connector.RailPortal,
			Kind: connector.EventKindSubmit, Status: connector.RailStatusPending,
			Message: "awaiting manual review", CreatedAt: base.Add(2 * time.Minute),
		}
		for _, e := range []*connector.Event{e1, e2, e3} {
			if err := s.AppendEvent(ctx, e); err != nil {
				t.Fatalf("append event: %v", err)
			}
		}

		list, err := s.ListEventsByClaim(ctx, "claim-a")
		if err != nil {
			t.Fatalf("list events by claim: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 events for claim-a, got %d", len(list))
		}
		if list[0].Kind != connector.EventKindSubmit || list[1].Kind != connector.EventKindPoll {
			t.Errorf("expected submit then poll, got %s then %s", list[0].Kind, list[1].Kind)
		}
		var detail struct {
			ReferenceNumber string `json:"referenceNumber"`
		}
		if err := json.Unmarshal(list[1].Detail, &detail); err != nil {
			t.Fatalf("decode event detail: %v", err)
		}
		if detail.ReferenceNumber != "RA-CLAIMA1234" {
			t.Errorf("expected detail reference RA-CLAIMA1234, got %s", detail.ReferenceNumber)
		}

		latest, err := s.LatestEventByClaim(ctx, "claim-a")
		if err != nil {
			t.Fatalf("latest event: %v", err)
		}
		if latest == nil || latest.Status != connector.RailStatusPaid {
			t.Errorf("expected latest event paid, got %+v", latest)
		}

		latest, err = s.LatestEventByClaim(ctx, "claim-none")
		if err != nil {
			t.Fatalf("latest event for unknown claim: %v", err)
		}
		if latest != nil {
			t.Errorf("expected nil latest event, got %+v", latest)
		}

		all, err := s.ListEvents(ctx)
		if err != nil {
			t.Fatalf("list all events: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 events, got %d", len(all))
		}
	})

	t.Run("remittances", func(t *testing.T) {
		now := time.Date(2026, 5, 4, 20, 0, 0, 0, time.UTC)

		r1 := &claim.Remittance{
			ID: "rem-1", ClaimID: "claim-a", Rail: "cdanet",
			Amount: mustAmount(t, "125.00"), PaymentDate: now.AddDate(0, 0, 2),
			ReferenceNumber: "RA-CLAIMA1234", CreatedAt: now,
		}
		r2 := &claim.Remittance{
			ID: "rem-2", ClaimID: "claim-b", Rail: "portal",
			Amount: mustAmount(t, "42.50"), PaymentDate: now.AddDate(0, 0, 3),
			CreatedAt: now.Add(time.Minute),
		}
		for _, r := range []*claim.Remittance{r1, r2} {
			if err := s.AppendRemittance(ctx, r); err != nil {
				t.Fatalf("append remittance: %v", err)
			}
		}

		byClaim, err := s.ListRemittancesByClaim(ctx, "claim-a")
		if err != nil {
			t.Fatalf("list remittances by claim: %v", err)
		}
		if len(byClaim) != 1 {
			t.Fatalf("expected 1 remittance, got %d", len(byClaim))
		}
		if !byClaim[0].Amount.Equal(mustAmount(t, "125.00")) {
			t.Errorf("expected amount 125.00, got %s", byClaim[0].Amount)
		}
		if byClaim[0].ReferenceNumber != "RA-CLAIMA1234" {
			t.Errorf("expected reference RA-CLAIMA1234, got %s", byClaim[0].ReferenceNumber)
		}
		if !byClaim[0].PaymentDate.Equal(now.AddDate(0, 0, 2)) {
			t.Errorf("expected payment date %v, got %v", now.AddDate(0, 0, 2), byClaim[0].PaymentDate)
		}

		all, err := s.ListRemittances(ctx)
		if err != nil {
			t.Fatalf("list all remittances: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 remittances, got %d", len(all))
		}
	})
}
