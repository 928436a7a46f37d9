// Package scheduler drives the asynchronous status lifecycle of
// submitted claims: a single loop polls the adjudication rails for due
// claims, reconciles observations onto the claim records, and keeps the
// durable polling schedule honest across restarts. Webhook intake feeds
// the same reconciliation path.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/schedule"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/events"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/store"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/pkg/logger"
)

// Stores is the slice of the store the scheduler needs.
type Stores interface {
	store.ClaimStore
	store.PollStore
	store.RemittanceStore
	store.ConfigStore
}

// Resolver turns a rail and org into a ready connector.
type Resolver interface {
	Resolve(ctx context.Context, rail connector.Rail, orgID string) (connector.Connector, error)
}

// Config tunes the scheduler.
type Config struct {
	// Interval is the tick period and the reschedule distance after a
	// successful, non-terminal poll.
	Interval time.Duration

	// PollTimeout bounds one PollStatus call.
	PollTimeout time.Duration

	// BackoffBase is the base of the error backoff curve.
	BackoffBase time.Duration

	// BatchSize caps how many due polls one tick processes.
	BatchSize int

	// MaxAttempts bounds how many times one claim is polled. Applied at
	// poll time, so raising it revives entries close to exhaustion.
	MaxAttempts int

	// WebhookSeed is the fallback checksum seed for webhook intake when
	// an org carries no seed of its own.
	WebhookSeed string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Minute,
		PollTimeout: 15 * time.Second,
		BackoffBase: schedule.DefaultBackoffBase,
		BatchSize:   16,
		MaxAttempts: schedule.DefaultMaxAttempts,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

// Scheduler owns the polling loop.
type Scheduler struct {
	stores   Stores
	resolver Resolver
	recorder *events.Recorder
	clock    shared.Clock
	config   Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. A nil clock falls back to the real one.
func New(stores Stores, resolver Resolver, recorder *events.Recorder, clock shared.Clock, config Config) *Scheduler {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		stores:   stores,
		resolver: resolver,
		recorder: recorder,
		clock:    clock,
		config:   config.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start recovers the polling schedule and runs the loop until Stop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.recoverPolls(s.ctx)
		s.loop()
	}()
}

// Stop cancels the loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick(s.ctx)
		}
	}
}

// tick processes one batch of due polls. Returns how many it handled.
func (s *Scheduler) tick(ctx context.Context) int {
	now := s.clock.Now()
	due, err := s.stores.DuePolls(ctx, now, s.config.BatchSize)
	if err != nil {
		logger.Error(ctx, "selecting due polls failed", "error", err)
		return 0
	}

	for _, p := range due {
		if ctx.Err() != nil {
			return 0
		}
		s.processPoll(ctx, p)
	}
	return len(due)
}

// processPoll performs one status check for one scheduled entry.
// Attempts count on every check, successful or not, so the budget bounds
// total work per submission.
func (s *Scheduler) processPoll(ctx context.Context, p *schedule.Poll) {
	ctx = logger.WithClaim(ctx, p.ClaimID, p.Rail)
	p.Attempts++
	now := s.clock.Now()

	res, err := s.poll(ctx, p)
	if err != nil {
		s.deferPoll(ctx, p, err, now)
		return
	}

	c, err := s.Reconcile(ctx, p.ClaimID, Observation{
		ExternalID: res.ExternalID,
		Rail:       connector.Rail(p.Rail),
		Kind:       connector.EventKindPoll,
		Status:     res.Status,
		Message:    res.Message,
		Detail:     res.Raw,
		Payment:    res.Payment,
	})
	if err != nil {
		s.deferPoll(ctx, p, err, now)
		return
	}

	if c.IsTerminal() {
		// Reconcile removed the schedule entry with the settlement.
		logger.Info(ctx, "claim settled, polling stopped", "status", string(c.Status))
		return
	}

	if s.exhausted(p) {
		s.giveUp(ctx, p, nil, now)
		return
	}

	p.NextRunAt = now.Add(s.config.Interval)
	p.LastError = ""
	p.UpdatedAt = now
	if err := s.stores.UpdatePoll(ctx, p); err != nil {
		logger.Error(ctx, "rescheduling poll failed", "error", err)
	}
}

// exhausted applies the running configuration's budget rather than the
// one stamped on the entry, so config changes reach in-flight polls.
func (s *Scheduler) exhausted(p *schedule.Poll) bool {
	return p.Attempts >= s.config.MaxAttempts
}

// poll resolves the connector and fetches the rail status under the
// per-call timeout.
func (s *Scheduler) poll(ctx context.Context, p *schedule.Poll) (*connector.PollResult, error) {
	rail, err := connector.ParseRail(p.Rail)
	if err != nil {
		return nil, err
	}
	conn, err := s.resolver.Resolve(ctx, rail, p.OrgID)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, s.config.PollTimeout)
	defer cancel()
	return conn.PollStatus(pctx, p.ExternalID)
}

// deferPoll keeps a failed entry in the schedule with exponential
// backoff, or gives up once the attempt budget is spent.
func (s *Scheduler) deferPoll(ctx context.Context, p *schedule.Poll, cause error, now time.Time) {
	if s.exhausted(p) {
		s.giveUp(ctx, p, cause, now)
		return
	}

	delay := schedule.Backoff(p.Attempts, s.config.BackoffBase)
	p.NextRunAt = now.Add(delay)
	p.LastError = cause.Error()
	p.UpdatedAt = now
	if err := s.stores.UpdatePoll(ctx, p); err != nil {
		logger.Error(ctx, "recording poll failure failed", "error", err)
		return
	}
	logger.Warn(ctx, "status poll failed, backing off",
		"attempt", p.Attempts,
		"maxAttempts", s.config.MaxAttempts,
		"retryIn", delay.String(),
		"error", cause,
	)
}

// giveUp removes a spent schedule entry, marks the claim errored when it
// is still unresolved, and surfaces the abandonment to operators. Never
// silent: an event and an error log always record why polling ended.
func (s *Scheduler) giveUp(ctx context.Context, p *schedule.Poll, cause error, now time.Time) {
	if err := s.stores.DeletePoll(ctx, p.ID); err != nil {
		logger.Error(ctx, "removing exhausted poll failed", "error", err)
	}

	message := fmt.Sprintf("status polling abandoned after %d attempts", p.Attempts)
	if cause != nil {
		message += ": " + cause.Error()
	}

	c, err := s.stores.GetClaim(ctx, p.ClaimID)
	if err != nil {
		logger.Error(ctx, "loading claim for abandoned poll failed", "error", err)
	} else if !c.IsTerminal() {
		if err := s.applyStatus(ctx, c, claim.StatusError, now); err != nil {
			logger.Error(ctx, "marking claim errored failed", "error", err)
		}
	}

	s.recorder.Record(ctx, p.ClaimID, connector.Rail(p.Rail), connector.EventKindPoll,
		connector.RailStatusError, message, nil)
	logger.Error(ctx, "status polling abandoned",
		"attempts", p.Attempts,
		"externalId", p.ExternalID,
		"cause", causeString(cause),
	)
}

// recoverPolls restores the polling schedule on startup: the durable
// entries survive on their own, and any in-flight claim that lost its
// entry (a crash between the submission write and the poll registration)
// gets a fresh one due immediately. A submitted, non-terminal claim must
// always eventually be polled again.
func (s *Scheduler) recoverPolls(ctx context.Context) {
	stored, err := s.stores.ListPolls(ctx)
	if err != nil {
		logger.Error(ctx, "listing stored polls failed", "error", err)
		return
	}

	inFlight, err := s.stores.ListClaimsByStatus(ctx,
		claim.StatusSubmitted, claim.StatusPending, claim.StatusInfoRequested, claim.StatusApproved)
	if err != nil {
		logger.Error(ctx, "scanning in-flight claims failed", "error", err)
		return
	}

	now := s.clock.Now()
	restored := 0
	for _, c := range inFlight {
		if c.ExternalID == "" {
			continue
		}
		p := schedule.NewPoll(c.ID, c.ExternalID, c.Rail, c.OrgID, now)
		p.MaxAttempts = s.config.MaxAttempts
		if _, err := s.stores.GetPoll(ctx, p.ID); err == nil {
			continue
		}
		if err := s.stores.UpsertPoll(ctx, p); err != nil {
			logger.Error(ctx, "restoring poll failed", "claimId", c.ID, "error", err)
			continue
		}
		restored++
	}

	logger.Info(ctx, "polling schedule recovered",
		"stored", len(stored),
		"restored", restored,
	)
}

func causeString(err error) string {
	if err == nil {
		return "attempts exhausted"
	}
	return err.Error()
}
