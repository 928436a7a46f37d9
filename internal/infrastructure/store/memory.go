package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/schedule"
)

// Memory is the in-memory store used by tests and ephemeral runs. All
// reads and writes copy, so callers can never mutate stored state behind
// the version check.
type Memory struct {
	mu          sync.RWMutex
	claims      map[string]*claim.Claim
	patients    map[string]*claim.Patient
	providers   map[string]*claim.Provider
	configs     map[string]*connector.Config
	jobs        map[string]*queue.Job
	polls       map[string]*schedule.Poll
	events      []*connector.Event
	remittances []*claim.Remittance
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		claims:    make(map[string]*claim.Claim),
		patients:  make(map[string]*claim.Patient),
		providers: make(map[string]*claim.Provider),
		configs:   make(map[string]*connector.Config),
		jobs:      make(map[string]*queue.Job),
		polls:     make(map[string]*schedule.Poll),
	}
}

func configKey(orgID string, rail connector.Rail) string {
	return orgID + "/" + rail.String()
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func copyClaim(c *claim.Claim) *claim.Claim {
	cp := *c
	cp.Codes = append([]claim.ServiceCode(nil), c.Codes...)
	cp.Diagnosis = append([]string(nil), c.Diagnosis...)
	cp.SubmittedAt = copyTime(c.SubmittedAt)
	cp.LastSyncAt = copyTime(c.LastSyncAt)
	return &cp
}

func copyPatient(p *claim.Patient) *claim.Patient {
	cp := *p
	return &cp
}

func copyProvider(p *claim.Provider) *claim.Provider {
	cp := *p
	return &cp
}

func copyConfig(c *connector.Config) *connector.Config {
	cp := *c
	if c.Settings != nil {
		cp.Settings = make(map[string]string, len(c.Settings))
		for k, v := range c.Settings {
			cp.Settings[k] = v
		}
	}
	return &cp
}

func copyJob(j *queue.Job) *queue.Job {
	cp := *j
	cp.StartedAt = copyTime(j.StartedAt)
	cp.FinishedAt = copyTime(j.FinishedAt)
	cp.LeaseExpiresAt = copyTime(j.LeaseExpiresAt)
	return &cp
}

func copyPoll(p *schedule.Poll) *schedule.Poll {
	cp := *p
	return &cp
}

func copyEvent(e *connector.Event) *connector.Event {
	cp := *e
	cp.Detail = append([]byte(nil), e.Detail...)
	return &cp
}

func copyRemittance(r *claim.Remittance) *claim.Remittance {
	cp := *r
	return &cp
}

// CreateClaim stores a new claim.
func (m *Memory) CreateClaim(_ context.Context, c *claim.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.claims[c.ID]; exists {
		return fmt.Errorf("claim %s already exists", c.ID)
	}
	m.claims[c.ID] = copyClaim(c)
	return nil
}

// GetClaim returns a copy of the claim.
func (m *Memory) GetClaim(_ context.Context, id string) (*claim.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.claims[id]
	if !ok {
		return nil, claim.ErrNotFound
	}
	return copyClaim(c), nil
}

// UpdateClaim compare-and-sets the claim on its version.
func (m *Memory) UpdateClaim(_ context.Context, c *claim.Claim, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.claims[c.ID]
	if !ok {
		return claim.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return fmt.Errorf("%w: stored %d, expected %d", claim.ErrVersionConflict, existing.Version, expectedVersion)
	}
	m.claims[c.ID] = copyClaim(c)
	return nil
}

// ListClaimsByStatus returns claims in any of the given statuses.
func (m *Memory) ListClaimsByStatus(_ context.Context, statuses ...claim.Status) ([]*claim.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[claim.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	var result []*claim.Claim
	for _, c := range m.claims {
		if want[c.Status] {
			result = append(result, copyClaim(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// PutPatient stores or replaces a patient.
func (m *Memory) PutPatient(_ context.Context, p *claim.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = copyPatient(p)
	return nil
}

// GetPatient returns a copy of the patient.
func (m *Memory) GetPatient(_ context.Context, id string) (*claim.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.patients[id]
	if !ok {
		return nil, claim.ErrPatientNotFound
	}
	return copyPatient(p), nil
}

// PutProvider stores or replaces a provider.
func (m *Memory) PutProvider(_ context.Context, p *claim.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = copyProvider(p)
	return nil
}

// GetProvider returns a copy of the provider.
func (m *Memory) GetProvider(_ context.Context, id string) (*claim.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.providers[id]
	if !ok {
		return nil, claim.ErrProviderNotFound
	}
	return copyProvider(p), nil
}

// PutConnectorConfig stores or replaces a connector config.
func (m *Memory) PutConnectorConfig(_ context.Context, cfg *connector.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[configKey(cfg.OrgID, cfg.Rail)] = copyConfig(cfg)
	return nil
}

// GetConnectorConfig returns the config for an org and rail.
func (m *Memory) GetConnectorConfig(_ context.Context, orgID string, rail connector.Rail) (*connector.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[configKey(orgID, rail)]
	if !ok {
		return nil, connector.NewConfigError(rail, orgID, "not configured")
	}
	return copyConfig(cfg), nil
}

// ListConnectorConfigs returns all configs for an org.
func (m *Memory) ListConnectorConfigs(_ context.Context, orgID string) ([]*connector.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*connector.Config
	for _, cfg := range m.configs {
		if cfg.OrgID == orgID {
			result = append(result, copyConfig(cfg))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Rail < result[j].Rail })
	return result, nil
}

// CreateJob stores a new job.
func (m *Memory) CreateJob(_ context.Context, j *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[j.ID]; exists {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	m.jobs[j.ID] = copyJob(j)
	return nil
}

// GetJob returns a copy of the job.
func (m *Memory) GetJob(_ context.Context, id string) (*queue.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, queue.ErrJobNotFound
	}
	return copyJob(j), nil
}

// ActiveJobByKey returns a queued or running job with the key.
func (m *Memory) ActiveJobByKey(_ context.Context, key string) (*queue.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, j := range m.jobs {
		if j.IdempotencyKey == key && (j.Status == queue.JobQueued || j.Status == queue.JobRunning) {
			return copyJob(j), nil
		}
	}
	return nil, queue.ErrJobNotFound
}

// LeaseDueJobs claims due queued jobs for execution.
func (m *Memory) LeaseDueJobs(_ context.Context, now, leaseUntil time.Time, limit int) ([]*queue.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*queue.Job
	for _, j := range m.jobs {
		if j.Status == queue.JobQueued && !j.NextRunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRunAt.Before(due[j].NextRunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	leased := make([]*queue.Job, 0, len(due))
	for _, j := range due {
		j.Status = queue.JobRunning
		j.Attempts++
		started := now
		j.StartedAt = &started
		lease := leaseUntil
		j.LeaseExpiresAt = &lease
		leased = append(leased, copyJob(j))
	}
	return leased, nil
}

// UpdateJob replaces the stored job.
func (m *Memory) UpdateJob(_ context.Context, j *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[j.ID]; !ok {
		return queue.ErrJobNotFound
	}
	m.jobs[j.ID] = copyJob(j)
	return nil
}

// RequeueExpiredLeases returns lapsed running jobs to the queue.
func (m *Memory) RequeueExpiredLeases(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, j := range m.jobs {
		if j.Status == queue.JobRunning && j.LeaseExpiresAt != nil && !j.LeaseExpiresAt.After(now) {
			j.Status = queue.JobQueued
			j.LeaseExpiresAt = nil
			count++
		}
	}
	return count, nil
}

// JobStats counts jobs per status.
func (m *Memory) JobStats(_ context.Context) (*queue.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &queue.Stats{}
	for _, j := range m.jobs {
		switch j.Status {
		case queue.JobQueued:
			stats.Queued++
		case queue.JobRunning:
			stats.Running++
		case queue.JobCompleted:
			stats.Completed++
		case queue.JobFailed:
			stats.Failed++
		case queue.JobDead:
			stats.Dead++
		}
	}
	return stats, nil
}

// UpsertPoll inserts or replaces a schedule entry.
func (m *Memory) UpsertPoll(_ context.Context, p *schedule.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls[p.ID] = copyPoll(p)
	return nil
}

// GetPoll returns a copy of the schedule entry.
func (m *Memory) GetPoll(_ context.Context, id string) (*schedule.Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.polls[id]
	if !ok {
		return nil, schedule.ErrPollNotFound
	}
	return copyPoll(p), nil
}

// DuePolls returns entries due at now, earliest first.
func (m *Memory) DuePolls(_ context.Context, now time.Time, limit int) ([]*schedule.Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []*schedule.Poll
	for _, p := range m.polls {
		if !p.NextRunAt.After(now) {
			due = append(due, copyPoll(p))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRunAt.Before(due[j].NextRunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// UpdatePoll replaces the stored entry.
func (m *Memory) UpdatePoll(_ context.Context, p *schedule.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.polls[p.ID]; !ok {
		return schedule.ErrPollNotFound
	}
	m.polls[p.ID] = copyPoll(p)
	return nil
}

// DeletePoll removes the entry. Deleting a missing entry is a no-op:
// removal after a terminal poll must be idempotent.
func (m *Memory) DeletePoll(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.polls, id)
	return nil
}

// ListPolls returns every schedule entry.
func (m *Memory) ListPolls(_ context.Context) ([]*schedule.Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*schedule.Poll, 0, len(m.polls))
	for _, p := range m.polls {
		result = append(result, copyPoll(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// AppendEvent appends a connector event.
func (m *Memory) AppendEvent(_ context.Context, e *connector.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, copyEvent(e))
	return nil
}

// ListEventsByClaim returns the claim's events in append order.
func (m *Memory) ListEventsByClaim(_ context.Context, claimID string) ([]*connector.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*connector.Event
	for _, e := range m.events {
		if e.ClaimID == claimID {
			result = append(result, copyEvent(e))
		}
	}
	return result, nil
}

// LatestEventByClaim returns the most recent event for the claim, or nil.
func (m *Memory) LatestEventByClaim(_ context.Context, claimID string) (*connector.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].ClaimID == claimID {
			return copyEvent(m.events[i]), nil
		}
	}
	return nil, nil
}

// ListEvents returns all events in append order.
func (m *Memory) ListEvents(_ context.Context) ([]*connector.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*connector.Event, 0, len(m.events))
	for _, e := range m.events {
		result = append(result, copyEvent(e))
	}
	return result, nil
}

// AppendRemittance appends a reconciled payment.
func (m *Memory) AppendRemittance(_ context.Context, r *claim.Remittance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remittances = append(m.remittances, copyRemittance(r))
	return nil
}

// ListRemittancesByClaim returns the claim's remittances in append order.
func (m *Memory) ListRemittancesByClaim(_ context.Context, claimID string) ([]*claim.Remittance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*claim.Remittance
	for _, r := range m.remittances {
		if r.ClaimID == claimID {
			result = append(result, copyRemittance(r))
		}
	}
	return result, nil
}

// ListRemittances returns all remittances in append order.
func (m *Memory) ListRemittances(_ context.Context) ([]*claim.Remittance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*claim.Remittance, 0, len(m.remittances))
	for _, r := range m.remittances {
		result = append(result, copyRemittance(r))
	}
	return result, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}
