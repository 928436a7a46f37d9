package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/schedule"
)

// Postgres backs the store with a pgx pool. Leasing uses
// FOR UPDATE SKIP LOCKED so several hub instances can share one queue.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to connStr and prepares the schema.
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Postgres{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS claims (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			insurer_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			status TEXT NOT NULL,
			rail TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			reference_number TEXT NOT NULL DEFAULT '',
			codes JSONB,
			diagnosis JSONB,
			version INTEGER NOT NULL,
			submitted_at TIMESTAMPTZ,
			last_sync_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
		CREATE INDEX IF NOT EXISTS idx_claims_org ON claims(org_id);

		CREATE TABLE IF NOT EXISTS patients (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			date_of_birth TIMESTAMPTZ,
			gender TEXT NOT NULL DEFAULT '',
			member_id TEXT NOT NULL DEFAULT '',
			group_number TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS providers (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			license_number TEXT NOT NULL DEFAULT '',
			npi TEXT NOT NULL DEFAULT '',
			specialty TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS connector_configs (
			org_id TEXT NOT NULL,
			rail TEXT NOT NULL,
			enabled BOOLEAN NOT NULL,
			mode TEXT NOT NULL,
			settings JSONB,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (org_id, rail)
		);

		CREATE TABLE IF NOT EXISTS submission_jobs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			claim_id TEXT NOT NULL,
			rail TEXT NOT NULL,
			org_id TEXT NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			max_attempts INTEGER NOT NULL,
			next_run_at TIMESTAMPTZ NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT NOT NULL,
			enqueued_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			lease_expires_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_due ON submission_jobs(status, next_run_at);
		CREATE INDEX IF NOT EXISTS idx_jobs_key ON submission_jobs(idempotency_key, status);

		CREATE TABLE IF NOT EXISTS scheduled_polls (
			id TEXT PRIMARY KEY,
			claim_id TEXT NOT NULL,
			external_id TEXT NOT NULL,
			rail TEXT NOT NULL,
			org_id TEXT NOT NULL,
			next_run_at TIMESTAMPTZ NOT NULL,
			attempts INTEGER NOT NULL,
			max_attempts INTEGER NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_polls_due ON scheduled_polls(next_run_at);

		CREATE TABLE IF NOT EXISTS connector_events (
			id TEXT PRIMARY KEY,
			claim_id TEXT NOT NULL,
			rail TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			detail BYTEA,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_claim ON connector_events(claim_id, id);

		CREATE TABLE IF NOT EXISTS remittances (
			id TEXT PRIMARY KEY,
			claim_id TEXT NOT NULL,
			rail TEXT NOT NULL,
			amount TEXT NOT NULL,
			payment_date TIMESTAMPTZ NOT NULL,
			reference_number TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_remittances_claim ON remittances(claim_id);
	`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func jsonbOrNil(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}

// CreateClaim stores a new claim.
func (s *Postgres) CreateClaim(ctx context.Context, c *claim.Claim) error {
	codes, err := jsonbOrNil(c.Codes)
	if err != nil {
		return fmt.Errorf("claim codes: %w", err)
	}
	diagnosis, err := jsonbOrNil(c.Diagnosis)
	if err != nil {
		return fmt.Errorf("claim diagnosis: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO claims (id, org_id, patient_id, provider_id, insurer_id, amount, status,
			rail, external_id, reference_number, codes, diagnosis, version,
			submitted_at, last_sync_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, c.ID, c.OrgID, c.PatientID, c.ProviderID, c.InsurerID, c.Amount.String(), string(c.Status),
		c.Rail, c.ExternalID, c.ReferenceNumber, codes, diagnosis, c.Version,
		c.SubmittedAt, c.LastSyncAt, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func scanPgClaim(row interface{ Scan(...any) error }) (*claim.Claim, error) {
	var (
		c                       claim.Claim
		amount, status          string
		codes, diagnosis        []byte
		submittedAt, lastSyncAt *time.Time
	)
	err := row.Scan(&c.ID, &c.OrgID, &c.PatientID, &c.ProviderID, &c.InsurerID, &amount, &status,
		&c.Rail, &c.ExternalID, &c.ReferenceNumber, &codes, &diagnosis, &c.Version,
		&submittedAt, &lastSyncAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q: %w", amount, err)
	}
	c.Status = claim.Status(status)
	if len(codes) > 0 {
		if err := json.Unmarshal(codes, &c.Codes); err != nil {
			return nil, fmt.Errorf("stored codes: %w", err)
		}
	}
	if len(diagnosis) > 0 {
		if err := json.Unmarshal(diagnosis, &c.Diagnosis); err != nil {
			return nil, fmt.Errorf("stored diagnosis: %w", err)
		}
	}
	c.SubmittedAt = submittedAt
	c.LastSyncAt = lastSyncAt
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// GetClaim loads a claim by id.
func (s *Postgres) GetClaim(ctx context.Context, id string) (*claim.Claim, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
	c, err := scanPgClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, claim.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load claim %s: %w", id, err)
	}
	return c, nil
}

// UpdateClaim compare-and-sets the claim on its version.
func (s *Postgres) UpdateClaim(ctx context.Context, c *claim.Claim, expectedVersion int) error {
	codes, err := jsonbOrNil(c.Codes)
	if err != nil {
		return fmt.Errorf("claim codes: %w", err)
	}
	diagnosis, err := jsonbOrNil(c.Diagnosis)
	if err != nil {
		return fmt.Errorf("claim diagnosis: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE claims SET org_id = $1, patient_id = $2, provider_id = $3, insurer_id = $4,
			amount = $5, status = $6, rail = $7, external_id = $8, reference_number = $9,
			codes = $10, diagnosis = $11, version = $12, submitted_at = $13, last_sync_at = $14, updated_at = $15
		WHERE id = $16 AND version = $17
	`, c.OrgID, c.PatientID, c.ProviderID, c.InsurerID,
		c.Amount.String(), string(c.Status), c.Rail, c.ExternalID, c.ReferenceNumber,
		codes, diagnosis, c.Version, c.SubmittedAt, c.LastSyncAt, c.UpdatedAt.UTC(),
		c.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var one int
		err := s.pool.QueryRow(ctx, `SELECT 1 FROM claims WHERE id = $1`, c.ID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return claim.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update claim: %w", err)
		}
		return fmt.Errorf("%w: expected version %d", claim.ErrVersionConflict, expectedVersion)
	}
	return nil
}

// ListClaimsByStatus returns claims in any of the given statuses.
func (s *Postgres) ListClaimsByStatus(ctx context.Context, statuses ...claim.Status) ([]*claim.Claim, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE status = ANY($1) ORDER BY id`, values)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var result []*claim.Claim
	for rows.Next() {
		c, err := scanPgClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("list claims: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// PutPatient stores or replaces a patient.
func (s *Postgres) PutPatient(ctx context.Context, p *claim.Patient) error {
	var dob *time.Time
	if !p.DateOfBirth.IsZero() {
		d := p.DateOfBirth.UTC()
		dob = &d
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO patients (id, org_id, first_name, last_name, date_of_birth, gender, member_id, group_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET org_id = EXCLUDED.org_id, first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name, date_of_birth = EXCLUDED.date_of_birth,
			gender = EXCLUDED.gender, member_id = EXCLUDED.member_id, group_number = EXCLUDED.group_number
	`, p.ID, p.OrgID, p.FirstName, p.LastName, dob, p.Gender, p.MemberID, p.GroupNumber)
	if err != nil {
		return fmt.Errorf("put patient: %w", err)
	}
	return nil
}

// GetPatient loads a patient by id.
func (s *Postgres) GetPatient(ctx context.Context, id string) (*claim.Patient, error) {
	var (
		p   claim.Patient
		dob *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, first_name, last_name, date_of_birth, gender, member_id, group_number
		FROM patients WHERE id = $1
	`, id).Scan(&p.ID, &p.OrgID, &p.FirstName, &p.LastName, &dob, &p.Gender, &p.MemberID, &p.GroupNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, claim.ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load patient %s: %w", id, err)
	}
	if dob != nil {
		p.DateOfBirth = dob.UTC()
	}
	return &p, nil
}

// PutProvider stores or replaces a provider.
func (s *Postgres) PutProvider(ctx context.Context, p *claim.Provider) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO providers (id, org_id, first_name, last_name, license_number, npi, specialty)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET org_id = EXCLUDED.org_id, first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name, license_number = EXCLUDED.license_number,
			npi = EXCLUDED.npi, specialty = EXCLUDED.specialty
	`, p.ID, p.OrgID, p.FirstName, p.LastName, p.LicenseNumber, p.NPI, p.Specialty)
	if err != nil {
		return fmt.Errorf("put provider: %w", err)
	}
	return nil
}

// GetProvider loads a provider by id.
func (s *Postgres) GetProvider(ctx context.Context, id string) (*claim.Provider, error) {
	var p claim.Provider
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, first_name, last_name, license_number, npi, specialty
		FROM providers WHERE id = $1
	`, id).Scan(&p.ID, &p.OrgID, &p.FirstName, &p.LastName, &p.LicenseNumber, &p.NPI, &p.Specialty)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, claim.ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load provider %s: %w", id, err)
	}
	return &p, nil
}

// PutConnectorConfig stores or replaces a connector config.
func (s *Postgres) PutConnectorConfig(ctx context.Context, cfg *connector.Config) error {
	settings, err := jsonbOrNil(cfg.Settings)
	if err != nil {
		return fmt.Errorf("config settings: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO connector_configs (org_id, rail, enabled, mode, settings, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (org_id, rail) DO UPDATE SET enabled = EXCLUDED.enabled, mode = EXCLUDED.mode,
			settings = EXCLUDED.settings, updated_at = EXCLUDED.updated_at
	`, cfg.OrgID, cfg.Rail.String(), cfg.Enabled, string(cfg.Mode), settings, cfg.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("put connector config: %w", err)
	}
	return nil
}

func scanPgConfig(row interface{ Scan(...any) error }) (*connector.Config, error) {
	var (
		cfg      connector.Config
		rail     string
		mode     string
		settings []byte
	)
	if err := row.Scan(&cfg.OrgID, &rail, &cfg.Enabled, &mode, &settings, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	cfg.Rail = connector.Rail(rail)
	cfg.Mode = connector.Mode(mode)
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &cfg.Settings); err != nil {
			return nil, fmt.Errorf("stored settings: %w", err)
		}
	}
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return &cfg, nil
}

// GetConnectorConfig loads the config for an org and rail.
func (s *Postgres) GetConnectorConfig(ctx context.Context, orgID string, rail connector.Rail) (*connector.Config, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT org_id, rail, enabled, mode, settings, updated_at
		FROM connector_configs WHERE org_id = $1 AND rail = $2
	`, orgID, rail.String())
	cfg, err := scanPgConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, connector.NewConfigError(rail, orgID, "not configured")
	}
	if err != nil {
		return nil, fmt.Errorf("load connector config: %w", err)
	}
	return cfg, nil
}

// ListConnectorConfigs returns all configs for an org.
func (s *Postgres) ListConnectorConfigs(ctx context.Context, orgID string) ([]*connector.Config, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT org_id, rail, enabled, mode, settings, updated_at
		FROM connector_configs WHERE org_id = $1 ORDER BY rail
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list connector configs: %w", err)
	}
	defer rows.Close()

	var result []*connector.Config
	for rows.Next() {
		cfg, err := scanPgConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("list connector configs: %w", err)
		}
		result = append(result, cfg)
	}
	return result, rows.Err()
}

// CreateJob stores a new job.
func (s *Postgres) CreateJob(ctx context.Context, j *queue.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submission_jobs (id, type, claim_id, rail, org_id, status, attempts, max_attempts,
			next_run_at, last_error, idempotency_key, enqueued_at, started_at, finished_at, lease_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, j.ID, j.Type, j.ClaimID, j.Rail, j.OrgID, string(j.Status), j.Attempts, j.MaxAttempts,
		j.NextRunAt.UTC(), j.LastError, j.IdempotencyKey, j.EnqueuedAt.UTC(),
		j.StartedAt, j.FinishedAt, j.LeaseExpiresAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func scanPgJob(row interface{ Scan(...any) error }) (*queue.Job, error) {
	var (
		j      queue.Job
		status string
	)
	err := row.Scan(&j.ID, &j.Type, &j.ClaimID, &j.Rail, &j.OrgID, &status, &j.Attempts, &j.MaxAttempts,
		&j.NextRunAt, &j.LastError, &j.IdempotencyKey, &j.EnqueuedAt, &j.StartedAt, &j.FinishedAt, &j.LeaseExpiresAt)
	if err != nil {
		return nil, err
	}
	j.Status = queue.JobStatus(status)
	j.NextRunAt = j.NextRunAt.UTC()
	j.EnqueuedAt = j.EnqueuedAt.UTC()
	return &j, nil
}

// GetJob loads a job by id.
func (s *Postgres) GetJob(ctx context.Context, id string) (*queue.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM submission_jobs WHERE id = $1`, id)
	j, err := scanPgJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, queue.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return j, nil
}

// ActiveJobByKey returns a queued or running job carrying the key.
func (s *Postgres) ActiveJobByKey(ctx context.Context, key string) (*queue.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM submission_jobs
		WHERE idempotency_key = $1 AND status IN ('queued', 'running') LIMIT 1
	`, key)
	j, err := scanPgJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, queue.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job by key: %w", err)
	}
	return j, nil
}

// LeaseDueJobs atomically claims due queued jobs. SKIP LOCKED keeps
// concurrent hub instances from leasing the same row.
func (s *Postgres) LeaseDueJobs(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*queue.Job, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE submission_jobs SET status = 'running', attempts = attempts + 1,
			started_at = $1, lease_expires_at = $2
		WHERE id IN (
			SELECT id FROM submission_jobs
			WHERE status = 'queued' AND next_run_at <= $3
			ORDER BY next_run_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		now.UTC(), leaseUntil.UTC(), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("lease jobs: %w", err)
	}
	defer rows.Close()

	var leased []*queue.Job
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, fmt.Errorf("lease jobs: %w", err)
		}
		leased = append(leased, j)
	}
	return leased, rows.Err()
}

// UpdateJob replaces the stored job.
func (s *Postgres) UpdateJob(ctx context.Context, j *queue.Job) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE submission_jobs SET status = $1, attempts = $2, max_attempts = $3, next_run_at = $4,
			last_error = $5, started_at = $6, finished_at = $7, lease_expires_at = $8
		WHERE id = $9
	`, string(j.Status), j.Attempts, j.MaxAttempts, j.NextRunAt.UTC(),
		j.LastError, j.StartedAt, j.FinishedAt, j.LeaseExpiresAt, j.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrJobNotFound
	}
	return nil
}

// RequeueExpiredLeases returns lapsed running jobs to the queue.
func (s *Postgres) RequeueExpiredLeases(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE submission_jobs SET status = 'queued', lease_expires_at = NULL
		WHERE status = 'running' AND lease_expires_at IS NOT NULL AND lease_expires_at <= $1
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("requeue expired leases: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// JobStats counts jobs per status.
func (s *Postgres) JobStats(ctx context.Context) (*queue.Stats, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM submission_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := &queue.Stats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("job stats: %w", err)
		}
		switch queue.JobStatus(status) {
		case queue.JobQueued:
			stats.Queued = count
		case queue.JobRunning:
			stats.Running = count
		case queue.JobCompleted:
			stats.Completed = count
		case queue.JobFailed:
			stats.Failed = count
		case queue.JobDead:
			stats.Dead = count
		}
	}
	return stats, rows.Err()
}

// UpsertPoll inserts or replaces a schedule entry.
func (s *Postgres) UpsertPoll(ctx context.Context, p *schedule.Poll) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_polls (id, claim_id, external_id, rail, org_id, next_run_at,
			attempts, max_attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET claim_id = EXCLUDED.claim_id, external_id = EXCLUDED.external_id,
			rail = EXCLUDED.rail, org_id = EXCLUDED.org_id, next_run_at = EXCLUDED.next_run_at,
			attempts = EXCLUDED.attempts, max_attempts = EXCLUDED.max_attempts,
			last_error = EXCLUDED.last_error, updated_at = EXCLUDED.updated_at
	`, p.ID, p.ClaimID, p.ExternalID, p.Rail, p.OrgID, p.NextRunAt.UTC(),
		p.Attempts, p.MaxAttempts, p.LastError, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert poll: %w", err)
	}
	return nil
}

func scanPgPoll(row interface{ Scan(...any) error }) (*schedule.Poll, error) {
	var p schedule.Poll
	err := row.Scan(&p.ID, &p.ClaimID, &p.ExternalID, &p.Rail, &p.OrgID, &p.NextRunAt,
		&p.Attempts, &p.MaxAttempts, &p.LastError, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.NextRunAt = p.NextRunAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// GetPoll loads a schedule entry by id.
func (s *Postgres) GetPoll(ctx context.Context, id string) (*schedule.Poll, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pollColumns+` FROM scheduled_polls WHERE id = $1`, id)
	p, err := scanPgPoll(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, schedule.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load poll %s: %w", id, err)
	}
	return p, nil
}

// DuePolls returns entries due at now, earliest first.
func (s *Postgres) DuePolls(ctx context.Context, now time.Time, limit int) ([]*schedule.Poll, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pollColumns+` FROM scheduled_polls
		WHERE next_run_at <= $1 ORDER BY next_run_at LIMIT $2
	`, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("due polls: %w", err)
	}
	defer rows.Close()

	var result []*schedule.Poll
	for rows.Next() {
		p, err := scanPgPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("due polls: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// UpdatePoll replaces the stored entry.
func (s *Postgres) UpdatePoll(ctx context.Context, p *schedule.Poll) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduled_polls SET next_run_at = $1, attempts = $2, max_attempts = $3,
			last_error = $4, updated_at = $5 WHERE id = $6
	`, p.NextRunAt.UTC(), p.Attempts, p.MaxAttempts, p.LastError, p.UpdatedAt.UTC(), p.ID)
	if err != nil {
		return fmt.Errorf("update poll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrPollNotFound
	}
	return nil
}

// DeletePoll removes the entry; removing a missing entry is a no-op.
func (s *Postgres) DeletePoll(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM scheduled_polls WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete poll: %w", err)
	}
	return nil
}

// ListPolls returns every schedule entry.
func (s *Postgres) ListPolls(ctx context.Context) ([]*schedule.Poll, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pollColumns+` FROM scheduled_polls ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer rows.Close()

	var result []*schedule.Poll
	for rows.Next() {
		p, err := scanPgPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("list polls: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// AppendEvent appends a connector event.
func (s *Postgres) AppendEvent(ctx context.Context, e *connector.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO connector_events (id, claim_id, rail, kind, status, message, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.ClaimID, e.Rail.String(), string(e.Kind), string(e.Status), e.Message, []byte(e.Detail), e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func scanPgEvent(row interface{ Scan(...any) error }) (*connector.Event, error) {
	var (
		e      connector.Event
		rail   string
		kind   string
		status string
		detail []byte
	)
	err := row.Scan(&e.ID, &e.ClaimID, &rail, &kind, &status, &e.Message, &detail, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Rail = connector.Rail(rail)
	e.Kind = connector.EventKind(kind)
	e.Status = connector.RailStatus(status)
	e.Detail = detail
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

// ListEventsByClaim returns the claim's events in id (creation) order.
func (s *Postgres) ListEventsByClaim(ctx context.Context, claimID string) ([]*connector.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM connector_events WHERE claim_id = $1 ORDER BY id
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var result []*connector.Event
	for rows.Next() {
		e, err := scanPgEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// LatestEventByClaim returns the most recent event for the claim, or nil.
func (s *Postgres) LatestEventByClaim(ctx context.Context, claimID string) (*connector.Event, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM connector_events WHERE claim_id = $1 ORDER BY id DESC LIMIT 1
	`, claimID)
	e, err := scanPgEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest event: %w", err)
	}
	return e, nil
}

// ListEvents returns all events in id (creation) order.
func (s *Postgres) ListEvents(ctx context.Context) ([]*connector.Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM connector_events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var result []*connector.Event
	for rows.Next() {
		e, err := scanPgEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// AppendRemittance appends a reconciled payment.
func (s *Postgres) AppendRemittance(ctx context.Context, r *claim.Remittance) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO remittances (id, claim_id, rail, amount, payment_date, reference_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.ClaimID, r.Rail, r.Amount.String(), r.PaymentDate.UTC(), r.ReferenceNumber, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("append remittance: %w", err)
	}
	return nil
}

func scanPgRemittance(row interface{ Scan(...any) error }) (*claim.Remittance, error) {
	var (
		r      claim.Remittance
		amount string
	)
	err := row.Scan(&r.ID, &r.ClaimID, &r.Rail, &amount, &r.PaymentDate, &r.ReferenceNumber, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q: %w", amount, err)
	}
	r.PaymentDate = r.PaymentDate.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

// ListRemittancesByClaim returns the claim's remittances.
func (s *Postgres) ListRemittancesByClaim(ctx context.Context, claimID string) ([]*claim.Remittance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, claim_id, rail, amount, payment_date, reference_number, created_at
		FROM remittances WHERE claim_id = $1 ORDER BY created_at
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list remittances: %w", err)
	}
	defer rows.Close()

	var result []*claim.Remittance
	for rows.Next() {
		r, err := scanPgRemittance(rows)
		if err != nil {
			return nil, fmt.Errorf("list remittances: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ListRemittances returns all remittances.
func (s *Postgres) ListRemittances(ctx context.Context) ([]*claim.Remittance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, claim_id, rail, amount, payment_date, reference_number, created_at
		FROM remittances ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list remittances: %w", err)
	}
	defer rows.Close()

	var result []*claim.Remittance
	for rows.Next() {
		r, err := scanPgRemittance(rows)
		if err != nil {
			return nil, fmt.Errorf("list remittances: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
