package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/schedule"
)

// SQLite is the single-node durable store. Writes are serialized with a
// mutex: modernc sqlite rejects concurrent writers and the hub's write
// volume never justifies anything fancier.
type SQLite struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLite opens (or creates) the store at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		dbPath = ".data/claimshub.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLite) initSchema() error {
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
			codes TEXT,
			diagnosis TEXT,
			version INTEGER NOT NULL,
			submitted_at INTEGER,
			last_sync_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
		CREATE INDEX IF NOT EXISTS idx_claims_org ON claims(org_id);

		CREATE TABLE IF NOT EXISTS patients (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			date_of_birth INTEGER,
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
			enabled INTEGER NOT NULL,
			mode TEXT NOT NULL,
			settings TEXT,
			updated_at INTEGER NOT NULL,
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
			next_run_at INTEGER NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT NOT NULL,
			enqueued_at INTEGER NOT NULL,
			started_at INTEGER,
			finished_at INTEGER,
			lease_expires_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_due ON submission_jobs(status, next_run_at);
		CREATE INDEX IF NOT EXISTS idx_jobs_key ON submission_jobs(idempotency_key, status);

		CREATE TABLE IF NOT EXISTS scheduled_polls (
			id TEXT PRIMARY KEY,
			claim_id TEXT NOT NULL,
			external_id TEXT NOT NULL,
			rail TEXT NOT NULL,
			org_id TEXT NOT NULL,
			next_run_at INTEGER NOT NULL,
			attempts INTEGER NOT NULL,
			max_attempts INTEGER NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_polls_due ON scheduled_polls(next_run_at);

		CREATE TABLE IF NOT EXISTS connector_events (
			id TEXT PRIMARY KEY,
			claim_id TEXT NOT NULL,
			rail TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			detail BLOB,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_claim ON connector_events(claim_id, id);

		CREATE TABLE IF NOT EXISTS remittances (
			id TEXT PRIMARY KEY,
			claim_id TEXT NOT NULL,
			rail TEXT NOT NULL,
			amount TEXT NOT NULL,
			payment_date INTEGER NOT NULL,
			reference_number TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_remittances_claim ON remittances(claim_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func millisPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return millis(*t)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromMillisNull(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(b), nil
}

// CreateClaim stores a new claim.
func (s *SQLite) CreateClaim(ctx context.Context, c *claim.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := marshalJSON(c.Codes)
	if err != nil {
		return fmt.Errorf("claim codes: %w", err)
	}
	diagnosis, err := marshalJSON(c.Diagnosis)
	if err != nil {
		return fmt.Errorf("claim diagnosis: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO claims (id, org_id, patient_id, provider_id, insurer_id, amount, status,
			rail, external_id, reference_number, codes, diagnosis, version,
			submitted_at, last_sync_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.OrgID, c.PatientID, c.ProviderID, c.InsurerID, c.Amount.String(), string(c.Status),
		c.Rail, c.ExternalID, c.ReferenceNumber, codes, diagnosis, c.Version,
		millisPtr(c.SubmittedAt), millisPtr(c.LastSyncAt), millis(c.CreatedAt), millis(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

const claimColumns = `id, org_id, patient_id, provider_id, insurer_id, amount, status,
	rail, external_id, reference_number, codes, diagnosis, version,
	submitted_at, last_sync_at, created_at, updated_at`

func scanClaim(row interface{ Scan(...any) error }) (*claim.Claim, error) {
	var (
		c                       claim.Claim
		amount                  string
		status                  string
		codes, diagnosis        sql.NullString
		submittedAt, lastSyncAt sql.NullInt64
		createdAt, updatedAt    int64
	)
	err := row.Scan(&c.ID, &c.OrgID, &c.PatientID, &c.ProviderID, &c.InsurerID, &amount, &status,
		&c.Rail, &c.ExternalID, &c.ReferenceNumber, &codes, &diagnosis, &c.Version,
		&submittedAt, &lastSyncAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q: %w", amount, err)
	}
	c.Status = claim.Status(status)
	if codes.Valid && codes.String != "" {
		if err := json.Unmarshal([]byte(codes.String), &c.Codes); err != nil {
			return nil, fmt.Errorf("stored codes: %w", err)
		}
	}
	if diagnosis.Valid && diagnosis.String != "" {
		if err := json.Unmarshal([]byte(diagnosis.String), &c.Diagnosis); err != nil {
			return nil, fmt.Errorf("stored diagnosis: %w", err)
		}
	}
	c.SubmittedAt = fromMillisNull(submittedAt)
	c.LastSyncAt = fromMillisNull(lastSyncAt)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

// GetClaim loads a claim by id.
func (s *SQLite) GetClaim(ctx context.Context, id string) (*claim.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, claim.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load claim %s: %w", id, err)
	}
	return c, nil
}

// UpdateClaim compare-and-sets the claim on its version.
func (s *SQLite) UpdateClaim(ctx context.Context, c *claim.Claim, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := marshalJSON(c.Codes)
	if err != nil {
		return fmt.Errorf("claim codes: %w", err)
	}
	diagnosis, err := marshalJSON(c.Diagnosis)
	if err != nil {
		return fmt.Errorf("claim diagnosis: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE claims SET org_id = ?, patient_id = ?, provider_id = ?, insurer_id = ?,
			amount = ?, status = ?, rail = ?, external_id = ?, reference_number = ?,
			codes = ?, diagnosis = ?, version = ?, submitted_at = ?, last_sync_at = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, c.OrgID, c.PatientID, c.ProviderID, c.InsurerID,
		c.Amount.String(), string(c.Status), c.Rail, c.ExternalID, c.ReferenceNumber,
		codes, diagnosis, c.Version, millisPtr(c.SubmittedAt), millisPtr(c.LastSyncAt), millis(c.UpdatedAt),
		c.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if affected == 0 {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM claims WHERE id = ?`, c.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLite) ListClaimsByStatus(ctx context.Context, statuses ...claim.Status) ([]*claim.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := ""
	args := make([]any, 0, len(statuses))
	for i, st := range statuses {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, string(st))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE status IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var result []*claim.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("list claims: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// PutPatient stores or replaces a patient.
func (s *SQLite) PutPatient(ctx context.Context, p *claim.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dob any
	if !p.DateOfBirth.IsZero() {
		dob = millis(p.DateOfBirth)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (id, org_id, first_name, last_name, date_of_birth, gender, member_id, group_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET org_id = excluded.org_id, first_name = excluded.first_name,
			last_name = excluded.last_name, date_of_birth = excluded.date_of_birth,
			gender = excluded.gender, member_id = excluded.member_id, group_number = excluded.group_number
	`, p.ID, p.OrgID, p.FirstName, p.LastName, dob, p.Gender, p.MemberID, p.GroupNumber)
	if err != nil {
		return fmt.Errorf("put patient: %w", err)
	}
	return nil
}

// GetPatient loads a patient by id.
func (s *SQLite) GetPatient(ctx context.Context, id string) (*claim.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p   claim.Patient
		dob sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, first_name, last_name, date_of_birth, gender, member_id, group_number
		FROM patients WHERE id = ?
	`, id).Scan(&p.ID, &p.OrgID, &p.FirstName, &p.LastName, &dob, &p.Gender, &p.MemberID, &p.GroupNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, claim.ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load patient %s: %w", id, err)
	}
	if dob.Valid {
		p.DateOfBirth = fromMillis(dob.Int64)
	}
	return &p, nil
}

// PutProvider stores or replaces a provider.
func (s *SQLite) PutProvider(ctx context.Context, p *claim.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO providers (id, org_id, first_name, last_name, license_number, npi, specialty)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET org_id = excluded.org_id, first_name = excluded.first_name,
			last_name = excluded.last_name, license_number = excluded.license_number,
			npi = excluded.npi, specialty = excluded.specialty
	`, p.ID, p.OrgID, p.FirstName, p.LastName, p.LicenseNumber, p.NPI, p.Specialty)
	if err != nil {
		return fmt.Errorf("put provider: %w", err)
	}
	return nil
}

// GetProvider loads a provider by id.
func (s *SQLite) GetProvider(ctx context.Context, id string) (*claim.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p claim.Provider
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, first_name, last_name, license_number, npi, specialty
		FROM providers WHERE id = ?
	`, id).Scan(&p.ID, &p.OrgID, &p.FirstName, &p.LastName, &p.LicenseNumber, &p.NPI, &p.Specialty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, claim.ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load provider %s: %w", id, err)
	}
	return &p, nil
}

// PutConnectorConfig stores or replaces a connector config.
func (s *SQLite) PutConnectorConfig(ctx context.Context, cfg *connector.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := marshalJSON(cfg.Settings)
	if err != nil {
		return fmt.Errorf("config settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO connector_configs (org_id, rail, enabled, mode, settings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id, rail) DO UPDATE SET enabled = excluded.enabled, mode = excluded.mode,
			settings = excluded.settings, updated_at = excluded.updated_at
	`, cfg.OrgID, cfg.Rail.String(), boolToInt(cfg.Enabled), string(cfg.Mode), settings, millis(cfg.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put connector config: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanConfig(row interface{ Scan(...any) error }) (*connector.Config, error) {
	var (
		cfg       connector.Config
		rail      string
		enabled   int
		mode      string
		settings  sql.NullString
		updatedAt int64
	)
	if err := row.Scan(&cfg.OrgID, &rail, &enabled, &mode, &settings, &updatedAt); err != nil {
		return nil, err
	}
	cfg.Rail = connector.Rail(rail)
	cfg.Enabled = enabled != 0
	cfg.Mode = connector.Mode(mode)
	if settings.Valid && settings.String != "" {
		if err := json.Unmarshal([]byte(settings.String), &cfg.Settings); err != nil {
			return nil, fmt.Errorf("stored settings: %w", err)
		}
	}
	cfg.UpdatedAt = fromMillis(updatedAt)
	return &cfg, nil
}

// GetConnectorConfig loads the config for an org and rail.
func (s *SQLite) GetConnectorConfig(ctx context.Context, orgID string, rail connector.Rail) (*connector.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT org_id, rail, enabled, mode, settings, updated_at
		FROM connector_configs WHERE org_id = ? AND rail = ?
	`, orgID, rail.String())
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, connector.NewConfigError(rail, orgID, "not configured")
	}
	if err != nil {
		return nil, fmt.Errorf("load connector config: %w", err)
	}
	return cfg, nil
}

// ListConnectorConfigs returns all configs for an org.
func (s *SQLite) ListConnectorConfigs(ctx context.Context, orgID string) ([]*connector.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT org_id, rail, enabled, mode, settings, updated_at
		FROM connector_configs WHERE org_id = ? ORDER BY rail
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list connector configs: %w", err)
	}
	defer rows.Close()

	var result []*connector.Config
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("list connector configs: %w", err)
		}
		result = append(result, cfg)
	}
	return result, rows.Err()
}

// CreateJob stores a new job.
func (s *SQLite) CreateJob(ctx context.Context, j *queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submission_jobs (id, type, claim_id, rail, org_id, status, attempts, max_attempts,
			next_run_at, last_error, idempotency_key, enqueued_at, started_at, finished_at, lease_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.ClaimID, j.Rail, j.OrgID, string(j.Status), j.Attempts, j.MaxAttempts,
		millis(j.NextRunAt), j.LastError, j.IdempotencyKey, millis(j.EnqueuedAt),
		millisPtr(j.StartedAt), millisPtr(j.FinishedAt), millisPtr(j.LeaseExpiresAt))
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

const jobColumns = `id, type, claim_id, rail, org_id, status, attempts, max_attempts,
	next_run_at, last_error, idempotency_key, enqueued_at, started_at, finished_at, lease_expires_at`

func scanJob(row interface{ Scan(...any) error }) (*queue.Job, error) {
	var (
		j                               queue.Job
		status                          string
		nextRunAt, enqueuedAt           int64
		startedAt, finishedAt, leaseExp sql.NullInt64
	)
	err := row.Scan(&j.ID, &j.Type, &j.ClaimID, &j.Rail, &j.OrgID, &status, &j.Attempts, &j.MaxAttempts,
		&nextRunAt, &j.LastError, &j.IdempotencyKey, &enqueuedAt, &startedAt, &finishedAt, &leaseExp)
	if err != nil {
		return nil, err
	}
	j.Status = queue.JobStatus(status)
	j.NextRunAt = fromMillis(nextRunAt)
	j.EnqueuedAt = fromMillis(enqueuedAt)
	j.StartedAt = fromMillisNull(startedAt)
	j.FinishedAt = fromMillisNull(finishedAt)
	j.LeaseExpiresAt = fromMillisNull(leaseExp)
	return &j, nil
}

// GetJob loads a job by id.
func (s *SQLite) GetJob(ctx context.Context, id string) (*queue.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM submission_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return j, nil
}

// ActiveJobByKey returns a queued or running job carrying the key.
func (s *SQLite) ActiveJobByKey(ctx context.Context, key string) (*queue.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM submission_jobs
		WHERE idempotency_key = ? AND status IN ('queued', 'running') LIMIT 1
	`, key)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job by key: %w", err)
	}
	return j, nil
}

// LeaseDueJobs atomically claims due queued jobs.
func (s *SQLite) LeaseDueJobs(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("lease jobs: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM submission_jobs
		WHERE status = 'queued' AND next_run_at <= ?
		ORDER BY next_run_at LIMIT ?
	`, millis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("lease jobs: %w", err)
	}

	var due []*queue.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("lease jobs: %w", err)
		}
		due = append(due, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lease jobs: %w", err)
	}

	for _, j := range due {
		if _, err := tx.ExecContext(ctx, `
			UPDATE submission_jobs SET status = 'running', attempts = attempts + 1,
				started_at = ?, lease_expires_at = ? WHERE id = ?
		`, millis(now), millis(leaseUntil), j.ID); err != nil {
			return nil, fmt.Errorf("lease job %s: %w", j.ID, err)
		}

		j.Status = queue.JobRunning
		j.Attempts++
		started := now.UTC()
		j.StartedAt = &started
		lease := leaseUntil.UTC()
		j.LeaseExpiresAt = &lease
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("lease jobs: %w", err)
	}
	return due, nil
}

// UpdateJob replaces the stored job.
func (s *SQLite) UpdateJob(ctx context.Context, j *queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE submission_jobs SET status = ?, attempts = ?, max_attempts = ?, next_run_at = ?,
			last_error = ?, started_at = ?, finished_at = ?, lease_expires_at = ?
		WHERE id = ?
	`, string(j.Status), j.Attempts, j.MaxAttempts, millis(j.NextRunAt),
		j.LastError, millisPtr(j.StartedAt), millisPtr(j.FinishedAt), millisPtr(j.LeaseExpiresAt), j.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected == 0 {
		return queue.ErrJobNotFound
	}
	return nil
}

// RequeueExpiredLeases returns lapsed running jobs to the queue.
func (s *SQLite) RequeueExpiredLeases(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE submission_jobs SET status = 'queued', lease_expires_at = NULL
		WHERE status = 'running' AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?
	`, millis(now))
	if err != nil {
		return 0, fmt.Errorf("requeue expired leases: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue expired leases: %w", err)
	}
	return int(affected), nil
}

// JobStats counts jobs per status.
func (s *SQLite) JobStats(ctx context.Context) (*queue.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM submission_jobs GROUP BY status`)
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
func (s *SQLite) UpsertPoll(ctx context.Context, p *schedule.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_polls (id, claim_id, external_id, rail, org_id, next_run_at,
			attempts, max_attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET claim_id = excluded.claim_id, external_id = excluded.external_id,
			rail = excluded.rail, org_id = excluded.org_id, next_run_at = excluded.next_run_at,
			attempts = excluded.attempts, max_attempts = excluded.max_attempts,
			last_error = excluded.last_error, updated_at = excluded.updated_at
	`, p.ID, p.ClaimID, p.ExternalID, p.Rail, p.OrgID, millis(p.NextRunAt),
		p.Attempts, p.MaxAttempts, p.LastError, millis(p.CreatedAt), millis(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert poll: %w", err)
	}
	return nil
}

const pollColumns = `id, claim_id, external_id, rail, org_id, next_run_at,
	attempts, max_attempts, last_error, created_at, updated_at`

func scanPoll(row interface{ Scan(...any) error }) (*schedule.Poll, error) {
	var (
		p                               schedule.Poll
		nextRunAt, createdAt, updatedAt int64
	)
	err := row.Scan(&p.ID, &p.ClaimID, &p.ExternalID, &p.Rail, &p.OrgID, &nextRunAt,
		&p.Attempts, &p.MaxAttempts, &p.LastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.NextRunAt = fromMillis(nextRunAt)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

// GetPoll loads a schedule entry by id.
func (s *SQLite) GetPoll(ctx context.Context, id string) (*schedule.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM scheduled_polls WHERE id = ?`, id)
	p, err := scanPoll(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load poll %s: %w", id, err)
	}
	return p, nil
}

// DuePolls returns entries due at now, earliest first.
func (s *SQLite) DuePolls(ctx context.Context, now time.Time, limit int) ([]*schedule.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pollColumns+` FROM scheduled_polls
		WHERE next_run_at <= ? ORDER BY next_run_at LIMIT ?
	`, millis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("due polls: %w", err)
	}
	defer rows.Close()

	var result []*schedule.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("due polls: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// UpdatePoll replaces the stored entry.
func (s *SQLite) UpdatePoll(ctx context.Context, p *schedule.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_polls SET next_run_at = ?, attempts = ?, max_attempts = ?,
			last_error = ?, updated_at = ? WHERE id = ?
	`, millis(p.NextRunAt), p.Attempts, p.MaxAttempts, p.LastError, millis(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("update poll: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update poll: %w", err)
	}
	if affected == 0 {
		return schedule.ErrPollNotFound
	}
	return nil
}

// DeletePoll removes the entry; removing a missing entry is a no-op.
func (s *SQLite) DeletePoll(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_polls WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete poll: %w", err)
	}
	return nil
}

// ListPolls returns every schedule entry.
func (s *SQLite) ListPolls(ctx context.Context) ([]*schedule.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+pollColumns+` FROM scheduled_polls ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer rows.Close()

	var result []*schedule.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("list polls: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// AppendEvent appends a connector event.
func (s *SQLite) AppendEvent(ctx context.Context, e *connector.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connector_events (id, claim_id, rail, kind, status, message, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.ClaimID, e.Rail.String(), string(e.Kind), string(e.Status), e.Message, []byte(e.Detail), millis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

const eventColumns = `id, claim_id, rail, kind, status, message, detail, created_at`

func scanEvent(row interface{ Scan(...any) error }) (*connector.Event, error) {
	var (
		e         connector.Event
		rail      string
		kind      string
		status    string
		detail    []byte
		createdAt int64
	)
	err := row.Scan(&e.ID, &e.ClaimID, &rail, &kind, &status, &e.Message, &detail, &createdAt)
	if err != nil {
		return nil, err
	}
	e.Rail = connector.Rail(rail)
	e.Kind = connector.EventKind(kind)
	e.Status = connector.RailStatus(status)
	e.Detail = detail
	e.CreatedAt = fromMillis(createdAt)
	return &e, nil
}

// ListEventsByClaim returns the claim's events in id (creation) order.
func (s *SQLite) ListEventsByClaim(ctx context.Context, claimID string) ([]*connector.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM connector_events WHERE claim_id = ? ORDER BY id
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var result []*connector.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// LatestEventByClaim returns the most recent event for the claim, or nil.
func (s *SQLite) LatestEventByClaim(ctx context.Context, claimID string) (*connector.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM connector_events WHERE claim_id = ? ORDER BY id DESC LIMIT 1
	`, claimID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest event: %w", err)
	}
	return e, nil
}

// ListEvents returns all events in id (creation) order.
func (s *SQLite) ListEvents(ctx context.Context) ([]*connector.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM connector_events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var result []*connector.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// AppendRemittance appends a reconciled payment.
func (s *SQLite) AppendRemittance(ctx context.Context, r *claim.Remittance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO remittances (id, claim_id, rail, amount, payment_date, reference_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.ClaimID, r.Rail, r.Amount.String(), millis(r.PaymentDate), r.ReferenceNumber, millis(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("append remittance: %w", err)
	}
	return nil
}

func scanRemittance(row interface{ Scan(...any) error }) (*claim.Remittance, error) {
	var (
		r                      claim.Remittance
		amount                 string
		paymentDate, createdAt int64
	)
	err := row.Scan(&r.ID, &r.ClaimID, &r.Rail, &amount, &paymentDate, &r.ReferenceNumber, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q: %w", amount, err)
	}
	r.PaymentDate = fromMillis(paymentDate)
	r.CreatedAt = fromMillis(createdAt)
	return &r, nil
}

// ListRemittancesByClaim returns the claim's remittances.
func (s *SQLite) ListRemittancesByClaim(ctx context.Context, claimID string) ([]*claim.Remittance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, claim_id, rail, amount, payment_date, reference_number, created_at
		FROM remittances WHERE claim_id = ? ORDER BY created_at
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list remittances: %w", err)
	}
	defer rows.Close()

	var result []*claim.Remittance
	for rows.Next() {
		r, err := scanRemittance(rows)
		if err != nil {
			return nil, fmt.Errorf("list remittances: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ListRemittances returns all remittances.
func (s *SQLite) ListRemittances(ctx context.Context) ([]*claim.Remittance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, claim_id, rail, amount, payment_date, reference_number, created_at
		FROM remittances ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list remittances: %w", err)
	}
	defer rows.Close()

	var result []*claim.Remittance
	for rows.Next() {
		r, err := scanRemittance(rows)
		if err != nil {
			return nil, fmt.Errorf("list remittances: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
