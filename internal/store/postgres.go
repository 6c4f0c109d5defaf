package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
)

// Pool abstracts pgxpool.Pool so tests can substitute a pgxmock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"get_job_by_url":    `SELECT id FROM jobs WHERE url = $1`,
	"get_roles":         `SELECT title, priority, keywords, reasoning FROM suggested_roles WHERE job_id = $1 ORDER BY priority ASC`,
	"get_contact":       `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`,
	"set_contact_state": `UPDATE contacts SET status = $1, updated_at = $2 WHERE id = $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	url                  TEXT NOT NULL UNIQUE,
	title                TEXT,
	company              TEXT,
	location             TEXT,
	company_domain       TEXT,
	linkedin_company_url TEXT,
	description          TEXT,
	raw_content          TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS suggested_roles (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id     TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	priority   INTEGER NOT NULL,
	keywords   JSONB NOT NULL,
	reasoning  TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contacts (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id              TEXT REFERENCES jobs(id),
	name                TEXT NOT NULL,
	title               TEXT,
	email               TEXT,
	profile_url         TEXT,
	company             TEXT,
	source_org_id       TEXT,
	source_person_id    TEXT,
	sequence_contact_id TEXT,
	source              TEXT,
	status              TEXT NOT NULL DEFAULT 'new',
	notes               TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_suggested_roles_job ON suggested_roles(job_id, priority);
CREATE INDEX IF NOT EXISTS idx_contacts_job ON contacts(job_id);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertJob(ctx context.Context, job *model.JobPosting, roles []model.ContactRole) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin upsert job")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()

	var jobID string
	err = tx.QueryRow(ctx, `SELECT id FROM jobs WHERE url = $1`, job.URL).Scan(&jobID)
	switch {
	case isNoRows(err):
		jobID = uuid.New().String()
		_, err = tx.Exec(ctx,
			`INSERT INTO jobs (id, url, title, company, location, company_domain, linkedin_company_url, description, raw_content, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			jobID, job.URL, job.Title, job.Company, job.Location, job.CompanyDomain,
			job.LinkedInCompanyURL, job.Description, job.RawContent, now, now,
		)
		if err != nil {
			return "", eris.Wrap(err, "postgres: insert job")
		}
	case err != nil:
		return "", eris.Wrap(err, "postgres: lookup job by url")
	default:
		_, err = tx.Exec(ctx,
			`UPDATE jobs SET title = $1, company = $2, location = $3, company_domain = $4,
			 linkedin_company_url = $5, description = $6, raw_content = $7, updated_at = $8 WHERE id = $9`,
			job.Title, job.Company, job.Location, job.CompanyDomain,
			job.LinkedInCompanyURL, job.Description, job.RawContent, now, jobID,
		)
		if err != nil {
			return "", eris.Wrap(err, "postgres: update job")
		}
		if _, err = tx.Exec(ctx, `DELETE FROM suggested_roles WHERE job_id = $1`, jobID); err != nil {
			return "", eris.Wrap(err, "postgres: clear suggested roles")
		}
	}

	for _, role := range roles {
		keywordsJSON, err := json.Marshal(role.Keywords)
		if err != nil {
			return "", eris.Wrap(err, "postgres: marshal keywords")
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO suggested_roles (id, job_id, title, priority, keywords, reasoning, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New().String(), jobID, role.Title, role.Priority, keywordsJSON, role.Reasoning, now,
		)
		if err != nil {
			return "", eris.Wrap(err, "postgres: insert suggested role")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit upsert job")
	}
	job.ID = jobID
	return jobID, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.JobPosting, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *PostgresStore) GetJobByURL(ctx context.Context, url string) (*model.JobPosting, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE url = $1`, url)
	return scanJob(row)
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.JobPosting, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Company != "" {
		query += fmt.Sprintf(` AND company = $%d`, argIdx)
		args = append(args, filter.Company)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.JobPosting
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) GetRoles(ctx context.Context, jobID string) ([]model.ContactRole, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT title, priority, keywords, reasoning FROM suggested_roles WHERE job_id = $1 ORDER BY priority ASC`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get roles")
	}
	defer rows.Close()

	var roles []model.ContactRole
	for rows.Next() {
		var r model.ContactRole
		var keywordsJSON []byte
		var reasoning *string
		if err := rows.Scan(&r.Title, &r.Priority, &keywordsJSON, &reasoning); err != nil {
			return nil, eris.Wrap(err, "postgres: scan role")
		}
		if err := json.Unmarshal(keywordsJSON, &r.Keywords); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal keywords")
		}
		if reasoning != nil {
			r.Reasoning = *reasoning
		}
		roles = append(roles, r)
	}
	return roles, eris.Wrap(rows.Err(), "postgres: get roles iterate")
}

func (s *PostgresStore) UpsertContact(ctx context.Context, jobID string, c model.Contact) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, eris.Wrap(err, "postgres: begin upsert contact")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	existing, err := findMatchPG(ctx, tx, jobID, c)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	isNew := existing == nil

	if isNew {
		c.ID = uuid.New().String()
		c.JobID = jobID
		if c.Source == "" {
			c.Source = model.SourceExternalSearch
		}
		if c.Status == "" {
			c.Status = model.ContactStatusNew
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO contacts (id, job_id, name, title, email, profile_url, company, source_org_id, source_person_id, sequence_contact_id, source, status, notes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			c.ID, nullable(c.JobID), c.Name, c.Title, c.Email, c.ProfileURL, c.Company,
			c.SourceOrgID, c.SourcePersonID, c.SequenceContactID, c.Source, string(c.Status), c.Notes, now, now,
		)
		if err != nil {
			return false, eris.Wrap(err, "postgres: insert contact")
		}
	} else {
		merged := mergeContact(*existing, c)
		_, err = tx.Exec(ctx,
			`UPDATE contacts SET name = $1, title = $2, email = $3, profile_url = $4, company = $5,
			 source_org_id = $6, source_person_id = $7, sequence_contact_id = $8, updated_at = $9 WHERE id = $10`,
			merged.Name, merged.Title, merged.Email, merged.ProfileURL, merged.Company,
			merged.SourceOrgID, merged.SourcePersonID, merged.SequenceContactID, now, merged.ID,
		)
		if err != nil {
			return false, eris.Wrap(err, "postgres: update contact")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, eris.Wrap(err, "postgres: commit upsert contact")
	}
	return isNew, nil
}

func (s *PostgresStore) UpsertContacts(ctx context.Context, jobID string, cs []model.Contact) (int, error) {
	inserted := 0
	var errs []error
	for _, c := range cs {
		isNew, err := s.UpsertContact(ctx, jobID, c)
		if err != nil {
			errs = append(errs, eris.Wrapf(err, "contact %q", c.Name))
			continue
		}
		if isNew {
			inserted++
		}
	}
	if len(errs) > 0 {
		return inserted, eris.Errorf("postgres: upsert batch: %d of %d contacts failed (first: %v)", len(errs), len(cs), errs[0])
	}
	return inserted, nil
}

func (s *PostgresStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	return scanContact(row)
}

func (s *PostgresStore) ListContacts(ctx context.Context, filter ContactFilter) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE true`
	args := []any{}
	argIdx := 1

	if filter.JobID != "" {
		query += fmt.Sprintf(` AND job_id = $%d`, argIdx)
		args = append(args, filter.JobID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts")
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, eris.Wrap(rows.Err(), "postgres: list contacts iterate")
}

func (s *PostgresStore) UpdateContactStatus(ctx context.Context, id string, status model.ContactStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contacts SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update contact status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// findMatchPG resolves contact identity within a job: email first, then
// profile URL. Returns nil when no stored contact matches.
func findMatchPG(ctx context.Context, tx pgx.Tx, jobID string, c model.Contact) (*model.Contact, error) {
	if c.Email != "" {
		row := tx.QueryRow(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE email = $1 AND job_id = $2`, c.Email, jobID)
		match, err := scanContact(row)
		if err == nil {
			return match, nil
		}
		if !eris.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if c.ProfileURL != "" {
		row := tx.QueryRow(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE profile_url = $1 AND job_id = $2`, c.ProfileURL, jobID)
		match, err := scanContact(row)
		if err == nil {
			return match, nil
		}
		if !eris.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}
