package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                   TEXT PRIMARY KEY,
	url                  TEXT NOT NULL UNIQUE,
	title                TEXT,
	company              TEXT,
	location             TEXT,
	company_domain       TEXT,
	linkedin_company_url TEXT,
	description          TEXT,
	raw_content          TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS suggested_roles (
	id         TEXT PRIMARY KEY,
	job_id     TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	priority   INTEGER NOT NULL,
	keywords   TEXT NOT NULL,
	reasoning  TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS contacts (
	id                  TEXT PRIMARY KEY,
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
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_suggested_roles_job ON suggested_roles(job_id, priority);
CREATE INDEX IF NOT EXISTS idx_contacts_job ON contacts(job_id);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *model.JobPosting, roles []model.ContactRole) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin upsert job")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	var jobID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM jobs WHERE url = ?`, job.URL).Scan(&jobID)
	switch {
	case err == sql.ErrNoRows:
		jobID = uuid.New().String()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO jobs (id, url, title, company, location, company_domain, linkedin_company_url, description, raw_content, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			jobID, job.URL, job.Title, job.Company, job.Location, job.CompanyDomain,
			job.LinkedInCompanyURL, job.Description, job.RawContent, now, now,
		)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: insert job")
		}
	case err != nil:
		return "", eris.Wrap(err, "sqlite: lookup job by url")
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET title = ?, company = ?, location = ?, company_domain = ?,
			 linkedin_company_url = ?, description = ?, raw_content = ?, updated_at = ? WHERE id = ?`,
			job.Title, job.Company, job.Location, job.CompanyDomain,
			job.LinkedInCompanyURL, job.Description, job.RawContent, now, jobID,
		)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: update job")
		}
		// Re-analysis replaces the suggestion set wholesale.
		if _, err = tx.ExecContext(ctx, `DELETE FROM suggested_roles WHERE job_id = ?`, jobID); err != nil {
			return "", eris.Wrap(err, "sqlite: clear suggested roles")
		}
	}

	for _, role := range roles {
		keywordsJSON, err := json.Marshal(role.Keywords)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: marshal keywords")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO suggested_roles (id, job_id, title, priority, keywords, reasoning, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), jobID, role.Title, role.Priority, string(keywordsJSON), role.Reasoning, now,
		)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: insert suggested role")
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit upsert job")
	}
	job.ID = jobID
	return jobID, nil
}

const jobColumns = `id, url, title, company, location, company_domain, linkedin_company_url, description, raw_content, created_at, updated_at`

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.JobPosting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (s *SQLiteStore) GetJobByURL(ctx context.Context, url string) (*model.JobPosting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE url = ?`, url)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.JobPosting, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	var args []any

	if filter.Company != "" {
		query += ` AND company = ?`
		args = append(args, filter.Company)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
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
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) GetRoles(ctx context.Context, jobID string) ([]model.ContactRole, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, priority, keywords, reasoning FROM suggested_roles WHERE job_id = ? ORDER BY priority ASC`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get roles")
	}
	defer rows.Close()

	var roles []model.ContactRole
	for rows.Next() {
		var r model.ContactRole
		var keywordsJSON string
		var reasoning sql.NullString
		if err := rows.Scan(&r.Title, &r.Priority, &keywordsJSON, &reasoning); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan role")
		}
		if err := json.Unmarshal([]byte(keywordsJSON), &r.Keywords); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal keywords")
		}
		r.Reasoning = reasoning.String
		roles = append(roles, r)
	}
	return roles, eris.Wrap(rows.Err(), "sqlite: get roles iterate")
}

func (s *SQLiteStore) UpsertContact(ctx context.Context, jobID string, c model.Contact) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin upsert contact")
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := findMatch(ctx, sqliteQuerier{tx}, jobID, c)
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
		_, err = tx.ExecContext(ctx,
			`INSERT INTO contacts (id, job_id, name, title, email, profile_url, company, source_org_id, source_person_id, sequence_contact_id, source, status, notes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, nullable(c.JobID), c.Name, c.Title, c.Email, c.ProfileURL, c.Company,
			c.SourceOrgID, c.SourcePersonID, c.SequenceContactID, c.Source, string(c.Status), c.Notes, now, now,
		)
		if err != nil {
			return false, eris.Wrap(err, "sqlite: insert contact")
		}
	} else {
		merged := mergeContact(*existing, c)
		_, err = tx.ExecContext(ctx,
			`UPDATE contacts SET name = ?, title = ?, email = ?, profile_url = ?, company = ?,
			 source_org_id = ?, source_person_id = ?, sequence_contact_id = ?, updated_at = ? WHERE id = ?`,
			merged.Name, merged.Title, merged.Email, merged.ProfileURL, merged.Company,
			merged.SourceOrgID, merged.SourcePersonID, merged.SequenceContactID, now, merged.ID,
		)
		if err != nil {
			return false, eris.Wrap(err, "sqlite: update contact")
		}
	}

	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: commit upsert contact")
	}
	return isNew, nil
}

func (s *SQLiteStore) UpsertContacts(ctx context.Context, jobID string, cs []model.Contact) (int, error) {
	inserted := 0
	var errs []error
	for _, c := range cs {
		isNew, err := s.UpsertContact(ctx, jobID, c)
		if err != nil {
			// One bad contact must not poison the rest of the batch;
			// everything before and after stays durably committed.
			errs = append(errs, eris.Wrapf(err, "contact %q", c.Name))
			continue
		}
		if isNew {
			inserted++
		}
	}
	if len(errs) > 0 {
		return inserted, eris.Errorf("sqlite: upsert batch: %d of %d contacts failed (first: %v)", len(errs), len(cs), errs[0])
	}
	return inserted, nil
}

const contactColumns = `id, job_id, name, title, email, profile_url, company, source_org_id, source_person_id, sequence_contact_id, source, status, notes, created_at, updated_at`

func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
	return scanContact(row)
}

func (s *SQLiteStore) ListContacts(ctx context.Context, filter ContactFilter) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE 1=1`
	var args []any

	if filter.JobID != "" {
		query += ` AND job_id = ?`
		args = append(args, filter.JobID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
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
	return contacts, eris.Wrap(rows.Err(), "sqlite: list contacts iterate")
}

func (s *SQLiteStore) UpdateContactStatus(ctx context.Context, id string, status model.ContactStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update contact status %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// helpers

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteQuerier struct {
	tx *sql.Tx
}

func (q sqliteQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return q.tx.QueryRowContext(ctx, query, args...)
}

// findMatch resolves contact identity within a job: email first, then
// profile URL. Returns nil when no stored contact matches.
func findMatch(ctx context.Context, q querier, jobID string, c model.Contact) (*model.Contact, error) {
	if c.Email != "" {
		row := q.QueryRowContext(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE email = ? AND job_id = ?`, c.Email, jobID)
		match, err := scanContact(row)
		if err == nil {
			return match, nil
		}
		if !eris.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if c.ProfileURL != "" {
		row := q.QueryRowContext(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE profile_url = ? AND job_id = ?`, c.ProfileURL, jobID)
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

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.JobPosting, error) {
	var j model.JobPosting
	var title, company, location, domain, linkedin, description, raw sql.NullString

	err := row.Scan(&j.ID, &j.URL, &title, &company, &location, &domain, &linkedin, &description, &raw, &j.CreatedAt, &j.UpdatedAt)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan job")
	}

	j.Title = title.String
	j.Company = company.String
	j.Location = location.String
	j.CompanyDomain = domain.String
	j.LinkedInCompanyURL = linkedin.String
	j.Description = description.String
	j.RawContent = raw.String
	return &j, nil
}

func scanContact(row scannable) (*model.Contact, error) {
	var c model.Contact
	var jobID, title, email, profile, company, orgID, personID, seqID, source, notes sql.NullString
	var status string

	err := row.Scan(&c.ID, &jobID, &c.Name, &title, &email, &profile, &company,
		&orgID, &personID, &seqID, &source, &status, &notes, &c.CreatedAt, &c.UpdatedAt)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan contact")
	}

	c.JobID = jobID.String
	c.Title = title.String
	c.Email = email.String
	c.ProfileURL = profile.String
	c.Company = company.String
	c.SourceOrgID = orgID.String
	c.SourcePersonID = personID.String
	c.SequenceContactID = seqID.String
	c.Source = source.String
	c.Status = model.ContactStatus(status)
	c.Notes = notes.String
	return &c, nil
}
