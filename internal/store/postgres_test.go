package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgres_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM jobs WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetJob_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "url", "title", "company", "location", "company_domain",
		"linkedin_company_url", "description", "raw_content", "created_at", "updated_at",
	}).AddRow(
		"job-1", "https://example.com/jobs/1", "Senior Backend Engineer", "Acme Corp",
		"Austin, TX", "acme.com", "linkedin.com/company/acme", "desc", "raw", now, now,
	)

	mock.ExpectQuery(`SELECT .+ FROM jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(rows)

	got, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Company)
	assert.Equal(t, "acme.com", got.CompanyDomain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertJob_InsertPath(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM jobs WHERE url = \$1`).
		WithArgs("https://example.com/jobs/1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO jobs`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO suggested_roles`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	job := &model.JobPosting{URL: "https://example.com/jobs/1", Title: "Senior Backend Engineer", Company: "Acme Corp"}
	id, err := s.UpsertJob(context.Background(), job, []model.ContactRole{
		{Title: "Engineering Manager", Priority: 1, Keywords: []string{"Manager"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, job.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertJob_UpdatePathReplacesRoles(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM jobs WHERE url = \$1`).
		WithArgs("https://example.com/jobs/1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("job-1"))
	mock.ExpectExec(`UPDATE jobs SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM suggested_roles WHERE job_id = \$1`).
		WithArgs("job-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO suggested_roles`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	job := &model.JobPosting{URL: "https://example.com/jobs/1", Title: "Staff Backend Engineer"}
	id, err := s.UpsertJob(context.Background(), job, []model.ContactRole{
		{Title: "Hiring Manager", Priority: 1, Keywords: []string{"Manager"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateContactStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE contacts SET status = \$1, updated_at = \$2 WHERE id = \$3`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateContactStatus(context.Background(), "nonexistent", model.ContactStatusContacted)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertContact_InsertWhenNoMatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM contacts WHERE email = \$1 AND job_id = \$2`).
		WithArgs("jane@acme.com", "job-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO contacts`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	isNew, err := s.UpsertContact(context.Background(), "job-1", model.Contact{
		Name:  "Jane Doe",
		Email: "jane@acme.com",
	})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertContact_UpdateWhenEmailMatches(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "job_id", "name", "title", "email", "profile_url", "company",
		"source_org_id", "source_person_id", "sequence_contact_id", "source",
		"status", "notes", "created_at", "updated_at",
	}).AddRow(
		"c-1", "job-1", "Jane Doe", "Manager", "jane@acme.com",
		"https://linkedin.com/in/janedoe", "Acme Corp", "", "", "",
		"external-search", "new", "", now, now,
	)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM contacts WHERE email = \$1 AND job_id = \$2`).
		WithArgs("jane@acme.com", "job-1").
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE contacts SET name = \$1`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	isNew, err := s.UpsertContact(context.Background(), "job-1", model.Contact{
		Name:  "Jane Doe",
		Email: "jane@acme.com",
		Title: "Director",
	})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.NoError(t, mock.ExpectationsWereMet())
}
