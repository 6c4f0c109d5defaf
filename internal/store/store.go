// Package store persists analyzed jobs, suggested roles, and contacts.
// Two drivers are provided: SQLite (default, local file) and Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
)

// ErrNotFound is returned when a requested job or contact does not exist.
var ErrNotFound = eris.New("store: not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Company string `json:"company,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// ContactFilter specifies criteria for listing contacts.
type ContactFilter struct {
	JobID  string              `json:"job_id,omitempty"`
	Status model.ContactStatus `json:"status,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
}

// Store defines the persistence interface for the outreach pipeline.
type Store interface {
	// Jobs. UpsertJob keys on URL: re-analyzing a posting updates the stored
	// row in place and replaces its suggested roles.
	UpsertJob(ctx context.Context, job *model.JobPosting, roles []model.ContactRole) (string, error)
	GetJob(ctx context.Context, id string) (*model.JobPosting, error)
	GetJobByURL(ctx context.Context, url string) (*model.JobPosting, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.JobPosting, error)
	GetRoles(ctx context.Context, jobID string) ([]model.ContactRole, error)

	// Contacts. UpsertContact resolves identity by email then profile URL,
	// scoped to the job, and reports whether a new row was created. The batch
	// variant is sequential and non-atomic: each contact commits on its own.
	UpsertContact(ctx context.Context, jobID string, c model.Contact) (bool, error)
	UpsertContacts(ctx context.Context, jobID string, cs []model.Contact) (int, error)
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	ListContacts(ctx context.Context, filter ContactFilter) ([]model.Contact, error)
	UpdateContactStatus(ctx context.Context, id string, status model.ContactStatus) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// isNoRows reports whether err is the no-rows sentinel of either driver.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// mergeContact folds an incoming contact into an existing stored row.
// Name, title, and company track the latest search result unconditionally.
// Email and profile URL are identity fields: a known value is never
// replaced, only a missing one filled. External IDs fill in the same way.
func mergeContact(existing, incoming model.Contact) model.Contact {
	merged := existing

	if incoming.Name != "" {
		merged.Name = incoming.Name
	}
	merged.Title = incoming.Title
	merged.Company = incoming.Company

	if merged.Email == "" && incoming.Email != "" {
		merged.Email = incoming.Email
	}
	if merged.ProfileURL == "" && incoming.ProfileURL != "" {
		merged.ProfileURL = incoming.ProfileURL
	}
	if merged.SourceOrgID == "" && incoming.SourceOrgID != "" {
		merged.SourceOrgID = incoming.SourceOrgID
	}
	if merged.SourcePersonID == "" && incoming.SourcePersonID != "" {
		merged.SourcePersonID = incoming.SourcePersonID
	}
	if merged.SequenceContactID == "" && incoming.SequenceContactID != "" {
		merged.SequenceContactID = incoming.SequenceContactID
	}

	return merged
}
