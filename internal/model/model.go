package model

import (
	"sort"
	"strings"
	"time"
)

// ContactStatus tracks where a contact is in the outreach lifecycle.
type ContactStatus string

const (
	ContactStatusNew       ContactStatus = "new"
	ContactStatusContacted ContactStatus = "contacted"
	ContactStatusResponded ContactStatus = "responded"
)

// ContactSource records where a contact came from.
const (
	SourceExternalSearch = "external-search"
	SourceManual         = "manual"
)

// JobPosting represents an analyzed job posting. Upserted by URL: a repeat
// analysis of the same URL mutates the stored row in place.
type JobPosting struct {
	ID                 string    `json:"id"`
	URL                string    `json:"url"`
	Title              string    `json:"title,omitempty"`
	Company            string    `json:"company,omitempty"`
	Location           string    `json:"location,omitempty"`
	CompanyDomain      string    `json:"company_domain,omitempty"`
	LinkedInCompanyURL string    `json:"linkedin_company_url,omitempty"`
	Description        string    `json:"description,omitempty"`
	RawContent         string    `json:"raw_content,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ContactRole is an LLM-suggested role worth contacting for a job, ranked by
// priority (1 = highest). Immutable once produced for a given job; priorities
// need not be contiguous, only comparable for ascending sort.
type ContactRole struct {
	Title     string   `json:"title"`
	Priority  int      `json:"priority"`
	Keywords  []string `json:"keywords"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// Contact is a person found for outreach, associated with at most one job.
// Identity within a job resolves by email first, then profile URL.
type Contact struct {
	ID                string        `json:"id"`
	JobID             string        `json:"job_id,omitempty"` // empty for manually added contacts
	Name              string        `json:"name"`
	Title             string        `json:"title,omitempty"`
	Email             string        `json:"email,omitempty"`
	ProfileURL        string        `json:"profile_url,omitempty"`
	Company           string        `json:"company,omitempty"`
	SourceOrgID       string        `json:"source_org_id,omitempty"`
	SourcePersonID    string        `json:"source_person_id,omitempty"`
	SequenceContactID string        `json:"sequence_contact_id,omitempty"` // set once created in the outreach account
	Source            string        `json:"source,omitempty"`
	Status            ContactStatus `json:"status"`
	Notes             string        `json:"notes,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// ExternalID returns the identifier usable for sequencing: the account
// contact ID when the contact was saved to the outreach account, else the
// raw person ID from search. Empty when neither is known.
func (c Contact) ExternalID() string {
	if c.SequenceContactID != "" {
		return c.SequenceContactID
	}
	return c.SourcePersonID
}

// SplitName returns first and last name halves of the contact's full name.
// A single-word name yields an empty last name.
func (c Contact) SplitName() (first, last string) {
	parts := strings.SplitN(strings.TrimSpace(c.Name), " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		last = parts[1]
	}
	return first, last
}

// SortRolesByPriority sorts roles ascending by priority, stable on ties.
func SortRolesByPriority(roles []ContactRole) {
	sort.SliceStable(roles, func(i, j int) bool {
		return roles[i].Priority < roles[j].Priority
	})
}
