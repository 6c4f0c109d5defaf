// Package reconcile turns suggested contact roles into concrete people by
// querying the contact directory, role by role, and optionally enriching
// the most promising results.
package reconcile

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/apollo"
)

// DirectorySearcher finds and enriches people in an external contact
// directory.
type DirectorySearcher interface {
	SearchContacts(ctx context.Context, domain string, titles []string, max int) ([]model.Contact, error)
	EnrichContact(ctx context.Context, c model.Contact, domain string) (model.Contact, error)
}

// Params configures one reconciliation pass.
type Params struct {
	Domain     string
	Roles      []model.ContactRole
	MaxPerRole int
	EnrichTopN int
}

// RoleSkip records a role whose directory search failed.
type RoleSkip struct {
	Role   string
	Reason string
}

// RoleContacts pairs a suggested role with the contacts found for it.
type RoleContacts struct {
	Role     model.ContactRole
	Contacts []model.Contact
}

// Outcome reports the result of a reconciliation pass. A failed role search
// never aborts the pass: it lands in Skipped and the remaining roles still
// run. Roles with zero contacts are omitted from ByRole.
type Outcome struct {
	ByRole          []RoleContacts
	Skipped         []RoleSkip
	EnrichAttempted int
	Enriched        int
}

// AllContacts flattens ByRole in discovery order.
func (o *Outcome) AllContacts() []model.Contact {
	var all []model.Contact
	for _, rc := range o.ByRole {
		all = append(all, rc.Contacts...)
	}
	return all
}

// TotalFound counts contacts across all roles.
func (o *Outcome) TotalFound() int {
	n := 0
	for _, rc := range o.ByRole {
		n += len(rc.Contacts)
	}
	return n
}

// Reconciler runs role searches against a contact directory.
type Reconciler struct {
	dir DirectorySearcher
}

// New creates a Reconciler.
func New(dir DirectorySearcher) *Reconciler {
	return &Reconciler{dir: dir}
}

// roleQuery builds the title query for a role: the role title itself plus
// up to two of its search keywords.
func roleQuery(role model.ContactRole) []string {
	titles := []string{role.Title}
	for i, kw := range role.Keywords {
		if i >= 2 {
			break
		}
		if kw != "" && kw != role.Title {
			titles = append(titles, kw)
		}
	}
	return titles
}

// Reconcile searches the directory for each role in input order and
// optionally enriches the top-priority contacts.
func (r *Reconciler) Reconcile(ctx context.Context, p Params) (*Outcome, error) {
	maxPerRole := p.MaxPerRole
	if maxPerRole <= 0 {
		maxPerRole = 3
	}

	outcome := &Outcome{}
	for _, role := range p.Roles {
		contacts, err := r.dir.SearchContacts(ctx, p.Domain, roleQuery(role), maxPerRole)
		if err != nil {
			zap.L().Warn("reconcile: role search failed",
				zap.String("role", role.Title),
				zap.Error(err),
			)
			outcome.Skipped = append(outcome.Skipped, RoleSkip{Role: role.Title, Reason: err.Error()})
			continue
		}
		if len(contacts) == 0 {
			continue
		}
		outcome.ByRole = append(outcome.ByRole, RoleContacts{Role: role, Contacts: contacts})
	}

	if p.EnrichTopN > 0 {
		r.enrichTop(ctx, p.Domain, outcome, p.EnrichTopN)
	}

	zap.L().Info("reconcile: pass complete",
		zap.String("domain", p.Domain),
		zap.Int("roles", len(p.Roles)),
		zap.Int("found", outcome.TotalFound()),
		zap.Int("skipped", len(outcome.Skipped)),
		zap.Int("enriched", outcome.Enriched),
	)
	return outcome, nil
}

// candidate points back into the outcome so enrichment can update the
// contact in place.
type candidate struct {
	priority   int
	roleIdx    int
	contactIdx int
}

// enrichTop picks the n highest-priority distinct people and enriches each.
// Priority ties keep discovery order; the same name appearing under several
// roles is enriched once, at its first (highest-priority) occurrence.
// An enrich failure leaves that contact unchanged.
func (r *Reconciler) enrichTop(ctx context.Context, domain string, outcome *Outcome, n int) {
	var cands []candidate
	for ri, rc := range outcome.ByRole {
		for ci := range rc.Contacts {
			cands = append(cands, candidate{priority: rc.Role.Priority, roleIdx: ri, contactIdx: ci})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].priority < cands[j].priority
	})

	seen := make(map[string]bool)
	picked := 0
	for _, cand := range cands {
		if picked >= n {
			break
		}
		c := outcome.ByRole[cand.roleIdx].Contacts[cand.contactIdx]
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		picked++

		outcome.EnrichAttempted++
		enriched, err := r.dir.EnrichContact(ctx, c, domain)
		if err != nil {
			zap.L().Warn("reconcile: enrich failed",
				zap.String("name", c.Name),
				zap.Error(err),
			)
			continue
		}
		outcome.ByRole[cand.roleIdx].Contacts[cand.contactIdx] = enriched
		outcome.Enriched++
	}
}

// apolloDirectory adapts an apollo.Client to the DirectorySearcher interface.
type apolloDirectory struct {
	client apollo.Client
}

// NewApolloDirectory wraps an Apollo client as a DirectorySearcher.
func NewApolloDirectory(client apollo.Client) DirectorySearcher {
	return &apolloDirectory{client: client}
}

func (d *apolloDirectory) SearchContacts(ctx context.Context, domain string, titles []string, max int) ([]model.Contact, error) {
	people, err := d.client.SearchPeople(ctx, apollo.SearchRequest{
		OrganizationDomains: []string{domain},
		PersonTitles:        titles,
		PerPage:             max,
	})
	if err != nil {
		return nil, err
	}

	contacts := make([]model.Contact, 0, len(people))
	for _, p := range people {
		contacts = append(contacts, personToContact(p))
	}
	return contacts, nil
}

func (d *apolloDirectory) EnrichContact(ctx context.Context, c model.Contact, domain string) (model.Contact, error) {
	req := apollo.EnrichRequest{Name: c.Name, Domain: domain}
	if c.Email != "" {
		req.Email = c.Email
	}
	person, err := d.client.EnrichPerson(ctx, req)
	if err != nil {
		return c, err
	}

	if person.HasUnlockedEmail() {
		c.Email = person.Email
	}
	if c.Title == "" {
		c.Title = person.Title
	}
	if c.ProfileURL == "" {
		c.ProfileURL = person.LinkedInURL
	}
	if c.SourcePersonID == "" {
		c.SourcePersonID = person.ID
	}
	if c.SourceOrgID == "" {
		c.SourceOrgID = person.Organization.ID
	}
	return c, nil
}

// personToContact maps a directory person to a contact row. A redacted
// placeholder email is dropped rather than stored.
func personToContact(p apollo.Person) model.Contact {
	email := p.Email
	if email == apollo.RedactedEmail {
		email = ""
	}
	return model.Contact{
		Name:           p.Name,
		Title:          p.Title,
		Email:          email,
		ProfileURL:     p.LinkedInURL,
		Company:        p.Organization.Name,
		SourceOrgID:    p.Organization.ID,
		SourcePersonID: p.ID,
		Source:         model.SourceExternalSearch,
		Status:         model.ContactStatusNew,
	}
}
