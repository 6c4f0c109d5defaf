package reconcile

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/apollo"
)

// fakeDirectory serves canned search results keyed by the first query title
// and records enrichment calls.
type fakeDirectory struct {
	results   map[string][]model.Contact
	searchErr map[string]error
	enrichErr map[string]error
	enriched  []string
	queries   [][]string
}

func (f *fakeDirectory) SearchContacts(_ context.Context, _ string, titles []string, _ int) ([]model.Contact, error) {
	f.queries = append(f.queries, titles)
	key := titles[0]
	if err := f.searchErr[key]; err != nil {
		return nil, err
	}
	return f.results[key], nil
}

func (f *fakeDirectory) EnrichContact(_ context.Context, c model.Contact, _ string) (model.Contact, error) {
	f.enriched = append(f.enriched, c.Name)
	if err := f.enrichErr[c.Name]; err != nil {
		return c, err
	}
	c.Email = strings.ToLower(strings.ReplaceAll(c.Name, " ", ".")) + "@acme.com"
	return c, nil
}

func TestReconcile_QueryIsTitlePlusTwoKeywords(t *testing.T) {
	dir := &fakeDirectory{}
	r := New(dir)

	_, err := r.Reconcile(context.Background(), Params{
		Domain: "acme.com",
		Roles: []model.ContactRole{
			{Title: "Engineering Manager", Priority: 1, Keywords: []string{"Backend", "Platform", "Infrastructure"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, dir.queries, 1)
	assert.Equal(t, []string{"Engineering Manager", "Backend", "Platform"}, dir.queries[0])
}

func TestReconcile_FailedRoleSkippedOthersStillRun(t *testing.T) {
	dir := &fakeDirectory{
		results: map[string][]model.Contact{
			"Technical Recruiter": {{Name: "Jane Doe", Title: "Technical Recruiter"}},
		},
		searchErr: map[string]error{
			"Engineering Manager": eris.New("directory timeout"),
		},
	}
	r := New(dir)

	outcome, err := r.Reconcile(context.Background(), Params{
		Domain: "acme.com",
		Roles: []model.ContactRole{
			{Title: "Engineering Manager", Priority: 1},
			{Title: "Technical Recruiter", Priority: 2},
		},
	})
	require.NoError(t, err)

	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, "Engineering Manager", outcome.Skipped[0].Role)
	assert.Contains(t, outcome.Skipped[0].Reason, "directory timeout")

	require.Len(t, outcome.ByRole, 1)
	assert.Equal(t, "Technical Recruiter", outcome.ByRole[0].Role.Title)
	assert.Equal(t, 1, outcome.TotalFound())
}

func TestReconcile_ZeroContactRolesOmitted(t *testing.T) {
	dir := &fakeDirectory{
		results: map[string][]model.Contact{
			"Engineering Manager": {{Name: "Jane Doe"}},
			"Technical Recruiter": {},
		},
	}
	r := New(dir)

	outcome, err := r.Reconcile(context.Background(), Params{
		Domain: "acme.com",
		Roles: []model.ContactRole{
			{Title: "Engineering Manager", Priority: 1},
			{Title: "Technical Recruiter", Priority: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, outcome.ByRole, 1)
	assert.Equal(t, "Engineering Manager", outcome.ByRole[0].Role.Title)
}

func TestReconcile_EnrichTopN_PriorityOrderAndDedup(t *testing.T) {
	dir := &fakeDirectory{
		results: map[string][]model.Contact{
			"Technical Recruiter": {{Name: "Alice Adams"}, {Name: "Bob Brown"}},
			"Engineering Manager": {{Name: "Carol Chen"}, {Name: "Alice Adams"}},
		},
	}
	r := New(dir)

	outcome, err := r.Reconcile(context.Background(), Params{
		Domain: "acme.com",
		Roles: []model.ContactRole{
			{Title: "Technical Recruiter", Priority: 2},
			{Title: "Engineering Manager", Priority: 1},
		},
		EnrichTopN: 3,
	})
	require.NoError(t, err)

	// Priority 1 contacts come first; Alice already seen under priority 1
	// is not enriched again under priority 2.
	assert.Equal(t, []string{"Carol Chen", "Alice Adams", "Bob Brown"}, dir.enriched)
	assert.Equal(t, 3, outcome.EnrichAttempted)
	assert.Equal(t, 3, outcome.Enriched)

	// Enriched contact updated in place.
	assert.Equal(t, "carol.chen@acme.com", outcome.ByRole[1].Contacts[0].Email)
}

func TestReconcile_EnrichFailureLeavesContactUnchanged(t *testing.T) {
	dir := &fakeDirectory{
		results: map[string][]model.Contact{
			"Engineering Manager": {{Name: "Jane Doe", Title: "Manager"}},
		},
		enrichErr: map[string]error{
			"Jane Doe": eris.New("enrichment quota exceeded"),
		},
	}
	r := New(dir)

	outcome, err := r.Reconcile(context.Background(), Params{
		Domain:     "acme.com",
		Roles:      []model.ContactRole{{Title: "Engineering Manager", Priority: 1}},
		EnrichTopN: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.EnrichAttempted)
	assert.Equal(t, 0, outcome.Enriched)
	assert.Empty(t, outcome.ByRole[0].Contacts[0].Email)
}

func TestReconcile_EnrichCapRespected(t *testing.T) {
	dir := &fakeDirectory{
		results: map[string][]model.Contact{
			"Engineering Manager": {
				{Name: "A One"}, {Name: "B Two"}, {Name: "C Three"}, {Name: "D Four"},
			},
		},
	}
	r := New(dir)

	outcome, err := r.Reconcile(context.Background(), Params{
		Domain:     "acme.com",
		Roles:      []model.ContactRole{{Title: "Engineering Manager", Priority: 1}},
		EnrichTopN: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.EnrichAttempted)
	assert.Len(t, dir.enriched, 2)
}

func TestPersonToContact_RedactedEmailDropped(t *testing.T) {
	p := apollo.Person{
		ID:    "person-1",
		Name:  "Jane Doe",
		Email: apollo.RedactedEmail,
	}
	c := personToContact(p)
	assert.Empty(t, c.Email)
	assert.Equal(t, "person-1", c.SourcePersonID)
	assert.Equal(t, model.SourceExternalSearch, c.Source)
	assert.Equal(t, model.ContactStatusNew, c.Status)
}
