package outreach

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anudeepreddynarala/email-recruiters/internal/analyze"
	"github.com/Anudeepreddynarala/email-recruiters/internal/config"
	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
	"github.com/Anudeepreddynarala/email-recruiters/internal/store"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/apollo"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/jina"
)

type fakeFetcher struct {
	content string
	err     error
}

func (f *fakeFetcher) Read(_ context.Context, targetURL string) (*jina.ReadResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp := &jina.ReadResponse{Code: 200}
	resp.Data.URL = targetURL
	resp.Data.Content = f.content
	return resp, nil
}

type fakeAnalyzer struct {
	result *analyze.Result
	err    error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string) (*analyze.Result, error) {
	return f.result, f.err
}

// fakeApollo implements apollo.Client for the directory stages.
type fakeApollo struct {
	apollo.Client

	people    []apollo.Person
	searchErr error

	createdContacts []apollo.CreateContactRequest
	createErr       error

	addRequests []apollo.AddToSequenceRequest
}

func (f *fakeApollo) SearchPeople(_ context.Context, _ apollo.SearchRequest) ([]apollo.Person, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.people, nil
}

func (f *fakeApollo) CreateContact(_ context.Context, req apollo.CreateContactRequest) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdContacts = append(f.createdContacts, req)
	return "sc-" + req.Email, nil
}

func (f *fakeApollo) AddContactsToSequence(_ context.Context, req apollo.AddToSequenceRequest) error {
	f.addRequests = append(f.addRequests, req)
	return nil
}

func (f *fakeApollo) FindCustomFieldByName(_ context.Context, _ string) (*apollo.CustomField, error) {
	return nil, nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testAnalysis() *analyze.Result {
	return &analyze.Result{
		Job: analyze.JobInfo{
			Title:         "Senior Backend Engineer",
			Company:       "Acme Corp",
			Location:      "Austin, TX",
			CompanyDomain: "acme.com",
		},
		Roles: []model.ContactRole{
			{Title: "Engineering Manager", Priority: 1, Keywords: []string{"Manager"}},
		},
	}
}

func person(id, name, email string) apollo.Person {
	p := apollo.Person{ID: id, Name: name, Email: email, Title: "Engineering Manager"}
	p.Organization.Name = "Acme Corp"
	return p
}

func TestRun_FetchFailureFatal(t *testing.T) {
	p := New(newTestStore(t), &fakeFetcher{err: eris.New("upstream 502")}, &fakeAnalyzer{}, &fakeApollo{}, config.OutreachConfig{})

	_, err := p.Run(context.Background(), RunParams{URL: "https://example.com/jobs/1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch")
}

func TestRun_ParseFailureFatal(t *testing.T) {
	p := New(newTestStore(t), &fakeFetcher{content: "posting"}, &fakeAnalyzer{
		err: &analyze.ParseError{Reason: "missing job_info"},
	}, &fakeApollo{}, config.OutreachConfig{})

	_, err := p.Run(context.Background(), RunParams{URL: "https://example.com/jobs/1"})
	require.Error(t, err)

	var parseErr *analyze.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestRun_AnalyzeOnlySavesJob(t *testing.T) {
	st := newTestStore(t)
	p := New(st, &fakeFetcher{content: "posting"}, &fakeAnalyzer{result: testAnalysis()}, &fakeApollo{}, config.OutreachConfig{})

	report, err := p.Run(context.Background(), RunParams{
		URL:  "https://example.com/jobs/1",
		Save: true,
	})
	require.NoError(t, err)

	assert.Equal(t, StatePending, report.State)
	assert.NotEmpty(t, report.JobID)
	assert.Equal(t, "Acme Corp", report.Job.Company)

	job, err := st.GetJobByURL(context.Background(), "https://example.com/jobs/1")
	require.NoError(t, err)
	assert.Equal(t, "Senior Backend Engineer", job.Title)

	roles, err := st.GetRoles(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestRun_HeuristicFieldsFillLLMGaps(t *testing.T) {
	analysis := testAnalysis()
	analysis.Job.Location = ""
	content := "# Senior Backend Engineer\nCompany: Acme Corp\nLocation: Austin, TX\n"

	p := New(newTestStore(t), &fakeFetcher{content: content}, &fakeAnalyzer{result: analysis}, &fakeApollo{}, config.OutreachConfig{})

	report, err := p.Run(context.Background(), RunParams{URL: "https://example.com/jobs/1"})
	require.NoError(t, err)
	assert.Equal(t, "Austin, TX", report.Job.Location)
}

func TestRun_SearchAndPersistContacts(t *testing.T) {
	st := newTestStore(t)
	dir := &fakeApollo{people: []apollo.Person{
		person("p-1", "Jane Doe", "jane@acme.com"),
		person("p-2", "John Smith", apollo.RedactedEmail),
	}}
	p := New(st, &fakeFetcher{content: "posting"}, &fakeAnalyzer{result: testAnalysis()}, dir, config.OutreachConfig{MaxPerRole: 3})

	report, err := p.Run(context.Background(), RunParams{
		URL:            "https://example.com/jobs/1",
		Save:           true,
		SearchContacts: true,
	})
	require.NoError(t, err)

	assert.Equal(t, StateUpserted, report.State)
	assert.Equal(t, 2, report.ContactsFound)
	assert.Equal(t, 2, report.ContactsInserted)

	contacts, err := st.ListContacts(context.Background(), store.ContactFilter{JobID: report.JobID})
	require.NoError(t, err)
	require.Len(t, contacts, 2)
}

func TestRun_NoDomainSkipsSearch(t *testing.T) {
	analysis := testAnalysis()
	analysis.Job.CompanyDomain = ""

	p := New(newTestStore(t), &fakeFetcher{content: "posting"}, &fakeAnalyzer{result: analysis}, &fakeApollo{}, config.OutreachConfig{})

	report, err := p.Run(context.Background(), RunParams{
		URL:            "https://example.com/jobs/1",
		SearchContacts: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatePartialFailure, report.State)
	require.Len(t, report.Problems, 1)
	assert.Contains(t, report.Problems[0], "no company domain")
}

func TestRun_SequenceStagesUnlockedContacts(t *testing.T) {
	st := newTestStore(t)
	dir := &fakeApollo{people: []apollo.Person{
		person("p-1", "Jane Doe", "jane@acme.com"),
		person("p-2", "John Smith", apollo.RedactedEmail),
	}}
	p := New(st, &fakeFetcher{content: "posting"}, &fakeAnalyzer{result: testAnalysis()}, dir, config.OutreachConfig{MaxPerRole: 3})

	report, err := p.Run(context.Background(), RunParams{
		URL:            "https://example.com/jobs/1",
		Save:           true,
		SearchContacts: true,
		SequenceID:     "seq-1",
	})
	require.NoError(t, err)

	assert.Equal(t, StateSequenced, report.State)

	// Only the unlocked email was saved to the directory account.
	require.Len(t, dir.createdContacts, 1)
	assert.Equal(t, "jane@acme.com", dir.createdContacts[0].Email)
	assert.Equal(t, 1, report.SavedToDirectory)

	// Jane goes in with her account contact ID; John has a raw person ID
	// and still rides along.
	require.Len(t, dir.addRequests, 1)
	assert.Equal(t, []string{"sc-jane@acme.com", "p-2"}, dir.addRequests[0].ContactIDs)
	require.NotNil(t, report.Sequence)
	assert.Equal(t, 2, report.Sequence.Added)
}

func TestRun_ConfirmDeclinedSkipsSequence(t *testing.T) {
	dir := &fakeApollo{people: []apollo.Person{person("p-1", "Jane Doe", "jane@acme.com")}}
	p := New(newTestStore(t), &fakeFetcher{content: "posting"}, &fakeAnalyzer{result: testAnalysis()}, dir, config.OutreachConfig{MaxPerRole: 3})
	p.Confirm = func(string) bool { return false }

	report, err := p.Run(context.Background(), RunParams{
		URL:            "https://example.com/jobs/1",
		SearchContacts: true,
		SequenceID:     "seq-1",
	})
	require.NoError(t, err)
	assert.Nil(t, report.Sequence)
	assert.Empty(t, dir.addRequests)
	assert.Empty(t, dir.createdContacts)
}
