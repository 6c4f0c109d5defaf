package apollo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	// Unthrottled: tests should not sleep.
	return NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))
}

func TestSearchPeople_RequestShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/mixed_people/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		// Domains are newline-joined, not an array.
		assert.Equal(t, "acme.com\nacme.io", payload["q_organization_domains"])
		assert.Equal(t, []any{"Engineering Manager"}, payload["person_titles"])
		assert.Equal(t, float64(5), payload["per_page"])

		_, _ = w.Write([]byte(`{"people":[
			{"id":"p-1","name":"Jane Doe","title":"Engineering Manager","email":"jane@acme.com","organization":{"id":"o-1","name":"Acme Corp"}},
			{"id":"p-2","name":"John Smith","email":"email_not_unlocked@domain.com"}
		]}`))
	})

	people, err := c.SearchPeople(context.Background(), SearchRequest{
		OrganizationDomains: []string{"acme.com", "acme.io"},
		PersonTitles:        []string{"Engineering Manager"},
		PerPage:             5,
	})
	require.NoError(t, err)
	require.Len(t, people, 2)

	assert.Equal(t, "Acme Corp", people[0].Organization.Name)
	assert.True(t, people[0].HasUnlockedEmail())
	assert.False(t, people[1].HasUnlockedEmail())
}

func TestEnrichPerson(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/people/match", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Jane Doe", payload["name"])
		assert.Equal(t, "acme.com", payload["domain"])

		_, _ = w.Write([]byte(`{"person":{"id":"p-1","name":"Jane Doe","email":"jane@acme.com"}}`))
	})

	person, err := c.EnrichPerson(context.Background(), EnrichRequest{Name: "Jane Doe", Domain: "acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.com", person.Email)
}

func TestEnrichPerson_NoMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"person":null}`))
	})

	_, err := c.EnrichPerson(context.Background(), EnrichRequest{Name: "Nobody", Domain: "acme.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no person")
}

func TestCreateContact(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/contacts", r.URL.Path)
		_, _ = w.Write([]byte(`{"contact":{"id":"sc-1"}}`))
	})

	id, err := c.CreateContact(context.Background(), CreateContactRequest{
		Email:     "jane@acme.com",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, "sc-1", id)
}

func TestAddContactsToSequence_PayloadAndPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/emailer_campaigns/seq-1/add_contact_ids", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "seq-1", payload["emailer_campaign_id"])
		assert.Equal(t, []any{"sc-1", "sc-2"}, payload["contact_ids"])
		assert.Equal(t, "acct-1", payload["send_email_from_email_account_id"])

		_, _ = w.Write([]byte(`{}`))
	})

	err := c.AddContactsToSequence(context.Background(), AddToSequenceRequest{
		SequenceID:     "seq-1",
		ContactIDs:     []string{"sc-1", "sc-2"},
		EmailAccountID: "acct-1",
	})
	require.NoError(t, err)
}

func TestSequenceOps_ForbiddenIsAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"This endpoint requires a master api key"}`))
	})

	_, err := c.ListSequences(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "master API key")
}

func TestFindSequenceByName_CaseInsensitive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"emailer_campaigns":[{"id":"seq-1","name":"Recruiter Outreach","active":true}]}`))
	})

	seq, err := c.FindSequenceByName(context.Background(), "recruiter outreach")
	require.NoError(t, err)
	require.NotNil(t, seq)
	assert.Equal(t, "seq-1", seq.ID)

	missing, err := c.FindSequenceByName(context.Background(), "does not exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListEmailAccounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/email_accounts", r.URL.Path)
		_, _ = w.Write([]byte(`{"email_accounts":[{"id":"acct-1"},{"id":""},{"id":"acct-2"}]}`))
	})

	ids, err := c.ListEmailAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acct-1", "acct-2"}, ids)
}

func TestUpdateContactCustomField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/contacts/sc-1", r.URL.Path)

		var payload map[string]map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Senior Backend Engineer", payload["typed_custom_fields"]["cf-1"])

		_, _ = w.Write([]byte(`{}`))
	})

	err := c.UpdateContactCustomField(context.Background(), "sc-1", "cf-1", "Senior Backend Engineer")
	require.NoError(t, err)
}

func TestDo_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"people":[]}`))
	})

	_, err := c.SearchPeople(context.Background(), SearchRequest{OrganizationDomains: []string{"acme.com"}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
