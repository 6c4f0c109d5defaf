// Package apollo provides a client for the Apollo.io contact directory API:
// people search, enrichment, account contacts, sequences, and custom fields.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.apollo.io"

// RedactedEmail is the placeholder Apollo returns for emails that have not
// been unlocked by an enrichment credit.
const RedactedEmail = "email_not_unlocked@domain.com"

// Client defines the directory operations used by the outreach pipeline.
// Sequence and custom-field operations require a master API key; a regular
// key gets a 403, surfaced as *AuthError.
type Client interface {
	SearchPeople(ctx context.Context, req SearchRequest) ([]Person, error)
	EnrichPerson(ctx context.Context, req EnrichRequest) (*Person, error)
	CreateContact(ctx context.Context, req CreateContactRequest) (string, error)
	ListSequences(ctx context.Context) ([]Sequence, error)
	FindSequenceByName(ctx context.Context, name string) (*Sequence, error)
	AddContactsToSequence(ctx context.Context, req AddToSequenceRequest) error
	ListEmailAccounts(ctx context.Context) ([]string, error)
	ListCustomFields(ctx context.Context) ([]CustomField, error)
	FindCustomFieldByName(ctx context.Context, name string) (*CustomField, error)
	UpdateContactCustomField(ctx context.Context, contactID, fieldID, value string) error
}

// SearchRequest specifies a people search.
type SearchRequest struct {
	OrganizationDomains []string
	PersonTitles        []string
	PerPage             int
	Page                int
}

// EnrichRequest identifies a person to enrich. Name+Domain is the usual
// combination; Email works when already known.
type EnrichRequest struct {
	Name                 string
	Domain               string
	Email                string
	RevealPersonalEmails bool
}

// CreateContactRequest creates a contact in the caller's Apollo account.
// Apollo does not deduplicate: creating the same email twice makes two
// contacts.
type CreateContactRequest struct {
	Email            string
	FirstName        string
	LastName         string
	Title            string
	OrganizationName string
}

// AddToSequenceRequest stages contacts into a sequence. This never starts
// the campaign; starting is a manual action in the Apollo UI.
type AddToSequenceRequest struct {
	SequenceID     string
	ContactIDs     []string
	EmailAccountID string
}

// Person is a directory search or enrichment result.
type Person struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Email       string `json:"email"`
	LinkedInURL string `json:"linkedin_url"`
	Organization struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"organization"`
}

// HasUnlockedEmail reports whether the person carries a real, revealed email.
func (p Person) HasUnlockedEmail() bool {
	return p.Email != "" && p.Email != RedactedEmail
}

// Sequence is an outreach campaign in the caller's account.
type Sequence struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// CustomField is a typed custom field defined on account contacts.
type CustomField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// AuthError indicates the API key's privilege tier is insufficient for the
// requested operation (HTTP 403). Sequence, email account, and custom field
// endpoints need a master key.
type AuthError struct {
	Operation string
	Body      string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("apollo: %s forbidden: requires a master API key (create one in Apollo.io settings)", e.Operation)
}

// IsAuthError reports whether err (or its chain) is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate (10 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Apollo API client. Calls are throttled to 10 req/s.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(10, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// do issues one API request with rate limiting and backoff retries on
// transient status codes. op names the operation for error context and
// AuthError reporting.
func (c *httpClient) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "apollo: rate limit")
	}

	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, eris.Wrapf(err, "apollo: marshal %s request", op)
		}
	}

	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var reqBody io.Reader
		if bodyBytes != nil {
			reqBody = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, eris.Wrapf(err, "apollo: create %s request", op)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("X-Api-Key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = eris.Wrapf(err, "apollo: %s request failed", op)
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, eris.Wrapf(readErr, "apollo: read %s response", op)
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("apollo: %s status %d: %s", op, resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode == http.StatusForbidden {
			return nil, &AuthError{Operation: op, Body: string(body)}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, eris.Errorf("apollo: %s status %d: %s", op, resp.StatusCode, string(body))
		}

		return body, nil
	}

	return nil, lastErr
}

func (c *httpClient) SearchPeople(ctx context.Context, req SearchRequest) ([]Person, error) {
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}

	payload := map[string]any{
		"per_page": perPage,
		"page":     page,
	}
	if len(req.OrganizationDomains) > 0 {
		// Apollo expects newline-separated domains.
		payload["q_organization_domains"] = strings.Join(req.OrganizationDomains, "\n")
	}
	if len(req.PersonTitles) > 0 {
		payload["person_titles"] = req.PersonTitles
	}

	body, err := c.do(ctx, "people search", http.MethodPost, "/api/v1/mixed_people/search", payload)
	if err != nil {
		return nil, err
	}

	var result struct {
		People []Person `json:"people"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "apollo: unmarshal people search response")
	}
	return result.People, nil
}

func (c *httpClient) EnrichPerson(ctx context.Context, req EnrichRequest) (*Person, error) {
	payload := map[string]any{
		"reveal_personal_emails": req.RevealPersonalEmails,
	}
	if req.Name != "" {
		payload["name"] = req.Name
	}
	if req.Domain != "" {
		payload["domain"] = req.Domain
	}
	if req.Email != "" {
		payload["email"] = req.Email
	}

	body, err := c.do(ctx, "people enrichment", http.MethodPost, "/api/v1/people/match", payload)
	if err != nil {
		return nil, err
	}

	var result struct {
		Person *Person `json:"person"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "apollo: unmarshal enrichment response")
	}
	if result.Person == nil {
		return nil, eris.New("apollo: enrichment returned no person")
	}
	return result.Person, nil
}

func (c *httpClient) CreateContact(ctx context.Context, req CreateContactRequest) (string, error) {
	payload := map[string]any{
		"email": req.Email,
	}
	if req.FirstName != "" {
		payload["first_name"] = req.FirstName
	}
	if req.LastName != "" {
		payload["last_name"] = req.LastName
	}
	if req.Title != "" {
		payload["title"] = req.Title
	}
	if req.OrganizationName != "" {
		payload["organization_name"] = req.OrganizationName
	}

	body, err := c.do(ctx, "create contact", http.MethodPost, "/api/v1/contacts", payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", eris.Wrap(err, "apollo: unmarshal create contact response")
	}
	if result.Contact.ID == "" {
		return "", eris.New("apollo: create contact returned no id")
	}
	return result.Contact.ID, nil
}

func (c *httpClient) ListSequences(ctx context.Context) ([]Sequence, error) {
	body, err := c.do(ctx, "list sequences", http.MethodPost, "/api/v1/emailer_campaigns/search", map[string]any{})
	if err != nil {
		return nil, err
	}

	var result struct {
		EmailerCampaigns []Sequence `json:"emailer_campaigns"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "apollo: unmarshal sequences response")
	}
	return result.EmailerCampaigns, nil
}

func (c *httpClient) FindSequenceByName(ctx context.Context, name string) (*Sequence, error) {
	sequences, err := c.ListSequences(ctx)
	if err != nil {
		return nil, err
	}
	for _, seq := range sequences {
		if strings.EqualFold(seq.Name, name) {
			return &seq, nil
		}
	}
	return nil, nil
}

func (c *httpClient) AddContactsToSequence(ctx context.Context, req AddToSequenceRequest) error {
	payload := map[string]any{
		"contact_ids": req.ContactIDs,
		// The API requires the campaign ID in the body as well as the path.
		"emailer_campaign_id": req.SequenceID,
		"mailbox_rotation":    false,
	}
	if req.EmailAccountID != "" {
		payload["send_email_from_email_account_id"] = req.EmailAccountID
	}

	path := fmt.Sprintf("/api/v1/emailer_campaigns/%s/add_contact_ids", req.SequenceID)
	_, err := c.do(ctx, "add to sequence", http.MethodPost, path, payload)
	return err
}

func (c *httpClient) ListEmailAccounts(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, "list email accounts", http.MethodGet, "/api/v1/email_accounts", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		EmailAccounts []struct {
			ID string `json:"id"`
		} `json:"email_accounts"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "apollo: unmarshal email accounts response")
	}

	ids := make([]string, 0, len(result.EmailAccounts))
	for _, acct := range result.EmailAccounts {
		if acct.ID != "" {
			ids = append(ids, acct.ID)
		}
	}
	return ids, nil
}

func (c *httpClient) ListCustomFields(ctx context.Context) ([]CustomField, error) {
	body, err := c.do(ctx, "list custom fields", http.MethodGet, "/api/v1/typed_custom_fields", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		TypedCustomFields []CustomField `json:"typed_custom_fields"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "apollo: unmarshal custom fields response")
	}
	return result.TypedCustomFields, nil
}

func (c *httpClient) FindCustomFieldByName(ctx context.Context, name string) (*CustomField, error) {
	fields, err := c.ListCustomFields(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return &f, nil
		}
	}
	return nil, nil
}

func (c *httpClient) UpdateContactCustomField(ctx context.Context, contactID, fieldID, value string) error {
	payload := map[string]any{
		"typed_custom_fields": map[string]string{fieldID: value},
	}
	path := fmt.Sprintf("/api/v1/contacts/%s", contactID)
	_, err := c.do(ctx, "update contact", http.MethodPatch, path, payload)
	return err
}
