// Package analyze asks the LLM to extract job fields from a posting and
// suggest which roles at the company are worth contacting.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Anudeepreddynarala/email-recruiters/internal/config"
	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/anthropic"
)

// maxContentChars caps how much posting text is sent to the model.
const maxContentChars = 8000

// JobInfo holds the LLM-extracted job posting fields.
type JobInfo struct {
	Title           string `json:"title"`
	Company         string `json:"company"`
	Location        string `json:"location"`
	CompanyDomain   string `json:"company_domain"`
	LinkedInCompany string `json:"linkedin_company"`
}

// Result is a validated analysis: job fields plus suggested contact roles
// sorted ascending by priority.
type Result struct {
	Job   JobInfo
	Roles []model.ContactRole
	Usage anthropic.TokenUsage
}

// ParseError indicates the model returned a payload that could not be
// validated into a Result. Distinguishable from transport failures so the
// caller can report "parse failure" rather than a generic error.
type ParseError struct {
	Reason   string
	Response string
}

func (e *ParseError) Error() string {
	return "analyze: parse failure: " + e.Reason
}

// Analyzer runs job posting analysis against the Anthropic API.
type Analyzer struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
}

// New creates an Analyzer.
func New(client anthropic.Client, cfg config.AnthropicConfig) *Analyzer {
	return &Analyzer{client: client, cfg: cfg}
}

const analysisSystemPrompt = `You are an expert career coach and networking strategist helping a job seeker.

A job seeker is applying for a position and wants to reach out to people at the company who can provide employee referrals, advocate for their candidacy internally, or participate in the hiring process. The goal is NOT to contact random executives, but to find people who would be willing and able to help a candidate succeed.

Respond with ONLY a JSON object of this exact shape, no additional text or markdown formatting:
{
  "job_info": {
    "title": "extracted job title",
    "company": "extracted company name",
    "location": "extracted location (city, state/country or 'Remote')",
    "company_domain": "company.com",
    "linkedin_company": "linkedin.com/company/company-name"
  },
  "suggested_roles": [
    {
      "title": "Engineering Manager, Backend",
      "priority": 1,
      "keywords": ["Engineering Manager", "Backend", "Platform"],
      "reasoning": "Direct hiring manager who interviews candidates and can advocate for strong applicants."
    }
  ]
}

Infer the company's web presence: extract or infer the official website domain (just the domain, no https:// or www.) and the likely LinkedIn company page path (lowercase, hyphenated). If the posting links to them, use those; otherwise make your best guess from the company name.

Suggest 5-7 roles, prioritized (1 = highest) by influence on hiring, referral ability, accessibility, and relevance. For each, give the exact role title, priority, search keywords for finding these people, and brief reasoning. Consider direct hiring managers, team members in the same role, managers who would work with this role, recruiters and talent partners, and senior individual contributors. Avoid C-suite executives and people removed from the team.`

// Analyze sends the posting content to the model and returns a validated
// Result. Malformed or incomplete model output yields a *ParseError.
func (a *Analyzer) Analyze(ctx context.Context, content string) (*Result, error) {
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		System:    analysisSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Job Posting Content:\n\n%s", content)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "analyze: llm call")
	}

	resp.Usage.LogCost(a.cfg.Model, "analyze")

	result, err := parseResponse(resp.Text())
	if err != nil {
		return nil, err
	}
	result.Usage = resp.Usage

	zap.L().Debug("analyze: parsed suggestion payload",
		zap.String("company", result.Job.Company),
		zap.Int("roles", len(result.Roles)),
	)

	return result, nil
}

// analysisPayload mirrors the JSON shape the prompt demands.
type analysisPayload struct {
	JobInfo        *JobInfo `json:"job_info"`
	SuggestedRoles []struct {
		Title     string   `json:"title"`
		Priority  int      `json:"priority"`
		Keywords  []string `json:"keywords"`
		Reasoning string   `json:"reasoning"`
	} `json:"suggested_roles"`
}

// parseResponse validates the raw model text into a Result. Required fields
// are enforced here rather than defaulted: a missing job_info block, an empty
// role list, or a role without a title is a payload bug we want surfaced.
func parseResponse(text string) (*Result, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, &ParseError{Reason: "empty response", Response: text}
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &ParseError{Reason: "invalid JSON: " + err.Error(), Response: text}
	}

	if payload.JobInfo == nil {
		return nil, &ParseError{Reason: "missing job_info", Response: text}
	}
	if len(payload.SuggestedRoles) == 0 {
		return nil, &ParseError{Reason: "no suggested_roles", Response: text}
	}

	roles := make([]model.ContactRole, 0, len(payload.SuggestedRoles))
	for i, r := range payload.SuggestedRoles {
		if strings.TrimSpace(r.Title) == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("suggested_roles[%d] missing title", i), Response: text}
		}
		priority := r.Priority
		if priority <= 0 {
			priority = 99
		}
		roles = append(roles, model.ContactRole{
			Title:     strings.TrimSpace(r.Title),
			Priority:  priority,
			Keywords:  r.Keywords,
			Reasoning: r.Reasoning,
		})
	}
	model.SortRolesByPriority(roles)

	return &Result{Job: *payload.JobInfo, Roles: roles}, nil
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
