// Package outreach orchestrates a full run: fetch the posting, analyze it,
// search the contact directory, persist everything, and stage contacts into
// an outreach sequence.
package outreach

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Anudeepreddynarala/email-recruiters/internal/analyze"
	"github.com/Anudeepreddynarala/email-recruiters/internal/config"
	"github.com/Anudeepreddynarala/email-recruiters/internal/extract"
	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
	"github.com/Anudeepreddynarala/email-recruiters/internal/reconcile"
	"github.com/Anudeepreddynarala/email-recruiters/internal/sequence"
	"github.com/Anudeepreddynarala/email-recruiters/internal/store"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/apollo"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/jina"
)

// State tracks how far a run progressed.
type State string

const (
	StatePending        State = "pending"
	StateSearching      State = "searching"
	StateReconciled     State = "reconciled"
	StateUpserted       State = "upserted"
	StateSequenced      State = "sequenced"
	StatePartialFailure State = "partial-failure"
)

// Analyzer is the LLM analysis capability the pipeline depends on.
type Analyzer interface {
	Analyze(ctx context.Context, content string) (*analyze.Result, error)
}

// RunParams configures one pipeline run.
type RunParams struct {
	URL            string
	Save           bool
	SearchContacts bool
	MaxPerRole     int
	EnrichTopN     int
	SequenceName   string
	SequenceID     string
}

// RunReport summarizes a run. Fetch and parse failures abort the run with
// an error; everything downstream degrades to PartialFailure and keeps
// whatever succeeded.
type RunReport struct {
	URL   string
	State State

	JobID string
	Job   analyze.JobInfo
	Roles []model.ContactRole

	ContactsFound    int
	RolesSkipped     []reconcile.RoleSkip
	Enriched         int
	ContactsInserted int
	SavedToDirectory int
	Sequence         *sequence.Report

	Contacts []model.Contact
	Problems []string
}

func (r *RunReport) problem(msg string) {
	r.Problems = append(r.Problems, msg)
	r.State = StatePartialFailure
}

// Pipeline wires the fetcher, analyzer, directory, and store into one run
// loop. Confirm, when set, gates the sequence stage; nil means proceed.
type Pipeline struct {
	store    store.Store
	fetcher  jina.Client
	analyzer Analyzer
	dir      apollo.Client
	cfg      config.OutreachConfig

	Confirm func(prompt string) bool
}

// New creates a Pipeline.
func New(st store.Store, fetcher jina.Client, analyzer Analyzer, dir apollo.Client, cfg config.OutreachConfig) *Pipeline {
	return &Pipeline{store: st, fetcher: fetcher, analyzer: analyzer, dir: dir, cfg: cfg}
}

// Run executes the pipeline against one job posting URL.
func (p *Pipeline) Run(ctx context.Context, params RunParams) (*RunReport, error) {
	report := &RunReport{URL: params.URL, State: StatePending}

	// Fetch. A posting we cannot read is fatal.
	page, err := p.fetcher.Read(ctx, params.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "outreach: fetch %s", params.URL)
	}
	content := page.Data.Content

	// Heuristic extraction runs first; LLM fields supersede when present.
	fields := extract.FromText(content, params.URL)

	result, err := p.analyzer.Analyze(ctx, content)
	if err != nil {
		return nil, err
	}
	report.Job = mergeJobInfo(result.Job, fields)
	report.Roles = result.Roles

	job := &model.JobPosting{
		URL:                params.URL,
		Title:              report.Job.Title,
		Company:            report.Job.Company,
		Location:           report.Job.Location,
		CompanyDomain:      report.Job.CompanyDomain,
		LinkedInCompanyURL: report.Job.LinkedInCompany,
		Description:        snippet(content, 2000),
		RawContent:         content,
	}

	if params.Save {
		jobID, err := p.store.UpsertJob(ctx, job, report.Roles)
		if err != nil {
			return nil, eris.Wrap(err, "outreach: save job")
		}
		report.JobID = jobID
	}

	if !params.SearchContacts {
		return report, nil
	}

	// Search.
	report.State = StateSearching
	if report.Job.CompanyDomain == "" {
		report.problem("no company domain: cannot search the directory")
		return report, nil
	}

	maxPerRole := params.MaxPerRole
	if maxPerRole <= 0 {
		maxPerRole = p.cfg.MaxPerRole
	}
	enrichTopN := params.EnrichTopN
	if enrichTopN < 0 {
		enrichTopN = 0
	}

	rec := reconcile.New(reconcile.NewApolloDirectory(p.dir))
	outcome, err := rec.Reconcile(ctx, reconcile.Params{
		Domain:     report.Job.CompanyDomain,
		Roles:      report.Roles,
		MaxPerRole: maxPerRole,
		EnrichTopN: enrichTopN,
	})
	if err != nil {
		report.problem("directory search failed: " + err.Error())
		return report, nil
	}
	report.State = StateReconciled
	report.ContactsFound = outcome.TotalFound()
	report.RolesSkipped = outcome.Skipped
	report.Enriched = outcome.Enriched
	report.Contacts = outcome.AllContacts()
	if len(outcome.Skipped) > 0 {
		report.State = StatePartialFailure
	}

	if report.ContactsFound == 0 {
		return report, nil
	}

	// Persist.
	if params.Save && report.JobID != "" {
		inserted, err := p.store.UpsertContacts(ctx, report.JobID, report.Contacts)
		report.ContactsInserted = inserted
		if err != nil {
			report.problem("contact persistence: " + err.Error())
		} else if report.State != StatePartialFailure {
			report.State = StateUpserted
		}
	}

	sequenceName := params.SequenceName
	sequenceID := params.SequenceID
	if sequenceName == "" && sequenceID == "" {
		return report, nil
	}

	// Save search results into the directory account so they can be
	// sequenced, then stage the batch.
	if p.Confirm != nil && !p.Confirm("Add contacts to sequence?") {
		zap.L().Info("outreach: sequencing declined")
		return report, nil
	}

	report.Contacts = p.saveToDirectory(ctx, report)

	seqReport, err := sequence.New(p.dir).AddBatch(ctx, sequence.Params{
		SequenceID:           sequenceID,
		SequenceName:         sequenceName,
		Contacts:             report.Contacts,
		EmailAccountID:       p.cfg.EmailAccountID,
		PersonalizationField: p.cfg.PersonalizationField,
		PersonalizationValue: report.Job.Title,
	})
	if err != nil {
		report.problem("sequencing: " + err.Error())
		return report, nil
	}
	report.Sequence = seqReport
	if report.State != StatePartialFailure {
		report.State = StateSequenced
	}
	return report, nil
}

// saveToDirectory creates account contacts for everyone with an unlocked
// email, capturing the account contact ID needed for sequencing. Failures
// are per-contact, not fatal.
func (p *Pipeline) saveToDirectory(ctx context.Context, report *RunReport) []model.Contact {
	contacts := report.Contacts
	for i, c := range contacts {
		if c.SequenceContactID != "" {
			continue
		}
		if c.Email == "" || c.Email == apollo.RedactedEmail {
			continue
		}

		first, last := c.SplitName()
		id, err := p.dir.CreateContact(ctx, apollo.CreateContactRequest{
			Email:            c.Email,
			FirstName:        first,
			LastName:         last,
			Title:            c.Title,
			OrganizationName: c.Company,
		})
		if err != nil {
			zap.L().Warn("outreach: save to directory failed",
				zap.String("name", c.Name),
				zap.Error(err),
			)
			report.problem("save contact " + c.Name + ": " + err.Error())
			continue
		}
		contacts[i].SequenceContactID = id
		report.SavedToDirectory++

		if report.JobID != "" {
			if _, err := p.store.UpsertContact(ctx, report.JobID, contacts[i]); err != nil {
				zap.L().Warn("outreach: persist directory id failed",
					zap.String("name", c.Name),
					zap.Error(err),
				)
			}
		}
	}
	return contacts
}

// mergeJobInfo overlays LLM-extracted fields on the heuristic ones. The LLM
// wins wherever it produced a value.
func mergeJobInfo(llm analyze.JobInfo, heuristic extract.Fields) analyze.JobInfo {
	merged := llm
	if strings.TrimSpace(merged.Title) == "" {
		merged.Title = heuristic.Title
	}
	if strings.TrimSpace(merged.Company) == "" {
		merged.Company = heuristic.Company
	}
	if strings.TrimSpace(merged.Location) == "" {
		merged.Location = heuristic.Location
	}
	return merged
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
