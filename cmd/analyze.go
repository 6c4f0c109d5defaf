package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Anudeepreddynarala/email-recruiters/internal/analyze"
	"github.com/Anudeepreddynarala/email-recruiters/internal/outreach"
	"github.com/Anudeepreddynarala/email-recruiters/internal/store"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/anthropic"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/apollo"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/jina"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <job-url>",
	Short: "Analyze a job posting and find people to contact",
	Long:  "Fetches the posting, extracts job details and suggested contact roles, and optionally searches the contact directory and stages results into an outreach sequence.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		save, _ := cmd.Flags().GetBool("save")
		search, _ := cmd.Flags().GetBool("search")
		maxPerRole, _ := cmd.Flags().GetInt("max-per-role")
		enrich, _ := cmd.Flags().GetInt("enrich")
		sequenceName, _ := cmd.Flags().GetString("sequence")
		autoConfirm, _ := cmd.Flags().GetBool("yes")
		format, _ := cmd.Flags().GetString("format")

		if cfg.Jina.Key == "" {
			return eris.New("jina API key is required (EMAILRECRUITERS_JINA_KEY or config.yaml; run 'email-recruiters setup')")
		}
		if cfg.Anthropic.Key == "" {
			return eris.New("anthropic API key is required (EMAILRECRUITERS_ANTHROPIC_KEY)")
		}
		if (search || sequenceName != "") && cfg.Apollo.Key == "" {
			return eris.New("apollo API key is required for contact search (EMAILRECRUITERS_APOLLO_KEY)")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pipeline := newPipeline(st)
		if !autoConfirm {
			pipeline.Confirm = confirmPrompt
		}

		report, err := pipeline.Run(ctx, outreach.RunParams{
			URL:            args[0],
			Save:           save,
			SearchContacts: search || sequenceName != "",
			MaxPerRole:     maxPerRole,
			EnrichTopN:     enrich,
			SequenceName:   sequenceName,
		})
		if err != nil {
			if apollo.IsAuthError(err) {
				fmt.Fprintln(os.Stderr, err.Error())
			}
			return err
		}

		if format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printRunReport(report)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Bool("save", true, "save the job and contacts to the local store")
	analyzeCmd.Flags().Bool("search", false, "search the contact directory for suggested roles")
	analyzeCmd.Flags().Int("max-per-role", 0, "max contacts per role (0 = config default)")
	analyzeCmd.Flags().Int("enrich", 0, "enrich the top N contacts to unlock emails")
	analyzeCmd.Flags().String("sequence", "", "stage found contacts into this outreach sequence (implies --search)")
	analyzeCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation before sequencing")
	analyzeCmd.Flags().String("format", "text", "output format (text, json)")
	rootCmd.AddCommand(analyzeCmd)
}

// newPipeline wires the configured clients into a run pipeline.
func newPipeline(st store.Store) *outreach.Pipeline {
	jinaClient := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
	analyzer := analyze.New(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
	apolloClient := apollo.NewClient(cfg.Apollo.Key, apollo.WithBaseURL(cfg.Apollo.BaseURL))

	return outreach.New(st, jinaClient, analyzer, apolloClient, cfg.Outreach)
}

func confirmPrompt(label string) bool {
	prompt := promptui.Select{
		Label: label,
		Items: []string{"Yes", "No"},
	}
	_, choice, err := prompt.Run()
	if err != nil {
		return false
	}
	return choice == "Yes"
}

func printRunReport(r *outreach.RunReport) {
	fmt.Printf("Job:      %s at %s", dash(r.Job.Title), dash(r.Job.Company))
	if r.Job.Location != "" {
		fmt.Printf(" (%s)", r.Job.Location)
	}
	fmt.Println()
	if r.Job.CompanyDomain != "" {
		fmt.Printf("Domain:   %s\n", r.Job.CompanyDomain)
	}
	if r.JobID != "" {
		fmt.Printf("Job ID:   %s\n", r.JobID)
	}

	fmt.Println("\nSuggested roles:")
	for _, role := range r.Roles {
		fmt.Printf("  %d. %s\n", role.Priority, role.Title)
		if role.Reasoning != "" {
			fmt.Printf("     %s\n", role.Reasoning)
		}
	}

	if r.ContactsFound > 0 || len(r.RolesSkipped) > 0 {
		fmt.Printf("\nContacts found: %d (enriched %d, saved %d new)\n",
			r.ContactsFound, r.Enriched, r.ContactsInserted)
		for _, c := range r.Contacts {
			email := c.Email
			if email == "" {
				email = "(email locked)"
			}
			fmt.Printf("  - %s, %s  %s\n", c.Name, c.Title, email)
		}
		for _, skip := range r.RolesSkipped {
			fmt.Printf("  ! role %q skipped: %s\n", skip.Role, skip.Reason)
		}
	}

	if r.Sequence != nil {
		fmt.Printf("\nSequence %q: %d added, %d excluded\n",
			r.Sequence.SequenceName, r.Sequence.Added, len(r.Sequence.Excluded))
		for _, ex := range r.Sequence.Excluded {
			fmt.Printf("  ! %s excluded: %s\n", ex.Name, ex.Reason)
		}
	}

	if len(r.Problems) > 0 {
		fmt.Printf("\nCompleted with problems (%s):\n", r.State)
		for _, p := range r.Problems {
			fmt.Printf("  ! %s\n", p)
		}
	}
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
