package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
	"github.com/Anudeepreddynarala/email-recruiters/internal/reconcile"
	"github.com/Anudeepreddynarala/email-recruiters/internal/store"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/apollo"
)

var searchCmd = &cobra.Command{
	Use:   "search-contacts",
	Short: "Search the contact directory for people at a company",
	Long:  "Searches by a saved job's suggested roles (--job-id) or by explicit --domain and --title filters.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		jobID, _ := cmd.Flags().GetString("job-id")
		domain, _ := cmd.Flags().GetString("domain")
		titles, _ := cmd.Flags().GetStringArray("title")
		maxPerRole, _ := cmd.Flags().GetInt("max-per-role")
		enrich, _ := cmd.Flags().GetInt("enrich")
		save, _ := cmd.Flags().GetBool("save")

		if cfg.Apollo.Key == "" {
			return eris.New("apollo API key is required (EMAILRECRUITERS_APOLLO_KEY)")
		}

		var st store.Store
		if jobID != "" {
			var err error
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		var roles []model.ContactRole
		switch {
		case jobID != "":
			job, err := st.GetJob(ctx, jobID)
			if err != nil {
				return eris.Wrapf(err, "load job %s", jobID)
			}
			if domain == "" {
				domain = job.CompanyDomain
			}
			roles, err = st.GetRoles(ctx, jobID)
			if err != nil {
				return eris.Wrap(err, "load suggested roles")
			}
		case domain != "" && len(titles) > 0:
			for i, title := range titles {
				roles = append(roles, model.ContactRole{Title: title, Priority: i + 1})
			}
		default:
			return eris.New("either --job-id or both --domain and --title are required")
		}

		if domain == "" {
			return eris.New("the saved job has no company domain; pass --domain explicitly")
		}
		if maxPerRole <= 0 {
			maxPerRole = cfg.Outreach.MaxPerRole
		}

		apolloClient := apollo.NewClient(cfg.Apollo.Key, apollo.WithBaseURL(cfg.Apollo.BaseURL))
		rec := reconcile.New(reconcile.NewApolloDirectory(apolloClient))
		outcome, err := rec.Reconcile(ctx, reconcile.Params{
			Domain:     domain,
			Roles:      roles,
			MaxPerRole: maxPerRole,
			EnrichTopN: enrich,
		})
		if err != nil {
			return err
		}

		printOutcome(outcome)

		if save && jobID != "" {
			inserted, err := st.UpsertContacts(ctx, jobID, outcome.AllContacts())
			if err != nil {
				return eris.Wrap(err, "save contacts")
			}
			fmt.Printf("\nSaved %d new contacts to job %s\n", inserted, jobID)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("job-id", "", "search using a saved job's domain and suggested roles")
	searchCmd.Flags().String("domain", "", "company domain to search")
	searchCmd.Flags().StringArray("title", nil, "role title to search for (repeatable)")
	searchCmd.Flags().Int("max-per-role", 0, "max contacts per role (0 = config default)")
	searchCmd.Flags().Int("enrich", 0, "enrich the top N contacts to unlock emails")
	searchCmd.Flags().Bool("save", false, "save found contacts to the job (requires --job-id)")
	rootCmd.AddCommand(searchCmd)
}

func printOutcome(outcome *reconcile.Outcome) {
	if outcome.TotalFound() == 0 {
		fmt.Fprintln(os.Stderr, "No contacts found.")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, rc := range outcome.ByRole {
		fmt.Fprintf(w, "%s (priority %d)\t\t\n", rc.Role.Title, rc.Role.Priority)
		for _, c := range rc.Contacts {
			email := c.Email
			if email == "" {
				email = "(email locked)"
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\n", c.Name, c.Title, email)
		}
	}
	w.Flush() //nolint:errcheck

	for _, skip := range outcome.Skipped {
		fmt.Fprintf(os.Stderr, "role %q skipped: %s\n", skip.Role, skip.Reason)
	}
	if outcome.EnrichAttempted > 0 {
		fmt.Printf("Enriched %d of %d contacts\n", outcome.Enriched, outcome.EnrichAttempted)
	}
}
