package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Anudeepreddynarala/email-recruiters/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect saved job postings",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved job postings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		company, _ := cmd.Flags().GetString("company")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := st.ListJobs(ctx, store.JobFilter{Company: company, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tCOMPANY\tLOCATION\tSAVED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				j.ID, j.Title, j.Company, j.Location, j.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a saved job with its suggested roles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "jobs show %s", args[0])
		}
		roles, err := st.GetRoles(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "load suggested roles")
		}

		// Raw content is bulky and rarely useful on the terminal.
		job.RawContent = ""

		out := struct {
			Job   any `json:"job"`
			Roles any `json:"suggested_roles"`
		}{Job: job, Roles: roles}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	jobsListCmd.Flags().String("company", "", "filter by company name")
	jobsListCmd.Flags().Int("limit", 50, "max number of jobs to display")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}
