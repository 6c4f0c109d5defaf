package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Anudeepreddynarala/email-recruiters/internal/export"
	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
	"github.com/Anudeepreddynarala/email-recruiters/internal/store"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Inspect and export saved contacts",
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved contacts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		jobID, _ := cmd.Flags().GetString("job-id")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		contacts, err := st.ListContacts(ctx, store.ContactFilter{
			JobID:  jobID,
			Status: model.ContactStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "contacts list")
		}

		if len(contacts) == 0 {
			fmt.Fprintln(os.Stderr, "No contacts found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTITLE\tEMAIL\tSTATUS")
		for _, c := range contacts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Title, c.Email, c.Status)
		}
		return w.Flush()
	},
}

var contactsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved contacts to an XLSX or CSV file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		out, _ := cmd.Flags().GetString("out")
		jobID, _ := cmd.Flags().GetString("job-id")
		if out == "" {
			return eris.New("--out is required")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		contacts, err := st.ListContacts(ctx, store.ContactFilter{JobID: jobID, Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "load contacts")
		}

		// Resolve each contact's job once.
		jobs := map[string]*model.JobPosting{}
		rows := make([]export.Row, 0, len(contacts))
		for _, c := range contacts {
			row := export.Row{Contact: c}
			if c.JobID != "" {
				job, ok := jobs[c.JobID]
				if !ok {
					job, err = st.GetJob(ctx, c.JobID)
					if err != nil && !eris.Is(err, store.ErrNotFound) {
						return eris.Wrap(err, "load job for contact")
					}
					jobs[c.JobID] = job
				}
				row.Job = job
			}
			rows = append(rows, row)
		}

		switch {
		case strings.HasSuffix(out, ".xlsx"):
			err = export.WriteXLSX(out, rows)
		case strings.HasSuffix(out, ".csv"):
			f, ferr := os.Create(out)
			if ferr != nil {
				return eris.Wrapf(ferr, "create %s", out)
			}
			defer f.Close() //nolint:errcheck
			err = export.WriteCSV(f, rows)
		default:
			return eris.Errorf("unsupported export format: %s (use .xlsx or .csv)", out)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Exported %d contacts to %s\n", len(rows), out)
		return nil
	},
}

var contactsSetStatusCmd = &cobra.Command{
	Use:   "set-status <contact-id> <status>",
	Short: "Update a contact's outreach status",
	Long:  "Valid statuses: new, contacted, responded.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status := model.ContactStatus(args[1])
		switch status {
		case model.ContactStatusNew, model.ContactStatusContacted, model.ContactStatusResponded:
		default:
			return eris.Errorf("invalid status %q (use new, contacted, or responded)", args[1])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.UpdateContactStatus(ctx, args[0], status); err != nil {
			return eris.Wrapf(err, "set status for %s", args[0])
		}
		fmt.Printf("Contact %s marked %s\n", args[0], status)
		return nil
	},
}

func init() {
	contactsListCmd.Flags().String("job-id", "", "filter by job")
	contactsListCmd.Flags().String("status", "", "filter by status (new, contacted, responded)")
	contactsListCmd.Flags().Int("limit", 200, "max number of contacts to display")

	contactsExportCmd.Flags().String("out", "", "output file (.xlsx or .csv)")
	contactsExportCmd.Flags().String("job-id", "", "export only one job's contacts")

	contactsCmd.AddCommand(contactsListCmd)
	contactsCmd.AddCommand(contactsExportCmd)
	contactsCmd.AddCommand(contactsSetStatusCmd)
	rootCmd.AddCommand(contactsCmd)
}
