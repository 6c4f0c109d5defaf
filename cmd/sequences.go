package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Anudeepreddynarala/email-recruiters/pkg/apollo"
)

var sequencesCmd = &cobra.Command{
	Use:   "sequences",
	Short: "Inspect outreach sequences in the contact directory",
}

var sequencesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the account's outreach sequences",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Apollo.Key == "" {
			return eris.New("apollo API key is required (EMAILRECRUITERS_APOLLO_KEY)")
		}

		client := apollo.NewClient(cfg.Apollo.Key, apollo.WithBaseURL(cfg.Apollo.BaseURL))
		sequences, err := client.ListSequences(ctx)
		if err != nil {
			if apollo.IsAuthError(err) {
				return eris.Wrap(err, "listing sequences needs a master API key; create one in the directory settings")
			}
			return err
		}

		if len(sequences) == 0 {
			fmt.Fprintln(os.Stderr, "No sequences found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tACTIVE")
		for _, s := range sequences {
			fmt.Fprintf(w, "%s\t%s\t%t\n", s.ID, s.Name, s.Active)
		}
		return w.Flush()
	},
}

func init() {
	sequencesCmd.AddCommand(sequencesListCmd)
	rootCmd.AddCommand(sequencesCmd)
}
