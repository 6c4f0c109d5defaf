package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Anudeepreddynarala/email-recruiters/internal/outreach"
)

var batchCmd = &cobra.Command{
	Use:   "batch-add [job-urls...]",
	Short: "Run the full pipeline for many job postings",
	Long:  "Analyzes each URL, finds contacts, and stages them into the configured default sequence. URLs are taken from arguments, or from stdin when none are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Jina.Key == "" || cfg.Anthropic.Key == "" || cfg.Apollo.Key == "" {
			return eris.New("jina, anthropic, and apollo API keys are all required; run 'email-recruiters setup'")
		}
		if cfg.Outreach.SequenceID == "" && cfg.Outreach.SequenceName == "" {
			return eris.New("no default sequence configured (outreach.sequence_name); run 'email-recruiters setup'")
		}

		urls := args
		if len(urls) == 0 {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				urls = append(urls, line)
			}
			if err := scanner.Err(); err != nil {
				return eris.Wrap(err, "read urls from stdin")
			}
		}
		if len(urls) == 0 {
			return eris.New("no job URLs given")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pipeline := newPipeline(st)

		var succeeded, failed, totalAdded int
		for i, url := range urls {
			fmt.Printf("[%d/%d] %s\n", i+1, len(urls), url)

			report, err := pipeline.Run(ctx, outreach.RunParams{
				URL:            url,
				Save:           true,
				SearchContacts: true,
				EnrichTopN:     cfg.Outreach.EnrichTopN,
				SequenceID:     cfg.Outreach.SequenceID,
				SequenceName:   cfg.Outreach.SequenceName,
			})
			if err != nil {
				failed++
				zap.L().Error("batch: job failed", zap.String("url", url), zap.Error(err))
				fmt.Fprintf(os.Stderr, "  failed: %v\n", err)
				continue
			}

			succeeded++
			added := 0
			if report.Sequence != nil {
				added = report.Sequence.Added
			}
			totalAdded += added
			fmt.Printf("  %s at %s: %d contacts found, %d sequenced (%s)\n",
				dash(report.Job.Title), dash(report.Job.Company),
				report.ContactsFound, added, report.State)
		}

		fmt.Printf("\nBatch done: %d succeeded, %d failed, %d contacts sequenced\n",
			succeeded, failed, totalAdded)
		if failed > 0 {
			return eris.Errorf("%d of %d jobs failed", failed, len(urls))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
}
