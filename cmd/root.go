package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Anudeepreddynarala/email-recruiters/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "email-recruiters",
	Short: "Find the right people to contact about a job posting",
	Long:  "Fetches a job posting, extracts its details via Claude, finds recruiters and hiring managers in the Apollo.io directory, and stages them into an outreach sequence.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
