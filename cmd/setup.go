package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/manifoldco/promptui"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Anudeepreddynarala/email-recruiters/internal/config"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/apollo"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive first-run configuration",
	Long:  "Prompts for API keys, verifies directory access, picks a default sequence and email account, and writes config.yaml.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		newCfg := *cfg

		key, err := promptSecret("Jina AI Reader API key", newCfg.Jina.Key)
		if err != nil {
			return err
		}
		newCfg.Jina.Key = key

		key, err = promptSecret("Anthropic API key", newCfg.Anthropic.Key)
		if err != nil {
			return err
		}
		newCfg.Anthropic.Key = key

		key, err = promptSecret("Apollo.io API key (master key recommended)", newCfg.Apollo.Key)
		if err != nil {
			return err
		}
		newCfg.Apollo.Key = key

		// Sequence and email account selection need a working master key;
		// a regular key still allows search and enrichment.
		if newCfg.Apollo.Key != "" {
			client := apollo.NewClient(newCfg.Apollo.Key, apollo.WithBaseURL(newCfg.Apollo.BaseURL))

			sequences, err := client.ListSequences(ctx)
			switch {
			case apollo.IsAuthError(err):
				fmt.Fprintln(os.Stderr, "The key is not a master key: sequence features will be unavailable.")
			case err != nil:
				return eris.Wrap(err, "verify apollo key")
			case len(sequences) == 0:
				fmt.Fprintln(os.Stderr, "No sequences in the account yet; create one in Apollo and rerun setup.")
			default:
				names := make([]string, 0, len(sequences)+1)
				for _, s := range sequences {
					names = append(names, s.Name)
				}
				names = append(names, "(none)")

				prompt := promptui.Select{Label: "Default outreach sequence", Items: names}
				idx, choice, err := prompt.Run()
				if err != nil {
					return eris.Wrap(err, "select sequence")
				}
				if choice != "(none)" {
					newCfg.Outreach.SequenceName = choice
					newCfg.Outreach.SequenceID = sequences[idx].ID
				}

				accounts, err := client.ListEmailAccounts(ctx)
				if err == nil && len(accounts) > 0 {
					prompt := promptui.Select{Label: "Send-from email account", Items: accounts}
					_, account, err := prompt.Run()
					if err != nil {
						return eris.Wrap(err, "select email account")
					}
					newCfg.Outreach.EmailAccountID = account
				}
			}
		}

		dir, err := config.Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "create config dir")
		}

		path := filepath.Join(dir, "config.yaml")
		data, err := yaml.Marshal(&newCfg)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return eris.Wrapf(err, "write %s", path)
		}

		fmt.Printf("Configuration written to %s\n", path)
		return nil
	},
}

// promptSecret asks for a value, keeping the current one when the user
// enters nothing.
func promptSecret(label, current string) (string, error) {
	if current != "" {
		label = fmt.Sprintf("%s (enter to keep current)", label)
	}
	prompt := promptui.Prompt{Label: label, Mask: '*'}
	value, err := prompt.Run()
	if err != nil {
		return "", eris.Wrapf(err, "prompt %s", label)
	}
	if value == "" {
		return current, nil
	}
	return value, nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
