package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/receiptor/pkg/client"
)

func newSetupCmd(logger *slog.Logger) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Authorize receiptor to read Gmail and write Google Sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== Receiptor Setup ===")
			fmt.Fprintln(out)

			if _, err := os.Stat(cfg.Credentials); os.IsNotExist(err) {
				return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
					"1. Go to https://console.cloud.google.com/apis/credentials\n"+
					"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
					"3. Download the JSON file and save it as '%s'", cfg.Credentials, cfg.Credentials)
			}

			if !force {
				if _, err := os.Stat(cfg.Token); err == nil {
					fmt.Fprintf(out, "Already authorized. Token file exists: %s\n\n", cfg.Token)
					fmt.Fprintln(out, "To authorize again, run: receiptor setup --force")
					return nil
				}
			} else if err := os.Remove(cfg.Token); err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to remove existing token", "error", err)
			}

			fmt.Fprintln(out, "Required permissions:")
			fmt.Fprintln(out, "  - Gmail: read messages (receipts are never modified)")
			fmt.Fprintln(out, "  - Sheets: create and append to spreadsheets (only used by collate exports)")
			fmt.Fprintln(out)

			if _, err := client.New(cmd.Context(), client.Config{SecretFile: cfg.Credentials, TokenFile: cfg.Token}, logger, client.Scopes...); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "=== Setup Complete ===")
			fmt.Fprintf(out, "Token saved to: %s\n\n", cfg.Token)
			fmt.Fprintln(out, "Next: run 'receiptor download' to fetch this month's receipts.")
			return nil
		},
	}

	addAuthFlags(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "discard the cached token and authorize again")

	return cmd
}
