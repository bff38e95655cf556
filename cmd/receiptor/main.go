// Command receiptor downloads purchase receipts from a mailbox and collates them into
// a single report.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/receiptor/pkg/config"
	"github.com/ArionMiles/receiptor/pkg/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger, closer := logging.Setup(logging.DefaultConfig())
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd(logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("receiptor failed", "command", commandName(root), "error", err)
		return 1
	}
	return 0
}

func commandName(root *cobra.Command) string {
	cmd, _, err := root.Find(os.Args[1:])
	if err != nil || cmd == nil {
		return root.Name()
	}
	return cmd.Name()
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "receiptor",
		Short: "Download purchase receipts from your mailbox and collate them into one report",
		Long: "receiptor finds order receipts from food delivery and grocery vendors in Gmail\n" +
			"(or a local mbox archive), extracts the charged amount, and saves each receipt as\n" +
			"JSON, HTML, text and PDF. The collate command combines the saved receipts into a\n" +
			"single PDF with a cover page listing every purchase and the total.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a JSON config file")

	root.AddCommand(
		newDownloadCmd(logger),
		newCollateCmd(logger),
		newExtractCmd(logger),
		newVendorsCmd(),
		newSetupCmd(logger),
		newStatusCmd(),
	)
	return root
}

// loadConfig merges the config file named by --config with the environment and the
// command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("reading --config flag: %w", err)
	}
	return config.Load(path, cmd.Flags())
}

func addAuthFlags(cmd *cobra.Command) {
	cmd.Flags().String("credentials", config.DefaultCredentialsFile, "Google OAuth client secret file")
	cmd.Flags().String("token", config.DefaultTokenFile, "where the OAuth token is cached")
}

func addRenderFlags(cmd *cobra.Command) {
	cmd.Flags().String("wkhtmltopdf", "wkhtmltopdf", "HTML to PDF converter executable")
	cmd.Flags().String("page-width", "", "rendered page width (default 1000px)")
	cmd.Flags().String("page-height", "", "rendered page height (default 1300px)")
}
