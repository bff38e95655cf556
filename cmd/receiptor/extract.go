package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/receiptor/internal/registry"
	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/artifact"
)

// newExtractCmd re-runs extraction on saved records, for checking extractor changes
// against receipts already downloaded.
func newExtractCmd(logger *slog.Logger) *cobra.Command {
	var vendor string

	cmd := &cobra.Command{
		Use:   "extract RECORD.json...",
		Short: "Re-run extraction on saved JSON records and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Default()
			results := make([]*api.ExtractionResult, 0, len(args))

			for _, path := range args {
				rec, err := artifact.LoadRecord(path)
				if err != nil {
					return err
				}

				name := vendor
				if name == "" {
					name = rec.ImporterName
				}
				ext, err := reg.Get(name)
				if err != nil {
					return fmt.Errorf("record %s: %w", path, err)
				}

				msg := rec.Message()
				if msg == nil {
					return fmt.Errorf("record %s has no message", path)
				}
				res := ext.Extract(msg)
				if res == nil {
					logger.Warn("extractor declined message", "path", path, "vendor", name)
				}
				results = append(results, res)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
	cmd.Flags().StringVar(&vendor, "vendor", "", "extractor to use (default the record's vendor)")

	return cmd
}
