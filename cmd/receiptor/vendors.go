package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/receiptor/internal/registry"
)

func newVendorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vendors",
		Short: "List supported vendors and their mailbox queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDISPLAY NAME\tQUERY")
			for _, ext := range registry.Default().All() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ext.Name(), ext.DisplayName(), ext.Query().Q)
			}
			return w.Flush()
		},
	}
}
