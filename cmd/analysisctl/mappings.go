package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"portal_analysis_backend/internal/analysis/mapping"
)

func newMappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect analysis vocabulary files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <path>",
		Short: "Parse a mapping file merged over the built-in defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := mapping.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s (%d action patterns)\n", args[0], len(tables.ActionPatterns()))
			return nil
		},
	})
	return cmd
}
