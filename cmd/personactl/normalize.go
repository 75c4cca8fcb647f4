package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"persona-backend/internal/normalize"
)

func newNormalizeCmd() *cobra.Command {
	var threshold int
	cmd := &cobra.Command{
		Use:   "normalize [file]",
		Short: "Normalize raw provider JSON into a report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			var raw map[string]any
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("provider output is not a JSON object: %w", err)
			}
			report := normalize.Normalize(raw)
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"report":   report,
				"complete": report.IsComplete(threshold),
			})
		},
	}
	cmd.Flags().IntVar(&threshold, "threshold", normalize.DefaultCompleteThreshold, "traits required for a complete report")
	return cmd
}
