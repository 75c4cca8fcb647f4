package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"persona-backend/internal/questions"
)

func newQuestionsCmd() *cobra.Command {
	var variant string
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "List the embedded question bank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if variant != questions.VariantStandard && variant != questions.VariantPremium {
				return fmt.Errorf("unknown variant %q", variant)
			}
			bank, err := questions.Load()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), bank.ForVariant(variant))
		},
	}
	cmd.Flags().StringVar(&variant, "variant", questions.VariantStandard, "standard or premium")
	return cmd
}
