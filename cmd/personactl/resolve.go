package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"persona-backend/internal/bootstrap"
	"persona-backend/internal/reconcile"
	"persona-backend/internal/shared/config"
)

func newResolveCmd(loadConfig func() config.Config) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "resolve [analysis-or-assessment-id]",
		Short: "Resolve a report the way the API does, printing each progress step",
		Long: "Resolve looks up an analysis by id, assessment id or id suffix, " +
			"retrying with backoff while the provider is still writing. With no id " +
			"it returns the user's most recent analysis.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			app, err := bootstrap.Build(cmd.Context(), loadConfig(), bootstrap.Options{SkipRouter: true})
			if err != nil {
				return err
			}
			if app.DB != nil {
				defer app.DB.Close()
			}

			stderr := cmd.ErrOrStderr()
			progress := reconcile.NotifierFunc(func(p reconcile.Progress) {
				fmt.Fprintf(stderr, "[%s] %s\n", p.Stage, p.Message)
			})
			analysis, err := app.Reconciler.Resolve(cmd.Context(), userID, target, progress)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), analysis)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner user id, e.g. google:123 or guest:<uuid>")
	return cmd
}
