package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "healthdata",
		Short: "Health data gateway operations",
		Long: `healthdata manages the gateway database and runs the derived data
pipeline. Settings come from flags, an optional config file and
HEALTHDATA_* environment variables.`,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "healthdata version %s\n" .Version}}`)
	bindPersistentFlags(root)

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newPipelineCmd())
	root.AddCommand(newSchemasCmd())
	return root
}

// withRuntime loads settings, builds the runtime and closes it after fn.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	root := newZerologLogger(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Log.Level)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := buildRuntime(ctx, cfg, root)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			rt.logger.Warn("close persistence client", "error", closeErr)
		}
	}()
	return fn(ctx, rt)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			// the runtime applies migrations on build
			cfg.Migrate = true
			root := newZerologLogger(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Log.Level)
			rt, err := buildRuntime(cmd.Context(), cfg, root)
			if err != nil {
				return err
			}
			defer rt.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
