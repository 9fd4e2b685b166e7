package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-healthdata/core"
)

func newSchemasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Inspect the schema catalog",
	}

	var skip, limit int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List provider and internal schema ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				bus, err := rt.dispatcher()
				if err != nil {
					return err
				}
				page, err := bus.ListSchemaIDs(ctx, core.ListRequest{Skip: skip, Limit: limit})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, id := range page.Items {
					fmt.Fprintln(out, id)
				}
				fmt.Fprintf(out, "total: %d\n", page.TotalCount)
				return nil
			})
		},
	}
	list.Flags().Int64Var(&skip, "skip", 0, "ids to skip")
	list.Flags().Int64Var(&limit, "limit", core.DefaultListLimit, "ids to return")

	cmd.AddCommand(list)
	return cmd
}
