package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"carat/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cmd.Context(), cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				outcome := run.Status
				if run.Error != "" {
					outcome = run.Status + ": " + truncate(run.Error, 60)
				}
				rows = append(rows, []string{
					fmt.Sprint(run.ID),
					run.CompletedAt.Local().Format(time.DateTime),
					run.Artist,
					run.Album,
					run.SourceKind,
					outcome,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Completed", "Artist", "Album", "Source", "Outcome"},
				rows,
				1,
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
