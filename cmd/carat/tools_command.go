package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"carat/internal/deps"
)

func newToolsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Show which external tools were found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.Check(deps.Requirements(deps.Overrides{
				MakeMKV:  cfg.Tools.MakeMKV,
				FFmpeg:   cfg.Tools.FFmpeg,
				FFprobe:  cfg.Tools.FFprobe,
				MKVMerge: cfg.Tools.MKVMerge,
			}))

			rows := make([][]string, 0, len(statuses))
			missing := 0
			for _, status := range statuses {
				state := "ok"
				location := status.Resolved
				if !status.Available {
					state = "missing"
					location = status.Description
					missing++
				}
				rows = append(rows, []string{status.Name, state, location})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Tool", "Status", "Location"},
				rows,
			))
			if missing > 0 {
				return fmt.Errorf("%d required tool(s) missing", missing)
			}
			return nil
		},
	}
}
