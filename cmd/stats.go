package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/levelup/internal/engine"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Aliases: []string{"status"},
	Short:   "Show level, energy and learning statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd)
	},
}

func runStats(cmd *cobra.Command) error {
	return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
		fmt.Fprintln(cmd.OutOrStdout(), renderStats(e.ExportData(), e.LevelProgress(), e.Achievements()))
		return nil
	})
}
