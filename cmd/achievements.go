package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/levelup/internal/engine"
)

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "List achievements and progress toward them",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			fmt.Fprintln(cmd.OutOrStdout(), renderAchievements(e.Achievements()))
			return nil
		})
	},
}
