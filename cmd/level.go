package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abhisek/levelup/internal/engine"
	"github.com/abhisek/levelup/internal/ui/theme"
)

var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Inspect and advance levels",
}

var levelUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Move to the next level, paying its energy cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			report := e.LevelProgress()
			if report.Next == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), theme.Hint.Render("Already at the highest level."))
				return nil
			}
			if !e.LevelUp(report.Next) {
				for _, b := range report.Blockers {
					fmt.Fprintln(cmd.OutOrStdout(), theme.Warning.Render("  • "+b))
				}
				return refused(fmt.Sprintf("level %d", report.Next))
			}
			return nil
		})
	},
}

var levelProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show what the next level needs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			r := e.LevelProgress()
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, row("Level", theme.Body.Render(strconv.Itoa(r.Current))))
			if r.Next == 0 {
				fmt.Fprintln(w, theme.Hint.Render("No further levels."))
				return nil
			}
			fmt.Fprintln(w, row("Next", theme.Body.Render(fmt.Sprintf("%d %s", r.Next, r.Name))))
			fmt.Fprintln(w, row("Energy", theme.EnergyValue.Render(fmt.Sprintf("%.0f%%", r.EnergyPercent))))
			if r.Eligible {
				fmt.Fprintln(w, theme.Earned.Render("Ready to level up"))
			}
			for _, b := range r.Blockers {
				fmt.Fprintln(w, theme.Warning.Render("  • "+b))
			}
			return nil
		})
	},
}

var levelXPCmd = &cobra.Command{
	Use:   "xp <amount>",
	Short: "Add experience points",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		xp, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid experience amount %q", args[0])
		}
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			if !e.AddExperiencePoints(xp) {
				return refused("experience")
			}
			return nil
		})
	},
}

func init() {
	levelCmd.AddCommand(levelUpCmd)
	levelCmd.AddCommand(levelProgressCmd)
	levelCmd.AddCommand(levelXPCmd)
}
