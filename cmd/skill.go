package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/levelup/internal/engine"
	"github.com/abhisek/levelup/internal/ui/theme"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Browse and buy skill tree nodes",
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the skill tree of a level (default: current level)",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetInt("level")

		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			d := e.ExportData()
			if level == 0 {
				level = d.UserProfile.CurrentLevel
			}

			var nodes []string
			for _, def := range e.Catalog().Levels {
				if def.LevelNumber != level {
					continue
				}
				w := cmd.OutOrStdout()
				if len(def.SkillTreeNodes) == 0 {
					break
				}

				// Header.
				fmt.Fprintf(w, "%-20s  %-28s  %6s  %-20s  %s\n", "ID", "Name", "Cost", "Requires", "Status")
				fmt.Fprintln(w, strings.Repeat("─", 90))

				for _, n := range def.SkillTreeNodes {
					status := theme.Locked.Render("available")
					if slices.Contains(d.UserProfile.PurchasedSkills, n.ID) {
						status = theme.Earned.Render("owned")
					}
					name := n.Name
					if len(name) > 28 {
						name = name[:25] + "..."
					}
					fmt.Fprintf(w, "%-20s  %-28s  %6.0f  %-20s  %s\n",
						n.ID, name, n.Cost, strings.Join(n.Prerequisites, ","), status)
					nodes = append(nodes, n.ID)
				}
			}
			if len(nodes) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No skill tree at level %d.\n", level)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d skills\n", len(nodes))
			return nil
		})
	},
}

var skillBuyCmd = &cobra.Command{
	Use:   "buy <id>",
	Short: "Buy a node from the current level's skill tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			if !e.PurchaseSkill(args[0]) {
				return refused("skill " + args[0])
			}
			printBalance(cmd, e)
			return nil
		})
	},
}

func init() {
	skillListCmd.Flags().Int("level", 0, "Level whose skill tree to list")

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillBuyCmd)
}
