package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/levelup/internal/engine"
	"github.com/abhisek/levelup/internal/ui/theme"
)

var energyCmd = &cobra.Command{
	Use:   "energy",
	Short: "Award, spend and inspect energy units",
}

var energyAwardCmd = &cobra.Command{
	Use:   "award <amount>",
	Short: "Credit energy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			if !e.AwardEnergy(amount, reason) {
				return refused("award")
			}
			printBalance(cmd, e)
			return nil
		})
	},
}

var energySpendCmd = &cobra.Command{
	Use:   "spend <amount>",
	Short: "Debit energy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			if !e.SpendEnergy(amount, reason) {
				printBalance(cmd, e)
				return refused("spend")
			}
			printBalance(cmd, e)
			return nil
		})
	},
}

var energyLogCmd = &cobra.Command{
	Use:   "log",
	Short: "List recent energy transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			txs := e.ExportData().UserProfile.Energy.Transactions
			if len(txs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No energy transactions.")
				return nil
			}
			if limit > 0 && len(txs) > limit {
				txs = txs[len(txs)-limit:]
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-19s  %-6s  %8s  %s\n", "Timestamp", "Kind", "Amount", "Reason")
			fmt.Fprintln(w, strings.Repeat("─", 70))
			for i := len(txs) - 1; i >= 0; i-- {
				tx := txs[i]
				fmt.Fprintf(w, "%-19s  %-6s  %8.1f  %s\n",
					tx.At.Local().Format("2006-01-02 15:04:05"), tx.Kind, tx.Amount, tx.Reason)
			}
			return nil
		})
	},
}

func init() {
	energyAwardCmd.Flags().String("reason", "manual", "Reason recorded in the transaction log")
	energySpendCmd.Flags().String("reason", "manual", "Reason recorded in the transaction log")
	energyLogCmd.Flags().Int("limit", 20, "Number of transactions to show")

	energyCmd.AddCommand(energyAwardCmd)
	energyCmd.AddCommand(energySpendCmd)
	energyCmd.AddCommand(energyLogCmd)
}

func printBalance(cmd *cobra.Command, e *engine.Engine) {
	energy := e.ExportData().UserProfile.Energy
	fmt.Fprintln(cmd.OutOrStdout(), theme.Label.Render("Energy")+
		theme.EnergyValue.Render(fmt.Sprintf("%.1f", energy.AvailableEnergy))+
		theme.Subtitle.Render(fmt.Sprintf(" available, %.1f earned", energy.TotalEnergy)))
}
