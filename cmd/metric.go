package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abhisek/levelup/internal/engine"
)

var metricCmd = &cobra.Command{
	Use:   "metric",
	Short: "Report usage metrics",
}

var metricSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Set a session metric (the lifetime value keeps its peak)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			if !e.UpdateMetric(args[0], value) {
				return refused("metric " + args[0])
			}
			return nil
		})
	},
}

var metricAddCmd = &cobra.Command{
	Use:   "add <name> <delta>",
	Short: "Add to a counter metric",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			if !e.IncrementMetric(args[0], delta) {
				return refused("metric " + args[0])
			}
			return nil
		})
	},
}

var metricModelCmd = &cobra.Command{
	Use:   "model <name>",
	Short: "Record one use of a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			if !e.RecordModelUsage(args[0]) {
				return refused("model " + args[0])
			}
			return nil
		})
	},
}

func init() {
	metricCmd.AddCommand(metricSetCmd)
	metricCmd.AddCommand(metricAddCmd)
	metricCmd.AddCommand(metricModelCmd)
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func refused(what string) error {
	return fmt.Errorf("%s: %w", what, errRefused)
}
