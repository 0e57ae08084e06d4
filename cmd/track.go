package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/levelup/internal/engine"
	"github.com/abhisek/levelup/internal/progress"
)

var trackCmd = &cobra.Command{
	Use:   "track <event> [key=value...]",
	Short: "Record a custom analytics event",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := parseProperties(args[1:])
		if err != nil {
			return err
		}
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			if !e.TrackEvent(args[0], props) {
				return refused("event " + args[0])
			}
			return nil
		})
	},
}

var abtestCmd = &cobra.Command{
	Use:   "abtest <test> <variant>",
	Short: "Assign an A/B test variant (the first assignment sticks)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			variant, _ := e.AssignABTest(args[0], args[1])
			if variant == "" {
				return refused("abtest " + args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], variant)
			return nil
		})
	},
}

var tierCmd = &cobra.Command{
	Use:   "tier <low|mid|high>",
	Short: "Set the performance tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			if !e.SetPerformanceTier(progress.PerformanceTier(args[0])) {
				return refused("tier " + args[0])
			}
			return nil
		})
	},
}

func parseProperties(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	props := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("property %q is not key=value", a)
		}
		props[k] = v
	}
	return props, nil
}
