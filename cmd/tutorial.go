package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/levelup/internal/engine"
	"github.com/abhisek/levelup/internal/progress"
	"github.com/abhisek/levelup/internal/ui/components"
	"github.com/abhisek/levelup/internal/ui/theme"
)

var tutorialCmd = &cobra.Command{
	Use:   "tutorial",
	Short: "Track tutorial progress",
}

var tutorialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tutorials and their progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			w := cmd.OutOrStdout()
			for _, def := range e.Catalog().Tutorials {
				status := progress.StatusNotStarted
				pct := 0.0
				if tp, ok := e.TutorialProgress(def.ID); ok {
					status = tp.Status
					pct = tp.CompletionPercentage
				}
				fmt.Fprintf(w, "%s  %s\n", theme.Body.Render(def.Title), theme.Hint.Render("("+def.ID+", "+string(status)+")"))
				fmt.Fprintln(w, "  "+components.NewProgressBar("", pct, barWidth-14).View())
			}
			return nil
		})
	},
}

var tutorialStartCmd = &cobra.Command{
	Use:   "start <tutorial>",
	Short: "Start or resume a tutorial",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tutorialOp(cmd, "start "+args[0], func(e *engine.Engine) bool {
			return e.StartTutorial(args[0])
		})
	},
}

var tutorialSkipCmd = &cobra.Command{
	Use:   "skip <tutorial>",
	Short: "Skip a tutorial",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tutorialOp(cmd, "skip "+args[0], func(e *engine.Engine) bool {
			return e.SkipTutorial(args[0])
		})
	},
}

var tutorialStepCmd = &cobra.Command{
	Use:   "step <tutorial> <step>",
	Short: "Mark a step complete",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		spent, _ := cmd.Flags().GetFloat64("time")
		hints, _ := cmd.Flags().GetInt("hints")
		errs, _ := cmd.Flags().GetStringArray("error")
		return tutorialOp(cmd, "step "+args[1], func(e *engine.Engine) bool {
			if !e.StartStep(args[0], args[1]) {
				return false
			}
			for range hints {
				e.UseHint(args[0], args[1])
			}
			for _, msg := range errs {
				e.RecordStepError(args[0], args[1], msg)
			}
			return e.MarkStepComplete(args[0], args[1], spent)
		})
	},
}

var tutorialCompleteCmd = &cobra.Command{
	Use:   "complete <tutorial>",
	Short: "Complete a started tutorial",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tutorialOp(cmd, "complete "+args[0], func(e *engine.Engine) bool {
			return e.MarkTutorialComplete(args[0])
		})
	},
}

var tutorialDropOffCmd = &cobra.Command{
	Use:   "dropoff <tutorial> <step>",
	Short: "Record abandoning a tutorial at a step",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		return tutorialOp(cmd, "drop-off "+args[0], func(e *engine.Engine) bool {
			return e.RecordDropOff(args[0], args[1], reason)
		})
	},
}

var tutorialCheckCmd = &cobra.Command{
	Use:   "check <tutorial> <question>",
	Short: "Record a knowledge check answer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		correct, _ := cmd.Flags().GetBool("correct")
		attempts, _ := cmd.Flags().GetInt("attempts")
		spent, _ := cmd.Flags().GetFloat64("time")
		return tutorialOp(cmd, "knowledge check "+args[1], func(e *engine.Engine) bool {
			return e.RecordKnowledgeCheck(args[0], progress.KnowledgeCheck{
				QuestionID: args[1],
				Correct:    correct,
				Attempts:   attempts,
				TimeSpent:  spent,
			})
		})
	},
}

var tutorialFeedbackCmd = &cobra.Command{
	Use:   "feedback <tutorial> <rating>",
	Short: "Rate a tutorial from 1 to 5",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid rating %q", args[1])
		}
		comment, _ := cmd.Flags().GetString("comment")
		return tutorialOp(cmd, "feedback "+args[0], func(e *engine.Engine) bool {
			return e.SubmitFeedback(args[0], progress.Feedback{Rating: rating, Comment: strings.TrimSpace(comment)})
		})
	},
}

func init() {
	tutorialStepCmd.Flags().Float64("time", 0, "Seconds spent on the step")
	tutorialStepCmd.Flags().Int("hints", 0, "Hints used on the step")
	tutorialStepCmd.Flags().StringArray("error", nil, "Mistake made on the step (repeatable)")
	tutorialDropOffCmd.Flags().String("reason", "", "Why the tutorial was abandoned")
	tutorialCheckCmd.Flags().Bool("correct", false, "The answer was correct")
	tutorialCheckCmd.Flags().Int("attempts", 1, "Attempts taken")
	tutorialCheckCmd.Flags().Float64("time", 0, "Seconds spent answering")
	tutorialFeedbackCmd.Flags().String("comment", "", "Free-form comment")

	tutorialCmd.AddCommand(tutorialListCmd)
	tutorialCmd.AddCommand(tutorialStartCmd)
	tutorialCmd.AddCommand(tutorialSkipCmd)
	tutorialCmd.AddCommand(tutorialStepCmd)
	tutorialCmd.AddCommand(tutorialCompleteCmd)
	tutorialCmd.AddCommand(tutorialDropOffCmd)
	tutorialCmd.AddCommand(tutorialCheckCmd)
	tutorialCmd.AddCommand(tutorialFeedbackCmd)
}

// tutorialOp runs a tutorial mutation and reports a refusal as an error.
func tutorialOp(cmd *cobra.Command, what string, op func(e *engine.Engine) bool) error {
	return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
		if !op(e) {
			return refused(what)
		}
		return nil
	})
}
