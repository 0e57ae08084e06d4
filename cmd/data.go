package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/levelup/internal/engine"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the full progress snapshot as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		return withEngine(cmd, runOpts{}, func(ctx context.Context, e *engine.Engine) error {
			raw, err := e.ExportJSON()
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return err
			}
			if err := os.WriteFile(out, append(raw, '\n'), 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d bytes to %s\n", len(raw), out)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge a JSON snapshot into the stored progress",
	Long: "Each top-level field present in the file replaces the stored one. The file is\n" +
		"validated before anything is changed. Use - to read from stdin.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw []byte
		var err error
		if args[0] == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read import: %w", err)
		}
		return withEngine(cmd, runOpts{recover: true}, func(ctx context.Context, e *engine.Engine) error {
			if err := e.ImportJSON(ctx, raw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Imported progress for", e.UserID())
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")
}
