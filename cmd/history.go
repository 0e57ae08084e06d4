package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/levelup/internal/config"
	"github.com/abhisek/levelup/internal/engine"
	"github.com/abhisek/levelup/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List retained snapshot revisions (sqlite backend)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Backend != config.BackendSQLite {
			return fmt.Errorf("history needs the sqlite backend, configured: %s", cfg.Backend)
		}

		backend, err := openBackend(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer backend.Close()
		s := backend.(*store.SQLiteBackend)

		revs, err := s.Revisions(cmd.Context(), engine.StorageKey(cfg.UserID))
		if err != nil {
			return err
		}
		if len(revs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No revisions found.")
			return nil
		}

		w := cmd.OutOrStdout()
		// Header.
		fmt.Fprintf(w, "%-8s  %-19s  %s\n", "Rev", "Saved", "Bytes")
		fmt.Fprintln(w, strings.Repeat("─", 40))
		for _, r := range revs {
			fmt.Fprintf(w, "%-8d  %-19s  %d\n",
				r.Revision, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), len(r.Value))
		}
		return nil
	},
}
