package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/levelup/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "levelup",
	Short: "Local-first progression and rewards engine",
	Long: "levelup tracks tutorials, achievements, levels and an energy economy for one user,\n" +
		"persisting everything locally. Run without a subcommand to see the current status.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to a YAML config file (overrides LEVELUP_CONFIG env var)")
	pf.String("user", "", "User whose progress is loaded (overrides LEVELUP_USER env var)")
	pf.String("backend", "", "Storage backend: sqlite, file, redis or memory")
	pf.String("db", "", "Path to SQLite database file (overrides LEVELUP_DB env var)")
	pf.String("catalog", "", "Path to a YAML catalog (default: built-in)")
	pf.String("log", "", "Log mode: off, dev or prod")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(metricCmd)
	rootCmd.AddCommand(energyCmd)
	rootCmd.AddCommand(levelCmd)
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(tutorialCmd)
	rootCmd.AddCommand(achievementsCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(abtestCmd)
	rootCmd.AddCommand(tierCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveConfig builds the configuration from defaults, the config file
// (--config flag, then LEVELUP_CONFIG), LEVELUP_* env vars and finally the
// persistent flags, which win.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.DefaultConfig()

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("LEVELUP_CONFIG")
	}
	if path != "" {
		if err := config.LoadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("user"); v != "" {
		cfg.UserID = v
	}
	if v, _ := flags.GetString("backend"); v != "" {
		cfg.Backend = v
	}
	if v, _ := flags.GetString("db"); v != "" {
		cfg.SQLite.Path = v
	}
	if v, _ := flags.GetString("catalog"); v != "" {
		cfg.Catalog = v
	}
	if v, _ := flags.GetString("log"); v != "" {
		cfg.Log.Mode = v
	}
	return cfg, cfg.Validate()
}
