package cli

import (
	"github.com/spf13/cobra"

	"github.com/eleven-am/todoapp/internal/logger"
)

// Global configuration variables
var (
	configFile  string
	appConfig   *Config
	databaseURL string
	debug       bool
	verbose     bool
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "todoapp",
		Short: "todoapp - multi-user to-do list service",
		Long: `todoapp serves a JSON API for per-user categories and to-do items,
with token authentication, backed by PostgreSQL.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			if databaseURL != "" {
				cfg.Database.URL = databaseURL
			}

			logger.SetOutput(cmd.ErrOrStderr())
			if err := logger.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
				return err
			}
			if debug || verbose {
				logger.SetVerbosity(debug, verbose)
			}

			appConfig = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: todoapp.yaml)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "url", "", "database connection URL")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
