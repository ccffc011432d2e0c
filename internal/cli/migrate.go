package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/eleven-am/todoapp/internal/logger"
	"github.com/eleven-am/todoapp/internal/schema"
	"github.com/eleven-am/todoapp/internal/store"
)

type migrateOptions struct {
	dryRun              bool
	createDBIfNotExists bool
	allowDestructive    bool
}

func newMigrateCommand() *cobra.Command {
	var opts migrateOptions

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Compare the database with the schema the application expects and apply
the difference. Changes that drop tables, columns, indexes or foreign keys are
refused unless --allow-destructive is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), appConfig, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the migration SQL without applying it")
	cmd.Flags().BoolVar(&opts.createDBIfNotExists, "create-if-not-exists", false, "Create the database if it does not exist")
	cmd.Flags().BoolVar(&opts.allowDestructive, "allow-destructive", false, "Allow potentially destructive operations")
	return cmd
}

func runMigrate(ctx context.Context, cfg *Config, opts migrateOptions, out io.Writer) error {
	if cfg.Database.URL == "" {
		return errors.New("database url is required (--url, database.url or TODOAPP_DATABASE_URL)")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if opts.createDBIfNotExists {
		if err := schema.EnsureDatabaseExists(ctx, cfg.Database.URL, logger.DB()); err != nil {
			return err
		}
	}

	db, err := store.NewDBConfig(cfg.Database.URL).Connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.StartProgress("migrate")
	result, err := schema.NewMigrator(db.DB, logger.Migration()).Run(ctx, schema.Options{
		DryRun:           opts.dryRun,
		AllowDestructive: opts.allowDestructive,
	})
	logger.EndProgress(err == nil)

	if result != nil {
		for _, desc := range result.Destructive {
			logger.Schema().WithField("change", desc).Warn("destructive change")
		}
		if opts.dryRun || errors.Is(err, schema.ErrDestructiveChanges) {
			printStatements(out, result.Statements)
		}
	}
	if err != nil {
		return err
	}

	switch {
	case len(result.Changes) == 0:
		fmt.Fprintln(out, "Schema is up to date.")
	case result.Applied:
		fmt.Fprintf(out, "Applied %d schema changes.\n", len(result.Changes))
	}
	return nil
}

func printStatements(out io.Writer, statements []string) {
	for _, stmt := range statements {
		fmt.Fprintf(out, "%s;\n", stmt)
	}
}
