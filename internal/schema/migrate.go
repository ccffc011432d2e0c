package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"github.com/sirupsen/logrus"
)

const lockName = "todoapp_migrate"

// ErrDestructiveChanges is returned when the plan would drop data and
// destructive changes were not allowed.
var ErrDestructiveChanges = errors.New("migration contains destructive changes")

// Options control a migration run
type Options struct {
	DryRun           bool
	AllowDestructive bool
	LockTimeout      time.Duration
}

// Result describes a planned or applied migration
type Result struct {
	Statements  []string
	Changes     []schema.Change
	Destructive []string
	Applied     bool
}

// Migrator brings a database to the schema described by the models
type Migrator struct {
	db  *sql.DB
	log logrus.FieldLogger
}

func NewMigrator(db *sql.DB, log logrus.FieldLogger) *Migrator {
	return &Migrator{db: db, log: log}
}

// Run inspects the managed tables, diffs them against the desired schema and,
// unless DryRun is set, applies the changes under an advisory lock.
func (m *Migrator) Run(ctx context.Context, opts Options) (*Result, error) {
	drv, err := postgres.Open(m.db)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	if !opts.DryRun {
		unlock, err := lock(ctx, drv, opts.LockTimeout)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	result, err := m.plan(ctx, drv)
	if err != nil {
		return nil, err
	}
	if len(result.Changes) == 0 {
		m.log.Info("schema is up to date")
		return result, nil
	}

	for _, stmt := range result.Statements {
		m.log.WithField("sql", stmt).Debug("planned statement")
	}
	if len(result.Destructive) > 0 && !opts.AllowDestructive {
		return result, fmt.Errorf("%w: %v", ErrDestructiveChanges, result.Destructive)
	}
	if opts.DryRun {
		return result, nil
	}

	if err := drv.ApplyChanges(ctx, result.Changes); err != nil {
		return result, fmt.Errorf("failed to apply changes: %w", err)
	}
	result.Applied = true
	m.log.WithField("changes", len(result.Changes)).Info("schema migrated")
	return result, nil
}

func (m *Migrator) plan(ctx context.Context, drv migrate.Driver) (*Result, error) {
	desired, err := Desired()
	if err != nil {
		return nil, fmt.Errorf("failed to build desired schema: %w", err)
	}

	current, err := drv.InspectSchema(ctx, SchemaName, &schema.InspectOptions{Tables: TableNames()})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect current schema: %w", err)
	}

	changes, err := drv.SchemaDiff(current, desired)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate diff: %w", err)
	}

	result := &Result{Changes: changes}
	if len(changes) == 0 {
		return result, nil
	}

	result.Statements, err = GenerateSQL(ctx, drv, changes)
	if err != nil {
		return nil, err
	}
	_, result.Destructive = CountDestructiveChanges(changes)
	return result, nil
}

func lock(ctx context.Context, drv migrate.Driver, timeout time.Duration) (schema.UnlockFunc, error) {
	locker, ok := drv.(schema.Locker)
	if !ok {
		return func() error { return nil }, nil
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	unlock, err := locker.Lock(ctx, lockName, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	return unlock, nil
}

// GenerateSQL renders changes as the statements the driver would execute
func GenerateSQL(ctx context.Context, drv migrate.Driver, changes []schema.Change) ([]string, error) {
	plan, err := drv.PlanChanges(ctx, "todoapp", changes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}

	statements := make([]string, len(plan.Changes))
	for i, change := range plan.Changes {
		statements[i] = change.Cmd
		if change.Comment != "" {
			statements[i] = fmt.Sprintf("-- %s\n%s", change.Comment, change.Cmd)
		}
	}
	return statements, nil
}

func IsDestructiveChange(change schema.Change) bool {
	switch c := change.(type) {
	case *schema.DropTable, *schema.DropColumn, *schema.DropIndex, *schema.DropForeignKey:
		return true
	case *schema.ModifyTable:
		for _, sub := range c.Changes {
			if IsDestructiveChange(sub) {
				return true
			}
		}
	}
	return false
}

func DescribeChange(change schema.Change) string {
	switch c := change.(type) {
	case *schema.AddTable:
		return fmt.Sprintf("Create table %s", c.T.Name)
	case *schema.DropTable:
		return fmt.Sprintf("Drop table %s", c.T.Name)
	case *schema.ModifyTable:
		return fmt.Sprintf("Modify table %s (%d changes)", c.T.Name, len(c.Changes))
	case *schema.AddColumn:
		return fmt.Sprintf("Add column %s", c.C.Name)
	case *schema.DropColumn:
		return fmt.Sprintf("Drop column %s", c.C.Name)
	case *schema.ModifyColumn:
		return fmt.Sprintf("Modify column %s", c.To.Name)
	case *schema.AddIndex:
		return fmt.Sprintf("Add index %s", c.I.Name)
	case *schema.DropIndex:
		return fmt.Sprintf("Drop index %s", c.I.Name)
	case *schema.AddForeignKey:
		return fmt.Sprintf("Add foreign key %s", c.F.Symbol)
	case *schema.DropForeignKey:
		return fmt.Sprintf("Drop foreign key %s", c.F.Symbol)
	default:
		return fmt.Sprintf("Change type %T", change)
	}
}

func CountDestructiveChanges(changes []schema.Change) (count int, descriptions []string) {
	for _, change := range changes {
		if IsDestructiveChange(change) {
			count++
			descriptions = append(descriptions, DescribeChange(change))
		}
	}
	return count, descriptions
}
