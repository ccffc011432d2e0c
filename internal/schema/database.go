package schema

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// EnsureDatabaseExists creates the database named in dsn if it is missing,
// connecting through the server's "postgres" maintenance database.
func EnsureDatabaseExists(ctx context.Context, dsn string, log logrus.FieldLogger) error {
	dbName, adminDSN, err := AdminDSN(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse DSN: %w", err)
	}

	admin, err := sqlx.Open("postgres", adminDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to admin database: %w", err)
	}
	defer admin.Close()

	var exists bool
	if err := admin.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName); err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	entry := log.WithField("database", dbName)
	if exists {
		entry.Debug("database already exists")
		return nil
	}

	entry.Info("database does not exist, creating")
	if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbName)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", dbName, err)
	}
	entry.Info("database created")
	return nil
}

// AdminDSN extracts the database name from dsn and returns a DSN for the
// same server pointing at the "postgres" database. Both URL and key=value
// forms are accepted.
func AdminDSN(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("failed to parse URL: %w", err)
		}

		dbName := strings.TrimPrefix(u.Path, "/")
		if dbName == "" {
			return "", "", fmt.Errorf("no database name in URL")
		}

		u.Path = "/postgres"
		return dbName, u.String(), nil
	}

	params := make(map[string]string)
	for _, part := range strings.Fields(dsn) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		params[kv[0]] = kv[1]
	}

	dbName, ok := params["dbname"]
	if !ok || dbName == "" {
		return "", "", fmt.Errorf("no dbname found in DSN")
	}

	params["dbname"] = "postgres"
	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)

	return dbName, strings.Join(parts, " "), nil
}
