package testing

import (
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DatabaseURLEnv names a PostgreSQL server the integration tests may use.
// Tests needing it are skipped when it is unset.
const DatabaseURLEnv = "TODOAPP_TEST_DATABASE_URL"

// TestDB is a throwaway database created for a single test
type TestDB struct {
	DB      *sqlx.DB
	DBName  string
	ConnStr string
	t       *testing.T
	baseURL string
}

// NewTestDB creates a fresh database on the server named by DatabaseURLEnv
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	baseURL := os.Getenv(DatabaseURLEnv)
	if baseURL == "" || testing.Short() {
		t.Skipf("%s not set; skipping PostgreSQL integration test", DatabaseURLEnv)
	}

	admin, err := sqlx.Open("postgres", baseURL)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer admin.Close()

	dbName := fmt.Sprintf("todoapp_test_%d", time.Now().UnixNano())
	if _, err := admin.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("Invalid %s: %v", DatabaseURLEnv, err)
	}
	u.Path = "/" + dbName
	connStr := u.String()

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	tdb := &TestDB{DB: db, DBName: dbName, ConnStr: connStr, t: t, baseURL: baseURL}
	t.Cleanup(tdb.Cleanup)
	return tdb
}

// Cleanup drops the test database
func (tdb *TestDB) Cleanup() {
	tdb.DB.Close()

	admin, err := sqlx.Open("postgres", tdb.baseURL)
	if err != nil {
		tdb.t.Logf("Failed to connect for cleanup: %v", err)
		return
	}
	defer admin.Close()

	_, err = admin.Exec(`
		SELECT pg_terminate_backend(pg_stat_activity.pid)
		FROM pg_stat_activity
		WHERE pg_stat_activity.datname = $1
		AND pid <> pg_backend_pid()
	`, tdb.DBName)
	if err != nil {
		tdb.t.Logf("Failed to terminate connections: %v", err)
	}

	if _, err := admin.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", tdb.DBName)); err != nil {
		tdb.t.Logf("Failed to drop test database: %v", err)
	}
}

// TableExists checks if a table exists
func (tdb *TestDB) TableExists(tableName string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`
	err := tdb.DB.QueryRow(query, tableName).Scan(&exists)
	return exists, err
}

// ConstraintExists checks if a constraint exists
func (tdb *TestDB) ConstraintExists(tableName, constraintName string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.table_constraints
			WHERE table_schema = 'public'
			AND table_name = $1
			AND constraint_name = $2
		)
	`
	err := tdb.DB.QueryRow(query, tableName, constraintName).Scan(&exists)
	return exists, err
}
