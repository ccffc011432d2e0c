package schema

import (
	"context"
	"testing"

	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/eleven-am/todoapp/internal/testing"
)

func indexNamed(t *schema.Table, name string) *schema.Index {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

func TestDesiredSchema(t *testing.T) {
	s, err := Desired()
	require.NoError(t, err)
	assert.Equal(t, SchemaName, s.Name)
	assert.Equal(t, []string{"users", "categories", "todo_items"}, TableNames())

	t.Run("users", func(t *testing.T) {
		users, ok := s.Table("users")
		require.True(t, ok)

		id, ok := users.Column("id")
		require.True(t, ok)
		assert.Equal(t, &postgres.SerialType{T: "bigserial"}, id.Type.Type)
		require.NotNil(t, users.PrimaryKey)
		assert.Equal(t, "id", users.PrimaryKey.Parts[0].C.Name)

		username, ok := users.Column("username")
		require.True(t, ok)
		assert.False(t, username.Type.Null)
		assert.Equal(t, &schema.StringType{T: "character varying", Size: 150}, username.Type.Type)

		uk := indexNamed(users, "uk_users_username")
		require.NotNil(t, uk)
		assert.True(t, uk.Unique)
	})

	t.Run("categories", func(t *testing.T) {
		categories, ok := s.Table("categories")
		require.True(t, ok)

		uk := indexNamed(categories, "uk_categories_user_name")
		require.NotNil(t, uk)
		assert.True(t, uk.Unique)
		require.Len(t, uk.Parts, 2)
		assert.Equal(t, "user_id", uk.Parts[0].C.Name)
		assert.Equal(t, "name", uk.Parts[1].C.Name)

		idx := indexNamed(categories, "idx_categories_user")
		require.NotNil(t, idx)
		assert.False(t, idx.Unique)

		require.Len(t, categories.ForeignKeys, 1)
		fk := categories.ForeignKeys[0]
		assert.Equal(t, "fk_categories_user_id", fk.Symbol)
		assert.Equal(t, "users", fk.RefTable.Name)
		assert.Equal(t, schema.Cascade, fk.OnDelete)
	})

	t.Run("todo_items", func(t *testing.T) {
		items, ok := s.Table("todo_items")
		require.True(t, ok)

		done, ok := items.Column("done")
		require.True(t, ok)
		assert.Equal(t, &schema.Literal{V: "false"}, done.Default)

		created, ok := items.Column("created_at")
		require.True(t, ok)
		assert.Equal(t, &schema.RawExpr{X: "now()"}, created.Default)
		assert.Equal(t, &schema.TimeType{T: "timestamp with time zone"}, created.Type.Type)

		require.Len(t, items.ForeignKeys, 1)
		fk := items.ForeignKeys[0]
		assert.Equal(t, "categories", fk.RefTable.Name)
		assert.Equal(t, schema.Cascade, fk.OnDelete)
		assert.Equal(t, "category_id", fk.Columns[0].Name)
	})
}

func TestColumnType(t *testing.T) {
	typ, err := columnType("VARCHAR(42)")
	require.NoError(t, err)
	assert.Equal(t, &schema.StringType{T: "character varying", Size: 42}, typ)

	typ, err = columnType("boolean")
	require.NoError(t, err)
	assert.Equal(t, &schema.BoolType{T: "boolean"}, typ)

	for _, bad := range []string{"", "varchar(x)", "varchar(0)", "jsonb"} {
		_, err := columnType(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsDestructiveChange(t *testing.T) {
	tests := []struct {
		name     string
		change   schema.Change
		expected bool
	}{
		{"drop table", &schema.DropTable{T: &schema.Table{Name: "todo_items"}}, true},
		{"drop column", &schema.DropColumn{C: &schema.Column{Name: "done"}}, true},
		{"drop index", &schema.DropIndex{I: &schema.Index{Name: "idx_categories_user"}}, true},
		{"drop foreign key", &schema.DropForeignKey{F: &schema.ForeignKey{Symbol: "fk_todo_items_category_id"}}, true},
		{"add table", &schema.AddTable{T: &schema.Table{Name: "categories"}}, false},
		{"add column", &schema.AddColumn{C: &schema.Column{Name: "name"}}, false},
		{
			"modify table with drop",
			&schema.ModifyTable{T: &schema.Table{Name: "users"}, Changes: []schema.Change{
				&schema.AddColumn{C: &schema.Column{Name: "email"}},
				&schema.DropColumn{C: &schema.Column{Name: "nickname"}},
			}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsDestructiveChange(tt.change))
		})
	}

	count, descriptions := CountDestructiveChanges([]schema.Change{tests[0].change, tests[4].change, tests[1].change})
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"Drop table todo_items", "Drop column done"}, descriptions)
}

func TestAdminDSN(t *testing.T) {
	tests := []struct {
		name   string
		dsn    string
		dbName string
		admin  string
		err    bool
	}{
		{
			name:   "url",
			dsn:    "postgres://app:secret@db:5432/todoapp?sslmode=disable",
			dbName: "todoapp",
			admin:  "postgres://app:secret@db:5432/postgres?sslmode=disable",
		},
		{
			name:   "key value",
			dsn:    "host=db port=5432 user=app dbname=todoapp sslmode=disable",
			dbName: "todoapp",
			admin:  "dbname=postgres host=db port=5432 sslmode=disable user=app",
		},
		{name: "url without database", dsn: "postgres://app@db:5432", err: true},
		{name: "key value without dbname", dsn: "host=db user=app", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbName, admin, err := AdminDSN(tt.dsn)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dbName, dbName)
			assert.Equal(t, tt.admin, admin)
		})
	}
}

func TestMigratorAgainstPostgres(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	m := NewMigrator(tdb.DB.DB, logger)

	plan, err := m.Run(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.False(t, plan.Applied)
	assert.NotEmpty(t, plan.Statements)

	exists, err := tdb.TableExists("users")
	require.NoError(t, err)
	assert.False(t, exists)

	result, err := m.Run(ctx, Options{})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	for _, table := range TableNames() {
		exists, err := tdb.TableExists(table)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}
	exists, err = tdb.ConstraintExists("todo_items", "fk_todo_items_category_id")
	require.NoError(t, err)
	assert.True(t, exists)

	again, err := m.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Empty(t, again.Destructive)
}
