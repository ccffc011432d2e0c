package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandStructure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "todoapp", cmd.Use)
	assert.Equal(t, Version, cmd.Version)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "version"})

	for _, flag := range []string{"config", "url", "debug", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}

	migrate, _, err := cmd.Find([]string{"migrate"})
	require.NoError(t, err)
	for _, flag := range []string{"dry-run", "create-if-not-exists", "allow-destructive"} {
		assert.NotNil(t, migrate.Flags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "todoapp "+Version)
	assert.Contains(t, out, "Go Version:")
}

func TestURLFlagOverridesConfig(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "todoapp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  url: postgres://file/todoapp\n"), 0o644))

	_, err := execute(t, "--config", path, "--url", "postgres://flag/todoapp", "version")
	require.NoError(t, err)
	require.NotNil(t, appConfig)
	assert.Equal(t, "postgres://flag/todoapp", appConfig.Database.URL)
}

func TestInvalidLogLevelFails(t *testing.T) {
	isolate(t)
	t.Setenv("TODOAPP_LOG_LEVEL", "loud")

	_, err := execute(t, "version")
	assert.Error(t, err)
}

func TestServeRequiresSettings(t *testing.T) {
	isolate(t)

	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url")
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	isolate(t)

	_, err := execute(t, "migrate", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url is required")
}
