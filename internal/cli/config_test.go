package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, name := range []string{"TODOAPP_CONFIG", "TODOAPP_DATABASE_URL", "TODOAPP_LISTEN", "TODOAPP_JWT_SECRET", "TODOAPP_REDIS_URL", "TODOAPP_LOG_LEVEL"} {
		t.Setenv(name, "")
	}
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Listen)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 25, cfg.Database.MaxConnections)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)

	content := `
server:
  listen: ":9090"
  shutdown_timeout: 3s
database:
  url: postgres://app@db/todoapp
  max_connections: 7
auth:
  jwt_secret: from-file
  access_ttl: 1m
log:
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "todoapp.yaml"), []byte(content), 0o644))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "postgres://app@db/todoapp", cfg.Database.URL)
	assert.Equal(t, 7, cfg.Database.MaxConnections)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  jwt_secret: from-file\n"), 0o644))

	t.Setenv("TODOAPP_CONFIG", path)
	t.Setenv("TODOAPP_JWT_SECRET", "from-env")
	t.Setenv("TODOAPP_DATABASE_URL", "postgres://env/todoapp")
	t.Setenv("TODOAPP_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TODOAPP_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "postgres://env/todoapp", cfg.Database.URL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := isolate(t)

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [not, a, map"), 0o644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}

func TestGetConfigPath(t *testing.T) {
	dir := isolate(t)
	assert.Empty(t, GetConfigPath())

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".todoapp.yaml"), nil, 0o644))
	assert.Equal(t, ".todoapp.yaml", GetConfigPath())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "todoapp.yml"), nil, 0o644))
	assert.Equal(t, "todoapp.yml", GetConfigPath())

	t.Setenv("TODOAPP_CONFIG", "/etc/todoapp.yaml")
	assert.Equal(t, "/etc/todoapp.yaml", GetConfigPath())
}

func TestValidateServe(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ValidateServe()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url")
	assert.Contains(t, err.Error(), "jwt secret")

	cfg.Database.URL = "postgres://localhost/todoapp"
	cfg.Auth.JWTSecret = "secret"
	assert.NoError(t, cfg.ValidateServe())
}
