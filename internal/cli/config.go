package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the todoapp.yaml configuration structure
type Config struct {
	Server struct {
		Listen          string        `yaml:"listen"`
		BodyLimit       string        `yaml:"body_limit"`
		AllowOrigins    []string      `yaml:"allow_origins"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Database struct {
		URL                string        `yaml:"url"`
		MaxConnections     int           `yaml:"max_connections"`
		MaxIdleConnections int           `yaml:"max_idle_connections"`
		ConnMaxLifetime    time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret  string        `yaml:"jwt_secret"`
		Issuer     string        `yaml:"issuer"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
		BcryptCost int           `yaml:"bcrypt_cost"`
	} `yaml:"auth"`

	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

var configLocations = []string{"todoapp.yaml", "todoapp.yml", ".todoapp.yaml"}

// DefaultConfig returns the settings used when nothing overrides them
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Listen = ":8000"
	cfg.Server.BodyLimit = "1M"
	cfg.Server.AllowOrigins = []string{"*"}
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Database.MaxConnections = 25
	cfg.Database.MaxIdleConnections = 5
	cfg.Database.ConnMaxLifetime = 10 * time.Minute
	cfg.Auth.Issuer = "todoapp"
	cfg.Auth.AccessTTL = 5 * time.Minute
	cfg.Auth.RefreshTTL = 24 * time.Hour
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// LoadConfig layers defaults, the config file and TODOAPP_* environment
// variables. An empty path falls back to TODOAPP_CONFIG and then the
// default locations; finding no file there is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = GetConfigPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", filepath.Base(path), err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func GetConfigPath() string {
	if path := os.Getenv("TODOAPP_CONFIG"); path != "" {
		return path
	}

	for _, loc := range configLocations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"TODOAPP_DATABASE_URL": &cfg.Database.URL,
		"TODOAPP_LISTEN":       &cfg.Server.Listen,
		"TODOAPP_JWT_SECRET":   &cfg.Auth.JWTSecret,
		"TODOAPP_REDIS_URL":    &cfg.Redis.URL,
		"TODOAPP_LOG_LEVEL":    &cfg.Log.Level,
	}
	for name, target := range overrides {
		if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}
}

// ValidateServe checks the settings the HTTP server cannot run without
func (c *Config) ValidateServe() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database url is required (--url, database.url or TODOAPP_DATABASE_URL)"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required (auth.jwt_secret or TODOAPP_JWT_SECRET)"))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	return errors.Join(errs...)
}
