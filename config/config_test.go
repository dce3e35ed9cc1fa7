package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quota.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func envMap(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "quota.db", cfg.DB)
	assert.True(t, cfg.Digest.Enabled)
	assert.Equal(t, time.Hour, cfg.Digest.Interval)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
port: 9090
driver: postgres
dsn: postgres://quota@localhost/quota
allowed_origins:
  - https://dash.example.com
digest:
  enabled: true
  interval: 15m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "postgres://quota@localhost/quota", cfg.DSN)
	assert.Equal(t, []string{"https://dash.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 15*time.Minute, cfg.Digest.Interval)
	assert.Equal(t, "quota.db", cfg.DB, "unset keys keep their defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "port: [not a number\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidDriver(t *testing.T) {
	path := writeConfig(t, "driver: mongodb\n")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestApplyEnv_OverridesFile(t *testing.T) {
	cfg := Defaults()
	cfg.Port = 9090

	err := cfg.applyEnv(envMap(map[string]string{
		"QUOTA_PORT":            "7000",
		"QUOTA_DRIVER":          " Postgres ",
		"QUOTA_DSN":             "postgres://env",
		"QUOTA_ALLOWED_ORIGINS": "http://a.test, http://b.test,,",
		"QUOTA_DIGEST_INTERVAL": "0",
	}))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "postgres://env", cfg.DSN)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.False(t, cfg.Digest.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_BadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port", map[string]string{"QUOTA_PORT": "eighty"}},
		{"interval", map[string]string{"QUOTA_DIGEST_INTERVAL": "hourly"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			err := cfg.applyEnv(envMap(tt.env))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_EnvironmentApplied(t *testing.T) {
	t.Setenv("QUOTA_DB", ":memory:")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.DB)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero port", func(c *Config) { c.Port = 0 }, false},
		{"port too large", func(c *Config) { c.Port = 70000 }, false},
		{"sqlite without path", func(c *Config) { c.DB = "" }, false},
		{"postgres without dsn", func(c *Config) { c.Driver = DriverPostgres }, false},
		{"postgres with dsn", func(c *Config) { c.Driver = DriverPostgres; c.DSN = "postgres://x" }, true},
		{"enabled digest without interval", func(c *Config) { c.Digest.Interval = 0 }, false},
		{"disabled digest without interval", func(c *Config) { c.Digest = DigestConfig{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestRead_SkipsValidation(t *testing.T) {
	path := writeConfig(t, "driver: postgres\n")

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Driver)

	cfg.DSN = "postgres://from-flag"
	assert.NoError(t, cfg.Validate())
}
