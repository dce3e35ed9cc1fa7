/*
config.go - Server and CLI configuration

PURPOSE:
  One Config struct shared by cmd/server and cmd/quotactl. Values are
  layered, later layers winning:
    1. Defaults()
    2. Optional YAML file (Load path)
    3. QUOTA_* environment variables
    4. Command-line flags (applied by the binaries)

YAML FORMAT:
  port: 8080
  driver: sqlite            # sqlite | postgres
  db: quota.db              # sqlite path, ":memory:" allowed
  dsn: postgres://...       # postgres only
  allowed_origins:
    - http://localhost:5173
  digest:
    enabled: true
    interval: 1h

ENVIRONMENT:
  QUOTA_PORT, QUOTA_DRIVER, QUOTA_DB, QUOTA_DSN,
  QUOTA_ALLOWED_ORIGINS (comma separated),
  QUOTA_DIGEST_INTERVAL (Go duration, "0" disables the digest)

SEE ALSO:
  - store/open.go: turns a Config into a store
  - cmd/server/main.go, cli/root.go: flag layer
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds everything the binaries need to start.
type Config struct {
	Port           int          `yaml:"port"`
	Driver         string       `yaml:"driver"`
	DB             string       `yaml:"db"`
	DSN            string       `yaml:"dsn"`
	AllowedOrigins []string     `yaml:"allowed_origins"`
	Digest         DigestConfig `yaml:"digest"`
}

// DigestConfig controls the periodic pacing digest.
type DigestConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:   8080,
		Driver: DriverSQLite,
		DB:     "quota.db",
		Digest: DigestConfig{
			Enabled:  true,
			Interval: time.Hour,
		},
	}
}

// Load reads the configuration with Read and validates it.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Read layers defaults, the YAML file at path (skipped when path is empty)
// and the environment without validating. Callers that apply flags on top
// validate afterwards.
func Read(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays QUOTA_* variables. lookup is os.LookupEnv outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("QUOTA_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: QUOTA_PORT %q: %v", ErrInvalidConfig, v, err)
		}
		c.Port = port
	}
	if v, ok := lookup("QUOTA_DRIVER"); ok {
		c.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup("QUOTA_DB"); ok {
		c.DB = v
	}
	if v, ok := lookup("QUOTA_DSN"); ok {
		c.DSN = v
	}
	if v, ok := lookup("QUOTA_ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("QUOTA_DIGEST_INTERVAL"); ok {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: QUOTA_DIGEST_INTERVAL %q: %v", ErrInvalidConfig, v, err)
		}
		c.Digest.Interval = interval
		c.Digest.Enabled = interval > 0
	}
	return nil
}

// Validate checks the fields the binaries depend on.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	switch c.Driver {
	case DriverSQLite:
		if c.DB == "" {
			return fmt.Errorf("%w: sqlite driver needs a db path", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.DSN == "" {
			return fmt.Errorf("%w: postgres driver needs a dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q (want sqlite or postgres)", ErrInvalidConfig, c.Driver)
	}
	if c.Digest.Enabled && c.Digest.Interval <= 0 {
		return fmt.Errorf("%w: digest interval must be positive", ErrInvalidConfig)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
