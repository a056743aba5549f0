package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shakram02/go-mysql-dump-mcp/internal/dump"
)

// Server configuration defaults
const (
	DefaultQueryTimeout = 30 * time.Second
	DefaultMaxRows      = 10000
)

// Config is the runtime configuration. Values are layered: defaults, then the YAML file named by
// --config or MCP_CONFIG, then MCP_* environment variables, then command-line flags.
type Config struct {
	Driver       string        `yaml:"driver"`
	DSN          string        `yaml:"dsn"`
	Database     string        `yaml:"database"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxRows      int           `yaml:"max_rows"`
	ReadOnly     bool          `yaml:"read_only"`
	LogLevel     string        `yaml:"log_level"`
	Dump         DumpConfig    `yaml:"dump"`
}

// DumpConfig holds the export defaults.
type DumpConfig struct {
	Mode     string `yaml:"mode"`
	WithData bool   `yaml:"with_data"`
	WithDrop bool   `yaml:"with_drop"`
}

func defaultConfig() *Config {
	return &Config{
		Driver:       "mysql",
		QueryTimeout: DefaultQueryTimeout,
		MaxRows:      DefaultMaxRows,
		ReadOnly:     true,
		LogLevel:     "info",
		Dump: DumpConfig{
			Mode:     string(dump.ModeInsert),
			WithData: true,
		},
	}
}

// loadConfig builds the configuration from path (or MCP_CONFIG when path is empty) and the
// environment.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv("MCP_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("MCP_DRIVER"); ok && v != "" {
		c.Driver = v
	}

	if v, ok := lookup("MCP_DSN"); ok && v != "" {
		c.DSN = v
	}

	if v, ok := lookup("MCP_DATABASE"); ok && v != "" {
		c.Database = v
	}

	if v, ok := lookup("MCP_QUERY_TIMEOUT"); ok && v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("invalid MCP_QUERY_TIMEOUT: %w", err)
		}

		c.QueryTimeout = d
	}

	if v, ok := lookup("MCP_MAX_ROWS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MCP_MAX_ROWS: %w", err)
		}

		c.MaxRows = n
	}

	if v, ok := lookup("MCP_READ_ONLY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MCP_READ_ONLY: %w", err)
		}

		c.ReadOnly = b
	}

	if v, ok := lookup("MCP_DUMP_MODE"); ok && v != "" {
		c.Dump.Mode = v
	}

	if v, ok := lookup("MCP_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}

	return nil
}

// parseTimeout accepts a Go duration ("45s") or a plain number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}

	return time.ParseDuration(v)
}

// Validate checks the values that cannot be checked while parsing.
func (c *Config) Validate() error {
	if _, err := adapterFor(c.Driver); err != nil {
		return err
	}

	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}

	if c.MaxRows <= 0 {
		return fmt.Errorf("max rows must be positive")
	}

	if _, err := dump.ParseInsertMode(c.Dump.Mode); err != nil {
		return err
	}

	return nil
}

// adapterFor returns the adapter for a driver name.
func adapterFor(driver string) (DBAdapter, error) {
	switch strings.ToLower(driver) {
	case "mysql", "mariadb":
		return &MySQLAdapter{}, nil
	case "postgres", "postgresql", "pg":
		return &PostgresAdapter{}, nil
	case "sqlite", "sqlite3":
		return &SQLiteAdapter{}, nil
	}

	return nil, fmt.Errorf("unsupported driver %q (expected mysql, postgres or sqlite)", driver)
}

// resolveDSN returns the configured DSN or builds one from the adapter's environment variables.
func (c *Config) resolveDSN(adapter DBAdapter) (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}

	return adapter.BuildDSN(c.ReadOnly)
}
