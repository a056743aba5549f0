package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, "mysql", cfg.Driver)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 10000, cfg.MaxRows)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, "insert", cfg.Dump.Mode)
	assert.True(t, cfg.Dump.WithData)
	assert.False(t, cfg.Dump.WithDrop)
	require.NoError(t, cfg.Validate())
}

func TestConfigApplyEnv(t *testing.T) {
	cfg := defaultConfig()

	err := cfg.applyEnv(envLookup(map[string]string{
		"MCP_DRIVER":        "sqlite",
		"MCP_DSN":           "file:test.db",
		"MCP_DATABASE":      "shop",
		"MCP_QUERY_TIMEOUT": "45",
		"MCP_MAX_ROWS":      "12",
		"MCP_READ_ONLY":     "false",
		"MCP_DUMP_MODE":     "replace",
		"MCP_LOG_LEVEL":     "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "file:test.db", cfg.DSN)
	assert.Equal(t, "shop", cfg.Database)
	assert.Equal(t, 45*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 12, cfg.MaxRows)
	assert.False(t, cfg.ReadOnly)
	assert.Equal(t, "replace", cfg.Dump.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigApplyEnv_EmptyValuesIgnored(t *testing.T) {
	cfg := defaultConfig()

	require.NoError(t, cfg.applyEnv(envLookup(map[string]string{"MCP_DRIVER": "", "MCP_MAX_ROWS": ""})))
	assert.Equal(t, defaultConfig(), cfg)
}

func TestConfigApplyEnv_Errors(t *testing.T) {
	tests := map[string]string{
		"MCP_QUERY_TIMEOUT": "soon",
		"MCP_MAX_ROWS":      "many",
		"MCP_READ_ONLY":     "maybe",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			err := defaultConfig().applyEnv(envLookup(map[string]string{key: value}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestParseTimeout(t *testing.T) {
	d, err := parseTimeout("10")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)

	d, err = parseTimeout("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = parseTimeout("ten")
	assert.Error(t, err)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `driver: postgres
dsn: postgres://u:p@localhost:5432/app
query_timeout: 5s
max_rows: 50
read_only: false
dump:
  mode: insert-ignore
  with_drop: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/app", cfg.DSN)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 50, cfg.MaxRows)
	assert.False(t, cfg.ReadOnly)
	assert.Equal(t, "insert-ignore", cfg.Dump.Mode)
	assert.True(t, cfg.Dump.WithDrop)

	// Unset keys keep their defaults
	assert.True(t, cfg.Dump.WithData)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_rows: 50\n"), 0o600))

	t.Setenv("MCP_MAX_ROWS", "7")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxRows)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_rows: [1\n"), 0o600))

	_, err = loadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Driver = "oracle" }},
		{"zero timeout", func(c *Config) { c.QueryTimeout = 0 }},
		{"negative rows", func(c *Config) { c.MaxRows = -1 }},
		{"bad mode", func(c *Config) { c.Dump.Mode = "upsert" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAdapterFor(t *testing.T) {
	tests := map[string]string{
		"mysql":      "mysql",
		"MariaDB":    "mysql",
		"postgres":   "postgres",
		"postgresql": "postgres",
		"pg":         "postgres",
		"sqlite":     "sqlite",
		"sqlite3":    "sqlite",
	}

	for name, driver := range tests {
		t.Run(name, func(t *testing.T) {
			adapter, err := adapterFor(name)
			require.NoError(t, err)
			assert.Equal(t, driver, adapter.DriverName())
		})
	}

	_, err := adapterFor("mssql")
	assert.Error(t, err)
}

func TestResolveDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.DSN = "explicit.db"

	dsn, err := cfg.resolveDSN(&SQLiteAdapter{})
	require.NoError(t, err)
	assert.Equal(t, "explicit.db", dsn)

	t.Setenv("MCP_SQLITE_PATH", "/data/app.db")
	cfg.DSN = ""

	dsn, err = cfg.resolveDSN(&SQLiteAdapter{})
	require.NoError(t, err)
	assert.Equal(t, "/data/app.db?mode=ro", dsn)

	cfg.ReadOnly = false
	dsn, err = cfg.resolveDSN(&SQLiteAdapter{})
	require.NoError(t, err)
	assert.Equal(t, "/data/app.db", dsn)
}
