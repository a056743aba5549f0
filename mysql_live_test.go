package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-mysql-dump-mcp/internal/dump"
)

// TestMySQLExport_TimestampsInUTC exports from sessions that start in a non-UTC zone. It needs a
// scratch database, for example MCP_TEST_MYSQL_DSN='root:secret@tcp(localhost:3306)/scratch'.
func TestMySQLExport_TimestampsInUTC(t *testing.T) {
	dsn := os.Getenv("MCP_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("MCP_TEST_MYSQL_DSN not set")
	}

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["time_zone"] = "'+05:00'"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("mysql", cfg.FormatDSN())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS tz_export")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "CREATE TABLE tz_export (ts TIMESTAMP NULL)")
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = db.Exec("DROP TABLE IF EXISTS tz_export") })

	// Stored as 07:00 UTC.
	_, err = db.ExecContext(ctx, "INSERT INTO tz_export VALUES ('2024-01-01 12:00:00')")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tz.sql")
	_, err = exportDatabase(ctx, db, &MySQLAdapter{}, exportOptions{
		Database: cfg.DBName,
		Path:     path,
		WithData: true,
		Mode:     dump.ModeInsert,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INSERT INTO `tz_export` VALUES \n('2024-01-01 07:00:00.000000');\n")
}
