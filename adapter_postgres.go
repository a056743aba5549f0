package main

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/shakram02/go-mysql-dump-mcp/internal/script"
)

// PostgresAdapter implements DBAdapter for PostgreSQL databases. It only serves queries:
// dumps are written in the MySQL dialect and PostgreSQL scripts are not imported.
type PostgresAdapter struct{}

var postgresPolicy = newQueryPolicy(script.PostgreSQL,
	[]string{"CALL", "EXECUTE", "COPY", "LISTEN", "NOTIFY", "PREPARE", "DEALLOCATE", "VACUUM", "REINDEX", "CLUSTER"},
	[]denyRule{
		deny(`\bCOPY\s+.*\bTO\b`, "clause: COPY ... TO"),
		deny(`\bCOPY\s+.*\bFROM\b`, "clause: COPY ... FROM"),
	},
	calls("pg_read_file", "pg_read_binary_file", "pg_ls_dir", "lo_import", "lo_export",
		"pg_sleep", "pg_sleep_for", "pg_sleep_until", "pg_advisory_lock", "pg_advisory_xact_lock", "pg_try_advisory_lock"),
)

func (a *PostgresAdapter) DriverName() string      { return "postgres" }
func (a *PostgresAdapter) ServerName() string      { return "postgres-dump-mcp-server" }
func (a *PostgresAdapter) URIScheme() string       { return "postgres" }
func (a *PostgresAdapter) Dialect() script.Dialect { return script.PostgreSQL }

func (a *PostgresAdapter) BuildDSN(readOnly bool) (string, error) {
	env, err := requireEnv("MCP_PG_HOST", "MCP_PG_PORT", "MCP_PG_DB", "MCP_PG_USER", "MCP_PG_PASSWORD")
	if err != nil {
		return "", err
	}

	sslmode := "prefer"
	if v := strings.TrimSpace(os.Getenv("MCP_PG_SSLMODE")); v != "" {
		sslmode = v
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(env["MCP_PG_USER"], env["MCP_PG_PASSWORD"]),
		Host:     net.JoinHostPort(env["MCP_PG_HOST"], env["MCP_PG_PORT"]),
		Path:     "/" + env["MCP_PG_DB"],
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}

	return u.String(), nil
}

func (a *PostgresAdapter) DatabaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(u.Path, "/")
}

func (a *PostgresAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY")
	return err
}

func (a *PostgresAdapter) ListTablesQuery(databaseName string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_catalog = $1`,
		[]any{databaseName}
}

func (a *PostgresAdapter) ReadSchemaQuery(databaseName, tableName string) (string, []any) {
	return `SELECT column_name, data_type, is_nullable, NULL, column_default
		FROM information_schema.columns
		WHERE table_catalog = $1 AND table_schema = 'public' AND table_name = $2
		ORDER BY ordinal_position`, []any{databaseName, tableName}
}

func (a *PostgresAdapter) ValidateQuery(sqlQuery string) error {
	return postgresPolicy.validate(sqlQuery)
}
