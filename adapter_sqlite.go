package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shakram02/go-mysql-dump-mcp/internal/script"
)

// SQLiteAdapter implements DBAdapter, Dumper and Restorer for SQLite databases. A file holds
// one database, so database names only label dumps and resources.
type SQLiteAdapter struct{}

var sqlitePolicy = newQueryPolicy(script.SQLite,
	[]string{"REPLACE", "ATTACH", "DETACH", "REINDEX", "VACUUM"},
	[]denyRule{deny(`\bPRAGMA\s+[\w.]+\s*=`, "statement: PRAGMA write")},
	calls("load_extension", "writefile", "edit", "fts3_tokenizer"),
)

func (a *SQLiteAdapter) DriverName() string      { return "sqlite" }
func (a *SQLiteAdapter) ServerName() string      { return "sqlite-dump-mcp-server" }
func (a *SQLiteAdapter) URIScheme() string       { return "sqlite" }
func (a *SQLiteAdapter) Dialect() script.Dialect { return script.SQLite }

func (a *SQLiteAdapter) BuildDSN(readOnly bool) (string, error) {
	path := os.Getenv("MCP_SQLITE_PATH")
	if path == "" {
		return "", fmt.Errorf("missing required environment variable: MCP_SQLITE_PATH")
	}

	if !readOnly || strings.Contains(path, "mode=") {
		return path, nil
	}

	if strings.Contains(path, "?") {
		return path + "&mode=ro", nil
	}

	return path + "?mode=ro", nil
}

func (a *SQLiteAdapter) DatabaseName(dsn string) string {
	path, _, _ := strings.Cut(dsn, "?")
	name := filepath.Base(strings.TrimPrefix(path, "file:"))
	for _, ext := range []string{".db", ".sqlite3", ".sqlite"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}

	return name
}

// EnforceReadOnly backs up the mode=ro DSN parameter with query_only.
func (a *SQLiteAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "PRAGMA query_only = ON")
	return err
}

func (a *SQLiteAdapter) ListTablesQuery(databaseName string) (string, []any) {
	return sqliteTablesQuery, nil
}

func (a *SQLiteAdapter) ReadSchemaQuery(databaseName, tableName string) (string, []any) {
	return `SELECT name, type,
		CASE "notnull" WHEN 0 THEN 'YES' ELSE 'NO' END,
		CASE WHEN pk > 0 THEN 'PRI' END,
		dflt_value
		FROM pragma_table_info(?)
		ORDER BY cid`, []any{tableName}
}

func (a *SQLiteAdapter) ValidateQuery(sqlQuery string) error {
	return sqlitePolicy.validate(sqlQuery)
}

func (a *SQLiteAdapter) UseDatabaseStatement(databaseName string) string {
	return ""
}

const sqliteTablesQuery = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`

func (a *SQLiteAdapter) PrepareSession(ctx context.Context, conn *sql.Conn) error {
	return nil
}

func (a *SQLiteAdapter) DumpTables(ctx context.Context, conn *sql.Conn, databaseName string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, sqliteTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}

func (a *SQLiteAdapter) CreateTableStatement(ctx context.Context, conn *sql.Conn, databaseName, tableName string) (string, error) {
	var createSQL string
	err := conn.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, tableName).Scan(&createSQL)
	if err != nil {
		return "", fmt.Errorf("failed to read structure of %s: %w", tableName, err)
	}

	return createSQL, nil
}

func (a *SQLiteAdapter) SelectAllQuery(databaseName, tableName string) string {
	return "SELECT * FROM " + sqliteQuote(tableName)
}

// sqliteQuote quotes an identifier the standard way SQLite reads it.
func sqliteQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
