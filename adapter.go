package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/shakram02/go-mysql-dump-mcp/internal/script"
)

// DBAdapter defines the contract for database-specific behavior.
// Each supported database (MySQL, PostgreSQL, SQLite) implements this interface.
type DBAdapter interface {
	// DriverName returns the database/sql driver name (e.g., "mysql", "postgres", "sqlite").
	DriverName() string

	// ServerName returns the MCP server name for this adapter.
	ServerName() string

	// URIScheme returns the resource URI scheme (e.g., "mysql", "postgres", "sqlite").
	URIScheme() string

	// Dialect returns the lexical rules of the engine's SQL.
	Dialect() script.Dialect

	// BuildDSN constructs a DSN from environment variables. readOnly asks for a DSN that
	// refuses writes where the driver supports it.
	BuildDSN(readOnly bool) (string, error)

	// DatabaseName extracts the database/file name from a DSN string.
	DatabaseName(dsn string) string

	// EnforceReadOnly configures the database connection for read-only access.
	EnforceReadOnly(ctx context.Context, db *sql.DB) error

	// ListTablesQuery returns the SQL query and arguments to list all tables.
	ListTablesQuery(databaseName string) (string, []any)

	// ReadSchemaQuery returns the query and arguments reading the columns of a table. Its rows
	// are name, type, nullability ("YES"/"NO"), key and default, in that order.
	ReadSchemaQuery(databaseName, tableName string) (string, []any)

	// ValidateQuery validates that a SQL query is safe and read-only.
	ValidateQuery(sql string) error
}

// Dumper is implemented by adapters that can write a database out as a dump. Dumps are always
// written in the MySQL dialect.
type Dumper interface {
	// PrepareSession sets up the connection the dump is read on.
	PrepareSession(ctx context.Context, conn *sql.Conn) error

	// DumpTables lists the base tables of databaseName in dump order.
	DumpTables(ctx context.Context, conn *sql.Conn, databaseName string) ([]string, error)

	// CreateTableStatement returns the statement recreating a table.
	CreateTableStatement(ctx context.Context, conn *sql.Conn, databaseName, tableName string) (string, error)

	// SelectAllQuery returns the query reading every row of a table.
	SelectAllQuery(databaseName, tableName string) string
}

// Restorer is implemented by adapters that can execute scripts split with their Dialect.
type Restorer interface {
	// UseDatabaseStatement returns the statement selecting databaseName on a connection, or ""
	// when the engine binds the database through the DSN.
	UseDatabaseStatement(databaseName string) string
}

// scanColumn reads one row of a ReadSchemaQuery result.
func scanColumn(rows *sql.Rows) (map[string]any, error) {
	var name, dataType, nullable string
	var key, def sql.NullString

	if err := rows.Scan(&name, &dataType, &nullable, &key, &def); err != nil {
		return nil, err
	}

	col := map[string]any{
		"column_name": name,
		"data_type":   dataType,
		"is_nullable": nullable,
	}
	if key.Valid && key.String != "" {
		col["column_key"] = key.String
	}
	if def.Valid {
		col["column_default"] = def.String
	}

	return col, nil
}

// requireEnv reads every named variable and fails listing all of the empty ones.
func requireEnv(names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))

	var missing []string
	for _, name := range names {
		v := os.Getenv(name)
		if v == "" {
			missing = append(missing, name)
		}

		values[name] = v
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return values, nil
}
