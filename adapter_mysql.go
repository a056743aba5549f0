package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"

	"github.com/shakram02/go-mysql-dump-mcp/internal/dump"
	"github.com/shakram02/go-mysql-dump-mcp/internal/script"
)

// MySQLAdapter implements DBAdapter, Dumper and Restorer for MySQL databases.
type MySQLAdapter struct{}

var mysqlPolicy = newQueryPolicy(script.MySQL,
	[]string{"CALL", "EXEC", "EXECUTE", "REPLACE", "LOAD", "HANDLER", "RENAME"},
	[]denyRule{
		deny(`\bINTO\s+OUTFILE\b`, "clause: INTO OUTFILE"),
		deny(`\bINTO\s+DUMPFILE\b`, "clause: INTO DUMPFILE"),
		deny(`\bINTO\s+@`, "clause: INTO @variable"),
	},
	calls("LOAD_FILE", "SLEEP", "BENCHMARK", "GET_LOCK", "RELEASE_LOCK", "IS_FREE_LOCK", "IS_USED_LOCK",
		"WAIT_FOR_EXECUTED_GTID_SET", "WAIT_UNTIL_SQL_THREAD_AFTER_GTIDS", "MASTER_POS_WAIT", "SOURCE_POS_WAIT"),
)

func (a *MySQLAdapter) DriverName() string      { return "mysql" }
func (a *MySQLAdapter) ServerName() string      { return "mysql-dump-mcp-server" }
func (a *MySQLAdapter) URIScheme() string       { return "mysql" }
func (a *MySQLAdapter) Dialect() script.Dialect { return script.MySQL }

func (a *MySQLAdapter) BuildDSN(readOnly bool) (string, error) {
	env, err := requireEnv("MCP_MYSQL_HOST", "MCP_MYSQL_PORT", "MCP_MYSQL_DB", "MCP_MYSQL_USER", "MCP_MYSQL_PASSWORD")
	if err != nil {
		return "", err
	}

	cfg := mysql.NewConfig()
	cfg.User = env["MCP_MYSQL_USER"]
	cfg.Passwd = env["MCP_MYSQL_PASSWORD"]
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(env["MCP_MYSQL_HOST"], env["MCP_MYSQL_PORT"])
	cfg.DBName = env["MCP_MYSQL_DB"]

	return cfg.FormatDSN(), nil
}

func (a *MySQLAdapter) DatabaseName(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return ""
	}

	return cfg.DBName
}

func (a *MySQLAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "SET SESSION TRANSACTION READ ONLY")
	return err
}

func (a *MySQLAdapter) ListTablesQuery(databaseName string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = ?`,
		[]any{databaseName}
}

func (a *MySQLAdapter) ReadSchemaQuery(databaseName, tableName string) (string, []any) {
	return `SELECT column_name, column_type, is_nullable, column_key, column_default
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, []any{databaseName, tableName}
}

func (a *MySQLAdapter) ValidateQuery(sqlQuery string) error {
	return mysqlPolicy.validate(sqlQuery)
}

func (a *MySQLAdapter) UseDatabaseStatement(databaseName string) string {
	return "USE " + dump.QuoteIdentifier(databaseName)
}

// PrepareSession pins the session time zone to UTC so TIMESTAMP columns are dumped the same
// whatever the server's zone is. The dump header sets the same zone for the restore.
func (a *MySQLAdapter) PrepareSession(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, "SET time_zone = '+00:00'"); err != nil {
		return fmt.Errorf("failed to set session time zone: %w", err)
	}

	return nil
}

func (a *MySQLAdapter) DumpTables(ctx context.Context, conn *sql.Conn, databaseName string) ([]string, error) {
	rows, err := conn.QueryContext(ctx,
		"SHOW FULL TABLES FROM "+dump.QuoteIdentifier(databaseName)+" WHERE Table_type = 'BASE TABLE'")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name, tableType string
		if err := rows.Scan(&name, &tableType); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}

func (a *MySQLAdapter) CreateTableStatement(ctx context.Context, conn *sql.Conn, databaseName, tableName string) (string, error) {
	var name, createSQL string
	query := "SHOW CREATE TABLE " + a.qualified(databaseName, tableName)
	if err := conn.QueryRowContext(ctx, query).Scan(&name, &createSQL); err != nil {
		return "", fmt.Errorf("failed to read structure of %s: %w", tableName, err)
	}

	return createSQL, nil
}

func (a *MySQLAdapter) SelectAllQuery(databaseName, tableName string) string {
	return "SELECT * FROM " + a.qualified(databaseName, tableName)
}

func (a *MySQLAdapter) qualified(databaseName, tableName string) string {
	return dump.QuoteIdentifier(databaseName) + "." + dump.QuoteIdentifier(tableName)
}
