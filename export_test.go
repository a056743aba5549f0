package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/shakram02/go-mysql-dump-mcp/internal/dump"
	"github.com/shakram02/go-mysql-dump-mcp/internal/script"
)

// extraTableDumper lists tables that may not exist, to fail an export halfway.
type extraTableDumper struct {
	SQLiteAdapter
	tables []string
}

func (d *extraTableDumper) DumpTables(ctx context.Context, conn *sql.Conn, databaseName string) ([]string, error) {
	return d.tables, nil
}

// sessionDumper fails to prepare its session.
type sessionDumper struct {
	SQLiteAdapter
}

func (d *sessionDumper) PrepareSession(ctx context.Context, conn *sql.Conn) error {
	return errors.New("session refused")
}

func openTestDB(t *testing.T, statements ...string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	return db
}

func TestExportDatabase(t *testing.T) {
	db := openTestDB(t,
		"CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, price REAL, data BLOB)",
		"INSERT INTO items VALUES (1, 'apple', 1.5, x'00ff'), (2, NULL, NULL, NULL)",
		"CREATE TABLE empty_t (x INTEGER)",
	)

	path := filepath.Join(t.TempDir(), "out.sql")
	result, err := exportDatabase(context.Background(), db, &SQLiteAdapter{}, exportOptions{
		Database: "main",
		Path:     path,
		WithData: true,
		WithDrop: true,
		Mode:     dump.ModeInsert,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Tables)
	assert.Equal(t, 2, result.Rows)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), result.Bytes)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "-- "+AppName+" Dump\n-- Database: main\n"))
	assert.Contains(t, text, "DROP TABLE IF EXISTS `items`;\n")
	assert.Contains(t, text, "CREATE TABLE empty_t (x INTEGER);\n")
	assert.Contains(t, text, "INSERT INTO `items` VALUES \n(1, 'apple', 1.5, '\\0\xff'),\n(2, NULL, NULL, NULL);\n\n")
	assert.NotContains(t, text, "Dumping data for table `empty_t`")
	assert.True(t, strings.HasSuffix(text, "COMMIT;\n"+
		"/*!40101 SET CHARACTER_SET_CLIENT=@OLD_CHARACTER_SET_CLIENT */;\n"+
		"/*!40101 SET CHARACTER_SET_RESULTS=@OLD_CHARACTER_SET_RESULTS */;\n"+
		"/*!40101 SET COLLATION_CONNECTION=@OLD_COLLATION_CONNECTION */;\n"))

	// Tables come out in name order, structure before data.
	assert.Less(t, strings.Index(text, "CREATE TABLE empty_t"), strings.Index(text, "CREATE TABLE items"))
	assert.Less(t, strings.Index(text, "CREATE TABLE items"), strings.Index(text, "INSERT INTO `items`"))
}

func TestExportDatabase_StructureOnly(t *testing.T) {
	db := openTestDB(t,
		"CREATE TABLE items (id INTEGER)",
		"INSERT INTO items VALUES (1)",
	)

	path := filepath.Join(t.TempDir(), "out.sql")
	result, err := exportDatabase(context.Background(), db, &SQLiteAdapter{}, exportOptions{
		Database: "main",
		Path:     path,
		Mode:     dump.ModeReplace,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tables)
	assert.Equal(t, 0, result.Rows)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "REPLACE INTO")
	assert.NotContains(t, string(data), "DROP TABLE")
}

func TestExportDatabase_Gzip(t *testing.T) {
	db := openTestDB(t,
		"CREATE TABLE notes (id INTEGER, body TEXT)",
		"INSERT INTO notes VALUES (1, 'it''s')",
	)

	path := filepath.Join(t.TempDir(), "out.sql.gz")
	result, err := exportDatabase(context.Background(), db, &SQLiteAdapter{}, exportOptions{
		Database: "main",
		Path:     path,
		WithData: true,
		Mode:     dump.ModeInsertIgnore,
	})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	text, err := dump.ReadScript(f)
	require.NoError(t, err)

	assert.Equal(t, int64(len(text)), result.Bytes)
	assert.Contains(t, text, "INSERT IGNORE INTO `notes` VALUES \n(1, 'it\\'s');\n\n")
}

// A dump of plain values reads back into an empty database through the import path.
func TestExportThenImport(t *testing.T) {
	src := openTestDB(t,
		"CREATE TABLE notes (id INTEGER, body TEXT, score REAL)",
		"INSERT INTO notes VALUES (1, 'hello world', 0.25), (2, 'semi;colon -- not a comment', NULL)",
	)

	path := filepath.Join(t.TempDir(), "out.sql")
	_, err := exportDatabase(context.Background(), src, &SQLiteAdapter{}, exportOptions{
		Database: "main",
		Path:     path,
		WithData: true,
		Mode:     dump.ModeInsert,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// SQLite does not know the MySQL session statements, keep the table statements only.
	var kept []string
	for _, stmt := range script.Split(string(data)) {
		if strings.HasPrefix(stmt, "CREATE") || strings.HasPrefix(stmt, "INSERT") {
			kept = append(kept, stmt)
		}
	}
	require.Len(t, kept, 2)

	dst := openTestDB(t)
	n, err := importScript(context.Background(), dst, &SQLiteAdapter{}, "", strings.Join(kept, ";\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var body string
	var score sql.NullFloat64
	require.NoError(t, dst.QueryRow("SELECT body, score FROM notes WHERE id = 2").Scan(&body, &score))
	assert.Equal(t, "semi;colon -- not a comment", body)
	assert.False(t, score.Valid)

	require.NoError(t, dst.QueryRow("SELECT body, score FROM notes WHERE id = 1").Scan(&body, &score))
	assert.Equal(t, "hello world", body)
	assert.Equal(t, 0.25, score.Float64)
}

func TestExportDatabase_Errors(t *testing.T) {
	db := openTestDB(t, "CREATE TABLE items (id INTEGER)")
	dir := t.TempDir()

	_, err := exportDatabase(context.Background(), db, &PostgresAdapter{}, exportOptions{Database: "main", Path: filepath.Join(dir, "a.sql")})
	assert.ErrorContains(t, err, "not supported")

	_, err = exportDatabase(context.Background(), db, &sessionDumper{}, exportOptions{Database: "main", Path: filepath.Join(dir, "c.sql")})
	assert.ErrorContains(t, err, "session refused")
	_, statErr := os.Stat(filepath.Join(dir, "c.sql"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = exportDatabase(context.Background(), db, &SQLiteAdapter{}, exportOptions{Path: filepath.Join(dir, "b.sql")})
	assert.ErrorContains(t, err, "no database")

	_, err = exportDatabase(context.Background(), db, &SQLiteAdapter{}, exportOptions{Database: "main"})
	assert.ErrorContains(t, err, "no output path")
}

func TestExportDatabase_RemovesPartialFile(t *testing.T) {
	db := openTestDB(t, "CREATE TABLE items (id INTEGER)")
	path := filepath.Join(t.TempDir(), "out.sql")

	_, err := exportDatabase(context.Background(), db, &extraTableDumper{tables: []string{"items", "missing"}}, exportOptions{
		Database: "main",
		Path:     path,
		WithData: true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
