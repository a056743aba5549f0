package main

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-mysql-dump-mcp/internal/dump"
)

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	return out.String(), err
}

func TestSplitCommand(t *testing.T) {
	out, err := runCommand(t, "SELECT 1; # x\nSELECT 2", "split")
	require.NoError(t, err)
	assert.Equal(t, "-- statement 1\nSELECT 1;\n\n-- statement 2\nSELECT 2;\n\n", out)
}

func TestSplitCommand_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.sql")
	require.NoError(t, os.WriteFile(path, []byte("INSERT INTO t VALUES ('a;b');\n"), 0o600))

	out, err := runCommand(t, "", "split", "--json", path)
	require.NoError(t, err)
	assert.JSONEq(t, `["INSERT INTO t VALUES ('a;b')"]`, out)

	out, err = runCommand(t, "  ;; ", "split", "--json", "-")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestSplitCommand_DriverDialect(t *testing.T) {
	input := `INSERT INTO t VALUES ('C:\'); SELECT 2`

	out, err := runCommand(t, input, "split", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `["INSERT INTO t VALUES ('C:\\'); SELECT 2"]`, out)

	out, err = runCommand(t, input, "--driver", "sqlite", "split", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `["INSERT INTO t VALUES ('C:\\')", "SELECT 2"]`, out)
}

func TestSplitCommand_MissingFile(t *testing.T) {
	_, err := runCommand(t, "", "split", filepath.Join(t.TempDir(), "missing.sql"))
	assert.ErrorContains(t, err, "failed to open file")
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")
	script := filepath.Join(dir, "seed.sql")
	require.NoError(t, os.WriteFile(script, []byte("CREATE TABLE t (a INTEGER);\nINSERT INTO t VALUES (1), (2);\n"), 0o600))

	out, err := runCommand(t, "", "--driver", "sqlite", "--dsn", dbPath, "import", script)
	require.NoError(t, err)
	assert.Equal(t, "Executed 2 statements\n", out)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM t").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestImportCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "seed.sql")
	require.NoError(t, os.WriteFile(script, []byte("CREATE TABLE t (a INTEGER);\nINSERT INTO nope VALUES (1);\n"), 0o600))

	_, err := runCommand(t, "", "--driver", "sqlite", "--dsn", filepath.Join(dir, "app.db"), "import", script)
	assert.ErrorContains(t, err, "import stopped after 1 statements")
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (a INTEGER, b TEXT); INSERT INTO t VALUES (1, 'x'), (2, 'y');")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	outPath := filepath.Join(dir, "out.sql.gz")
	out, err := runCommand(t, "", "--driver", "sqlite", "--dsn", dbPath, "export", "-o", outPath, "--drop", "--mode", "insert-ignore")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Exported 1 tables (2 rows, "), out)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	text, err := dump.ReadScript(f)
	require.NoError(t, err)
	assert.Contains(t, text, "DROP TABLE IF EXISTS `t`;\n")
	assert.Contains(t, text, "INSERT IGNORE INTO `t` VALUES \n(1, 'x'),\n(2, 'y');\n")
}

func TestExportCommand_BadMode(t *testing.T) {
	dir := t.TempDir()

	_, err := runCommand(t, "", "--driver", "sqlite", "--dsn", filepath.Join(dir, "app.db"), "export", "-o", filepath.Join(dir, "out.sql"), "--mode", "upsert")
	assert.ErrorContains(t, err, "unknown insert mode")
}

func TestRootCommand_BadDriver(t *testing.T) {
	_, err := runCommand(t, "", "--driver", "oracle", "import", "x.sql")
	assert.ErrorContains(t, err, "unsupported driver")
}

func TestRootCommand_BadLogLevel(t *testing.T) {
	_, err := runCommand(t, "", "--log-level", "loud", "split")
	assert.Error(t, err)
}
