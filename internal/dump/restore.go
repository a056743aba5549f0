package dump

import (
	"bufio"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/shakram02/go-mysql-dump-mcp/internal/script"
)

// Execer runs one statement. *sql.DB, *sql.Conn and *sql.Tx satisfy it; restoring through a
// *sql.DB gives no guarantee that session state carries over between statements.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StatementError reports the statement a restore stopped at.
type StatementError struct {
	// Index is the position of the failing statement, which is also the number of statements
	// that executed before it.
	Index     int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d failed: %v", e.Index+1, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Restore splits text into statements and executes them in order on ex. It stops at the first
// failing statement and returns the number of statements executed successfully.
func Restore(ctx context.Context, ex Execer, text string) (int, error) {
	return RestoreStatements(ctx, ex, script.Split(text))
}

// RestoreStatements executes already split statements the way Restore does.
func RestoreStatements(ctx context.Context, ex Execer, stmts []string) (int, error) {
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return i, &StatementError{Index: i, Statement: stmt, Err: err}
		}
	}

	return len(stmts), nil
}

// ReadScript reads a whole dump into memory. Gzip input is decompressed, a UTF-8 byte order mark
// is dropped and UTF-16 input with a byte order mark is converted to UTF-8. Any other bytes,
// including invalid UTF-8 inside binary string literals, are returned untouched.
func ReadScript(r io.Reader) (string, error) {
	br := bufio.NewReader(r)

	magic, _ := br.Peek(2)
	var src io.Reader = br
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return "", fmt.Errorf("failed to open gzip stream: %w", err)
		}

		defer gr.Close()
		src = gr
	}

	data, err := io.ReadAll(transform.NewReader(src, unicode.BOMOverride(transform.Nop)))
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}

	return string(data), nil
}
