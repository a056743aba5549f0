package dump

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// InsertMode selects the statement used for data sections.
type InsertMode string

// Supported insert modes.
const (
	ModeInsert       InsertMode = "insert"
	ModeInsertIgnore InsertMode = "insert-ignore"
	ModeReplace      InsertMode = "replace"
)

// ParseInsertMode validates a mode name. The empty string selects ModeInsert.
func ParseInsertMode(s string) (InsertMode, error) {
	switch InsertMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeInsert:
		return ModeInsert, nil
	case ModeInsertIgnore:
		return ModeInsertIgnore, nil
	case ModeReplace:
		return ModeReplace, nil
	}

	return "", fmt.Errorf("unknown insert mode %q (expected insert, insert-ignore or replace)", s)
}

func (m InsertMode) verb() string {
	switch m {
	case ModeInsertIgnore:
		return "INSERT IGNORE INTO"
	case ModeReplace:
		return "REPLACE INTO"
	}

	return "INSERT INTO"
}

// Options controls the layout of a dump.
type Options struct {
	Application string
	Database    string
	ID          string
	Date        time.Time
	WithDrop    bool
	Mode        InsertMode
}

// Writer emits a dump script. The first write error is kept and returned by every later call.
type Writer struct {
	w       io.Writer
	opts    Options
	written int64
	err     error
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer, opts Options) *Writer {
	if opts.Application == "" {
		opts.Application = "SQL"
	}

	if opts.Mode == "" {
		opts.Mode = ModeInsert
	}

	return &Writer{w: w, opts: opts}
}

// Written returns the number of bytes written so far.
func (w *Writer) Written() int64 {
	return w.written
}

func (w *Writer) write(s string) error {
	if w.err != nil {
		return w.err
	}

	n, err := io.WriteString(w.w, s)
	w.written += int64(n)
	if err != nil {
		w.err = fmt.Errorf("failed to write dump: %w", err)
	}

	return w.err
}

// Header writes the leading comment block and the session statements.
func (w *Writer) Header() error {
	var b strings.Builder

	fmt.Fprintf(&b, "-- %s Dump\n", w.opts.Application)
	fmt.Fprintf(&b, "-- Database: %s\n", w.opts.Database)
	if !w.opts.Date.IsZero() {
		fmt.Fprintf(&b, "-- Date: %s\n", w.opts.Date.Format(time.RFC1123Z))
	}

	if w.opts.ID != "" {
		fmt.Fprintf(&b, "-- Dump ID: %s\n", w.opts.ID)
	}

	b.WriteString("\n")
	b.WriteString("SET SQL_MODE = \"NO_AUTO_VALUE_ON_ZERO\";\n")
	b.WriteString("START TRANSACTION;\n")
	b.WriteString("SET time_zone = \"+00:00\";\n\n")
	b.WriteString("/*!40101 SET @OLD_CHARACTER_SET_CLIENT=@@CHARACTER_SET_CLIENT */;\n")
	b.WriteString("/*!40101 SET @OLD_CHARACTER_SET_RESULTS=@@CHARACTER_SET_RESULTS */;\n")
	b.WriteString("/*!40101 SET @OLD_COLLATION_CONNECTION=@@COLLATION_CONNECTION */;\n")
	b.WriteString("/*!40101 SET NAMES utf8mb4 */;\n\n")

	return w.write(b.String())
}

// Structure writes the structure section of a table.
func (w *Writer) Structure(table string, createSQL string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "--\n-- Structure for table %s\n--\n\n", QuoteIdentifier(table))
	if w.opts.WithDrop {
		fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n", QuoteIdentifier(table))
	}

	fmt.Fprintf(&b, "%s;\n\n", strings.TrimRight(strings.TrimSpace(createSQL), ";"))

	return w.write(b.String())
}

// Insert starts the data section of a table. When columns is non-empty the statement names them.
// Nothing is written until the first row.
func (w *Writer) Insert(table string, columns []string) *Insert {
	return &Insert{w: w, table: table, columns: columns}
}

// Footer writes the closing COMMIT and the session restore statements.
func (w *Writer) Footer() error {
	var b strings.Builder

	b.WriteString("COMMIT;\n")
	b.WriteString("/*!40101 SET CHARACTER_SET_CLIENT=@OLD_CHARACTER_SET_CLIENT */;\n")
	b.WriteString("/*!40101 SET CHARACTER_SET_RESULTS=@OLD_CHARACTER_SET_RESULTS */;\n")
	b.WriteString("/*!40101 SET COLLATION_CONNECTION=@OLD_COLLATION_CONNECTION */;\n")

	return w.write(b.String())
}

// Insert is one multi-row INSERT statement. Rows are separated by ",\n" and the last row is
// terminated by ";\n\n" once Close is called.
type Insert struct {
	w       *Writer
	table   string
	columns []string
	rows    int
}

// Row encodes and writes one row.
func (in *Insert) Row(values []Value) error {
	var b strings.Builder

	if in.rows == 0 {
		fmt.Fprintf(&b, "--\n-- Dumping data for table %s\n--\n\n", QuoteIdentifier(in.table))
		fmt.Fprintf(&b, "%s %s", in.w.opts.Mode.verb(), QuoteIdentifier(in.table))
		if len(in.columns) > 0 {
			quoted := make([]string, len(in.columns))
			for i, col := range in.columns {
				quoted[i] = QuoteIdentifier(col)
			}

			fmt.Fprintf(&b, " (%s)", strings.Join(quoted, ", "))
		}

		b.WriteString(" VALUES \n")
	} else {
		b.WriteString(",\n")
	}

	b.WriteString(EncodeRow(values))
	in.rows++

	return in.w.write(b.String())
}

// Rows returns the number of rows written.
func (in *Insert) Rows() int {
	return in.rows
}

// Close terminates the statement. It writes nothing when no row was written.
func (in *Insert) Close() error {
	if in.rows == 0 {
		return in.w.err
	}

	return in.w.write(";\n\n")
}

// QuoteIdentifier wraps name in backticks, doubling embedded backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
