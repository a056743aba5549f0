package main

import (
	"bufio"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shakram02/go-mysql-dump-mcp/internal/dump"
)

// exportOptions selects what goes into a dump file.
type exportOptions struct {
	Database string
	Path     string
	WithData bool
	WithDrop bool
	Mode     dump.InsertMode
}

type exportResult struct {
	Tables int
	Rows   int
	Bytes  int64
}

// exportDatabase writes a dump of opts.Database to opts.Path. Paths ending in ".gz" are gzip
// compressed. A partially written file is removed when the export fails.
func exportDatabase(ctx context.Context, db *sql.DB, adapter DBAdapter, opts exportOptions) (*exportResult, error) {
	dumper, ok := adapter.(Dumper)
	if !ok {
		return nil, fmt.Errorf("export is not supported for %s databases", adapter.DriverName())
	}

	if opts.Database == "" {
		return nil, fmt.Errorf("no database selected")
	}

	if opts.Path == "" {
		return nil, fmt.Errorf("no output path given")
	}

	logger := log.WithFields(logrus.Fields{"job": uuid.NewString(), "database": opts.Database, "path": opts.Path})
	logger.Info("Export started")

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if err := dumper.PrepareSession(ctx, conn); err != nil {
		return nil, err
	}

	file, err := os.Create(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create dump file: %w", err)
	}

	result, err := writeDump(ctx, conn, dumper, file, opts)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close dump file: %w", cerr)
	}

	if err != nil {
		_ = os.Remove(opts.Path)
		logger.WithError(err).Error("Export failed")
		return nil, err
	}

	logger.WithFields(logrus.Fields{"tables": result.Tables, "rows": result.Rows, "bytes": result.Bytes}).Info("Export finished")
	return result, nil
}

func writeDump(ctx context.Context, conn *sql.Conn, dumper Dumper, file io.Writer, opts exportOptions) (*exportResult, error) {
	var zw *gzip.Writer
	if strings.HasSuffix(opts.Path, ".gz") {
		zw = gzip.NewWriter(file)
		file = zw
	}

	bw := bufio.NewWriter(file)
	w := dump.NewWriter(bw, dump.Options{
		Application: AppName,
		Database:    opts.Database,
		ID:          uuid.NewString(),
		Date:        time.Now(),
		WithDrop:    opts.WithDrop,
		Mode:        opts.Mode,
	})

	result := &exportResult{}
	if err := w.Header(); err != nil {
		return nil, err
	}

	tables, err := dumper.DumpTables(ctx, conn, opts.Database)
	if err != nil {
		return nil, err
	}

	for _, table := range tables {
		createSQL, err := dumper.CreateTableStatement(ctx, conn, opts.Database, table)
		if err != nil {
			return nil, err
		}

		if err := w.Structure(table, createSQL); err != nil {
			return nil, err
		}

		if opts.WithData {
			n, err := dumpRows(ctx, conn, w, dumper.SelectAllQuery(opts.Database, table), table)
			if err != nil {
				return nil, err
			}

			result.Rows += n
		}

		result.Tables++
	}

	if err := w.Footer(); err != nil {
		return nil, err
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write dump: %w", err)
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("failed to write dump: %w", err)
		}
	}

	result.Bytes = w.Written()
	return result, nil
}

// dumpRows streams every row of query into one INSERT statement for table.
func dumpRows(ctx context.Context, conn *sql.Conn, w *dump.Writer, query string, table string) (int, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to read rows of %s: %w", table, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return 0, fmt.Errorf("failed to get columns of %s: %w", table, err)
	}

	in := w.Insert(table, nil)
	raw, ptrs := scanTargets(len(types))

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return 0, fmt.Errorf("failed to scan row %d of %s: %w", in.Rows()+1, table, err)
		}

		values, err := rowValues(types, raw)
		if err != nil {
			return 0, fmt.Errorf("row %d of %s: %w", in.Rows()+1, table, err)
		}

		if err := in.Row(values); err != nil {
			return 0, err
		}
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("row iteration error in %s: %w", table, err)
	}

	if err := in.Close(); err != nil {
		return 0, err
	}

	return in.Rows(), nil
}

// scanTargets returns n scan destinations and the pointers rows.Scan fills them through.
func scanTargets(n int) ([]any, []any) {
	raw := make([]any, n)
	ptrs := make([]any, n)
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	return raw, ptrs
}

// rowValues converts one scanned row into dump values.
func rowValues(types []*sql.ColumnType, raw []any) ([]dump.Value, error) {
	values := make([]dump.Value, len(raw))
	for i, ct := range types {
		v, err := dump.FromDriver(ct.DatabaseTypeName(), raw[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", ct.Name(), err)
		}

		values[i] = v
	}

	return values, nil
}
