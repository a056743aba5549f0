package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shakram02/go-mysql-dump-mcp/internal/dump"
	"github.com/shakram02/go-mysql-dump-mcp/internal/script"
)

// importScript executes every statement of text, in order, on a single connection so that
// session statements of a dump (SET, START TRANSACTION) apply to the statements after them.
// Statements are split with the adapter's lexical rules. It returns the number of statements
// executed.
func importScript(ctx context.Context, db *sql.DB, adapter DBAdapter, database string, text string) (int, error) {
	restorer, ok := adapter.(Restorer)
	if !ok {
		return 0, fmt.Errorf("import is not supported for %s databases", adapter.DriverName())
	}

	logger := log.WithFields(logrus.Fields{"job": uuid.NewString(), "database": database})
	logger.Info("Import started")

	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if database != "" {
		if use := restorer.UseDatabaseStatement(database); use != "" {
			if _, err := conn.ExecContext(ctx, use); err != nil {
				return 0, fmt.Errorf("failed to select database %s: %w", database, err)
			}
		}
	}

	n, err := dump.RestoreStatements(ctx, conn, script.SplitDialect(text, adapter.Dialect()))
	if err != nil {
		var stmtErr *dump.StatementError
		if errors.As(err, &stmtErr) {
			logger.WithFields(logrus.Fields{"executed": n, "statement": truncate(stmtErr.Statement, 200)}).WithError(stmtErr.Err).Error("Import stopped")
		} else {
			logger.WithError(err).Error("Import stopped")
		}

		return n, err
	}

	logger.WithField("executed", n).Info("Import finished")
	return n, nil
}

// importFile reads a dump file (optionally gzip compressed) and imports it.
func importFile(ctx context.Context, db *sql.DB, adapter DBAdapter, database string, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	text, err := dump.ReadScript(f)
	if err != nil {
		return 0, err
	}

	return importScript(ctx, db, adapter, database, text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
