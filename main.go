package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/shakram02/go-mysql-dump-mcp/internal/dump"
	"github.com/shakram02/go-mysql-dump-mcp/internal/script"
)

type cmdGlobal struct {
	flagConfig   string
	flagDriver   string
	flagDSN      string
	flagDatabase string
	flagLogLevel string

	cfg *Config
}

// Load the configuration and apply the global flags on top of it.
func (g *cmdGlobal) preRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(g.flagConfig)
	if err != nil {
		return err
	}

	if g.flagDriver != "" {
		cfg.Driver = g.flagDriver
	}

	if g.flagDSN != "" {
		cfg.DSN = g.flagDSN
	}

	if g.flagDatabase != "" {
		cfg.Database = g.flagDatabase
	}

	if g.flagLogLevel != "" {
		cfg.LogLevel = g.flagLogLevel
	}

	if err := setLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	g.cfg = cfg
	return nil
}

// open connects to the configured database.
func (g *cmdGlobal) open(ctx context.Context) (*sql.DB, DBAdapter, string, error) {
	if err := g.cfg.Validate(); err != nil {
		return nil, nil, "", err
	}

	adapter, err := adapterFor(g.cfg.Driver)
	if err != nil {
		return nil, nil, "", err
	}

	dsn, err := g.cfg.resolveDSN(adapter)
	if err != nil {
		return nil, nil, "", err
	}

	db, err := openDatabase(ctx, adapter, dsn)
	if err != nil {
		return nil, nil, "", err
	}

	database := g.cfg.Database
	if database == "" {
		database = adapter.DatabaseName(dsn)
	}

	return db, adapter, database, nil
}

func main() {
	// Create context that cancels on interrupt signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &cmdGlobal{}

	serve := newServeCmd(g)
	cmd := &cobra.Command{
		Use:               AppName,
		Short:             "SQL dump, restore and read-only query server for MCP clients",
		SilenceUsage:      true,
		PersistentPreRunE: g.preRun,
		RunE:              serve.RunE,
	}

	cmd.PersistentFlags().StringVar(&g.flagConfig, "config", "", "YAML configuration file (default $MCP_CONFIG)")
	cmd.PersistentFlags().StringVar(&g.flagDriver, "driver", "", "Database driver: mysql, postgres or sqlite")
	cmd.PersistentFlags().StringVar(&g.flagDSN, "dsn", "", "Data source name (default built from MCP_* variables)")
	cmd.PersistentFlags().StringVar(&g.flagDatabase, "database", "", "Database name (default taken from the DSN)")
	cmd.PersistentFlags().StringVar(&g.flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(serve)
	cmd.AddCommand(newSplitCmd(g))
	cmd.AddCommand(newExportCmd(g))
	cmd.AddCommand(newImportCmd(g))

	return cmd
}

func newServeCmd(g *cmdGlobal) *cobra.Command {
	var flagReadOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP requests over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f := cmd.Flags().Lookup("read-only"); f != nil && f.Changed {
				g.cfg.ReadOnly = flagReadOnly
			}

			db, adapter, database, err := g.open(cmd.Context())
			if err != nil {
				logError("Failed to open database: %v", err)
				return err
			}
			defer db.Close()

			if g.cfg.ReadOnly {
				if err := adapter.EnforceReadOnly(cmd.Context(), db); err != nil {
					log.Warnf("Could not set read-only mode: %v", err)
				}
			}

			server := NewMCPServer(cmd.Context(), db, adapter, g.cfg, database, os.Stdin, os.Stdout)
			defer server.Shutdown()

			log.WithField("read_only", g.cfg.ReadOnly).Infof("%s started", adapter.ServerName())

			if err := server.Run(); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info("Server shutdown gracefully")
					return nil
				}

				logError("Server error: %v", err)
				return err
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&flagReadOnly, "read-only", true, "Refuse imports and restrict queries to read-only statements")

	return cmd
}

func newSplitCmd(g *cmdGlobal) *cobra.Command {
	var flagJSON bool

	cmd := &cobra.Command{
		Use:   "split [file]",
		Short: "Print the statements of a SQL script as an import would execute them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open file: %w", err)
				}
				defer f.Close()
				in = f
			}

			adapter, err := adapterFor(g.cfg.Driver)
			if err != nil {
				return err
			}

			text, err := dump.ReadScript(in)
			if err != nil {
				return err
			}

			return printStatements(cmd.OutOrStdout(), script.SplitDialect(text, adapter.Dialect()), flagJSON)
		},
	}

	cmd.Flags().BoolVar(&flagJSON, "json", false, "Print a JSON array instead of a script")

	return cmd
}

func printStatements(w io.Writer, stmts []string, asJSON bool) error {
	if asJSON {
		if stmts == nil {
			stmts = []string{}
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stmts)
	}

	for i, stmt := range stmts {
		if _, err := fmt.Fprintf(w, "-- statement %d\n%s;\n\n", i+1, stmt); err != nil {
			return err
		}
	}

	return nil
}

func newExportCmd(g *cmdGlobal) *cobra.Command {
	var flagOut string
	var flagData bool
	var flagDrop bool
	var flagMode string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a SQL dump of a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("data") {
				g.cfg.Dump.WithData = flagData
			}

			if cmd.Flags().Changed("drop") {
				g.cfg.Dump.WithDrop = flagDrop
			}

			if flagMode != "" {
				g.cfg.Dump.Mode = flagMode
			}

			mode, err := dump.ParseInsertMode(g.cfg.Dump.Mode)
			if err != nil {
				return err
			}

			db, adapter, database, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := exportDatabase(cmd.Context(), db, adapter, exportOptions{
				Database: database,
				Path:     flagOut,
				WithData: g.cfg.Dump.WithData,
				WithDrop: g.cfg.Dump.WithDrop,
				Mode:     mode,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d tables (%d rows, %s) to %s\n",
				result.Tables, result.Rows, humanize.Bytes(uint64(result.Bytes)), flagOut)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagOut, "output", "o", "", "Output file (a .gz suffix compresses the dump)")
	cmd.Flags().BoolVar(&flagData, "data", true, "Include table rows")
	cmd.Flags().BoolVar(&flagDrop, "drop", false, "Emit DROP TABLE IF EXISTS before each table")
	cmd.Flags().StringVar(&flagMode, "mode", "", "Row statement: insert, insert-ignore or replace")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func newImportCmd(g *cmdGlobal) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Execute a SQL script statement by statement, stopping at the first failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, adapter, database, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := importFile(cmd.Context(), db, adapter, database, args[0])
			if err != nil {
				return fmt.Errorf("import stopped after %d statements: %w", n, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Executed %d statements\n", n)
			return nil
		},
	}

	return cmd
}
