package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/shakram02/go-mysql-dump-mcp/internal/dump"
	"github.com/shakram02/go-mysql-dump-mcp/internal/script"
)

func (s *MCPServer) handleInitialize(params json.RawMessage) (any, *Error) {
	var initParams InitializeParams
	if params != nil {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, invalidParams("Invalid initialize parameters", err)
		}
	}

	log.WithField("client", initParams.ClientInfo.Name).Debug("Client initialized")

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     &struct{}{},
			Resources: &struct{}{},
		},
		ServerInfo: Peer{
			Name:    s.adapter.ServerName(),
			Version: ServerVersion,
		},
	}, nil
}

// toolHandler binds a tool to its implementation. unavailable returns why the tool cannot be
// used with the current adapter and configuration; such tools are left out of tools/list.
type toolHandler struct {
	tool        Tool
	unavailable func(s *MCPServer) error
	call        func(s *MCPServer, args json.RawMessage) (*CallToolResult, *Error)
}

var errReadOnly = errors.New("server is running in read-only mode")

var toolHandlers = []toolHandler{
	{
		tool: Tool{
			Name:        "query",
			Description: "Execute a read-only SQL query (SELECT, SHOW, DESCRIBE, EXPLAIN only)",
			InputSchema: objectSchema(map[string]Property{
				"sql": {Type: "string", Description: "The SQL query to execute (SELECT, SHOW, DESCRIBE, or EXPLAIN)"},
			}, "sql"),
		},
		call: withArgs((*MCPServer).executeQuery),
	},
	{
		tool: Tool{
			Name:        "split_sql",
			Description: "Split a SQL script into the statements an import would execute",
			InputSchema: objectSchema(map[string]Property{
				"sql": {Type: "string", Description: "The SQL script"},
			}, "sql"),
		},
		call: withArgs((*MCPServer).splitSQL),
	},
	{
		tool: Tool{
			Name:        "export_database",
			Description: "Write a SQL dump (structure and optionally data) of a database to a file",
			InputSchema: objectSchema(map[string]Property{
				"path":      {Type: "string", Description: "Output file; a .gz suffix compresses the dump"},
				"database":  {Type: "string", Description: "Database to dump (defaults to the connected database)"},
				"with_data": {Type: "boolean", Description: "Include table rows"},
				"with_drop": {Type: "boolean", Description: "Emit DROP TABLE IF EXISTS before each table"},
				"mode": {
					Type:        "string",
					Description: "Statement used for rows",
					Enum:        []string{string(dump.ModeInsert), string(dump.ModeInsertIgnore), string(dump.ModeReplace)},
				},
			}, "path"),
		},
		unavailable: func(s *MCPServer) error {
			if _, ok := s.adapter.(Dumper); !ok {
				return fmt.Errorf("export is not supported for %s databases", s.adapter.DriverName())
			}
			return nil
		},
		call: withArgs((*MCPServer).exportDatabase),
	},
	{
		tool: Tool{
			Name:        "import_sql",
			Description: "Execute a SQL script statement by statement, stopping at the first failure",
			InputSchema: objectSchema(map[string]Property{
				"sql":      {Type: "string", Description: "The SQL script"},
				"database": {Type: "string", Description: "Database to select before executing"},
			}, "sql"),
		},
		unavailable: importUnavailable,
		call:        withArgs((*MCPServer).importSQL),
	},
	{
		tool: Tool{
			Name:        "import_file",
			Description: "Execute a SQL dump file (optionally gzip compressed), stopping at the first failure",
			InputSchema: objectSchema(map[string]Property{
				"path":     {Type: "string", Description: "The dump file"},
				"database": {Type: "string", Description: "Database to select before executing"},
			}, "path"),
		},
		unavailable: importUnavailable,
		call:        withArgs((*MCPServer).importFile),
	},
}

func importUnavailable(s *MCPServer) error {
	if s.cfg.ReadOnly {
		return errReadOnly
	}

	if _, ok := s.adapter.(Restorer); !ok {
		return fmt.Errorf("import is not supported for %s databases", s.adapter.DriverName())
	}

	return nil
}

// withArgs decodes the tool arguments into a T before calling fn.
func withArgs[T any](fn func(s *MCPServer, args *T) (*CallToolResult, *Error)) func(*MCPServer, json.RawMessage) (*CallToolResult, *Error) {
	return func(s *MCPServer, raw json.RawMessage) (*CallToolResult, *Error) {
		args := new(T)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, args); err != nil {
				return nil, invalidParams("Invalid tool arguments", err)
			}
		}

		return fn(s, args)
	}
}

func requireArg(name, value string) *Error {
	if value == "" {
		return invalidParams(fmt.Sprintf("Missing or invalid '%s' parameter", name), nil)
	}

	return nil
}

func (s *MCPServer) handleListTools(json.RawMessage) (any, *Error) {
	tools := []Tool{}
	for _, h := range toolHandlers {
		if h.unavailable == nil || h.unavailable(s) == nil {
			tools = append(tools, h.tool)
		}
	}

	return &ListToolsResult{Tools: tools}, nil
}

func (s *MCPServer) handleCallTool(params json.RawMessage) (any, *Error) {
	var callParams CallToolParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, invalidParams("Invalid parameters", err)
	}

	for _, h := range toolHandlers {
		if h.tool.Name != callParams.Name {
			continue
		}

		if h.unavailable != nil {
			if err := h.unavailable(s); err != nil {
				return toolError("Tool %s rejected: %v", h.tool.Name, err), nil
			}
		}

		return h.call(s, callParams.Arguments)
	}

	return nil, &Error{
		Code:    MethodNotFound,
		Message: fmt.Sprintf("Unknown tool: %s", callParams.Name),
	}
}

func toolError(format string, args ...any) *CallToolResult {
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolText(text string) *CallToolResult {
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: text}},
	}
}

// toolJSON returns v as indented JSON text.
func toolJSON(v any) *CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err)
	}

	return toolText(string(data))
}

func (s *MCPServer) executeQuery(args *sqlArgs) (*CallToolResult, *Error) {
	if rpcErr := requireArg("sql", args.SQL); rpcErr != nil {
		return nil, rpcErr
	}

	if err := s.adapter.ValidateQuery(args.SQL); err != nil {
		return toolError("Query rejected: %v", err), nil
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, args.SQL)
	if err != nil {
		return toolError("Query error: %v", err), nil
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return toolError("Failed to get columns: %v", err), nil
	}

	results := []map[string]any{}
	raw, ptrs := scanTargets(len(types))
	for rows.Next() {
		if len(results) >= s.cfg.MaxRows {
			results = append(results, map[string]any{
				"_warning": fmt.Sprintf("Result truncated at %d rows", s.cfg.MaxRows),
			})
			break
		}

		if err := rows.Scan(ptrs...); err != nil {
			return toolError("Failed to scan row %d: %v", len(results)+1, err), nil
		}

		values, err := rowValues(types, raw)
		if err != nil {
			return toolError("Failed to convert row %d: %v", len(results)+1, err), nil
		}

		row := make(map[string]any, len(types))
		for i, ct := range types {
			row[ct.Name()] = dump.Cell(values[i])
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return toolError("Row iteration error: %v", err), nil
	}

	return toolJSON(results), nil
}

func (s *MCPServer) splitSQL(args *sqlArgs) (*CallToolResult, *Error) {
	if rpcErr := requireArg("sql", args.SQL); rpcErr != nil {
		return nil, rpcErr
	}

	stmts := script.SplitDialect(args.SQL, s.adapter.Dialect())
	if stmts == nil {
		stmts = []string{}
	}

	return toolJSON(map[string]any{"count": len(stmts), "statements": stmts}), nil
}

func (s *MCPServer) exportDatabase(args *exportArgs) (*CallToolResult, *Error) {
	if rpcErr := requireArg("path", args.Path); rpcErr != nil {
		return nil, rpcErr
	}

	opts := exportOptions{
		Database: cmp.Or(args.Database, s.databaseName),
		Path:     args.Path,
		WithData: s.cfg.Dump.WithData,
		WithDrop: s.cfg.Dump.WithDrop,
	}
	if args.WithData != nil {
		opts.WithData = *args.WithData
	}
	if args.WithDrop != nil {
		opts.WithDrop = *args.WithDrop
	}

	mode, err := dump.ParseInsertMode(cmp.Or(args.Mode, s.cfg.Dump.Mode))
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	opts.Mode = mode

	result, err := exportDatabase(s.ctx, s.db, s.adapter, opts)
	if err != nil {
		return toolError("Export failed: %v", err), nil
	}

	return toolText(fmt.Sprintf("Exported %d tables (%d rows, %s) to %s",
		result.Tables, result.Rows, humanize.Bytes(uint64(result.Bytes)), args.Path)), nil
}

func (s *MCPServer) importSQL(args *sqlArgs) (*CallToolResult, *Error) {
	if rpcErr := requireArg("sql", args.SQL); rpcErr != nil {
		return nil, rpcErr
	}

	n, err := importScript(s.ctx, s.db, s.adapter, args.Database, args.SQL)
	return importResult(n, err), nil
}

func (s *MCPServer) importFile(args *fileArgs) (*CallToolResult, *Error) {
	if rpcErr := requireArg("path", args.Path); rpcErr != nil {
		return nil, rpcErr
	}

	n, err := importFile(s.ctx, s.db, s.adapter, args.Database, args.Path)
	return importResult(n, err), nil
}

func importResult(n int, err error) *CallToolResult {
	if err == nil {
		return toolText(fmt.Sprintf("Executed %d statements", n))
	}

	var stmtErr *dump.StatementError
	if errors.As(err, &stmtErr) {
		return toolError("Import stopped after %d statements: %v\nFailing statement: %s",
			n, stmtErr.Err, truncate(stmtErr.Statement, 500))
	}

	return toolError("Import failed after %d statements: %v", n, err)
}

func internalError(format string, args ...any) *Error {
	return &Error{Code: InternalError, Message: fmt.Sprintf(format, args...)}
}

// schemaURI names the schema resource of a table: <scheme>://<database>/<table>/schema.
func (s *MCPServer) schemaURI(database, table string) string {
	u := url.URL{Scheme: s.adapter.URIScheme(), Host: database, Path: "/" + table + "/schema"}
	return u.String()
}

// parseSchemaURI is the inverse of schemaURI.
func (s *MCPServer) parseSchemaURI(uri string) (database, table string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}

	if u.Scheme != s.adapter.URIScheme() {
		return "", "", fmt.Errorf("must start with %s://", s.adapter.URIScheme())
	}

	table, ok := strings.CutSuffix(strings.TrimPrefix(u.Path, "/"), "/schema")
	if !ok || u.Host == "" || table == "" || strings.Contains(table, "/") {
		return "", "", fmt.Errorf("expected %s://dbname/tablename/schema", s.adapter.URIScheme())
	}

	return u.Host, table, nil
}

func (s *MCPServer) handleListResources(json.RawMessage) (any, *Error) {
	resources := []Resource{}
	if s.databaseName == "" {
		return &ListResourcesResult{Resources: resources}, nil
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.QueryTimeout)
	defer cancel()

	query, args := s.adapter.ListTablesQuery(s.databaseName)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, internalError("Failed to list tables: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			logError("Failed to scan table name: %v", err)
			continue
		}

		resources = append(resources, Resource{
			URI:      s.schemaURI(s.databaseName, table),
			Name:     fmt.Sprintf("Schema for table '%s'", table),
			MimeType: "application/json",
		})
	}

	if err := rows.Err(); err != nil {
		return nil, internalError("Error iterating tables: %v", err)
	}

	return &ListResourcesResult{Resources: resources}, nil
}

func (s *MCPServer) handleReadResource(params json.RawMessage) (any, *Error) {
	var readParams ReadResourceParams
	if err := json.Unmarshal(params, &readParams); err != nil {
		return nil, invalidParams("Invalid parameters", err)
	}

	database, table, err := s.parseSchemaURI(readParams.URI)
	if err != nil {
		return nil, invalidParams(fmt.Sprintf("Invalid resource URI: %v", err), nil)
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.QueryTimeout)
	defer cancel()

	query, args := s.adapter.ReadSchemaQuery(database, table)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, internalError("Failed to get schema: %v", err)
	}
	defer rows.Close()

	columns := []map[string]any{}
	for rows.Next() {
		col, err := scanColumn(rows)
		if err != nil {
			logError("Failed to scan column info: %v", err)
			continue
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, internalError("Error reading schema: %v", err)
	}

	schemaJSON, err := json.MarshalIndent(columns, "", "  ")
	if err != nil {
		return nil, internalError("Failed to marshal schema: %v", err)
	}

	return &ReadResourceResult{
		Contents: []ResourceContent{{URI: readParams.URI, MimeType: "application/json", Text: string(schemaJSON)}},
	}, nil
}
