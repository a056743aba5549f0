package main

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	ConnectionTimeout  = 10 * time.Second
	MaxConnectionsIdle = 5
	MaxConnectionsOpen = 10
)

// MCPServer handles MCP protocol over stdio
type MCPServer struct {
	db           *sql.DB
	adapter      DBAdapter
	cfg          *Config
	databaseName string
	in           io.Reader
	out          io.Writer
	ctx          context.Context
	cancel       context.CancelFunc
}

// openDatabase opens the database at dsn and checks that it answers.
func openDatabase(ctx context.Context, adapter DBAdapter, dsn string) (*sql.DB, error) {
	db, err := sql.Open(adapter.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxIdleConns(MaxConnectionsIdle)
	db.SetMaxOpenConns(MaxConnectionsOpen)
	db.SetConnMaxLifetime(time.Hour)

	// Test connection with timeout
	pingCtx, pingCancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer pingCancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// NewMCPServer creates an MCP server answering on in and out for the database behind db.
func NewMCPServer(ctx context.Context, db *sql.DB, adapter DBAdapter, cfg *Config, dbName string, in io.Reader, out io.Writer) *MCPServer {
	serverCtx, serverCancel := context.WithCancel(ctx)

	return &MCPServer{
		db:           db,
		adapter:      adapter,
		cfg:          cfg,
		databaseName: dbName,
		in:           in,
		out:          out,
		ctx:          serverCtx,
		cancel:       serverCancel,
	}
}

// Run serves newline-delimited JSON-RPC messages from in until end of input or until the
// server context is canceled. Each request gets one response line; notifications get none.
func (s *MCPServer) Run() error {
	reader := bufio.NewReader(s.in)
	enc := json.NewEncoder(s.out)

	for {
		if err := s.ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read input: %w", err)
		}

		// A final request may arrive without a trailing newline
		if line = bytes.TrimSpace(line); len(line) > 0 {
			if resp := s.handleMessage(line); resp != nil {
				if werr := enc.Encode(resp); werr != nil {
					return fmt.Errorf("failed to write response: %w", werr)
				}
			}
		}

		if err != nil {
			return nil
		}
	}
}

type methodHandler func(s *MCPServer, params json.RawMessage) (any, *Error)

var methods = map[string]methodHandler{
	"initialize":     (*MCPServer).handleInitialize,
	"tools/list":     (*MCPServer).handleListTools,
	"tools/call":     (*MCPServer).handleCallTool,
	"resources/list": (*MCPServer).handleListResources,
	"resources/read": (*MCPServer).handleReadResource,
	"ping": func(*MCPServer, json.RawMessage) (any, *Error) {
		return struct{}{}, nil
	},
}

func (s *MCPServer) handleMessage(data []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return &JSONRPCResponse{
			JSONRPC: jsonRPCVersion,
			Error:   &Error{Code: ParseError, Message: "Parse error", Data: err.Error()},
		}
	}

	if req.JSONRPC != jsonRPCVersion {
		return &JSONRPCResponse{
			JSONRPC: jsonRPCVersion,
			ID:      req.ID,
			Error:   &Error{Code: InvalidRequest, Message: "Invalid JSON-RPC version"},
		}
	}

	if req.isNotification() {
		log.WithField("method", req.Method).Debug("Notification received")
		return nil
	}

	resp := &JSONRPCResponse{JSONRPC: jsonRPCVersion, ID: req.ID}

	handler, ok := methods[req.Method]
	if !ok {
		resp.Error = &Error{Code: MethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)}
		return resp
	}

	resp.Result, resp.Error = handler(s, req.Params)
	if resp.Error != nil {
		resp.Result = nil
	}

	return resp
}

// Shutdown stops Run and any statement still running for a request.
func (s *MCPServer) Shutdown() {
	s.cancel()
}
