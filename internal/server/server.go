package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ironsheep/composite-gen/internal/imaging"
)

// ProtocolVersion is the MCP revision the server speaks.
const ProtocolVersion = "2024-11-05"

// StoreTTL bounds how long a loaded asset store is reused before it is read from disk
// again.
const StoreTTL = 10 * time.Minute

// Server handles MCP protocol communication
type Server struct {
	images  *imaging.ImageCache
	stores  *cache.Cache
	log     *slog.Logger
	version string
	lookup  func(string) (string, bool)
	in      io.Reader
	out     io.Writer
}

// Options configures a Server. Zero values select stdin, stdout, the default logger
// and os.LookupEnv.
type Options struct {
	Version string
	Logger  *slog.Logger
	// LookupEnv supplies credentials for uploads started by composite_generate.
	LookupEnv func(string) (string, bool)
	In        io.Reader
	Out       io.Writer
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance
func New(opts Options) *Server {
	s := &Server{
		images:  imaging.NewImageCache(),
		stores:  cache.New(StoreTTL, 2*StoreTTL),
		log:     opts.Logger,
		version: opts.Version,
		lookup:  opts.LookupEnv,
		in:      opts.In,
		out:     opts.Out,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.version == "" {
		s.version = "dev"
	}
	if s.lookup == nil {
		s.lookup = os.LookupEnv
	}
	if s.in == nil {
		s.in = os.Stdin
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	return s
}

// Run reads requests until the input closes or ctx is cancelled. Requests are handled
// one at a time; a long composite_generate call blocks the ones behind it.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(s.out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn("failed to parse request", "error", err)
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.Error("failed to encode response", "method", req.Method, "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.log.Debug("request", "method", req.Method, "id", req.ID)

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return s.errorResponse(req.ID, -32601, fmt.Sprintf("Method not found: %s", req.Method), "")
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "composite-gen",
				"version": s.version,
			},
		},
	}
}
