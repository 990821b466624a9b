// Package server implements the MCP (Model Context Protocol) server for composite
// generation.
//
// This package provides a JSON-RPC 2.0 server that exposes the generator and its
// geometry helpers as MCP tools, so an MCP client can prepare assets, run jobs and
// check how a lens setting moves bounding boxes without shelling out to the CLI.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - composite_load_assets: Load and describe a composite directory
//   - composite_generate: Run a generation job
//   - composite_distort_boxes: Map boxes through a fisheye and crop
//   - composite_parse_area: Parse and resolve an object area
//
// # Caching
//
// Decoded images are shared through one imaging.ImageCache for the lifetime of the
// process. Loaded asset stores are cached per directory, label filter and removal
// settings for StoreTTL; composite_load_assets with reload set refreshes an entry.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(server.Options{Version: version, Logger: logger})
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
package server
