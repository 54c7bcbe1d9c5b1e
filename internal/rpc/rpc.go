// Package rpc implements the newline-delimited JSON request/response
// transport shared by the long-lived services (memoryd, governanced,
// qualityd): internal/mcp/server.go's {jsonrpc, id, method, params} /
// {jsonrpc, id, result|error} shape, with the transport swapped from
// HTTP/SSE to stdio (SPEC_FULL.md section 4's Transport note: network
// exposure is explicitly out of scope).
package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Request mirrors internal/types/config.go's MCPRequest.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response mirrors internal/types/config.go's MCPResponse.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error mirrors internal/types/config.go's MCPError.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard codes, loosely mirroring JSON-RPC 2.0's reserved range.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// Handler processes one decoded request's params and returns a result or
// an error; errors are wrapped into Response.Error by Serve.
type Handler func(params json.RawMessage) (interface{}, error)

// Serve reads one newline-delimited JSON Request per line from r, routes
// it through methods by Method name, and writes one newline-delimited
// JSON Response per line to w. Serve blocks until r returns EOF.
func Serve(r io.Reader, w io.Writer, methods map[string]Handler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			enc.Encode(Response{JSONRPC: "2.0", Error: &Error{Code: CodeParseError, Message: err.Error()}})
			continue
		}

		handler, ok := methods[req.Method]
		if !ok {
			enc.Encode(Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}})
			continue
		}

		result, err := handler(req.Params)
		if err != nil {
			enc.Encode(Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: CodeInternalError, Message: err.Error()}})
			continue
		}
		enc.Encode(Response{JSONRPC: "2.0", ID: req.ID, Result: result})
	}
	return scanner.Err()
}
