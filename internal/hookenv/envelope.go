// Package hookenv holds the stdin/stdout JSON envelope shapes shared by
// the interception hook (C8) and work-gating hook (C9), transposing
// internal/mcp/server.go's JSON-RPC request/response dispatch shape from
// its SSE/HTTP transport onto a single stdio round-trip per invocation.
package hookenv

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// InterceptEnvelope is C8's stdin contract (spec.md section 4.8 step 1).
type InterceptEnvelope struct {
	ToolName   string          `json:"tool_name"`
	ToolInput  json.RawMessage `json:"tool_input"`
	ToolResult json.RawMessage `json:"tool_result,omitempty"`
	SessionID  string          `json:"session_id"`
}

// toolInputSubject is the shape of tool_input this hook cares about: the
// subject of the task the host runtime just created.
type toolInputSubject struct {
	Subject string `json:"subject"`
}

// Subject extracts tool_input.subject, tolerating any other tool_input
// shape (a non-task-creation tool call has no subject and is simply
// passed through untouched by the caller).
func (e InterceptEnvelope) Subject() (string, error) {
	var in toolInputSubject
	if len(e.ToolInput) == 0 {
		return "", nil
	}
	if err := json.Unmarshal(e.ToolInput, &in); err != nil {
		return "", fmt.Errorf("parsing tool_input: %w", err)
	}
	return in.Subject, nil
}

// InterceptResponse is C8's stdout contract: a non-blocking context
// addendum the host runtime appends to its own output (spec.md section
// 4.8 step 6).
type InterceptResponse struct {
	Context string `json:"context"`
}

// GateEnvelope is C9's minimal stdin contract (spec.md section 4.9).
type GateEnvelope struct {
	SessionID string `json:"session_id"`
	ToolName  string `json:"tool_name"`
}

// GateResponse is C9's stdout contract on a blocked mutation.
type GateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ReadInterceptEnvelope decodes C8's stdin envelope from r.
func ReadInterceptEnvelope(r io.Reader) (InterceptEnvelope, error) {
	var v InterceptEnvelope
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return v, fmt.Errorf("decoding intercept envelope: %w", err)
	}
	return v, nil
}

// ReadGateEnvelope decodes C9's stdin envelope from r.
func ReadGateEnvelope(r io.Reader) (GateEnvelope, error) {
	var v GateEnvelope
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return v, fmt.Errorf("decoding gate envelope: %w", err)
	}
	return v, nil
}

// WriteResponse encodes v as a single JSON line to os.Stdout.
func WriteResponse(v any) error {
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(v)
}
