package rpc

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestServeDispatchesMethod(t *testing.T) {
	methods := map[string]Handler{
		"ping": func(params json.RawMessage) (interface{}, error) {
			return map[string]string{"pong": "ok"}, nil
		},
	}
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	var out bytes.Buffer
	if err := Serve(in, &out, methods); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestServeUnknownMethod(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"nonexistent"}` + "\n")
	var out bytes.Buffer
	if err := Serve(in, &out, map[string]Handler{}); err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", resp)
	}
}

func TestServeParseError(t *testing.T) {
	in := strings.NewReader("not json\n")
	var out bytes.Buffer
	if err := Serve(in, &out, map[string]Handler{}); err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Fatalf("expected parse error, got %+v", resp)
	}
}

func TestServeHandlerError(t *testing.T) {
	methods := map[string]Handler{
		"fail": func(params json.RawMessage) (interface{}, error) {
			return nil, errFailing
		},
	}
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"fail"}` + "\n")
	var out bytes.Buffer
	if err := Serve(in, &out, methods); err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeInternalError {
		t.Fatalf("expected internal error, got %+v", resp)
	}
}

var errFailing = &testError{"handler failure"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
