package hookenv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadInterceptEnvelopeAndSubject(t *testing.T) {
	raw := `{"tool_name":"create_task","tool_input":{"subject":"add caching layer"},"session_id":"s1"}`
	env, err := ReadInterceptEnvelope(strings.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	subject, err := env.Subject()
	if err != nil {
		t.Fatal(err)
	}
	if subject != "add caching layer" {
		t.Fatalf("got %q", subject)
	}
}

func TestHasReservedPrefix(t *testing.T) {
	cases := map[string]bool{
		"[GOVERNANCE] Review: add caching layer": true,
		"[REVIEW] something":                     true,
		"add caching layer":                      false,
	}
	for subject, want := range cases {
		if got := HasReservedPrefix(subject); got != want {
			t.Fatalf("HasReservedPrefix(%q) = %v, want %v", subject, got, want)
		}
	}
}

func TestMostRestrictiveFlagNoneReturnsNil(t *testing.T) {
	dir := t.TempDir()
	got, err := MostRestrictiveFlag(dir, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil with no flags present, got %+v", got)
	}
}

func TestMostRestrictiveFlagPicksHighestPriority(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFlagFile(FlagFilePath(dir, "s1"), FlagPending, ""); err != nil {
		t.Fatal(err)
	}
	if err := WriteFlagFile(FlagFilePath(dir, "s2"), FlagError, "reviewer produced unparseable output"); err != nil {
		t.Fatal(err)
	}

	got, err := MostRestrictiveFlag(dir, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != FlagError {
		t.Fatalf("expected error to win over pending, got %+v", got)
	}
}

func TestMostRestrictiveFlagRemovesStale(t *testing.T) {
	dir := t.TempDir()
	path := FlagFilePath(dir, "s1")
	if err := WriteFlagFile(path, FlagPending, ""); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	got, err := MostRestrictiveFlag(dir, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected stale flag cleared, got %+v", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected stale flag file removed from disk")
	}
}

func TestClearFlagFileIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent")
	if err := ClearFlagFile(path); err != nil {
		t.Fatalf("expected no error clearing a missing flag, got %v", err)
	}
}
