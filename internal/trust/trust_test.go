package trust

import (
	"path/filepath"
	"testing"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(filepath.Join(t.TempDir(), "trust.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// TestNoSilentDismissal_S6 covers scenario S6 and property P8.
func TestNoSilentDismissal_S6(t *testing.T) {
	e := openTestEngine(t)
	e.RecordFinding(Finding{ID: "F1", Tool: "golint", Severity: "medium", Description: "unused var"})

	res, err := e.RecordDismissal("F1", "", "x")
	if err != nil {
		t.Fatal(err)
	}
	if res.Recorded {
		t.Fatal("empty justification must be rejected")
	}

	res, err = e.RecordDismissal("F1", "false positive in test fixture", "x")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Recorded {
		t.Fatalf("expected recorded, got %+v", res)
	}

	dec, err := e.GetTrustDecision("F1")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Decision != DecisionTrack {
		t.Fatalf("expected TRACK, got %+v", dec)
	}
	if dec.Justification != "false positive in test fixture" {
		t.Fatalf("got %+v", dec)
	}

	// A subsequent identical call appends a second audit row.
	e.RecordDismissal("F1", "false positive in test fixture", "x")
	hist, err := e.DismissalHistory("F1")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(hist))
	}
}

func TestUnknownFindingIsBlock(t *testing.T) {
	e := openTestEngine(t)
	dec, err := e.GetTrustDecision("does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Decision != DecisionBlock || dec.Rationale != "presumed legitimate" {
		t.Fatalf("got %+v", dec)
	}
}

func TestOpenFindingIsBlock(t *testing.T) {
	e := openTestEngine(t)
	e.RecordFinding(Finding{ID: "F2", Tool: "vet", Severity: "high", Description: "nil deref"})
	dec, err := e.GetTrustDecision("F2")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Decision != DecisionBlock {
		t.Fatalf("expected BLOCK for open finding, got %+v", dec)
	}
}

func TestDismissalIsTerminal(t *testing.T) {
	e := openTestEngine(t)
	e.RecordFinding(Finding{ID: "F3", Tool: "vet", Severity: "low", Description: "style nit"})
	e.RecordDismissal("F3", "accepted", "reviewer")

	f, err := e.getFinding("F3")
	if err != nil {
		t.Fatal(err)
	}
	if f.Status != StatusDismissed {
		t.Fatalf("expected terminal dismissed status, got %s", f.Status)
	}
}
