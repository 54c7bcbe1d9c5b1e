package reviewer

import (
	"context"
	"testing"
)

func TestMockModeShortCircuits(t *testing.T) {
	d := New("/nonexistent/binary", true)
	v, err := d.ReviewDecision(context.Background(), "irrelevant prompt")
	if err != nil {
		t.Fatal(err)
	}
	if v.Verdict != VerdictApproved {
		t.Fatalf("expected mock approved, got %+v", v)
	}
	if d.CallCount() != 0 {
		t.Fatalf("mock mode must never spawn the subprocess, count=%d", d.CallCount())
	}
}

func TestMissingBinaryYieldsNeedsHumanReview(t *testing.T) {
	d := New("/definitely/not/a/real/binary/path", false)
	v, err := d.ReviewDecision(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if v.Verdict != VerdictNeedsHumanReview {
		t.Fatalf("expected needs_human_review for missing binary, got %+v", v)
	}
	if v.Guidance == "" {
		t.Fatal("expected diagnostic guidance text")
	}
}

func TestParseVerdictRawJSON(t *testing.T) {
	v, err := parseVerdict(`{"verdict":"approved","findings":[],"guidance":"ok","standards_verified":["s1"]}`)
	if err != nil {
		t.Fatal(err)
	}
	if v.Verdict != "approved" || v.Guidance != "ok" {
		t.Fatalf("got %+v", v)
	}
}

func TestParseVerdictFencedBlock(t *testing.T) {
	raw := "Here is my review:\n\n```json\n{\"verdict\":\"blocked\",\"guidance\":\"fix X\"}\n```\n\nThanks!"
	v, err := parseVerdict(raw)
	if err != nil {
		t.Fatal(err)
	}
	if v.Verdict != "blocked" {
		t.Fatalf("got %+v", v)
	}
}

func TestParseVerdictOutermostBraces(t *testing.T) {
	raw := `some preamble { "verdict": "needs_human_review", "guidance": "ambiguous" } trailing text`
	v, err := parseVerdict(raw)
	if err != nil {
		t.Fatal(err)
	}
	if v.Verdict != "needs_human_review" {
		t.Fatalf("got %+v", v)
	}
}

func TestParseVerdictUnparseable(t *testing.T) {
	_, err := parseVerdict("not json at all, no braces")
	if err == nil {
		t.Fatal("expected parse failure")
	}
}

func TestWithModelIsChainable(t *testing.T) {
	d := New("/nonexistent/binary", true).WithModel("claude-reviewer-custom")
	if d.model != "claude-reviewer-custom" {
		t.Fatalf("expected WithModel to set model, got %q", d.model)
	}
	// Mock mode never looks at d.model, but WithModel must still return
	// the same driver so callers can chain it off New().
	v, err := d.ReviewPlan(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if v.Verdict != VerdictApproved {
		t.Fatalf("expected mock approved, got %+v", v)
	}
}

func TestReviewModeTimeouts(t *testing.T) {
	cases := map[Mode]int{ModeDecision: 60, ModePlan: 120, ModeCompletion: 90}
	for mode, seconds := range cases {
		if got := ModeTimeout(mode); got.Seconds() != float64(seconds) {
			t.Fatalf("mode %s: expected %ds, got %s", mode, seconds, got)
		}
	}
}
