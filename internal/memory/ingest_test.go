package memory

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleVisionDoc = `# Hands-Free First Design

## Statement

All primary workflows must be completable without a keyboard.

## Rationale

Accessibility and voice-first operators are first-class users.
`

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIngestDocuments(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "hands-free.md", sampleVisionDoc)
	writeDoc(t, dir, "_INDEX.md", "# Index\n\nnot a real doc")

	s := openTestService(t)
	res, err := s.IngestDocuments(dir, TierVision)
	if err != nil {
		t.Fatal(err)
	}
	if res.Ingested != 1 {
		t.Fatalf("expected 1 ingested, got %+v", res)
	}
	if len(res.Skipped) != 0 {
		t.Fatalf("index file should be silently excluded, not skipped: %+v", res)
	}

	ent, ok := s.GetEntity("hands_free_first_design")
	if !ok {
		t.Fatal("expected entity hands_free_first_design")
	}
	if ent.Entity.EntityType != EntityVisionStandard {
		t.Fatalf("expected vision_standard, got %s", ent.Entity.EntityType)
	}
	if ent.Entity.Tier() != TierVision {
		t.Fatalf("expected vision tier, got %q", ent.Entity.Tier())
	}

	var hasStatement bool
	for _, o := range ent.Entity.Observations {
		if o == "Statement: All primary workflows must be completable without a keyboard." {
			hasStatement = true
		}
	}
	if !hasStatement {
		t.Fatalf("expected Statement observation, got %v", ent.Entity.Observations)
	}
}

// TestIngestionIdempotence_P2 covers P2.
func TestIngestionIdempotence_P2(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "hands-free.md", sampleVisionDoc)

	s := openTestService(t)
	res1, err := s.IngestDocuments(dir, TierVision)
	if err != nil {
		t.Fatal(err)
	}
	ent, _ := s.GetEntity("hands_free_first_design")
	res2, err := s.IngestDocuments(dir, TierVision)
	if err != nil {
		t.Fatal(err)
	}
	if res1.Ingested != len(res1.Entities) || res2.Ingested != len(res2.Entities) {
		t.Fatalf("ingested count must equal entities length: %+v %+v", res1, res2)
	}
	if res1.Ingested != res2.Ingested {
		t.Fatalf("idempotence violated: %+v vs %+v", res1, res2)
	}

	ent2After, _ := s.GetEntity("hands_free_first_design")
	if len(ent.Entity.Observations) != len(ent2After.Entity.Observations) {
		t.Fatal("observation set should be identical across re-ingestion")
	}
}

func TestEntityTypeHeuristicArchitecture(t *testing.T) {
	doc := "# Retry Pattern\n\n## Description\n\nA retry pattern for flaky calls. This pattern wraps every pattern invocation.\n"
	dir := t.TempDir()
	writeDoc(t, dir, "retry.md", doc)

	s := openTestService(t)
	res, err := s.IngestDocuments(dir, TierArchitecture)
	if err != nil || res.Ingested != 1 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	ent, _ := s.GetEntity("retry_pattern")
	if ent.Entity.EntityType != EntityPattern {
		t.Fatalf("expected pattern heuristic, got %s", ent.Entity.EntityType)
	}
}

func TestEditorialPrefixStripped(t *testing.T) {
	doc := "# Vision Standard: Hands-Free First\n\n## Statement\n\nNo keyboard needed.\n"
	dir := t.TempDir()
	writeDoc(t, dir, "v.md", doc)

	s := openTestService(t)
	s.IngestDocuments(dir, TierVision)
	if _, ok := s.GetEntity("hands_free_first"); !ok {
		t.Fatal("expected editorial prefix stripped from derived name")
	}
}
