package reviewer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentgov/core/internal/graphstore"
)

// Standards is the vision/architecture context every prompt mode folds
// in (spec.md section 4.6's table). Loaded directly from the Memory
// Service's graphstore file via LoadStandards rather than through the
// Memory Service's API, to keep review latency bounded and avoid
// reentrant transport calls (spec.md section 4.6, final paragraph).
type Standards struct {
	VisionEntities       []graphstore.EntityRecord
	ArchitectureEntities []graphstore.EntityRecord
}

// LoadStandards replays the graph file at path and buckets entities by
// protection tier, doing its own synchronous local read (see package doc).
func LoadStandards(path string) (Standards, error) {
	store, err := graphstore.Open(path, graphstore.DefaultCompactThreshold)
	if err != nil {
		return Standards{}, fmt.Errorf("opening graph store for standards load: %w", err)
	}
	defer store.Close()

	var s Standards
	err = store.Replay(func(rec graphstore.EntityRecord) {
		tier := entityTier(rec.Observations)
		switch {
		case rec.EntityType == "vision_standard" || tier == "vision":
			s.VisionEntities = append(s.VisionEntities, rec)
		case tier == "architecture":
			s.ArchitectureEntities = append(s.ArchitectureEntities, rec)
		}
	}, nil)
	if err != nil {
		return Standards{}, fmt.Errorf("replaying graph store for standards load: %w", err)
	}
	sort.Slice(s.VisionEntities, func(i, j int) bool { return s.VisionEntities[i].Name < s.VisionEntities[j].Name })
	sort.Slice(s.ArchitectureEntities, func(i, j int) bool { return s.ArchitectureEntities[i].Name < s.ArchitectureEntities[j].Name })
	return s, nil
}

func entityTier(observations []string) string {
	for _, o := range observations {
		if strings.HasPrefix(o, "protection_tier: ") {
			return strings.TrimPrefix(o, "protection_tier: ")
		}
	}
	return ""
}

func renderEntities(label string, entities []graphstore.EntityRecord) string {
	if len(entities) == 0 {
		return fmt.Sprintf("## %s\n\n(none recorded)\n", label)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", label)
	for _, e := range entities {
		fmt.Fprintf(&b, "- **%s** (%s)\n", e.Name, e.EntityType)
		for _, o := range e.Observations {
			fmt.Fprintf(&b, "  - %s\n", o)
		}
	}
	return b.String()
}

const verdictSchemaInstruction = `
Respond with a single JSON object and nothing else, matching exactly:

{
  "verdict": "approved" | "blocked" | "needs_human_review",
  "findings": ["..."],
  "guidance": "free text guidance for the submitting agent",
  "standards_verified": ["name of each standard you checked against"]
}
`

// DecisionInput is the decision being reviewed (spec.md section 3).
type DecisionInput struct {
	TaskID      string
	Agent       string
	Category    string
	Summary     string
	Detail      string
	Components  []string
	Alternatives []string
	Confidence  float64
}

// BuildDecisionPrompt renders the fixed decision-review template (spec.md
// section 4.6's table: decision + vision standards + architecture entities).
func BuildDecisionPrompt(d DecisionInput, standards Standards) string {
	var b strings.Builder
	b.WriteString("# Decision Review\n\n")
	fmt.Fprintf(&b, "Task: %s\nAgent: %s\nCategory: %s\nConfidence: %.2f\n\n", d.TaskID, d.Agent, d.Category, d.Confidence)
	fmt.Fprintf(&b, "## Summary\n\n%s\n\n## Detail\n\n%s\n\n", d.Summary, d.Detail)
	fmt.Fprintf(&b, "## Components affected\n\n%s\n\n", strings.Join(d.Components, ", "))
	fmt.Fprintf(&b, "## Alternatives considered\n\n%s\n\n", strings.Join(d.Alternatives, ", "))
	b.WriteString(renderEntities("Vision standards", standards.VisionEntities))
	b.WriteString("\n")
	b.WriteString(renderEntities("Architecture entities", standards.ArchitectureEntities))
	b.WriteString(verdictSchemaInstruction)
	return b.String()
}

// PlanInput is the plan being reviewed, alongside every prior decision
// and verdict for the owning task (spec.md section 4.6's table).
type PlanInput struct {
	TaskID          string
	Subject         string
	Description     string
	PriorDecisions  []DecisionInput
	PriorVerdicts   []Verdict
}

// BuildPlanPrompt renders the fixed plan-review template.
func BuildPlanPrompt(p PlanInput, standards Standards) string {
	var b strings.Builder
	b.WriteString("# Plan Review\n\n")
	fmt.Fprintf(&b, "Task: %s\nSubject: %s\n\n## Description\n\n%s\n\n", p.TaskID, p.Subject, p.Description)

	b.WriteString("## Prior decisions\n\n")
	if len(p.PriorDecisions) == 0 {
		b.WriteString("(none)\n")
	}
	for _, d := range p.PriorDecisions {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", d.Category, d.Agent, d.Summary)
	}
	b.WriteString("\n## Prior verdicts\n\n")
	if len(p.PriorVerdicts) == 0 {
		b.WriteString("(none)\n")
	}
	for _, v := range p.PriorVerdicts {
		fmt.Fprintf(&b, "- %s: %s\n", v.Verdict, v.Guidance)
	}
	b.WriteString("\n")
	b.WriteString(renderEntities("Vision standards", standards.VisionEntities))
	b.WriteString("\n")
	b.WriteString(renderEntities("Architecture entities", standards.ArchitectureEntities))
	b.WriteString(verdictSchemaInstruction)
	return b.String()
}

// CompletionInput is the work summary submitted for completion review
// (spec.md section 4.6's table).
type CompletionInput struct {
	TaskID         string
	WorkSummary    string
	FilesChanged   []string
	AllDecisions   []DecisionInput
	AllVerdicts    []Verdict
}

// BuildCompletionPrompt renders the fixed completion-review template.
func BuildCompletionPrompt(c CompletionInput, standards Standards) string {
	var b strings.Builder
	b.WriteString("# Completion Review\n\n")
	fmt.Fprintf(&b, "Task: %s\n\n## Work summary\n\n%s\n\n", c.TaskID, c.WorkSummary)
	fmt.Fprintf(&b, "## Files changed\n\n%s\n\n", strings.Join(c.FilesChanged, "\n"))

	b.WriteString("## All decisions\n\n")
	for _, d := range c.AllDecisions {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", d.Category, d.Agent, d.Summary)
	}
	b.WriteString("\n## All verdicts\n\n")
	for _, v := range c.AllVerdicts {
		fmt.Fprintf(&b, "- %s: %s\n", v.Verdict, v.Guidance)
	}
	b.WriteString("\n")
	b.WriteString(renderEntities("Vision standards", standards.VisionEntities))
	b.WriteString(verdictSchemaInstruction)
	return b.String()
}
