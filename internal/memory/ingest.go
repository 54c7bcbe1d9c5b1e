package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// IngestResult is the return shape of IngestDocuments (spec.md section 4.2.2).
type IngestResult struct {
	Ingested int      `json:"ingested"`
	Entities []string `json:"entities"`
	Errors   []string `json:"errors,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
}

var (
	h1Re          = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	sectionRe     = regexp.MustCompile(`(?m)^##\s+(.+)$`)
	editorialRe   = regexp.MustCompile(`(?i)^(vision standard|architectural standard|architecture standard|pattern|component|problem|solution)\s*:\s*`)
	patternWordRe = regexp.MustCompile(`(?i)\bpattern\b`)
	compWordRe    = regexp.MustCompile(`(?i)\bcomponent\b`)
)

// knownSections are the labeled Markdown sections extracted verbatim into
// observations, per spec.md section 4.2.2.
var knownSections = []string{
	"Statement", "Description", "Rationale", "Usage", "Examples", "Type",
	"Intent", "Desired Outcome", "Metrics", "Vision Alignment",
}

// IngestDocuments reads every Markdown file in folder (excluding any file
// whose base name looks like an index, e.g. "README.md" / "_INDEX.md" /
// "index.md"), derives an entity from each, and creates (or replaces, under
// human role) the corresponding memory entity tagged with the given
// protection tier.
func (s *Service) IngestDocuments(folder, tier string) (IngestResult, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return IngestResult{}, fmt.Errorf("reading ingestion folder %s: %w", folder, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".md") {
			continue
		}
		if isIndexFile(name) {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)

	res := IngestResult{}
	for _, fname := range files {
		full := filepath.Join(folder, fname)
		data, err := os.ReadFile(full)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", fname, err))
			continue
		}
		name, obs, ok := parseDocument(string(data), fname, tier)
		if !ok {
			res.Skipped = append(res.Skipped, fname)
			continue
		}

		s.mu.Lock()
		if _, exists := s.entities[name]; exists {
			// Re-ingestion is explicit delete-then-create under human role
			// (spec.md section 3: "never silently replaced").
			delete(s.entities, name)
			for k, r := range s.relations {
				if r.From == name || r.To == name {
					delete(s.relations, k)
				}
			}
		}
		ent := &Entity{Name: name, EntityType: obs.entityType, Observations: obs.observations}
		appendErr := s.appendEntityLocked(ent)
		if appendErr == nil {
			s.entities[name] = ent
		}
		s.mu.Unlock()

		if appendErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", fname, appendErr))
			continue
		}
		res.Ingested++
		res.Entities = append(res.Entities, name)
	}
	return res, nil
}

func isIndexFile(name string) bool {
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	base = strings.TrimPrefix(base, "_")
	return base == "index" || base == "readme"
}

type parsedDoc struct {
	entityType   string
	observations []string
}

// parseDocument extracts a title, entity name, and observation set from one
// ingested Markdown document (spec.md section 4.2.2).
func parseDocument(content, sourceFile, tier string) (name string, doc parsedDoc, ok bool) {
	m := h1Re.FindStringSubmatch(content)
	if m == nil {
		return "", parsedDoc{}, false
	}
	title := strings.TrimSpace(m[1])
	strippedTitle := editorialRe.ReplaceAllString(title, "")
	entityName := snakeCase(strippedTitle)
	if entityName == "" {
		return "", parsedDoc{}, false
	}

	sections := extractSections(content)
	entityType := determineEntityType(sections, tier, content)

	observations := []string{
		"protection_tier: " + tier,
		"title: " + title,
		"source_file: " + sourceFile,
	}
	for _, key := range knownSections {
		if v, ok := sections[strings.ToLower(key)]; ok && v != "" {
			observations = append(observations, key+": "+v)
		}
	}

	return entityName, parsedDoc{entityType: entityType, observations: observations}, true
}

// extractSections splits content on "## Heading" boundaries, returning a
// map keyed by lower-cased heading text.
func extractSections(content string) map[string]string {
	headings := sectionRe.FindAllStringSubmatchIndex(content, -1)
	out := make(map[string]string, len(headings))
	for i, h := range headings {
		headingStart, headingEnd := h[0], h[1]
		nameStart, nameEnd := h[2], h[3]
		bodyStart := headingEnd
		bodyEnd := len(content)
		if i+1 < len(headings) {
			bodyEnd = headings[i+1][0]
		}
		name := strings.ToLower(strings.TrimSpace(content[nameStart:nameEnd]))
		body := strings.TrimSpace(content[bodyStart:bodyEnd])
		_ = headingStart
		out[name] = body
	}
	return out
}

// determineEntityType implements spec.md section 4.2.2's entity-type
// derivation: an explicit "## Type" section wins; otherwise the default is
// tier-driven, with architecture tier disambiguated by a keyword heuristic
// over the document body.
func determineEntityType(sections map[string]string, tier, content string) string {
	if v, ok := sections["type"]; ok {
		v = strings.ToLower(strings.TrimSpace(v))
		switch {
		case strings.Contains(v, "vision"):
			return EntityVisionStandard
		case strings.Contains(v, "architectural") || strings.Contains(v, "architecture_standard"):
			return EntityArchitecturalStandard
		case strings.Contains(v, "pattern"):
			return EntityPattern
		case strings.Contains(v, "component"):
			return EntityComponent
		case strings.Contains(v, "problem"):
			return EntityProblem
		case strings.Contains(v, "solution"):
			return EntitySolutionPattern
		}
	}

	switch tier {
	case TierVision:
		return EntityVisionStandard
	case TierArchitecture:
		patternHits := len(patternWordRe.FindAllString(content, -1))
		compHits := len(compWordRe.FindAllString(content, -1))
		switch {
		case patternHits > compHits && patternHits > 0:
			return EntityPattern
		case compHits > 0:
			return EntityComponent
		default:
			return EntityArchitecturalStandard
		}
	default: // quality, untiered
		return EntityComponent
	}
}
