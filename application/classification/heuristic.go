package classification

import (
	"encoding/csv"
	"encoding/json"
	"strings"

	"github.com/frenb/accelent/domain/core/entities"
	"gopkg.in/yaml.v3"
)

// Heuristic classifies content locally, without a text generator.
//
// Order of checks: JSON, YAML mapping or sequence, CSV, prompt markers,
// then the caller's hint, then plain structured data.
func Heuristic(content string, hint entities.ContentKind) entities.Classification {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		if hint != "" {
			return entities.Classification{Kind: hint, Confidence: 0.5}
		}
		return entities.Classification{Kind: entities.ContentDataset, Format: entities.FormatStructured, Confidence: 0.5}
	}

	if looksLikeJSON(trimmed) {
		return entities.Classification{Kind: entities.ContentDataset, Format: entities.FormatJSON, Confidence: 0.95}
	}
	if looksLikeYAML(trimmed) {
		return entities.Classification{Kind: entities.ContentDataset, Format: entities.FormatYAML, Confidence: 0.85}
	}
	if looksLikeCSV(trimmed) {
		return entities.Classification{Kind: entities.ContentDataset, Format: entities.FormatCSV, Confidence: 0.85}
	}
	if strings.Contains(trimmed, "INPUT") || strings.HasSuffix(trimmed, "?") {
		return entities.Classification{Kind: entities.ContentPrompt, Confidence: 0.75}
	}

	switch hint {
	case entities.ContentPrompt, entities.ContentSpreadsheet, entities.ContentDisplay:
		return entities.Classification{Kind: hint, Confidence: 0.6}
	}
	return entities.Classification{Kind: entities.ContentDataset, Format: entities.FormatStructured, Confidence: 0.6}
}

func looksLikeJSON(s string) bool {
	if s[0] != '{' && s[0] != '[' {
		return false
	}
	return json.Valid([]byte(s))
}

// looksLikeYAML accepts documents that decode to a mapping or a sequence.
// Plain scalars are valid YAML too but say nothing about structure.
func looksLikeYAML(s string) bool {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(s), &node); err != nil {
		return false
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return false
	}
	root := node.Content[0]
	switch root.Kind {
	case yaml.MappingNode:
		// "Summarize: this text" is a one-entry mapping; require structure
		return len(root.Content) >= 4 || strings.Contains(s, "\n")
	case yaml.SequenceNode:
		return true
	}
	return false
}

// looksLikeCSV needs at least two rows with the same number (>= 2) of
// columns.
func looksLikeCSV(s string) bool {
	if !strings.Contains(s, "\n") || !strings.Contains(s, ",") {
		return false
	}
	r := csv.NewReader(strings.NewReader(s))
	r.FieldsPerRecord = 0
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil || len(records) < 2 {
		return false
	}
	return len(records[0]) >= 2
}
