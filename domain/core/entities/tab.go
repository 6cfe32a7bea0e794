package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/frenb/accelent/domain/core/valueobjects"
	pkgerrors "github.com/frenb/accelent/pkg/errors"
)

// ContentKind is the semantic category inferred for a tab's text
type ContentKind string

const (
	ContentDataset     ContentKind = "dataset"
	ContentPrompt      ContentKind = "prompt"
	ContentSpreadsheet ContentKind = "spreadsheet"
	ContentDisplay     ContentKind = "display"
)

// ParseContentKind parses a classification kind
func ParseContentKind(s string) (ContentKind, error) {
	switch ContentKind(strings.ToLower(strings.TrimSpace(s))) {
	case ContentDataset, "data", "datasource", "data_source":
		return ContentDataset, nil
	case ContentPrompt:
		return ContentPrompt, nil
	case ContentSpreadsheet:
		return ContentSpreadsheet, nil
	case ContentDisplay:
		return ContentDisplay, nil
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown content kind %q", s))
}

// NodeKind maps a content category onto the node kind that consumes it
func (k ContentKind) NodeKind() Kind {
	switch k {
	case ContentPrompt:
		return KindPrompt
	case ContentSpreadsheet:
		return KindSpreadsheet
	case ContentDisplay:
		return KindDisplay
	default:
		return KindDataSource
	}
}

// Classification is the inferred semantic label of a tab
type Classification struct {
	Kind       ContentKind `json:"kind"`
	Format     DataFormat  `json:"format,omitempty"`
	Confidence float64     `json:"confidence"`
}

// DefaultClassification is used whenever inference fails
func DefaultClassification() Classification {
	return Classification{Kind: ContentDataset, Format: FormatJSON, Confidence: 0.8}
}

// IsZero reports whether no classification has been applied yet
func (c Classification) IsZero() bool {
	return c.Kind == ""
}

// Tab is a named text document, independent of the graph
type Tab struct {
	ID             valueobjects.TabID `json:"id"`
	Name           string             `json:"name"`
	Content        string             `json:"content"`
	Classification Classification     `json:"classification"`
	// Version increases on every content edit.
	Version uint64 `json:"version"`
}

// NewTab creates a tab whose display name defaults to its id
func NewTab(id valueobjects.TabID, name, content string) Tab {
	if name == "" {
		name = id.String()
	}
	return Tab{ID: id, Name: name, Content: content}
}

// Fingerprint identifies the tab's current content
func (t Tab) Fingerprint() string {
	return ContentFingerprint(t.Content)
}

// ContentFingerprint hashes text so that completions can be checked
// against the content they were computed from.
func ContentFingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
