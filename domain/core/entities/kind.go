package entities

import (
	"encoding/json"
	"fmt"
	"strings"

	pkgerrors "github.com/frenb/accelent/pkg/errors"
)

// Kind identifies what a node does with its input
type Kind string

const (
	KindDataSource  Kind = "data_source"
	KindPrompt      Kind = "prompt"
	KindSpreadsheet Kind = "spreadsheet"
	KindDisplay     Kind = "display"
)

// AllKinds lists the kinds in palette order
var AllKinds = []Kind{KindDataSource, KindPrompt, KindSpreadsheet, KindDisplay}

// ParseKind parses a kind name, accepting a few spellings used by clients
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "data_source", "datasource", "data-source", "source", "dataset":
		return KindDataSource, nil
	case "prompt", "llm":
		return KindPrompt, nil
	case "spreadsheet", "sheet":
		return KindSpreadsheet, nil
	case "display", "output":
		return KindDisplay, nil
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown node kind %q", s))
}

// DefaultLabel is the base label used for nodes added from the palette
func (k Kind) DefaultLabel() string {
	switch k {
	case KindDataSource:
		return "Data Source"
	case KindPrompt:
		return "Prompt"
	case KindSpreadsheet:
		return "Spreadsheet"
	case KindDisplay:
		return "Display"
	}
	return "Node"
}

// KindConfig is the kind-specific payload of a node. Each kind has exactly
// one config type, so the config value is the node's tagged variant.
type KindConfig interface {
	Kind() Kind
	// Content returns the content-bearing field of the config, if any.
	Content() string
	// WithContent returns a copy with the content-bearing field replaced.
	WithContent(content string) KindConfig
}

// DataFormat is the serialisation format of a data source
type DataFormat string

const (
	FormatJSON       DataFormat = "json"
	FormatCSV        DataFormat = "csv"
	FormatYAML       DataFormat = "yaml"
	FormatStructured DataFormat = "structured"
)

// ParseDataFormat parses a format, defaulting to json for empty input
func ParseDataFormat(s string) (DataFormat, error) {
	switch DataFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatStructured, "text":
		return FormatStructured, nil
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown data format %q", s))
}

// DataSourceConfig holds raw data emitted as the node's output
type DataSourceConfig struct {
	Format DataFormat `json:"format"`
	Data   string     `json:"content"`
}

func (DataSourceConfig) Kind() Kind        { return KindDataSource }
func (c DataSourceConfig) Content() string { return c.Data }
func (c DataSourceConfig) WithContent(content string) KindConfig {
	c.Data = content
	return c
}

// PromptConfig holds the prompt template. The literal marker INPUT is
// replaced with the resolved input before generation.
type PromptConfig struct {
	Prompt string `json:"prompt"`
}

func (PromptConfig) Kind() Kind        { return KindPrompt }
func (c PromptConfig) Content() string { return c.Prompt }
func (c PromptConfig) WithContent(content string) KindConfig {
	c.Prompt = content
	return c
}

// SpreadsheetConfig configures the generated tabular document
type SpreadsheetConfig struct {
	Title string `json:"title,omitempty"`
}

func (SpreadsheetConfig) Kind() Kind      { return KindSpreadsheet }
func (SpreadsheetConfig) Content() string { return "" }
func (c SpreadsheetConfig) WithContent(string) KindConfig {
	return c
}

// DisplayConfig has no settings; a display shows its input
type DisplayConfig struct{}

func (DisplayConfig) Kind() Kind                      { return KindDisplay }
func (DisplayConfig) Content() string                 { return "" }
func (c DisplayConfig) WithContent(string) KindConfig { return c }

// DefaultConfig returns the empty config for a kind
func DefaultConfig(kind Kind) KindConfig {
	switch kind {
	case KindDataSource:
		return DataSourceConfig{Format: FormatJSON}
	case KindPrompt:
		return PromptConfig{}
	case KindSpreadsheet:
		return SpreadsheetConfig{}
	default:
		return DisplayConfig{}
	}
}

// ConfigFromTab seeds a config of the given kind from a tab's content and
// classification.
func ConfigFromTab(kind Kind, tab Tab) KindConfig {
	switch kind {
	case KindDataSource:
		format := tab.Classification.Format
		if format == "" {
			format = FormatJSON
		}
		return DataSourceConfig{Format: format, Data: tab.Content}
	case KindPrompt:
		return PromptConfig{Prompt: tab.Content}
	case KindSpreadsheet:
		return SpreadsheetConfig{Title: tab.Name}
	default:
		return DisplayConfig{}
	}
}

// DecodeConfig decodes a JSON config payload for the given kind. An empty
// payload yields the kind's default config.
func DecodeConfig(kind Kind, raw json.RawMessage) (KindConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultConfig(kind), nil
	}

	var (
		cfg KindConfig
		err error
	)
	switch kind {
	case KindDataSource:
		var c DataSourceConfig
		err = json.Unmarshal(raw, &c)
		if err == nil {
			c.Format, err = ParseDataFormat(string(c.Format))
		}
		cfg = c
	case KindPrompt:
		var c PromptConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case KindSpreadsheet:
		var c SpreadsheetConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case KindDisplay:
		cfg = DisplayConfig{}
	default:
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown node kind %q", kind))
	}
	if err != nil {
		if appErr := pkgerrors.GetAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.NewValidationError("invalid config for " + string(kind)).WithCause(err)
	}
	return cfg, nil
}
