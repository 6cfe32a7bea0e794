package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/frenb/accelent/domain/core/entities"
)

// ErrorPrefix marks an output that reports a failure instead of a result
const ErrorPrefix = "Error:"

var (
	errGeneratorMissing = errors.New("text generation is not configured")
	errDocumentsMissing = errors.New("document service is not configured")
)

// ErrorOutput renders a failure as a visible node output
func ErrorOutput(err error) string {
	return ErrorPrefix + " " + err.Error()
}

// IsErrorOutput reports whether an output is a rendered failure
func IsErrorOutput(s string) bool {
	return strings.HasPrefix(s, ErrorPrefix)
}

// View is how a node's state is presented to a user
type View struct {
	Status entities.NodeStatus `json:"status"`
	Text   string              `json:"text"`
	// UpstreamError is set when a display received an error output from
	// its source rather than a value.
	UpstreamError bool `json:"upstreamError,omitempty"`
	// Error is set when the node's own runtime failed.
	Error bool `json:"error,omitempty"`
}

// ViewOf renders a node for display. JSON output is pretty-printed; the
// stored output is never changed.
func ViewOf(node entities.Node) View {
	v := View{Status: node.Status}
	if node.Status == entities.StatusNoData {
		v.Text = "No usable data"
		return v
	}
	if node.Output == nil {
		return v
	}

	out := *node.Output
	switch {
	case node.Kind() == entities.KindDisplay && IsErrorOutput(out):
		v.UpstreamError = true
	case node.Status == entities.StatusFailed || IsErrorOutput(out):
		v.Error = true
	}
	v.Text = PrettyJSON(out)
	return v
}

// PrettyJSON indents s if it is valid JSON and returns it unchanged
// otherwise
func PrettyJSON(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return s
	}
	return buf.String()
}
