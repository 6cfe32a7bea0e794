package runtime

import (
	"testing"

	"github.com/frenb/accelent/application/ports"
	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name     string
		template string
		input    string
		want     string
	}{
		{"marker replaced", "Summarize INPUT", "text", "Summarize text"},
		{"every marker replaced", "INPUT and INPUT", "x", "x and x"},
		{"input appended", "Summarize", "text", "Summarize\n\ntext"},
		{"no input", "Summarize", "", "Summarize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildPrompt(tt.template, tt.input))
		})
	}
}

func TestRowsFromInput(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   []ports.Row
		wantOK bool
	}{
		{
			name:   "array of objects",
			input:  `[{"a":1},{"a":2}]`,
			want:   []ports.Row{{"a": float64(1)}, {"a": float64(2)}},
			wantOK: true,
		},
		{
			name:   "array of scalars",
			input:  `["x", 3]`,
			want:   []ports.Row{{"value": "x"}, {"value": float64(3)}},
			wantOK: true,
		},
		{
			name:   "object sorted by key",
			input:  `{"b":2,"a":1}`,
			want:   []ports.Row{{"key": "a", "value": float64(1)}, {"key": "b", "value": float64(2)}},
			wantOK: true,
		},
		{name: "scalar", input: `42`},
		{name: "not json", input: `a,b`},
		{name: "empty", input: "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, ok := RowsFromInput(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestPrettyJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", PrettyJSON(`{"a":1}`))
	assert.Equal(t, "plain", PrettyJSON("plain"))
	assert.Equal(t, "{broken", PrettyJSON("{broken"))
}
