package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		classifyHint, classifyLocal = "", false
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("name,age\nada,36\nalan,41\n"), 0o600))

	tests := []struct {
		name       string
		stdin      string
		args       []string
		wantKind   string
		wantFormat string
	}{
		{name: "json from stdin", stdin: `{"a":1}`, args: []string{"classify", "--local"}, wantKind: "dataset", wantFormat: "json"},
		{name: "csv file", args: []string{"classify", "--local", csvPath}, wantKind: "dataset", wantFormat: "csv"},
		{name: "prompt", stdin: "Summarize INPUT", args: []string{"classify", "--local"}, wantKind: "prompt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runCLI(t, tt.stdin, tt.args...)

			var res struct {
				Classification struct {
					Kind   string `json:"kind"`
					Format string `json:"format"`
				} `json:"classification"`
				Source string `json:"source"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, tt.wantKind, res.Classification.Kind)
			assert.Equal(t, tt.wantFormat, res.Classification.Format)
			assert.Equal(t, "heuristic", res.Source)
		})
	}
}
