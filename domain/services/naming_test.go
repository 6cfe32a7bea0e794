package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUniqueLabel(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		existing []string
		want     string
	}{
		{name: "unused base", base: "Source", existing: nil, want: "Source"},
		{name: "first copy", base: "Source", existing: []string{"Source"}, want: "Source (Copy 1)"},
		{name: "second copy", base: "Source", existing: []string{"Source", "Source (Copy 1)"}, want: "Source (Copy 2)"},
		{name: "fills gap", base: "Source", existing: []string{"Source", "Source (Copy 2)"}, want: "Source (Copy 1)"},
		{name: "copy only without base", base: "Source", existing: []string{"Source (Copy 1)"}, want: "Source"},
		{name: "other labels ignored", base: "Prompt", existing: []string{"Source", "Display"}, want: "Prompt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UniqueLabel(tt.base, tt.existing, ""))
		})
	}
}

func TestUniqueLabel_Sequence(t *testing.T) {
	var labels []string
	for i := 0; i < 3; i++ {
		labels = append(labels, UniqueLabel("Source", labels, ""))
	}
	assert.Equal(t, []string{"Source", "Source (Copy 1)", "Source (Copy 2)"}, labels)
}

func TestUniqueOutputTabName(t *testing.T) {
	assert.Equal(t, "Prompt Output", UniqueOutputTabName("Prompt", []string{"notes"}, ""))
	assert.Equal(t, "Prompt Output 1", UniqueOutputTabName("Prompt", []string{"Prompt Output"}, ""))
	assert.Equal(t, "Prompt Output 2", UniqueOutputTabName("Prompt", []string{"Prompt Output", "Prompt Output 1"}, ""))
}
