package services

import (
	"fmt"
	"strings"
)

const defaultCopyFormat = "%s (Copy %d)"

// UniqueLabel returns base if no existing label equals it; otherwise it
// appends a copy suffix with the smallest N >= 1 not already taken.
func UniqueLabel(base string, existing []string, copyFormat string) string {
	if copyFormat == "" {
		copyFormat = defaultCopyFormat
	}
	taken := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		taken[l] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf(copyFormat, base, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// UniqueOutputTabName names a tab materialised from a node's output:
// "<label> Output", then "<label> Output 1", "<label> Output 2", ...
func UniqueOutputTabName(label string, existing []string, suffix string) string {
	if suffix == "" {
		suffix = " Output"
	}
	base := strings.TrimSpace(label) + suffix
	taken := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		taken[n] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s %d", base, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
