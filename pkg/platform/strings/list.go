// Package strings holds the list helpers used by config parsing and audit
// change summaries.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrim trims each value and drops blanks and repeats, keeping the
// first occurrence order. Comparison is case-sensitive.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// SplitList reads a comma-separated environment value such as KAFKA_BROKERS.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(value, ","))
}

// SortedUnique is DedupeAndTrim in lexical order, so field lists recorded
// in the audit log compare stably.
func SortedUnique(values []string) []string {
	out := DedupeAndTrim(values)
	slices.Sort(out)
	return out
}
