// Package msisdn normalizes heterogeneous recipient input into a
// deduplicated list of international phone numbers in digit form.
package msisdn

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	splitPattern = regexp.MustCompile(`[,;\n]+`)
	shapePattern = regexp.MustCompile(`^[0-9]{8,15}$`)
)

// Set is the result of normalizing one recipient input. Valid keeps first
// occurrences in encounter order; Invalid and Duplicates are deduplicated
// for reporting but also keep encounter order.
type Set struct {
	Valid        []string `json:"valid"`
	Invalid      []string `json:"invalid,omitempty"`
	Duplicates   []string `json:"duplicates,omitempty"`
	EnteredCount int      `json:"entered_count"`
}

// Normalize accepts a single string, a slice of strings, or a delimited
// string (comma, semicolon, newline). A string that looks like a
// serialized JSON list is parsed as one. It never fails: malformed
// entries land in Invalid, an empty input yields an all-empty Set.
func Normalize(input any) Set {
	var set Set

	seenValid := make(map[string]bool)
	seenInvalid := make(map[string]bool)
	seenDup := make(map[string]bool)

	for _, raw := range flatten(input) {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		set.EnteredCount++

		digits := normalizeEntry(entry)
		if !shapePattern.MatchString(digits) {
			if !seenInvalid[entry] {
				seenInvalid[entry] = true
				set.Invalid = append(set.Invalid, entry)
			}
			continue
		}

		if seenValid[digits] {
			if !seenDup[digits] {
				seenDup[digits] = true
				set.Duplicates = append(set.Duplicates, digits)
			}
			continue
		}

		seenValid[digits] = true
		set.Valid = append(set.Valid, digits)
	}

	return set
}

func normalizeEntry(entry string) string {
	entry = strings.TrimPrefix(entry, "+")
	var b strings.Builder
	for _, r := range entry {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func flatten(input any) []string {
	switch v := input.(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return flattenString(v)
	default:
		return []string{fmt.Sprint(v)}
	}
}

func flattenString(s string) []string {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return nil
	}

	if cleaned[0] == '[' {
		var parsed []any
		if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
			return flatten(parsed)
		}
	}

	return splitPattern.Split(cleaned, -1)
}
