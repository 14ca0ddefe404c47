// Package template renders SMS message templates with named placeholders
// of the form {{identifier}}. There is no nesting and no conditionals.
package template

import (
	"fmt"
	"regexp"
	"sort"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Render substitutes every placeholder whose key exists in values with a
// non-nil entry. Placeholders with no usable value are left verbatim and
// their keys are returned sorted and deduplicated.
func Render(content string, values map[string]any) (string, []string) {
	missing := make(map[string]bool)

	rendered := placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := values[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		missing[key] = true
		return match
	})

	keys := make([]string, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return rendered, keys
}
