package render

import (
	"regexp"
	"sort"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Fill replaces every {{ key }} placeholder in stub with values[key] in a
// single pass. Substituted text is never scanned again, and placeholders
// without a value are left verbatim.
func Fill(stub string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(stub, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := values[key]; ok {
			return v
		}
		return match
	})
}

// Placeholders lists the distinct placeholder keys of stub, sorted.
func Placeholders(stub string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(stub, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	sort.Strings(keys)
	return keys
}

// missing returns the placeholder keys of stub that values does not cover.
func missing(stub string, values map[string]string) []string {
	var out []string
	for _, key := range Placeholders(stub) {
		if _, ok := values[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}
