package generator

import (
	"strings"
	"unicode"
)

var irregularPlurals = map[string]string{
	"person": "people",
	"child":  "children",
	"man":    "men",
	"woman":  "women",
	"tooth":  "teeth",
	"foot":   "feet",
	"mouse":  "mice",
	"goose":  "geese",
}

// pluralSuffixExceptions take a plain "s" despite ending in consonant + o.
var pluralSuffixExceptions = []string{"photo", "piano", "halo"}

// Pluralize converts a singular English noun to its plural form. Only the last
// segment of a snake_case word is inflected (invoice_line → invoice_lines).
func Pluralize(word string) string {
	if word == "" {
		return ""
	}
	if i := strings.LastIndex(word, "_"); i >= 0 && i < len(word)-1 {
		return word[:i+1] + Pluralize(word[i+1:])
	}

	lower := strings.ToLower(word)
	if plural, ok := irregularPlurals[lower]; ok {
		return matchCase(word, plural)
	}

	n := len(lower)
	switch {
	case hasAnySuffix(lower, "s", "x", "z", "ch", "sh"):
		return word + "es"
	case n > 1 && lower[n-1] == 'y' && !isVowel(lower[n-2]):
		return word[:n-1] + "ies"
	case n > 1 && lower[n-1] == 'o' && !isVowel(lower[n-2]):
		if hasAnySuffix(lower, pluralSuffixExceptions...) {
			return word + "s"
		}
		return word + "es"
	case strings.HasSuffix(lower, "fe"):
		return word[:n-2] + "ves"
	case strings.HasSuffix(lower, "f"):
		return word[:n-1] + "ves"
	}
	return word + "s"
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

// matchCase applies the casing of original (UPPER or Title) to plural.
func matchCase(original, plural string) string {
	if strings.ToUpper(original) == original {
		return strings.ToUpper(plural)
	}
	if unicode.IsUpper(rune(original[0])) {
		return strings.ToUpper(plural[:1]) + plural[1:]
	}
	return plural
}

func isVowel(c byte) bool {
	switch c | 0x20 {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
