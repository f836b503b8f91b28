package rabbitmq

import (
	"regexp"
	"strings"
)

// addAlternative returns pattern extended with an anchored alternative matching exactly name.
// A pattern that already matches name is returned unchanged.
func addAlternative(pattern, name string) string {
	if matchesExactly(pattern, name) {
		return pattern
	}
	alt := "^" + regexp.QuoteMeta(name) + "$"
	if pattern == "" {
		return alt
	}
	return pattern + "|" + alt
}

// removeAlternative returns pattern without the anchored alternative for name.
// Other alternatives, including ones it did not write, are kept.
func removeAlternative(pattern, name string) string {
	alt := "^" + regexp.QuoteMeta(name) + "$"
	parts := splitAlternatives(pattern)
	kept := parts[:0]
	for _, p := range parts {
		if p != alt && p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "|")
}

// matchesExactly reports whether pattern already grants name.
func matchesExactly(pattern, name string) bool {
	if pattern == "" {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// splitAlternatives splits pattern on top-level unescaped "|".
func splitAlternatives(pattern string) []string {
	if pattern == "" {
		return nil
	}

	var (
		parts   []string
		current strings.Builder
		depth   int
		escaped bool
	)
	for _, r := range pattern {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			depth--
		case r == '|' && depth == 0:
			parts = append(parts, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	return append(parts, current.String())
}
