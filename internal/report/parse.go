package report

import (
	"strings"
	"unicode"
)

// ParseSections splits text into the given headings. A heading line may carry
// markdown decoration ("## Summary", "**1. Summary:**"). Text before the
// first heading is dropped. missing lists headings that never appeared or
// had an empty body.
func ParseSections(text string, headings []string) (sections []Section, missing []string) {
	index := make(map[string]int, len(headings))
	for i, h := range headings {
		index[normalizeHeading(h)] = i
	}
	bodies := make([][]string, len(headings))
	seen := make([]bool, len(headings))
	current := -1

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if i, ok := index[normalizeHeading(line)]; ok && !seen[i] {
			current = i
			seen[i] = true
			continue
		}
		if current >= 0 {
			bodies[current] = append(bodies[current], line)
		}
	}

	for i, h := range headings {
		body := strings.TrimSpace(strings.Join(bodies[i], "\n"))
		if !seen[i] || body == "" {
			missing = append(missing, h)
			continue
		}
		sections = append(sections, Section{Heading: h, Body: body})
	}
	return sections, missing
}

func normalizeHeading(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "#*_ \t")
	s = strings.TrimRight(s, "*_: \t")
	// Leading enumeration such as "1." or "2)".
	trimmed := strings.TrimLeftFunc(s, unicode.IsDigit)
	if trimmed != s && (strings.HasPrefix(trimmed, ".") || strings.HasPrefix(trimmed, ")")) {
		s = strings.TrimSpace(trimmed[1:])
	}
	s = strings.TrimLeft(s, "*_ ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
