package services

import (
	"regexp"
	"strings"
)

var (
	// suggestionHeading matches lines such as "## Recommended Improvements:",
	// "**Suggested Tasks**" or "✅ Recommended next steps".
	suggestionHeading = regexp.MustCompile(
		`(?i)^\s*(?:[^\w\s#*]+\s*)?(?:#{1,6}\s*)?(?:\*\*)?\s*` +
			`(?:recommended\s+(?:actions|improvements|next\s+steps)|suggested\s+(?:actions|tasks))` +
			`\s*(?:\*\*)?\s*:?\s*(?:\*\*)?\s*$`)

	// suggestionBullet matches "-", "*", "•", "1." and "1)" list items.
	suggestionBullet = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+?)\s*$`)
)

// ExtractSuggestions pulls actionable items from the recommendation
// sections of an answer. It is a heuristic: items are bullet lines under a
// recognised heading, the section ends at a blank line after items or at
// the first non-bullet line, and duplicates are dropped case-insensitively.
func ExtractSuggestions(answer string) []string {
	var (
		suggestions []string
		seen        = make(map[string]struct{})
		inSection   bool
		hasItems    bool
	)

	for _, line := range strings.Split(answer, "\n") {
		if suggestionHeading.MatchString(line) {
			inSection, hasItems = true, false
			continue
		}
		if !inSection {
			continue
		}

		if strings.TrimSpace(line) == "" {
			if hasItems {
				inSection = false
			}
			continue
		}

		m := suggestionBullet.FindStringSubmatch(line)
		if m == nil {
			inSection = false
			continue
		}
		hasItems = true

		item := cleanSuggestion(m[1])
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		suggestions = append(suggestions, item)
	}

	return suggestions
}

func cleanSuggestion(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.TrimSpace(s)
}
