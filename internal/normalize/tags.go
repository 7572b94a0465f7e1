package normalize

import (
	"sort"
	"strings"
)

// categoryKeywords maps content keywords to canonical categories.
var categoryKeywords = map[string]string{
	"concert":     "music",
	"music":       "music",
	"orchestra":   "music",
	"recital":     "music",
	"dj":          "music",
	"exhibition":  "arts",
	"gallery":     "arts",
	"art":         "arts",
	"theatre":     "performance",
	"theater":     "performance",
	"dance":       "performance",
	"ballet":      "performance",
	"show":        "performance",
	"festival":    "festival",
	"carnival":    "festival",
	"parade":      "festival",
	"fireworks":   "festival",
	"race":        "sports",
	"grand prix":  "sports",
	"marathon":    "sports",
	"tournament":  "sports",
	"food":        "food",
	"gourmet":     "food",
	"market":      "market",
	"fair":        "market",
	"workshop":    "community",
	"family":      "family",
	"kids":        "family",
}

// deriveCategories scans title and description for category keywords.
func deriveCategories(title, description string) []string {
	text := strings.ToLower(title + " " + description)
	set := map[string]struct{}{}
	for keyword, category := range categoryKeywords {
		if strings.Contains(text, keyword) {
			set[category] = struct{}{}
		}
	}
	return sortedSet(set)
}

// mergeTags unions the source vocabulary with per-event categories,
// lowercased and deduplicated.
func mergeTags(sourceTags, eventCategories []string) []string {
	set := map[string]struct{}{}
	for _, t := range sourceTags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			set[t] = struct{}{}
		}
	}
	for _, c := range eventCategories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			set[c] = struct{}{}
		}
	}
	return sortedSet(set)
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
