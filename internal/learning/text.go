package learning

import (
	"sort"
	"strings"
)

// Normalize lowercases a question, strips punctuation and collapses
// whitespace so rephrasings of the same question dedupe together.
func Normalize(message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))
	var b strings.Builder
	b.Grow(len(lower))
	lastSpace := true
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t' || r == '\n':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Categorize assigns a normalized question to a coarse topic bucket.
func Categorize(normalized string) string {
	switch {
	case containsAny(normalized, "price", "cost", "pricing", "quote", "budget", "pay"):
		return "pricing"
	case containsAny(normalized, "service", "offer", "develop", "build", "design"):
		return "services"
	case containsAny(normalized, "contact", "email", "phone", "call", "reach"):
		return "contact"
	case containsAny(normalized, "error", "bug", "broken", "issue", "problem", "help"):
		return "support"
	default:
		return "general"
	}
}

var complaintThemes = map[string][]string{
	"slow responses":    {"slow", "wait", "took too long", "delay"},
	"unhelpful answers": {"unhelpful", "useless", "didnt help", "didn't help", "no help"},
	"wrong information": {"wrong", "incorrect", "inaccurate", "mistake"},
	"confusing replies": {"confusing", "unclear", "confused", "hard to understand"},
}

// negativeThemes scans negative feedback comments for recurring complaint
// keywords. A theme needs at least two mentions to be reported.
func negativeThemes(feedback []Feedback) []string {
	counts := make(map[string]int)
	for _, entry := range feedback {
		comment := strings.ToLower(entry.Comment)
		if comment == "" {
			continue
		}
		for theme, keywords := range complaintThemes {
			if containsAny(comment, keywords...) {
				counts[theme]++
			}
		}
	}
	var themes []string
	for theme, count := range counts {
		if count >= 2 {
			themes = append(themes, theme)
		}
	}
	// Map order is random, keep output stable.
	sort.Strings(themes)
	return themes
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
