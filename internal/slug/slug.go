// Package slug computes sequential post slugs of the form "<prefix>-<n>".
package slug

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// DraftPrefix is suggested by the admin "new post" form.
	DraftPrefix = "tech"
	// CanonicalPrefix is assigned to generated informational posts when they are stored.
	CanonicalPrefix = "테크"
)

// NextNumber returns one more than the largest numeric suffix among slugs that
// match "<prefix>-<digits>" exactly, or 1 when none match. Values whose suffix
// does not fit in an int are ignored.
func NextNumber(slugs []string, prefix string) int {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-(\d+)$`)

	highest := 0
	for _, candidate := range slugs {
		match := pattern.FindStringSubmatch(candidate)
		if match == nil {
			continue
		}

		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}

		if n > highest {
			highest = n
		}
	}

	return highest + 1
}

// Format renders a sequenced slug.
func Format(prefix string, n int) string {
	return prefix + "-" + strconv.Itoa(n)
}

// Next combines NextNumber and Format.
func Next(slugs []string, prefix string) string {
	return Format(prefix, NextNumber(slugs, prefix))
}

var nonSlugChars = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Normalize lowercases a free-form slug and collapses anything that is not a
// letter or digit into single hyphens. Hangul and other letters are kept.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = nonSlugChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
