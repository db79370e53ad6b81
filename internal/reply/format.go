// Package reply cleans generated answers for plain-text chat surfaces.
package reply

import (
	"regexp"
	"strings"
)

// DefaultMaxChars is the reply length used when none is given.
const DefaultMaxChars = 3000

const bullet = "•"

var (
	emphasisRe = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
	italicRe   = regexp.MustCompile(`(^|[^*\w])[*_]([^*_\n]+)[*_]`)
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	bulletRe   = regexp.MustCompile(`(?m)^(\s*)(?:[-*+]|\d+[.)])\s+`)
	blanksRe   = regexp.MustCompile(`\n{3,}`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// Format strips markdown markup, normalises list markers to "•" and
// truncates to maxChars at a sentence boundary. maxChars <= 0 uses
// DefaultMaxChars.
func Format(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	out := strings.ReplaceAll(text, "```", "")
	out = strings.ReplaceAll(out, "`", "")
	out = emphasisRe.ReplaceAllString(out, "$2")
	out = headingRe.ReplaceAllString(out, "")
	out = bulletRe.ReplaceAllString(out, "$1"+bullet+" ")
	out = italicRe.ReplaceAllString(out, "$1$2")
	out = blanksRe.ReplaceAllString(out, "\n\n")
	out = strings.TrimSpace(out)
	return Truncate(out, maxChars)
}

// Truncate cuts text to at most maxChars runes. The cut lands after the last
// complete sentence that fits; with no such sentence the text is cut hard and
// marked with an ellipsis.
func Truncate(text string, maxChars int) string {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return text
	}
	head := string(runes[:maxChars])
	ends := sentenceRe.FindAllStringIndex(head, -1)
	if len(ends) > 0 {
		if cut := strings.TrimSpace(head[:ends[len(ends)-1][1]]); cut != "" {
			return cut
		}
	}
	if maxChars <= 1 {
		return string(runes[:maxChars])
	}
	return strings.TrimSpace(string(runes[:maxChars-1])) + "…"
}
