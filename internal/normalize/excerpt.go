package normalize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const ellipsis = "…"

// Default excerpt lengths of the two built-in presets.
const (
	DefaultExcerptLen    = 240
	NewsletterExcerptLen = 300
)

// stripPolicy removes every tag but keeps the text of all elements. Script and
// style text is written through unescaped, which needs AllowUnsafe; no tag is
// ever emitted.
var stripPolicy = bluemonday.StrictPolicy().
	AddSpaceWhenStrippingTag(true).
	AllowUnsafe(true).
	AllowElementsContent("frame", "frameset", "iframe", "noembed", "noframes",
		"noscript", "nostyle", "object", "script", "style", "title")

var angleSpan = regexp.MustCompile(`<[^>]+>`)

// Excerpt converts raw, possibly HTML-bearing summary text into plain text of
// at most maxLen runes. Entities are decoded exactly once and anything left
// between angle brackets is dropped. Longer text is cut to maxLen-1 runes
// followed by an ellipsis. maxLen <= 0 disables truncation.
func Excerpt(raw string, maxLen int) string {
	if raw == "" {
		return ""
	}

	// Sanitize keeps text escaped as it found it, so one unescape afterwards
	// is the only decode the input gets.
	text := stripPolicy.Sanitize(raw)
	text = html.UnescapeString(text)
	text = angleSpan.ReplaceAllString(text, " ")
	text = strings.Join(strings.Fields(text), " ")

	return truncateRunes(text, maxLen)
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + ellipsis
}
