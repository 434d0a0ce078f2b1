package model

import (
	stdhtml "html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// summaryMaxRunes caps the derived plain-text summary.
const summaryMaxRunes = 200

// stripPolicy removes every tag, leaving only text.
var stripPolicy = bluemonday.StrictPolicy()

// ThumbnailSrc returns the src of the first <img> in an HTML fragment, or ""
// when there is none.
func ThumbnailSrc(fragment string) string {
	if fragment == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "img" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "src" && len(val) > 0 {
					return string(val)
				}
				if !more {
					break
				}
			}
		}
	}
}

// PlainSummary strips tags from an HTML fragment, decodes entities, collapses
// whitespace and truncates the result to maxRunes.
func PlainSummary(fragment string, maxRunes int) string {
	if fragment == "" {
		return ""
	}
	text := stdhtml.UnescapeString(stripPolicy.Sanitize(fragment))
	text = strings.Join(strings.Fields(text), " ")
	return Truncate(text, maxRunes)
}

// Truncate shortens s to maxLen runes, adding "..." if truncated.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
