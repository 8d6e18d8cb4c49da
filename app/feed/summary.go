package feed

import (
	"cmp"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const summaryLength = 500

var summaryPolicy = bluemonday.StrictPolicy()

// Summarize returns a plain-text excerpt of the item's description, or of its
// content when the description is empty.
func Summarize(item *Item) string {
	text := summaryPolicy.Sanitize(cmp.Or(item.Description, item.Content))
	text = strings.Join(strings.Fields(html.UnescapeString(text)), " ")

	runes := []rune(text)
	if len(runes) > summaryLength {
		return strings.TrimSpace(string(runes[:summaryLength])) + "…"
	}
	return text
}
