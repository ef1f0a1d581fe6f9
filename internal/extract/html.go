package extract

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// cellText returns the visible text of an HTML fragment with entities
// decoded and whitespace collapsed.
func cellText(fragment string) string {
	return collapseSpace(html.UnescapeString(stripPolicy.Sanitize(fragment)))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
