package extract

import (
	"regexp"
	"strings"
)

var (
	durationRegex = regexp.MustCompile(`\d+:\d+(?:\.\d+)?`)
	commentsRegex = regexp.MustCompile(`(?is)teacher(?:'s)? comments?\s*:(.*?)(?:\d+:\d+|\z)`)
)

// ExtractDuration returns the first speech time ("M:SS", optionally with
// fractional seconds) in text.
func ExtractDuration(text string) (string, bool) {
	d := durationRegex.FindString(text)
	return d, d != ""
}

// ExtractComments returns the text after the "Teacher comments:" label, up to
// the next speech time or the end of the section.
func ExtractComments(text string) (string, bool) {
	m := commentsRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	c := strings.TrimSpace(m[1])
	return c, c != ""
}
