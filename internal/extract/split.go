package extract

import (
	"strings"
	"unicode/utf8"
)

// Delimiters that open a student's section. Document families use one or the
// other.
const (
	DelimiterStudent     = "Student:"
	DelimiterStudentName = "Student Name:"
)

// DefaultDelimiters is the order in which Split tries delimiters.
var DefaultDelimiters = []string{DelimiterStudent, DelimiterStudentName}

// Section is the slice of a document that belongs to one student.
type Section struct {
	// Index is the section's position in the document, starting at 0.
	Index     int    `json:"index"`
	Delimiter string `json:"delimiter"`
	// StudentName is the name as written after the delimiter.
	StudentName string `json:"student_name"`
	// Text runs from the delimiter to the next delimiter or end of document.
	Text string `json:"text"`
	// Body is Text after the line holding the student name.
	Body string `json:"body"`
	HTML string `json:"html"`
}

// SplitText splits text at every occurrence of delimiter and drops whatever
// precedes the first one. Each slice starts with the delimiter. No
// occurrences yields nil.
func SplitText(text, delimiter string) []string {
	return splitOn(text, delimiter)
}

// HTMLDelimiterVariants lists the literal forms a delimiter label takes in
// converted HTML. The plain "label " form comes first: it also matches inside
// a bolded label, so a document that bolds the label for some students and
// not others still yields one slice per student.
func HTMLDelimiterVariants(delimiter string) []string {
	return []string{
		delimiter + " ",
		"<strong>" + delimiter + " </strong>",
		delimiter + "</strong> ",
		"<b>" + delimiter + " </b>",
		delimiter + "</b> ",
		"<strong>" + delimiter + "</strong>",
		delimiter,
	}
}

// SplitHTML splits html on the first delimiter variant that occurs in it.
func SplitHTML(html, delimiter string) []string {
	return splitHTML(html, delimiter, 0)
}

// splitHTML splits html on the first variant occurring exactly want times, or
// at least once when want is zero. No matching variant yields nil.
func splitHTML(html, delimiter string, want int) []string {
	for _, v := range HTMLDelimiterVariants(delimiter) {
		n := strings.Count(html, v)
		if n == 0 || (want > 0 && n != want) {
			continue
		}
		return splitOn(html, v)
	}
	return nil
}

// Header returns the text before the first delimiter, or all of text if the
// delimiter never occurs.
func Header(text, delimiter string) string {
	if i := strings.Index(text, delimiter); i >= 0 {
		return text[:i]
	}
	return text
}

// Split partitions a document into student sections. Delimiters are tried in
// order and the first one that occurs in the text is used; with none given,
// DefaultDelimiters apply. Text slice i is paired with HTML slice i only when
// the HTML splits into as many slices as the text; otherwise sections carry no
// HTML rather than another student's.
func Split(text, html string, delimiters ...string) []Section {
	if len(delimiters) == 0 {
		delimiters = DefaultDelimiters
	}
	for _, d := range delimiters {
		texts := SplitText(text, d)
		if len(texts) == 0 {
			continue
		}
		htmls := splitHTML(html, d, len(texts))

		sections := make([]Section, 0, len(texts))
		for i, t := range texts {
			name, body := nameLine(t, d)
			sec := Section{
				Index:       i,
				Delimiter:   d,
				StudentName: name,
				Text:        t,
				Body:        body,
			}
			if i < len(htmls) {
				sec.HTML = htmls[i]
			}
			sections = append(sections, sec)
		}
		return sections
	}
	return nil
}

// DetectDelimiter returns the first delimiter that occurs in text.
func DetectDelimiter(text string, delimiters ...string) (string, bool) {
	if len(delimiters) == 0 {
		delimiters = DefaultDelimiters
	}
	for _, d := range delimiters {
		if strings.Contains(text, d) {
			return d, true
		}
	}
	return "", false
}

func splitOn(s, marker string) []string {
	if marker == "" {
		return nil
	}
	var out []string
	start := strings.Index(s, marker)
	for start >= 0 {
		next := strings.Index(s[start+len(marker):], marker)
		if next < 0 {
			out = append(out, s[start:])
			break
		}
		end := start + len(marker) + next
		out = append(out, s[start:end])
		start = end
	}
	return out
}

// nameLine reads the student name following the delimiter. When the label
// stands alone on its line (a table cell of its own), the next non-empty line
// holds the name if it is short and unlabelled.
func nameLine(section, delimiter string) (name, body string) {
	rest := strings.TrimPrefix(section, delimiter)
	line, after, _ := strings.Cut(rest, "\n")
	if name = strings.TrimSpace(line); name != "" {
		return name, after
	}
	remaining := after
	for remaining != "" {
		line, next, _ := strings.Cut(remaining, "\n")
		candidate := strings.TrimSpace(line)
		if candidate == "" {
			remaining = next
			continue
		}
		if utf8.RuneCountInString(candidate) <= maxNameLength && !strings.Contains(candidate, ":") {
			return candidate, next
		}
		break
	}
	return "", after
}

const maxNameLength = 40
