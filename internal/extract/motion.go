package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/growthcompass/compass/internal/model"
)

// MotionStrategy finds the motion (debate topic) in a section.
type MotionStrategy interface {
	Name() string
	Find(sec Section) (string, bool)
}

// FirstLineAfterName takes the first non-empty line following the student
// name. The line is rejected when it is a teacher comment, a label, a rubric
// criterion sentence, or no longer than MinLength characters.
type FirstLineAfterName struct {
	MinLength int
}

// LabeledMotion reads the text after a "Motion:" or "Topic:" label, first in
// the plain text and then in the HTML, including tables where the value sits
// in the cell after the label.
type LabeledMotion struct{}

// DebateConventionPrefix picks the first line worded as a motion, starting
// with "That " or "This house ".
type DebateConventionPrefix struct{}

// DefaultMotionStrategies is the fallback chain used by the extractor.
var DefaultMotionStrategies = []MotionStrategy{
	FirstLineAfterName{MinLength: 10},
	LabeledMotion{},
	DebateConventionPrefix{},
}

// FindMotion tries strategies in order and returns the first success with the
// strategy that produced it.
func FindMotion(sec Section, strategies ...MotionStrategy) (string, MotionStrategy, bool) {
	for _, s := range strategies {
		if m, ok := s.Find(sec); ok {
			return m, s, true
		}
	}
	return "", nil, false
}

// ClassifyMotion reports whether a found motion is the "Class Activity"
// administrative label or a real motion.
func ClassifyMotion(motion string) model.MotionKind {
	switch {
	case motion == "":
		return model.MotionNone
	case strings.EqualFold(motion, model.ClassActivityMotion):
		return model.MotionClassActivity
	default:
		return model.MotionDebate
	}
}

func (FirstLineAfterName) Name() string { return "first_line_after_name" }

func (s FirstLineAfterName) Find(sec Section) (string, bool) {
	for _, line := range strings.Split(sec.Body, "\n") {
		line = collapseSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) <= s.MinLength {
			return "", false
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "teacher comments") ||
			motionLabelRegex.MatchString(line) ||
			isRubricCriterion(lower) {
			return "", false
		}
		return line, true
	}
	return "", false
}

var (
	motionLabelRegex     = regexp.MustCompile(`(?i)^\s*(?:motion|topic)\s*:`)
	textLabelRegex       = regexp.MustCompile(`(?i)\b(?:motion|topic)[ \t]*:[ \t]*([^\n]+)`)
	htmlInlineLabelRegex = regexp.MustCompile(`(?i)\b(?:motion|topic)\s*:\s*(?:</(?:strong|b)>)?\s*([^<]+)<`)
	htmlCellLabelRegex   = regexp.MustCompile(`(?is)\b(?:motion|topic)\s*:?\s*(?:</(?:strong|b|p)>\s*)*</td>\s*<td[^>]*>(.*?)</td>`)
)

func (LabeledMotion) Name() string { return "labeled_motion" }

func (LabeledMotion) Find(sec Section) (string, bool) {
	if m := textLabelRegex.FindStringSubmatch(sec.Text); m != nil {
		if v := collapseSpace(m[1]); v != "" {
			return v, true
		}
	}
	if m := htmlInlineLabelRegex.FindStringSubmatch(sec.HTML); m != nil {
		if v := cellText(m[1]); v != "" {
			return v, true
		}
	}
	if m := htmlCellLabelRegex.FindStringSubmatch(sec.HTML); m != nil {
		if v := cellText(m[1]); v != "" {
			return v, true
		}
	}
	return "", false
}

var debatePrefixes = []string{"that ", "this house "}

func (DebateConventionPrefix) Name() string { return "debate_convention_prefix" }

func (DebateConventionPrefix) Find(sec Section) (string, bool) {
	for _, line := range strings.Split(sec.Body, "\n") {
		line = collapseSpace(line)
		lower := strings.ToLower(line)
		for _, p := range debatePrefixes {
			if strings.HasPrefix(lower, p) {
				return line, true
			}
		}
	}
	return "", false
}

// isRubricCriterion reports whether a line is a rubric criterion sentence
// copied out of the score table. Only phrases of criterionMinWords or more
// words count; short phrases such as "rebuttal" also occur in real motions.
func isRubricCriterion(lower string) bool {
	for _, d := range model.Rubric {
		for _, p := range d.Phrases {
			if len(strings.Fields(p)) < criterionMinWords {
				continue
			}
			if strings.Contains(lower, strings.ToLower(p)) {
				return true
			}
		}
	}
	return false
}

const criterionMinWords = 4
