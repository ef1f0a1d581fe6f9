package extract

import (
	"regexp"
	"strings"

	"github.com/growthcompass/compass/internal/model"
)

// boldScoreRegex matches a bold span holding exactly one score token.
var boldScoreRegex = regexp.MustCompile(`(?i)<strong>\s*(N/A|[1-5])\s*</strong>|<b>\s*(N/A|[1-5])\s*</b>`)

// ExtractRubric reads the rubric table in a section's HTML. Rows are the
// pieces between "</tr>" closes; a row belongs to a category when it mentions
// one of the category's phrases, and its first bold score token is the score.
// Categories without a scored row are left out.
func ExtractRubric(sectionHTML string) model.RubricScores {
	scores := model.RubricScores{}
	if sectionHTML == "" {
		return scores
	}

	rows := strings.Split(sectionHTML, "</tr>")
	lowered := make([]string, len(rows))
	texts := make([]string, len(rows))
	for i, row := range rows {
		lowered[i] = strings.ToLower(row)
		texts[i] = strings.ToLower(cellText(row))
	}

	for _, def := range model.Rubric {
		for i, row := range rows {
			if !rowMentions(lowered[i], texts[i], def.Phrases) {
				continue
			}
			if s, ok := boldScore(row); ok {
				scores[def.Category] = s
				break
			}
		}
	}
	return scores
}

// boldScore returns the first bold score token in row.
func boldScore(row string) (model.Score, bool) {
	m := boldScoreRegex.FindStringSubmatch(row)
	if m == nil {
		return "", false
	}
	token := m[1]
	if token == "" {
		token = m[2]
	}
	return model.ParseScore(token)
}

func rowMentions(rawLower, textLower string, phrases []string) bool {
	for _, p := range phrases {
		p = strings.ToLower(p)
		if strings.Contains(rawLower, p) || strings.Contains(textLower, p) {
			return true
		}
	}
	return false
}
