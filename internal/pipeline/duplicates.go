package pipeline

import (
	"strings"

	"github.com/growthcompass/compass/internal/extract"
	"github.com/growthcompass/compass/internal/model"
)

// DefaultSimilarity is the Jaccard threshold above which two comments count
// as duplicates.
const DefaultSimilarity = 0.8

// Duplicate is a pair of records for the same student and lesson whose
// teacher comments are near-identical, usually the same document saved twice
// under different names.
type Duplicate struct {
	Student      string  `json:"student"`
	ClassCode    string  `json:"class_code"`
	UnitNumber   string  `json:"unit_number"`
	LessonNumber string  `json:"lesson_number"`
	First        string  `json:"first"`
	Second       string  `json:"second"`
	FirstPath    string  `json:"first_path"`
	SecondPath   string  `json:"second_path"`
	Similarity   float64 `json:"similarity"`
}

// FindDuplicates groups records by student, class, unit and lesson and
// reports every pair in a group whose comments reach threshold. Pairs are
// returned in input order.
func FindDuplicates(recs []model.FeedbackRecord, threshold float64) []Duplicate {
	if threshold <= 0 {
		threshold = DefaultSimilarity
	}
	type key struct{ student, class, unit, lesson string }

	var order []key
	groups := map[key][]model.FeedbackRecord{}
	for _, r := range recs {
		if r.TeacherComments == nil {
			continue
		}
		k := key{strings.ToLower(r.DisplayName()), r.ClassCode, r.UnitNumber, r.LessonNumber}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	var out []Duplicate
	for _, k := range order {
		g := groups[k]
		for i := 0; i < len(g); i++ {
			for j := i + 1; j < len(g); j++ {
				sim := extract.Jaccard(*g[i].TeacherComments, *g[j].TeacherComments)
				if sim < threshold {
					continue
				}
				out = append(out, Duplicate{
					Student:      g[i].DisplayName(),
					ClassCode:    k.class,
					UnitNumber:   k.unit,
					LessonNumber: k.lesson,
					First:        g[i].UniqueID,
					Second:       g[j].UniqueID,
					FirstPath:    g[i].SourceFilePath,
					SecondPath:   g[j].SourceFilePath,
					Similarity:   sim,
				})
			}
		}
	}
	return out
}
