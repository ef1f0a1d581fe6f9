package pipeline

import (
	"strings"

	"github.com/growthcompass/compass/internal/model"
)

// Field names counted in ImportSummary.MissingFields.
const (
	FieldStudentName     = "student_name"
	FieldMotion          = "motion"
	FieldRubricScores    = "rubric_scores"
	FieldTeacherComments = "teacher_comments"
	FieldDuration        = "duration"
)

// Summarize folds per-file results into batch counts. It does not touch
// storage; Saved and RecordsInvalid are filled in by the caller that writes.
func Summarize(results []FileResult) model.ImportSummary {
	s := model.ImportSummary{
		FilesSeen: len(results),
		MissingFields: map[string]int{
			FieldStudentName:     0,
			FieldMotion:          0,
			FieldRubricScores:    0,
			FieldTeacherComments: 0,
			FieldDuration:        0,
		},
	}
	students := map[string]struct{}{}

	for _, r := range results {
		switch {
		case r.Err != nil:
			s.FilesFailed++
			s.Errors = append(s.Errors, model.FileError{Path: r.Path, Error: r.Err.Error()})
			continue
		case r.Skipped:
			s.FilesSkipped++
			continue
		}
		s.FilesParsed++
		s.RecordsExtracted += len(r.Records)

		for _, rec := range r.Records {
			students[strings.ToLower(rec.DisplayName())] = struct{}{}
			if rec.StudentName == nil {
				s.MissingFields[FieldStudentName]++
			}
			if rec.Motion == nil {
				s.MissingFields[FieldMotion]++
			}
			if len(rec.RubricScores) == 0 {
				s.MissingFields[FieldRubricScores]++
			}
			if rec.TeacherComments == nil {
				s.MissingFields[FieldTeacherComments]++
			}
			if rec.Duration == nil {
				s.MissingFields[FieldDuration]++
			}
		}
	}
	s.Students = len(students)
	return s
}
