package model

import "time"

// FeedbackExport is the top-level JSON structure for a feedback export.
type FeedbackExport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Class       string           `json:"class,omitempty"`
	Count       int              `json:"count"`
	Records     []FeedbackRecord `json:"records"`
}

// StudentSummary is one row of the student listing.
type StudentSummary struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
	Classes int    `json:"classes"`
}

// LessonProgress holds a student's rubric result for one lesson.
type LessonProgress struct {
	ClassCode    string       `json:"class_code"`
	UnitNumber   string       `json:"unit_number"`
	LessonNumber string       `json:"lesson_number"`
	Motion       *string      `json:"motion"`
	Duration     *string      `json:"duration"`
	Scores       RubricScores `json:"scores"`
	Average      *float64     `json:"average"`
}

// StudentProgress is a student's growth timeline in lesson order.
type StudentProgress struct {
	Student string           `json:"student"`
	Lessons []LessonProgress `json:"lessons"`
	// Categories holds the mean score per rubric category over all lessons.
	Categories map[RubricCategory]float64 `json:"categories"`
}

// BuildProgress folds sorted records into a progress timeline.
func BuildProgress(student string, recs []FeedbackRecord) StudentProgress {
	p := StudentProgress{
		Student:    student,
		Lessons:    make([]LessonProgress, 0, len(recs)),
		Categories: map[RubricCategory]float64{},
	}
	sums := map[RubricCategory]int{}
	counts := map[RubricCategory]int{}
	for _, r := range recs {
		lp := LessonProgress{
			ClassCode:    r.ClassCode,
			UnitNumber:   r.UnitNumber,
			LessonNumber: r.LessonNumber,
			Motion:       r.Motion,
			Duration:     r.Duration,
			Scores:       r.RubricScores,
		}
		if avg, ok := r.RubricScores.Average(); ok {
			lp.Average = &avg
		}
		p.Lessons = append(p.Lessons, lp)
		for c, s := range r.RubricScores {
			if pts, ok := s.Points(); ok {
				sums[c] += pts
				counts[c]++
			}
		}
	}
	for c, n := range counts {
		p.Categories[c] = float64(sums[c]) / float64(n)
	}
	return p
}
