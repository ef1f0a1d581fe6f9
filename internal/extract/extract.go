// Package extract turns a loaded feedback document into per-student
// FeedbackRecords.
//
// Extraction is layered heuristics over inconsistent source documents: every
// field degrades to nil (or is omitted, for rubric categories) when it cannot
// be found, and nothing in this package returns an error for missing data.
// Values derived from the file path and values derived from section content
// are computed separately (ParsePathMetadata, ParseSectionContent) and only
// combined in BuildRecord.
package extract

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/growthcompass/compass/internal/model"
)

// Resolver maps a student name as written to its canonical form.
type Resolver interface {
	Resolve(raw string) (string, bool)
}

// SectionContent holds the fields read from one section.
type SectionContent struct {
	StudentName     string
	Motion          *string
	MotionKind      model.MotionKind
	MotionStrategy  string
	RubricScores    model.RubricScores
	TeacherComments *string
	Duration        *string
}

// ParseSectionContent extracts the content fields of sec using the given
// motion strategies (DefaultMotionStrategies if none).
func ParseSectionContent(sec Section, strategies ...MotionStrategy) SectionContent {
	if len(strategies) == 0 {
		strategies = DefaultMotionStrategies
	}
	c := SectionContent{
		StudentName:  sec.StudentName,
		RubricScores: ExtractRubric(sec.HTML),
	}
	if m, s, ok := FindMotion(sec, strategies...); ok {
		c.Motion = &m
		c.MotionKind = ClassifyMotion(m)
		c.MotionStrategy = s.Name()
		if c.MotionKind == model.MotionClassActivity {
			label := model.ClassActivityMotion
			c.Motion = &label
		}
	}
	if tc, ok := ExtractComments(sec.Text); ok {
		c.TeacherComments = &tc
	}
	if d, ok := ExtractDuration(sec.Body); ok {
		c.Duration = &d
	}
	return c
}

// BuildRecord combines path metadata and section content into a record.
func BuildRecord(meta model.PathMetadata, sec Section, c SectionContent, sourcePath string, r Resolver, now time.Time) model.FeedbackRecord {
	rec := model.FeedbackRecord{
		UniqueID:        model.UniqueID(meta, sec.StudentName, sec.Index),
		StudentNameRaw:  sec.StudentName,
		ClassCode:       meta.ClassCode,
		UnitNumber:      meta.UnitNumber,
		LessonNumber:    meta.LessonNumber,
		SectionIndex:    sec.Index,
		Instructor:      meta.Instructor,
		FeedbackType:    meta.FeedbackType,
		Motion:          c.Motion,
		MotionKind:      c.MotionKind,
		RubricScores:    c.RubricScores,
		TeacherComments: c.TeacherComments,
		Duration:        c.Duration,
		SourceFilePath:  sourcePath,
		CreatedAt:       now,
	}
	if rec.RubricScores == nil {
		rec.RubricScores = model.RubricScores{}
	}
	if r != nil {
		if name, ok := r.Resolve(sec.StudentName); ok {
			rec.StudentName = &name
		}
	}
	return rec
}

// Extractor holds the configuration for turning documents into records.
// The zero value uses the default delimiters and motion strategies and
// leaves names unresolved.
type Extractor struct {
	Delimiters []string
	Strategies []MotionStrategy
	Resolver   Resolver
	Logger     *slog.Logger
	Now        func() time.Time
}

// Extract splits a document's text and HTML into sections and returns one
// record per named section, in document order. sourcePath supplies the
// class, unit, lesson, instructor and feedback type.
func (e *Extractor) Extract(text, html, sourcePath string) []model.FeedbackRecord {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now().UTC()
	if e.Now != nil {
		now = e.Now()
	}

	delimiters := e.Delimiters
	if len(delimiters) == 0 {
		delimiters = DefaultDelimiters
	}
	delim, ok := DetectDelimiter(text, delimiters...)
	if !ok {
		logger.Info("no student sections found", "path", sourcePath)
		return nil
	}

	meta := FillFromHeader(ParsePathMetadata(sourcePath), Header(text, delim))
	sections := Split(text, html, delim)

	records := make([]model.FeedbackRecord, 0, len(sections))
	for _, sec := range sections {
		if sec.StudentName == "" {
			logger.Debug("skipping unnamed section", "path", sourcePath, "index", sec.Index)
			continue
		}
		content, err := e.parseSection(sec)
		if err != nil {
			logger.Warn("section extraction failed, keeping partial record",
				"path", sourcePath, "index", sec.Index, "student", sec.StudentName, "error", err)
		}
		rec := BuildRecord(meta, sec, content, sourcePath, e.Resolver, now)
		logger.Debug("extracted section",
			"path", sourcePath,
			"index", sec.Index,
			"student", sec.StudentName,
			"motion_strategy", content.MotionStrategy,
			"rubric_scores", len(rec.RubricScores),
		)
		records = append(records, rec)
	}
	return records
}

// parseSection confines a failure to the one section it happened in.
func (e *Extractor) parseSection(sec Section) (c SectionContent, err error) {
	defer func() {
		if p := recover(); p != nil {
			c = SectionContent{StudentName: sec.StudentName}
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return ParseSectionContent(sec, e.Strategies...), nil
}
