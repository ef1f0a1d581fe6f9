package model

import (
	"cmp"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnknownClassCode is stored when no class code can be found in a file path.
const UnknownClassCode = "UNKNOWN"

// ClassActivityMotion is the administrative label some documents use in place
// of a debate motion.
const ClassActivityMotion = "Class Activity"

// MotionKind classifies an extracted motion.
type MotionKind string

const (
	// MotionNone means no motion was found in the section.
	MotionNone MotionKind = ""
	// MotionDebate is a regular debate motion or topic.
	MotionDebate MotionKind = "debate"
	// MotionClassActivity marks sections labelled "Class Activity" in the source.
	MotionClassActivity MotionKind = "class_activity"
)

// RubricCategory is one of the fixed assessment dimensions.
type RubricCategory string

const (
	RubricTimeManagement        RubricCategory = "time_management"
	RubricPOIHandling           RubricCategory = "poi_handling"
	RubricSpeakingStyle         RubricCategory = "speaking_style"
	RubricArgumentCompleteness  RubricCategory = "argument_completeness"
	RubricTheoryApplication     RubricCategory = "theory_application"
	RubricRebuttalEffectiveness RubricCategory = "rebuttal_effectiveness"
	RubricTeamSupport           RubricCategory = "team_support"
	RubricFeedbackApplication   RubricCategory = "feedback_application"
)

// RubricDefinition ties a category to the row phrases that identify it in a
// feedback table.
type RubricDefinition struct {
	Category RubricCategory
	Label    string
	Phrases  []string
}

// Rubric lists the assessment dimensions in the order they appear on the
// feedback form.
var Rubric = []RubricDefinition{
	{RubricTimeManagement, "Time management", []string{
		"Student spoke for the duration",
		"spoke for the duration of the specified time",
	}},
	{RubricPOIHandling, "Point of information", []string{
		"point of information",
		"points of information",
	}},
	{RubricSpeakingStyle, "Speaking style", []string{
		"stylistic and persuasive",
		"speaking style",
	}},
	{RubricArgumentCompleteness, "Argument completeness", []string{
		"argument is complete",
		"complete argument",
	}},
	{RubricTheoryApplication, "Theory application", []string{
		"application of theory",
		"applied the theory",
		"reflects application of debate theory",
	}},
	{RubricRebuttalEffectiveness, "Rebuttal", []string{
		"rebuttal",
		"responded to opponents",
	}},
	{RubricTeamSupport, "Team support", []string{
		"supported teammate",
		"team support",
	}},
	{RubricFeedbackApplication, "Feedback application", []string{
		"applied feedback",
		"feedback from previous",
		"previous feedback",
	}},
}

// IsRubricCategory reports whether c is one of the fixed categories.
func IsRubricCategory(c RubricCategory) bool {
	for _, d := range Rubric {
		if d.Category == c {
			return true
		}
	}
	return false
}

// Score is a rubric score: a single digit 1-5 or "N/A".
type Score string

// ScoreNA is recorded when the instructor marked a category as not applicable.
const ScoreNA Score = "N/A"

// ParseScore returns the score for s, or false if s is outside the domain.
func ParseScore(s string) (Score, bool) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, string(ScoreNA)) {
		return ScoreNA, true
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '5' {
		return Score(s), true
	}
	return "", false
}

// Valid reports whether s is in the score domain.
func (s Score) Valid() bool {
	p, ok := ParseScore(string(s))
	return ok && p == s
}

// Points returns the numeric value of s; N/A has none.
func (s Score) Points() (int, bool) {
	if !s.Valid() || s == ScoreNA {
		return 0, false
	}
	return int(s[0] - '0'), true
}

// RubricScores maps categories to the scores found for them. Categories with
// no score are omitted.
type RubricScores map[RubricCategory]Score

// Average returns the mean of the numeric scores, ignoring N/A.
func (rs RubricScores) Average() (float64, bool) {
	var sum, n int
	for _, s := range rs {
		if p, ok := s.Points(); ok {
			sum += p
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

// Value implements driver.Valuer; scores are stored as a JSON object.
func (rs RubricScores) Value() (driver.Value, error) {
	if rs == nil {
		return "{}", nil
	}
	b, err := json.Marshal(rs)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (rs *RubricScores) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*rs = RubricScores{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan rubric scores: unsupported type %T", src)
	}
	out := RubricScores{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("scan rubric scores: %w", err)
		}
	}
	*rs = out
	return nil
}

// PathMetadata holds the identifiers encoded in a document's location:
// {feedbackType}/{instructor}/{classFolder}/{unit}/{lessonFile}.docx.
type PathMetadata struct {
	ClassCode    string `json:"class_code"`
	UnitNumber   string `json:"unit_number"`
	LessonNumber string `json:"lesson_number"`
	Instructor   string `json:"instructor,omitempty"`
	FeedbackType string `json:"feedback_type,omitempty"`
	FileName     string `json:"file_name"`
}

// FeedbackRecord is one student's feedback entry extracted from a document.
type FeedbackRecord struct {
	UniqueID        string       `json:"unique_id" db:"unique_id" validate:"required"`
	StudentNameRaw  string       `json:"student_name_raw" db:"student_name_raw" validate:"required"`
	StudentName     *string      `json:"student_name" db:"student_name"`
	ClassCode       string       `json:"class_code" db:"class_code" validate:"required,classcode"`
	UnitNumber      string       `json:"unit_number" db:"unit_number" validate:"required,numeric"`
	LessonNumber    string       `json:"lesson_number" db:"lesson_number" validate:"required,numeric"`
	SectionIndex    int          `json:"section_index" db:"section_index" validate:"gte=0"`
	Instructor      string       `json:"instructor" db:"instructor"`
	FeedbackType    string       `json:"feedback_type" db:"feedback_type"`
	Motion          *string      `json:"motion" db:"motion"`
	MotionKind      MotionKind   `json:"motion_kind,omitempty" db:"motion_kind" validate:"omitempty,oneof=debate class_activity"`
	RubricScores    RubricScores `json:"rubric_scores" db:"rubric_scores" validate:"dive,keys,rubric_category,endkeys,score"`
	TeacherComments *string      `json:"teacher_comments" db:"teacher_comments"`
	Duration        *string      `json:"duration" db:"duration" validate:"omitempty,duration"`
	SourceFilePath  string       `json:"source_file_path" db:"source_file_path" validate:"required"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
}

// MarshalJSON emits the motion under both "motion" and "topic"; consumers of
// the export use either name.
func (r FeedbackRecord) MarshalJSON() ([]byte, error) {
	type plain FeedbackRecord
	return json.Marshal(struct {
		plain
		Topic *string `json:"topic"`
	}{plain(r), r.Motion})
}

// DisplayName returns the resolved name, falling back to the raw one.
func (r FeedbackRecord) DisplayName() string {
	if r.StudentName != nil && *r.StudentName != "" {
		return *r.StudentName
	}
	return r.StudentNameRaw
}

var recordNamespace = uuid.MustParse("8f3b2a6e-1d4c-4e0b-9a57-c2f1e6d0b4a9")

// UniqueID derives the idempotency key for a section. It depends only on the
// document location and the section's position and name, so re-parsing the
// same file yields the same keys.
func UniqueID(meta PathMetadata, studentNameRaw string, index int) string {
	key := strings.Join([]string{
		strings.TrimSpace(studentNameRaw),
		meta.ClassCode,
		meta.UnitNumber + "." + meta.LessonNumber,
		strconv.Itoa(index),
		meta.FileName,
		meta.Instructor,
		meta.FeedbackType,
	}, "|")
	return uuid.NewMD5(recordNamespace, []byte(key)).String()
}

// SortRecords orders records by unit, lesson, section index, then source path.
// Unit and lesson compare numerically.
func SortRecords(recs []FeedbackRecord) {
	slices.SortStableFunc(recs, func(a, b FeedbackRecord) int {
		if c := cmp.Compare(atoi(a.UnitNumber), atoi(b.UnitNumber)); c != 0 {
			return c
		}
		if c := cmp.Compare(atoi(a.LessonNumber), atoi(b.LessonNumber)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.SectionIndex, b.SectionIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.SourceFilePath, b.SourceFilePath)
	})
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// ConflictMode selects what storage does with a record whose unique_id exists.
type ConflictMode string

const (
	// ConflictIgnore keeps the existing row.
	ConflictIgnore ConflictMode = "ignore"
	// ConflictUpdate overwrites the existing row with the new extraction.
	ConflictUpdate ConflictMode = "update"
)

// SaveResult counts the outcome of a storage batch.
type SaveResult struct {
	Inserted int `json:"inserted"`
	Ignored  int `json:"ignored"`
	Updated  int `json:"updated"`
}

// FileError records a document that could not be processed.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ImportSummary is the result of a batch run.
type ImportSummary struct {
	FilesSeen        int            `json:"files_seen"`
	FilesParsed      int            `json:"files_parsed"`
	FilesFailed      int            `json:"files_failed"`
	FilesSkipped     int            `json:"files_skipped"`
	RecordsExtracted int            `json:"records_extracted"`
	RecordsInvalid   int            `json:"records_invalid"`
	Students         int            `json:"students"`
	MissingFields    map[string]int `json:"missing_fields"`
	Saved            SaveResult     `json:"saved"`
	Errors           []FileError    `json:"errors,omitempty"`
}

// FeedbackFilter narrows a feedback listing. Empty fields do not filter.
type FeedbackFilter struct {
	Student string
	Class   string
	Unit    string
	Lesson  string
}
