package extract

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/growthcompass/compass/internal/model"
)

var (
	classCodeRegex  = regexp.MustCompile(`\d{2}[A-Z]{5}\d{4}`)
	unitLessonRegex = regexp.MustCompile(`(\d+)\.(\d+)`)
	unitRegex       = regexp.MustCompile(`(?i)\bUnit\s*(\d+)`)
	lessonRegex     = regexp.MustCompile(`(?i)\b(?:Lesson|Day)\s*(\d+)`)
)

// ParseClassCode returns the first class code in s, or model.UnknownClassCode.
func ParseClassCode(s string) string {
	if c := classCodeRegex.FindString(s); c != "" {
		return c
	}
	return model.UnknownClassCode
}

// ParseUnitLesson reads a unit and lesson number from a file name or header
// line. "8.2 - April 5" gives ("8", "2"); "Unit 10 Lesson 5" gives
// ("10", "5"). Missing parts are "0".
func ParseUnitLesson(s string) (unit, lesson string) {
	unit, lesson = parseUnitLesson(s)
	if unit == "" {
		unit = "0"
	}
	if lesson == "" {
		lesson = "0"
	}
	return unit, lesson
}

// parseUnitLesson returns "" for parts it cannot find.
func parseUnitLesson(s string) (unit, lesson string) {
	if m := unitLessonRegex.FindStringSubmatch(s); m != nil {
		return m[1], m[2]
	}
	if m := unitRegex.FindStringSubmatch(s); m != nil {
		unit = m[1]
	}
	if m := lessonRegex.FindStringSubmatch(s); m != nil {
		lesson = m[1]
	}
	return unit, lesson
}

// ParsePathMetadata derives the identifiers encoded in a document's location.
// The expected layout is {feedbackType}/{instructor}/{classFolder}/{unit}/{lessonFile}.docx;
// unit and lesson are read from the file name first, then from the folders
// below the class folder, nearest first.
func ParsePathMetadata(p string) model.PathMetadata {
	slashed := filepath.ToSlash(p)
	base := path.Base(slashed)
	stem := strings.TrimSuffix(base, path.Ext(base))

	meta := model.PathMetadata{
		ClassCode: ParseClassCode(slashed),
		FileName:  base,
	}

	var segs []string
	for _, s := range strings.Split(path.Dir(slashed), "/") {
		if s != "" && s != "." {
			segs = append(segs, s)
		}
	}

	classIdx := -1
	if meta.ClassCode != model.UnknownClassCode {
		for i, s := range segs {
			if strings.Contains(s, meta.ClassCode) {
				classIdx = i
				break
			}
		}
	}
	if classIdx >= 1 {
		meta.Instructor = segs[classIdx-1]
	}
	if classIdx >= 2 {
		meta.FeedbackType = segs[classIdx-2]
	}

	sources := []string{stem}
	lowest := len(segs) - 1
	if classIdx >= 0 {
		lowest = classIdx + 1
	}
	for i := len(segs) - 1; i >= lowest && i >= 0; i-- {
		sources = append(sources, segs[i])
	}

	for _, src := range sources {
		u, l := parseUnitLesson(src)
		if meta.UnitNumber == "" {
			meta.UnitNumber = u
		}
		if meta.LessonNumber == "" {
			meta.LessonNumber = l
		}
		if meta.UnitNumber != "" && meta.LessonNumber != "" {
			break
		}
	}
	return withDefaults(meta)
}

// FillFromHeader completes a unit or lesson the path did not provide (still
// "0") from the document text preceding the first student section.
func FillFromHeader(meta model.PathMetadata, header string) model.PathMetadata {
	meta = withDefaults(meta)
	for _, line := range strings.Split(header, "\n") {
		if meta.UnitNumber != "0" && meta.LessonNumber != "0" {
			break
		}
		u, l := parseUnitLesson(line)
		if meta.UnitNumber == "0" && u != "" {
			meta.UnitNumber = u
		}
		if meta.LessonNumber == "0" && l != "" {
			meta.LessonNumber = l
		}
	}
	return meta
}

func withDefaults(meta model.PathMetadata) model.PathMetadata {
	if meta.UnitNumber == "" {
		meta.UnitNumber = "0"
	}
	if meta.LessonNumber == "" {
		meta.LessonNumber = "0"
	}
	return meta
}
