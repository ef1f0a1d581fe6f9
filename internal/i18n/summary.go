package i18n

import (
	"context"
	"slices"
	"strings"

	"github.com/growthcompass/compass/internal/model"
)

// SummaryLines renders an import summary as localized lines: file counts,
// record counts, storage outcome, then one line per missing field and per
// failed file.
func SummaryLines(ctx context.Context, s model.ImportSummary) []string {
	lines := []string{
		Td(ctx, "SummaryFiles", map[string]any{
			"Seen":    s.FilesSeen,
			"Parsed":  s.FilesParsed,
			"Skipped": s.FilesSkipped,
			"Failed":  s.FilesFailed,
		}),
		Tpd(ctx, "RecordsExtracted", s.RecordsExtracted, map[string]any{"Students": s.Students}),
		Td(ctx, "RecordsSaved", map[string]any{
			"Inserted": s.Saved.Inserted,
			"Updated":  s.Saved.Updated,
			"Ignored":  s.Saved.Ignored,
		}),
	}
	if s.RecordsInvalid > 0 {
		lines = append(lines, Tp(ctx, "RecordsInvalid", s.RecordsInvalid))
	}

	fields := make([]string, 0, len(s.MissingFields))
	for f, n := range s.MissingFields {
		if n > 0 {
			fields = append(fields, f)
		}
	}
	slices.Sort(fields)
	for _, f := range fields {
		lines = append(lines, Tpd(ctx, "FieldMissing", s.MissingFields[f], map[string]any{
			"Field": T(ctx, "Field_"+f),
		}))
	}

	for _, e := range s.Errors {
		lines = append(lines, Td(ctx, "FileFailed", map[string]any{"Path": e.Path, "Error": e.Error}))
	}
	return lines
}

// SummaryMessage is SummaryLines without the per-field and per-file detail,
// joined into one sentence group for API responses.
func SummaryMessage(ctx context.Context, s model.ImportSummary) string {
	brief := s
	brief.MissingFields = nil
	brief.Errors = nil
	return strings.Join(SummaryLines(ctx, brief), " ")
}
