package store

import (
	"context"
	"fmt"

	"github.com/growthcompass/compass/internal/model"
)

// Export builds an export of all stored records, or of one class when class
// is non-empty.
func (s *Store) Export(ctx context.Context, class string) (model.FeedbackExport, error) {
	recs, err := s.ListFeedback(ctx, model.FeedbackFilter{Class: class})
	if err != nil {
		return model.FeedbackExport{}, fmt.Errorf("export: %w", err)
	}
	return model.FeedbackExport{
		GeneratedAt: now(),
		Class:       class,
		Count:       len(recs),
		Records:     recs,
	}, nil
}
