package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/classbot/internal/model"
)

// ExportDay builds an export-ready snapshot of one day's attendance,
// the current roster and all feedback.
func (s *Store) ExportDay(ctx context.Context, date string) (*model.DayExport, error) {
	students, err := s.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	records, err := s.AttendanceFor(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	feedback, err := s.AllFeedback(ctx)
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}

	return &model.DayExport{
		Date:       date,
		ExportedAt: time.Now().UTC().Truncate(time.Second),
		Students:   students,
		Summary:    model.Summarize(records),
		Attendance: records,
		Feedback:   feedback,
	}, nil
}
