package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/pavelanni/classbot/internal/i18n"
	"github.com/pavelanni/classbot/internal/model"
)

func (e *Engine) startAttendance(ctx context.Context, st *State, m message) (string, error) {
	students, err := e.gw.ListStudents(ctx)
	if err != nil {
		return "", fmt.Errorf("list students: %w", err)
	}
	if len(students) == 0 {
		return i18n.T(ctx, "AttendanceNoStudents"), nil
	}
	st.Mode = ModeAttendance
	return i18n.T(ctx, "AttendancePrompt"), nil
}

// capturePresent treats the message as the list of present students and
// records a status for every registered student.
func (e *Engine) capturePresent(ctx context.Context, st *State, m message) (string, error) {
	mentioned := make(map[string]bool)
	for _, n := range splitNames(m.raw) {
		mentioned[strings.ToLower(n)] = true
	}

	students, err := e.gw.ListStudents(ctx)
	if err != nil {
		return "", fmt.Errorf("list students: %w", err)
	}

	date := e.today()
	var present, absent []string
	records := make([]model.AttendanceRecord, 0, len(students))
	for _, s := range students {
		status := model.StatusAbsent
		if mentioned[strings.ToLower(s)] {
			status = model.StatusPresent
			present = append(present, s)
		} else {
			absent = append(absent, s)
		}
		records = append(records, model.AttendanceRecord{Date: date, Student: s, Status: status})
	}
	if err := e.gw.RecordDay(ctx, date, records); err != nil {
		return "", fmt.Errorf("record attendance: %w", err)
	}

	st.PresentStudents = present
	st.Mode = ModeNone
	e.logger.Info("attendance taken", "date", date, "present", len(present), "absent", len(absent))

	reply := i18n.Td(ctx, "AttendanceComplete", map[string]any{
		"Present": len(present),
		"Absent":  len(absent),
	})
	if len(absent) > 0 {
		return reply + i18n.Td(ctx, "AttendanceAbsentList", map[string]any{"Names": joinEscaped(absent)}), nil
	}
	return reply + i18n.T(ctx, "AttendancePerfect"), nil
}

func (e *Engine) stats(ctx context.Context, st *State, m message) (string, error) {
	records, err := e.gw.AttendanceFor(ctx, e.today())
	if err != nil {
		return "", fmt.Errorf("attendance for today: %w", err)
	}
	sum := model.Summarize(records)
	if sum.Total == 0 {
		return i18n.T(ctx, "StatsNone"), nil
	}
	return i18n.Td(ctx, "StatsToday", map[string]any{
		"Total":   sum.Total,
		"Present": sum.Present,
		"Absent":  sum.Absent,
	}), nil
}
