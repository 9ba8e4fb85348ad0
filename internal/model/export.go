package model

import "time"

// DayExport is the top-level JSON structure for the export command.
type DayExport struct {
	Date       string             `json:"date"`
	ExportedAt time.Time          `json:"exported_at"`
	Students   []string           `json:"students"`
	Summary    AttendanceSummary  `json:"summary"`
	Attendance []AttendanceRecord `json:"attendance"`
	Feedback   []FeedbackEntry    `json:"feedback"`
}

// AttendanceSummary holds aggregated counts for one day.
type AttendanceSummary struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

// Summarize counts present and absent rows.
func Summarize(records []AttendanceRecord) AttendanceSummary {
	var s AttendanceSummary
	for _, r := range records {
		switch r.Status {
		case StatusPresent:
			s.Present++
		case StatusAbsent:
			s.Absent++
		}
	}
	s.Total = s.Present + s.Absent
	return s
}
