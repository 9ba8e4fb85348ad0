package model

import (
	"context"
	"time"
)

// Date and timestamp layouts used for stored records.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// AttendanceStatus is the recorded status of a student on a given day.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
)

// AttendanceMode controls how repeated attendance for the same day is stored.
type AttendanceMode string

const (
	// AttendanceAppend inserts a new row every time attendance is taken.
	AttendanceAppend AttendanceMode = "append"
	// AttendanceUpsert keeps one row per student per day.
	AttendanceUpsert AttendanceMode = "upsert"
)

// AttendanceRecord is one student's status for a day.
type AttendanceRecord struct {
	Date    string           `json:"-"`
	Student string           `json:"student"`
	Status  AttendanceStatus `json:"status"`
}

// FeedbackEntry is a stored piece of feedback.
type FeedbackEntry struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	SessionTTL     time.Duration
	AllowedOrigins []string // empty means all origins
	AdminPassword  string   // empty disables basic auth on read endpoints
}

type sessionCtxKey struct{}

// ContextWithSessionID stores the conversation session id in context.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

// SessionIDFromContext retrieves the session id from context (empty string if not set).
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionCtxKey{}).(string)
	return id
}
