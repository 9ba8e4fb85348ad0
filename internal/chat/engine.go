// Package chat implements the classroom conversation: a per-session state
// machine that routes each message to the quiz, attendance or feedback
// flow, or to a command.
package chat

import (
	"context"
	"html"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/pavelanni/classbot/internal/i18n"
	"github.com/pavelanni/classbot/internal/model"
)

// Gateway is the persistence the engine needs.
type Gateway interface {
	AddStudent(ctx context.Context, name string) error
	ListStudents(ctx context.Context) ([]string, error)
	RecordDay(ctx context.Context, date string, records []model.AttendanceRecord) error
	AttendanceFor(ctx context.Context, date string) ([]model.AttendanceRecord, error)
	AddFeedback(ctx context.Context, text, timestamp string) error
	AllFeedback(ctx context.Context) ([]model.FeedbackEntry, error)
}

// message is an incoming chat message, trimmed, with a lower-cased copy
// for matching.
type message struct {
	raw   string
	lower string
}

type handlerFunc func(e *Engine, ctx context.Context, st *State, m message) (string, error)

// modeHandlers consume the message when a mode is active.
var modeHandlers = map[Mode]handlerFunc{
	ModeQuizQuestion: (*Engine).answerQuestion,
	ModeQuizContinue: (*Engine).continueQuiz,
	ModeAttendance:   (*Engine).capturePresent,
	ModeFeedback:     (*Engine).captureFeedback,
}

// commandHandlers run when no mode is active and a command matched.
var commandHandlers = map[Command]handlerFunc{
	CmdStartAttendance: (*Engine).startAttendance,
	CmdStartQuiz:       (*Engine).startQuiz,
	CmdResetQuiz:       (*Engine).resetQuiz,
	CmdStats:           (*Engine).stats,
	CmdStartFeedback:   (*Engine).startFeedback,
	CmdAddStudents:     (*Engine).addStudents,
	CmdRandomStudent:   (*Engine).randomStudent,
	CmdHelp:            (*Engine).help,
}

// Engine routes chat messages to the quiz, attendance and feedback
// handlers according to the conversation state.
type Engine struct {
	gw     Gateway
	bank   *Bank
	pick   func(n int) int
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithBank replaces the default question bank.
func WithBank(b *Bank) Option {
	return func(e *Engine) { e.bank = b }
}

// WithPicker sets the function used to choose uniformly among n items.
func WithPicker(pick func(n int) int) Option {
	return func(e *Engine) { e.pick = pick }
}

// WithClock sets the time source used for attendance dates and
// feedback timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine backed by gw.
func New(gw Gateway, opts ...Option) *Engine {
	e := &Engine{
		gw:     gw,
		bank:   DefaultBank(),
		pick:   rand.IntN,
		now:    time.Now,
		logger: slog.Default().With("component", "chat"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bank returns the question bank in use.
func (e *Engine) Bank() *Bank { return e.bank }

// Handle processes one message and returns the reply. The handler works
// on a copy of st; st is updated only when Handle returns no error.
func (e *Engine) Handle(ctx context.Context, st *State, text string) (string, error) {
	raw := strings.TrimSpace(text)
	m := message{raw: raw, lower: strings.ToLower(raw)}

	work := st.Clone()
	reply, err := e.route(ctx, work, m)
	if err != nil {
		return "", err
	}
	*st = *work
	return reply, nil
}

func (e *Engine) route(ctx context.Context, st *State, m message) (string, error) {
	log := e.logger.With("session", model.SessionIDFromContext(ctx))
	if h, ok := modeHandlers[st.Mode]; ok {
		log.Debug("dispatch by mode", "mode", st.Mode)
		return h(e, ctx, st, m)
	}

	cmd := ParseCommand(m.lower)
	if h, ok := commandHandlers[cmd]; ok {
		log.Debug("dispatch by command", "command", cmd)
		return h(e, ctx, st, m)
	}

	log.Debug("unrecognized message stored as feedback")
	return e.fallbackFeedback(ctx, st, m)
}

func (e *Engine) today() string {
	return e.now().Format(model.DateLayout)
}

func (e *Engine) addStudents(ctx context.Context, st *State, m message) (string, error) {
	names := splitNames(m.raw[len(addStudentsPrefix):])
	if len(names) == 0 {
		return i18n.T(ctx, "StudentsUsage"), nil
	}
	for _, n := range names {
		if err := e.gw.AddStudent(ctx, n); err != nil {
			return "", err
		}
	}
	return i18n.Td(ctx, "StudentsAdded", map[string]any{"Names": joinEscaped(names)}), nil
}

func (e *Engine) randomStudent(ctx context.Context, st *State, m message) (string, error) {
	if len(st.PresentStudents) == 0 {
		return i18n.T(ctx, "RandomNeedsAttendance"), nil
	}
	name := st.PresentStudents[e.pick(len(st.PresentStudents))]
	return i18n.Td(ctx, "RandomPicked", map[string]any{"Name": html.EscapeString(name)}), nil
}

// joinEscaped lists names for an HTML reply. Replies are markup, so
// anything a user typed is escaped before it goes into one.
func joinEscaped(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = html.EscapeString(n)
	}
	return strings.Join(out, ", ")
}

func (e *Engine) help(ctx context.Context, st *State, m message) (string, error) {
	return i18n.T(ctx, "Help"), nil
}
