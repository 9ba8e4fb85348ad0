package chat

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/classbot/internal/i18n"
	"github.com/pavelanni/classbot/internal/model"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var errBoom = errors.New("boom")

// fakeGateway is an in-memory Gateway. Setting fail makes every call error.
type fakeGateway struct {
	students   []string
	attendance []model.AttendanceRecord
	feedback   []model.FeedbackEntry
	fail       bool
}

func (g *fakeGateway) AddStudent(_ context.Context, name string) error {
	if g.fail {
		return errBoom
	}
	if !slices.Contains(g.students, name) {
		g.students = append(g.students, name)
	}
	return nil
}

func (g *fakeGateway) ListStudents(context.Context) ([]string, error) {
	if g.fail {
		return nil, errBoom
	}
	return slices.Clone(g.students), nil
}

func (g *fakeGateway) RecordDay(_ context.Context, date string, records []model.AttendanceRecord) error {
	if g.fail {
		return errBoom
	}
	for _, r := range records {
		g.attendance = append(g.attendance, model.AttendanceRecord{Date: date, Student: r.Student, Status: r.Status})
	}
	return nil
}

func (g *fakeGateway) AttendanceFor(_ context.Context, date string) ([]model.AttendanceRecord, error) {
	if g.fail {
		return nil, errBoom
	}
	var out []model.AttendanceRecord
	for _, r := range g.attendance {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

func (g *fakeGateway) AddFeedback(_ context.Context, text, ts string) error {
	if g.fail {
		return errBoom
	}
	g.feedback = append(g.feedback, model.FeedbackEntry{Text: text, Timestamp: ts})
	return nil
}

func (g *fakeGateway) AllFeedback(context.Context) ([]model.FeedbackEntry, error) {
	if g.fail {
		return nil, errBoom
	}
	return g.feedback, nil
}

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func first(int) int { return 0 }

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	opts = append([]Option{WithPicker(first), WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(gw, opts...), gw
}

func smallBank(t *testing.T) *Bank {
	t.Helper()
	b, err := NewBank([]Question{
		{"What is the powerhouse of the cell?", "Mitochondria"},
		{"What is the capital of France?", "Paris"},
	})
	require.NoError(t, err)
	return b
}

func send(t *testing.T, e *Engine, st *State, msg string) string {
	t.Helper()
	reply, err := e.Handle(context.Background(), st, msg)
	require.NoError(t, err)
	assertOneMode(t, st)
	return reply
}

// assertOneMode checks that at most one mode flag is set.
func assertOneMode(t *testing.T, st *State) {
	t.Helper()
	active := 0
	for _, on := range []bool{st.ActiveQuestion != nil, st.AwaitingContinue(), st.CapturingAttendance(), st.CapturingFeedback()} {
		if on {
			active++
		}
	}
	assert.LessOrEqual(t, active, 1, "more than one mode active: %+v", st)
	assert.Equal(t, st.ActiveQuestion != nil, st.QuestionActive())
}

func TestQuizAnswerMatching(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		correct bool
	}{
		{"substring, mixed case", "i think it's mitochondria!", true},
		{"exact", "Mitochondria", true},
		{"surrounding spaces", "   MITOCHONDRIA  ", true},
		{"wrong", "nucleus", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, WithBank(smallBank(t)))
			st := NewState()

			reply := send(t, e, st, "start quiz")
			assert.Contains(t, reply, "What is the powerhouse of the cell?")
			require.True(t, st.QuestionActive())

			reply = send(t, e, st, tt.answer)
			assert.Equal(t, 1, st.TotalAnswered)
			assert.Equal(t, ModeQuizContinue, st.Mode)
			assert.Nil(t, st.ActiveQuestion)
			assert.Equal(t, []string{"What is the powerhouse of the cell?"}, st.Asked)
			assert.True(t, strings.HasSuffix(reply, "Do you want another question? (yes/no)"))
			if tt.correct {
				assert.Equal(t, 1, st.Score)
				assert.Contains(t, reply, "Correct!")
			} else {
				assert.Equal(t, 0, st.Score)
				assert.Contains(t, reply, "The correct answer is: <strong>Mitochondria</strong>")
			}
		})
	}
}

func TestQuizContinue(t *testing.T) {
	e, _ := newTestEngine(t, WithBank(smallBank(t)))
	st := NewState()

	send(t, e, st, "quiz")
	send(t, e, st, "mitochondria")

	// Anything but yes/no re-prompts and changes nothing.
	before := st.Clone()
	reply := send(t, e, st, "maybe")
	assert.Contains(t, reply, "Please reply with")
	assert.Equal(t, before, st)

	reply = send(t, e, st, "Y")
	assert.Contains(t, reply, "Here is your next question")
	assert.Contains(t, reply, "What is the capital of France?")
	assert.Equal(t, 1, st.TotalAnswered)

	send(t, e, st, "london")
	reply = send(t, e, st, "no")
	assert.Contains(t, reply, "Your final score: <strong>1/2</strong>")
	assert.Equal(t, ModeNone, st.Mode)
}

func TestQuizExhaustion(t *testing.T) {
	e, _ := newTestEngine(t)
	st := NewState()
	n := e.Bank().Len()

	send(t, e, st, "start quiz")
	for i := 0; i < n; i++ {
		require.True(t, st.QuestionActive(), "question %d", i)
		send(t, e, st, "no idea")
		reply := send(t, e, st, "yes")
		if i == n-1 {
			assert.Contains(t, reply, "No more questions left!")
			assert.Contains(t, reply, "Final score: <strong>0/9</strong>")
		}
	}
	assert.Equal(t, ModeNone, st.Mode)
	assert.Equal(t, n, st.TotalAnswered)
	assert.Len(t, st.Asked, n)

	// Every question served exactly once.
	seen := map[string]bool{}
	for _, q := range st.Asked {
		assert.False(t, seen[q], "question served twice: %s", q)
		seen[q] = true
	}

	reply := send(t, e, st, "start quiz")
	assert.Contains(t, reply, "All questions already used")
	assert.Equal(t, ModeNone, st.Mode)
}

func TestQuizReset(t *testing.T) {
	e, _ := newTestEngine(t, WithBank(smallBank(t)))
	st := NewState()

	send(t, e, st, "start quiz")
	send(t, e, st, "mitochondria")
	send(t, e, st, "n")
	require.Equal(t, 1, st.Score)

	// Starting again keeps the running score.
	send(t, e, st, "start quiz")
	assert.Equal(t, 1, st.Score)
	assert.Contains(t, st.ActiveQuestion.Text, "France")
	send(t, e, st, "paris")
	send(t, e, st, "no")

	reply := send(t, e, st, "Reset Quiz")
	assert.Contains(t, reply, "Quiz has been reset")
	assert.Zero(t, st.Score)
	assert.Zero(t, st.TotalAnswered)
	assert.Empty(t, st.Asked)

	reply = send(t, e, st, "start quiz")
	assert.Contains(t, reply, "What is the powerhouse of the cell?")
}

func TestResetQuizOnlyFromIdle(t *testing.T) {
	e, _ := newTestEngine(t, WithBank(smallBank(t)))
	st := NewState()

	send(t, e, st, "start quiz")
	reply := send(t, e, st, "reset quiz")

	// Consumed as an answer, not as a command.
	assert.Contains(t, reply, "Incorrect")
	assert.Equal(t, 1, st.TotalAnswered)
}

func TestAttendance(t *testing.T) {
	e, gw := newTestEngine(t)
	st := NewState()

	reply := send(t, e, st, "take attendance")
	assert.Contains(t, reply, "No students found")
	assert.Equal(t, ModeNone, st.Mode)

	send(t, e, st, "add students A, B, C")
	reply = send(t, e, st, "Mark my attendance")
	assert.Contains(t, reply, "comma-separated list")
	require.True(t, st.CapturingAttendance())

	reply = send(t, e, st, "A, c")
	assert.Equal(t, ModeNone, st.Mode)
	assert.Equal(t, []string{"A", "C"}, st.PresentStudents)
	assert.Contains(t, reply, "Attendance complete. 2 present, 1 absent.")
	assert.Contains(t, reply, "<strong>Absent:</strong> B")

	assert.Equal(t, []model.AttendanceRecord{
		{Date: "2024-05-01", Student: "A", Status: model.StatusPresent},
		{Date: "2024-05-01", Student: "B", Status: model.StatusAbsent},
		{Date: "2024-05-01", Student: "C", Status: model.StatusPresent},
	}, gw.attendance)

	reply = send(t, e, st, "stats")
	assert.Contains(t, reply, "Total: 3<br>Present: 2<br>Absent: 1")
}

func TestAttendancePerfectAndMalformed(t *testing.T) {
	e, _ := newTestEngine(t)
	st := NewState()
	send(t, e, st, "add students Alice, Bob")

	send(t, e, st, "take attendance")
	reply := send(t, e, st, "alice,BOB,")
	assert.Contains(t, reply, "Perfect attendance today!")

	send(t, e, st, "take attendance")
	reply = send(t, e, st, "nobody here today")
	assert.Contains(t, reply, "0 present, 2 absent")
	assert.Empty(t, st.PresentStudents)
}

func TestStatsEmpty(t *testing.T) {
	e, _ := newTestEngine(t)
	reply := send(t, e, NewState(), "attendance stats")
	assert.Contains(t, reply, "No attendance recorded for today yet.")
}

func TestAddStudents(t *testing.T) {
	e, gw := newTestEngine(t)
	st := NewState()

	reply := send(t, e, st, "add students Alice")
	assert.Equal(t, "Students added: Alice", reply)
	send(t, e, st, "ADD STUDENTS Alice")
	assert.Equal(t, []string{"Alice"}, gw.students)

	reply = send(t, e, st, "add students  , ,")
	assert.Contains(t, reply, "Provide names")
}

func TestRandomStudent(t *testing.T) {
	e, _ := newTestEngine(t, WithPicker(func(n int) int { return n - 1 }))
	st := NewState()

	reply := send(t, e, st, "random student")
	assert.Contains(t, reply, "Please take attendance first")

	st.PresentStudents = []string{"Alice", "Bob"}
	reply = send(t, e, st, "pick a student")
	assert.Contains(t, reply, "<strong>Bob</strong>")
}

func TestUserTextIsEscapedInReplies(t *testing.T) {
	const evil = "<img src=x onerror=alert(1)>"
	const escaped = "&lt;img src=x onerror=alert(1)&gt;"

	t.Run("roster names", func(t *testing.T) {
		e, _ := newTestEngine(t)
		st := NewState()

		reply := send(t, e, st, "add students "+evil+", Bob")
		assert.Contains(t, reply, escaped)
		assert.NotContains(t, reply, "<img")

		send(t, e, st, "take attendance")
		reply = send(t, e, st, "Bob")
		assert.Contains(t, reply, "<strong>Absent:</strong> "+escaped)
		assert.NotContains(t, reply, "<img")

		st.PresentStudents = []string{evil}
		reply = send(t, e, st, "random student")
		assert.Contains(t, reply, "<strong>"+escaped+"</strong>")
	})

	t.Run("question bank", func(t *testing.T) {
		bank, err := NewBank([]Question{{"Is 1 < 2 & 3 > 2?", "<b>yes</b>"}})
		require.NoError(t, err)
		e, _ := newTestEngine(t, WithBank(bank))
		st := NewState()

		reply := send(t, e, st, "start quiz")
		assert.Contains(t, reply, "Is 1 &lt; 2 &amp; 3 &gt; 2?")

		reply = send(t, e, st, "no idea")
		assert.Contains(t, reply, "<strong>&lt;b&gt;yes&lt;/b&gt;</strong>")
	})
}

func TestFeedback(t *testing.T) {
	e, gw := newTestEngine(t)
	st := NewState()

	reply := send(t, e, st, "give feedback")
	assert.Contains(t, reply, "please type your feedback")
	require.True(t, st.CapturingFeedback())

	// Command phrases are feedback bodies while capturing.
	reply = send(t, e, st, "  start quiz  ")
	assert.Equal(t, "✅ Thank you for your feedback! It has been saved.", reply)
	assert.Equal(t, ModeNone, st.Mode)
	require.Len(t, gw.feedback, 1)
	assert.Equal(t, model.FeedbackEntry{Text: "start quiz", Timestamp: "2024-05-01 09:30:00"}, gw.feedback[0])
}

func TestFallbackFeedback(t *testing.T) {
	e, gw := newTestEngine(t)
	st := NewState()

	reply := send(t, e, st, "The projector is Broken")
	assert.Equal(t, "✅ Thank you for your feedback! It has been saved.", reply)
	assert.Equal(t, ModeNone, st.Mode)
	require.Len(t, gw.feedback, 1)
	assert.Equal(t, "The projector is Broken", gw.feedback[0].Text)
}

func TestHelp(t *testing.T) {
	e, _ := newTestEngine(t)
	reply := send(t, e, NewState(), "commands")
	assert.Contains(t, reply, "<ul>")
	assert.Contains(t, reply, "random student")
}

func TestGatewayFailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name  string
		setup []string
		msg   string
	}{
		{"attendance start", []string{"add students A"}, "take attendance"},
		{"present list", []string{"add students A", "take attendance"}, "A"},
		{"feedback body", []string{"feedback"}, "great"},
		{"fallback", nil, "hello"},
		{"stats", nil, "stats"},
		{"add students", nil, "add students Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, gw := newTestEngine(t)
			st := NewState()
			for _, m := range tt.setup {
				send(t, e, st, m)
			}
			before := st.Clone()

			gw.fail = true
			reply, err := e.Handle(context.Background(), st, tt.msg)
			require.ErrorIs(t, err, errBoom)
			assert.Empty(t, reply)
			assert.Equal(t, before, st)
		})
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"mark attendance", CmdStartAttendance},
		{"start a quiz", CmdStartQuiz},
		{"restart quiz", CmdResetQuiz},
		{"show attendance stats", CmdStats},
		{"feedback", CmdStartFeedback},
		{"add students", CmdAddStudents},
		{"add studentsbob", CmdAddStudents},
		{"choose a student", CmdRandomStudent},
		{"help", CmdHelp},
		{"please help", CmdNone},
		{"quiz me", CmdNone},
		{"", CmdNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.in))
		})
	}
}

func TestStateEncodeDecode(t *testing.T) {
	st := &State{
		Mode:           ModeQuizQuestion,
		ActiveQuestion: &Question{Text: "Q", Answer: "A"},
		Asked:          []string{"P"},
		Score:          1,
		TotalAnswered:  2,
	}
	data, err := st.Encode()
	require.NoError(t, err)
	got, err := DecodeState(data)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	// A question mode without a question is repaired to idle.
	got, err = DecodeState([]byte(`{"mode":"quiz_question"}`))
	require.NoError(t, err)
	assert.Equal(t, ModeNone, got.Mode)

	_, err = DecodeState([]byte(`not json`))
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	st := &State{Mode: ModeQuizQuestion, ActiveQuestion: &Question{Text: "Q", Answer: "A"}, Asked: []string{"x"}}
	c := st.Clone()
	c.ActiveQuestion.Text = "changed"
	c.Asked[0] = "y"
	assert.Equal(t, "Q", st.ActiveQuestion.Text)
	assert.Equal(t, "x", st.Asked[0])
}
