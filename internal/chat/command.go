package chat

import "strings"

// Command is a recognized command phrase.
type Command int

const (
	CmdNone Command = iota
	CmdStartAttendance
	CmdStartQuiz
	CmdResetQuiz
	CmdStats
	CmdStartFeedback
	CmdAddStudents
	CmdRandomStudent
	CmdHelp
)

var commandNames = map[Command]string{
	CmdNone:            "none",
	CmdStartAttendance: "start_attendance",
	CmdStartQuiz:       "start_quiz",
	CmdResetQuiz:       "reset_quiz",
	CmdStats:           "stats",
	CmdStartFeedback:   "start_feedback",
	CmdAddStudents:     "add_students",
	CmdRandomStudent:   "random_student",
	CmdHelp:            "help",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "unknown"
}

// addStudentsPrefix introduces a comma-separated list of names.
const addStudentsPrefix = "add students"

type commandMatcher struct {
	cmd   Command
	match func(lower string) bool
}

func exact(phrases ...string) func(string) bool {
	return func(lower string) bool {
		for _, p := range phrases {
			if lower == p {
				return true
			}
		}
		return false
	}
}

func prefix(p string) func(string) bool {
	return func(lower string) bool {
		return strings.HasPrefix(lower, p)
	}
}

// commandTable is checked in order; the first match wins.
var commandTable = []commandMatcher{
	{CmdStartAttendance, exact("mark my attendance", "mark attendance", "take attendance")},
	{CmdStartQuiz, exact("start quiz", "quiz", "ask question", "start a quiz")},
	{CmdResetQuiz, exact("reset quiz", "restart quiz")},
	{CmdStats, exact("show attendance stats", "attendance stats", "stats")},
	{CmdStartFeedback, exact("give feedback", "feedback")},
	{CmdAddStudents, prefix(addStudentsPrefix)},
	{CmdRandomStudent, exact("random student", "pick a student", "choose a student")},
	{CmdHelp, exact("help", "commands")},
}

// ParseCommand matches a trimmed, lower-cased message against the
// command table.
func ParseCommand(lower string) Command {
	for _, m := range commandTable {
		if m.match(lower) {
			return m.cmd
		}
	}
	return CmdNone
}

// splitNames splits a comma-separated list, trimming each name and
// dropping empty ones.
func splitNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if n := strings.TrimSpace(part); n != "" {
			names = append(names, n)
		}
	}
	return names
}
