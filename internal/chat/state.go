package chat

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Mode is the active interaction mode of a conversation.
type Mode string

const (
	ModeNone         Mode = "none"
	ModeQuizQuestion Mode = "quiz_question"
	ModeQuizContinue Mode = "quiz_continue"
	ModeAttendance   Mode = "attendance"
	ModeFeedback     Mode = "feedback"
)

// State is the conversation state of one session. Only one mode can be
// active at a time because Mode is a single tag.
type State struct {
	Mode            Mode      `json:"mode"`
	ActiveQuestion  *Question `json:"active_question,omitempty"`
	Asked           []string  `json:"asked,omitempty"`
	PresentStudents []string  `json:"present_students,omitempty"`
	Score           int       `json:"score"`
	TotalAnswered   int       `json:"total_answered"`
}

// NewState returns an idle conversation.
func NewState() *State {
	return &State{Mode: ModeNone}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	if s.ActiveQuestion != nil {
		q := *s.ActiveQuestion
		c.ActiveQuestion = &q
	}
	c.Asked = slices.Clone(s.Asked)
	c.PresentStudents = slices.Clone(s.PresentStudents)
	return &c
}

func (s *State) QuestionActive() bool { return s.Mode == ModeQuizQuestion }

func (s *State) AwaitingContinue() bool { return s.Mode == ModeQuizContinue }

func (s *State) CapturingAttendance() bool { return s.Mode == ModeAttendance }

func (s *State) CapturingFeedback() bool { return s.Mode == ModeFeedback }

// WasAsked reports whether the question text has already been served.
func (s *State) WasAsked(text string) bool {
	return slices.Contains(s.Asked, text)
}

// Encode serializes s for session storage.
func (s *State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeState parses a state written by Encode.
func DecodeState(data []byte) (*State, error) {
	s := NewState()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode conversation state: %w", err)
	}
	s.normalize()
	return s, nil
}

// normalize fixes up a state decoded from storage.
func (s *State) normalize() {
	if s.Mode == "" {
		s.Mode = ModeNone
	}
	if s.Mode == ModeQuizQuestion && s.ActiveQuestion == nil {
		s.Mode = ModeNone
	}
	if s.Mode != ModeQuizQuestion {
		s.ActiveQuestion = nil
	}
}
