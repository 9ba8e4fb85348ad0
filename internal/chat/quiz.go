package chat

import (
	"context"
	"html"
	"strings"

	"github.com/pavelanni/classbot/internal/i18n"
)

// nextQuestion picks uniformly among the questions not yet asked.
func (e *Engine) nextQuestion(st *State) (Question, bool) {
	unused := e.bank.Unused(st)
	if len(unused) == 0 {
		return Question{}, false
	}
	return unused[e.pick(len(unused))], true
}

func (e *Engine) startQuiz(ctx context.Context, st *State, m message) (string, error) {
	if len(st.Asked) == 0 && st.TotalAnswered == 0 {
		st.Score = 0
	}
	q, ok := e.nextQuestion(st)
	if !ok {
		return i18n.T(ctx, "QuizAllUsed"), nil
	}
	st.Mode = ModeQuizQuestion
	st.ActiveQuestion = &q
	return i18n.Td(ctx, "QuizQuestion", map[string]any{"Question": html.EscapeString(q.Text)}), nil
}

// answerQuestion grades the message against the active question. The
// answer is correct when the expected text appears anywhere in the
// message, ignoring case.
func (e *Engine) answerQuestion(ctx context.Context, st *State, m message) (string, error) {
	q := *st.ActiveQuestion
	expected := strings.ToLower(strings.TrimSpace(q.Answer))

	st.TotalAnswered++
	var reply string
	if strings.Contains(m.lower, expected) {
		st.Score++
		reply = i18n.T(ctx, "QuizCorrect")
	} else {
		reply = i18n.Td(ctx, "QuizIncorrect", map[string]any{"Answer": html.EscapeString(q.Answer)})
	}

	st.Asked = append(st.Asked, q.Text)
	st.ActiveQuestion = nil
	st.Mode = ModeQuizContinue
	return reply + i18n.T(ctx, "QuizAnotherPrompt"), nil
}

func (e *Engine) continueQuiz(ctx context.Context, st *State, m message) (string, error) {
	switch m.lower {
	case "yes", "y":
		q, ok := e.nextQuestion(st)
		if !ok {
			st.Mode = ModeNone
			return i18n.Td(ctx, "QuizNoMoreQuestions", e.scoreData(st)), nil
		}
		st.Mode = ModeQuizQuestion
		st.ActiveQuestion = &q
		return i18n.Td(ctx, "QuizNextQuestion", map[string]any{"Question": html.EscapeString(q.Text)}), nil
	case "no", "n":
		st.Mode = ModeNone
		return i18n.Td(ctx, "QuizEnded", e.scoreData(st)), nil
	default:
		return i18n.T(ctx, "QuizYesNo"), nil
	}
}

func (e *Engine) resetQuiz(ctx context.Context, st *State, m message) (string, error) {
	st.ActiveQuestion = nil
	st.Asked = nil
	st.Score = 0
	st.TotalAnswered = 0
	st.Mode = ModeNone
	return i18n.T(ctx, "QuizReset"), nil
}

func (e *Engine) scoreData(st *State) map[string]any {
	return map[string]any{"Score": st.Score, "Total": st.TotalAnswered}
}
