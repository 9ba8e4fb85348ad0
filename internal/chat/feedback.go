package chat

import (
	"context"
	"fmt"

	"github.com/pavelanni/classbot/internal/i18n"
	"github.com/pavelanni/classbot/internal/model"
)

func (e *Engine) startFeedback(ctx context.Context, st *State, m message) (string, error) {
	st.Mode = ModeFeedback
	return i18n.T(ctx, "FeedbackPrompt"), nil
}

func (e *Engine) captureFeedback(ctx context.Context, st *State, m message) (string, error) {
	if err := e.saveFeedback(ctx, m); err != nil {
		return "", err
	}
	st.Mode = ModeNone
	return i18n.T(ctx, "FeedbackSaved"), nil
}

// fallbackFeedback stores unrecognized text without touching the mode.
func (e *Engine) fallbackFeedback(ctx context.Context, st *State, m message) (string, error) {
	if err := e.saveFeedback(ctx, m); err != nil {
		return "", err
	}
	return i18n.T(ctx, "FeedbackSaved"), nil
}

func (e *Engine) saveFeedback(ctx context.Context, m message) error {
	ts := e.now().Format(model.TimestampLayout)
	if err := e.gw.AddFeedback(ctx, m.raw, ts); err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}
