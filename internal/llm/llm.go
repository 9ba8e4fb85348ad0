package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/classbot/internal/llm/prompts"
	"github.com/pavelanni/classbot/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoFeedback is returned when there is nothing to summarize.
var ErrNoFeedback = errors.New("no feedback to summarize")

// Summary is the LLM's digest of stored feedback.
type Summary struct {
	Summary     string   `json:"summary"`
	Themes      []string `json:"themes"`
	ActionItems []string `json:"action_items"`
	Sentiment   string   `json:"sentiment"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping checks that the API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// SummarizeFeedback asks the LLM for a summary of the feedback entries.
func (c *Client) SummarizeFeedback(ctx context.Context, entries []model.FeedbackEntry, style prompts.Style) (*Summary, error) {
	if len(entries) == 0 {
		return nil, ErrNoFeedback
	}
	prompt, err := prompts.BuildSummaryPrompt(style, entries)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	var s Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	if s.Summary == "" {
		return nil, fmt.Errorf("LLM response has no summary (raw: %s)", raw)
	}
	return &s, nil
}
