package chat

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed bank.schema.json
var bankSchema []byte

// Question is a quiz question with its expected answer.
type Question struct {
	Text   string `json:"question"`
	Answer string `json:"answer"`
}

// Bank is an ordered, immutable set of quiz questions.
type Bank struct {
	questions []Question
}

// DefaultBank returns the built-in trivia questions.
func DefaultBank() *Bank {
	return &Bank{questions: []Question{
		{"What is the powerhouse of the cell?", "Mitochondria"},
		{"What is 2 + 2 * 2?", "6"},
		{"Who wrote 'To Kill a Mockingbird'?", "Harper Lee"},
		{"What is the capital of France?", "Paris"},
		{"How many days are in a year?", "365"},
		{"What is the largest planet in our solar system?", "Jupiter"},
		{"Who wrote Romeo and Juliet?", "William Shakespeare"},
		{"What is H2O?", "Water"},
		{"What color is the sky?", "Blue"},
	}}
}

// NewBank builds a bank from questions. Question texts must be unique.
func NewBank(questions []Question) (*Bank, error) {
	seen := make(map[string]bool, len(questions))
	qs := make([]Question, 0, len(questions))
	for i, q := range questions {
		q.Text = strings.TrimSpace(q.Text)
		q.Answer = strings.TrimSpace(q.Answer)
		if q.Text == "" || q.Answer == "" {
			return nil, fmt.Errorf("question %d: empty question or answer", i+1)
		}
		if seen[q.Text] {
			return nil, fmt.Errorf("question %d: duplicate question %q", i+1, q.Text)
		}
		seen[q.Text] = true
		qs = append(qs, q)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}
	return &Bank{questions: qs}, nil
}

// LoadBank reads a JSON array of {"question", "answer"} objects.
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return ParseBank(data)
}

// ParseBank validates data against the bank schema and builds a bank.
func ParseBank(data []byte) (*Bank, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(bankSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate question bank: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid question bank: %s", strings.Join(msgs, "; "))
	}

	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	return NewBank(questions)
}

// Len returns the number of questions.
func (b *Bank) Len() int { return len(b.questions) }

// Unused returns the questions not yet asked in s, in bank order.
func (b *Bank) Unused(s *State) []Question {
	var out []Question
	for _, q := range b.questions {
		if !s.WasAsked(q.Text) {
			out = append(out, q)
		}
	}
	return out
}
