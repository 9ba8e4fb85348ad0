package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/classbot/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	feedbackEntryRegex      = regexp.MustCompile(`(?i)</?\s*feedback-entry\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxEntryRunes = 2000

// Style selects how detailed a feedback summary is.
type Style string

const (
	// StyleBrief asks for a few sentences and two actions.
	StyleBrief Style = "brief"
	// StyleDetailed asks for grouped themes with actions per theme.
	StyleDetailed Style = "detailed"
)

var maxThemes = map[Style]int{
	StyleBrief:    3,
	StyleDetailed: 8,
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Style]*template.Template
)

// IsValidStyle checks if a summary style name is valid.
func IsValidStyle(s string) bool {
	_, ok := maxThemes[Style(s)]
	return ok
}

// SummaryData holds template data for summary prompts.
type SummaryData struct {
	Count     int
	From      string
	To        string
	Entries   []string
	MaxThemes int
}

func load() error {
	loadOnce.Do(func() {
		templates = make(map[Style]*template.Template)
		for style := range maxThemes {
			file := "templates/" + string(style) + ".txt"
			content, err := templateFS.ReadFile(file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New(string(style)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			templates[style] = tmpl
		}
	})
	return loadErr
}

// BuildSummaryPrompt builds the prompt that asks for a summary of entries.
func BuildSummaryPrompt(style Style, entries []model.FeedbackEntry) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := templates[style]
	if !ok {
		return "", errors.New("invalid summary style: " + string(style))
	}
	if len(entries) == 0 {
		return "", errors.New("no feedback entries")
	}

	data := SummaryData{
		Count:     len(entries),
		From:      entries[0].Timestamp,
		To:        entries[len(entries)-1].Timestamp,
		MaxThemes: maxThemes[style],
	}
	for _, e := range entries {
		data.Entries = append(data.Entries, sanitizeEntry(e.Text))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeEntry strips tags that could break out of the entry wrapper
// and caps the length.
func sanitizeEntry(text string) string {
	text = feedbackEntryRegex.ReplaceAllString(text, "")
	text = systemInstructionsRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		return "[empty message]"
	}

	if utf8.RuneCountInString(text) > maxEntryRunes {
		runes := []rune(text)
		text = string(runes[:maxEntryRunes]) + " [truncated]"
	}
	return text
}
