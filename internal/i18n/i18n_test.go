package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "Classroom Assistant" {
		t.Errorf("T(AppTitle) = %q, want 'Classroom Assistant'", got)
	}

	got = T(ctx, "QuizCorrect")
	if got != "✅ Correct! Well done." {
		t.Errorf("T(QuizCorrect) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "AppTitle")
	if got != "Помощник учителя" {
		t.Errorf("T(AppTitle) = %q, want 'Помощник учителя'", got)
	}

	got = T(ctx, "Send")
	if got != "Отправить" {
		t.Errorf("T(Send) = %q, want 'Отправить'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	tests := []struct {
		count int
		want  string
	}{
		{1, "1 student registered."},
		{5, "5 students registered."},
	}
	for _, tt := range tests {
		if got := Tp(ctx, "StudentsRegistered", tt.count); got != tt.want {
			t.Errorf("Tp(StudentsRegistered, %d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "QuizIncorrect", map[string]any{"Answer": "Paris"})
	want := "❌ Incorrect. The correct answer is: <strong>Paris</strong>."
	if got != want {
		t.Errorf("Td(QuizIncorrect) = %q, want %q", got, want)
	}

	// Template data is not HTML-escaped.
	got = Td(ctx, "StudentsAdded", map[string]any{"Names": "<em>Alice</em>"})
	if got != "Students added: <em>Alice</em>" {
		t.Errorf("Td(StudentsAdded) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLocaleKeysMatch(t *testing.T) {
	initLang(t, "en")
	en := WithLocalizer(context.Background(), NewLocalizer("en"))
	ru := WithLocalizer(context.Background(), NewLocalizer("ru"))

	for _, id := range []string{
		"QuizCorrect", "QuizAnotherPrompt", "QuizYesNo", "QuizAllUsed", "QuizReset",
		"AttendanceNoStudents", "AttendancePrompt", "AttendancePerfect",
		"StatsNone", "FeedbackPrompt", "FeedbackSaved", "StudentsUsage",
		"RandomNeedsAttendance", "Help", "ChatPlaceholder",
	} {
		if got := T(en, id); got == id {
			t.Errorf("en: missing %s", id)
		}
		if got := T(ru, id); got == id {
			t.Errorf("ru: missing %s", id)
		}
	}
}

func TestInitUnknownLanguage(t *testing.T) {
	initLang(t, "ru")
	if err := Init("de"); err == nil {
		t.Fatal("expected error for a language without a locale file")
	}
	if err := Init("not a tag!"); err == nil {
		t.Fatal("expected error for a malformed tag")
	}
	// A failed Init keeps the previous bundle.
	if got := Languages(); len(got) == 0 || got[0] != "ru" {
		t.Errorf("Languages() = %v, want ru first", got)
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "ru")
	got := Languages()
	if strings.Join(got, ",") != "ru,en" {
		t.Errorf("Languages() = %v, want [ru en]", got)
	}
}

func TestMatch(t *testing.T) {
	initLang(t, "en")

	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"ru-RU,ru;q=0.9,en;q=0.8", "ru"},
		{"en-US,en;q=0.9", "en"},
		{"ja", ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := Match(tt.header); got != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Send")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "Отправить" {
		t.Errorf("expected Russian reply, got %q", got)
	}
	if cl := rec.Header().Get("Content-Language"); cl != "ru" {
		t.Errorf("Content-Language = %q, want ru", cl)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got != "Send" {
		t.Errorf("expected English fallback, got %q", got)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Language"), "en") {
		t.Errorf("Content-Language = %q, want en", rec.Header().Get("Content-Language"))
	}
}
