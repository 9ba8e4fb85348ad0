package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/classbot/internal/i18n"
	"github.com/pavelanni/classbot/internal/llm"
	"github.com/pavelanni/classbot/internal/llm/prompts"
	"github.com/pavelanni/classbot/internal/model"
	"github.com/pavelanni/classbot/internal/store"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one day's attendance and feedback as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "classroom.db", "SQLite database path")
	f.String("date", "", "Day to export, YYYY-MM-DD (default: today)")
	f.StringP("output", "o", "", "Output file path (default: stdout)")
	addLogFlags(f)
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	date := v.GetString("date")
	if date == "" {
		date = time.Now().Format(model.DateLayout)
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportDay(cmd.Context(), date)
	if err != nil {
		return fmt.Errorf("export %s: %w", date, err)
	}
	return writeJSONOutput(v.GetString("output"), export)
}

// writeJSONOutput writes v as indented JSON to path, or stdout for "" and "-".
func writeJSONOutput(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func studentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Manage the class roster",
	}
	pf := cmd.PersistentFlags()
	pf.String("db", "classroom.db", "SQLite database path")
	pf.StringP("lang", "l", "en", "Output language (en, ru)")
	addLogFlags(pf)

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME...",
		Short: "Register students by name",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runStudentsAdd,
	}, &cobra.Command{
		Use:   "list",
		Short: "List registered students",
		Args:  cobra.NoArgs,
		RunE:  runStudentsList,
	})
	return cmd
}

// openRoster sets up logging, i18n and the database for a students subcommand.
func openRoster(cmd *cobra.Command) (*store.Store, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runStudentsAdd(cmd *cobra.Command, args []string) error {
	db, err := openRoster(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	var added []string
	for _, arg := range args {
		// "add Ann, Bob" and "add Ann Bob" both register two students.
		for _, name := range strings.Split(arg, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if err := db.AddStudent(ctx, name); err != nil {
				return err
			}
			added = append(added, name)
		}
	}
	if len(added) == 0 {
		return errors.New("no student names given")
	}
	fmt.Fprintln(cmd.OutOrStdout(), appI18n.Td(ctx, "StudentsAdded", map[string]any{
		"Names": strings.Join(added, ", "),
	}))
	return nil
}

func runStudentsList(cmd *cobra.Command, _ []string) error {
	db, err := openRoster(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	names, err := db.ListStudents(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, n := range names {
		fmt.Fprintln(out, n)
	}
	fmt.Fprintln(out, appI18n.Tp(ctx, "StudentsRegistered", len(names)))
	return nil
}

func summarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize stored feedback with an OpenAI-compatible LLM",
		RunE:  runSummarize,
	}
	f := cmd.Flags()
	f.String("db", "classroom.db", "SQLite database path")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "LLM API key (or set CLASSBOT_LLM_KEY)")
	f.String("llm-model", "gpt-4o-mini", "LLM model name")
	f.String("style", string(prompts.StyleBrief), "Summary style (brief, detailed)")
	f.String("since", "", "Only include feedback from this day on, YYYY-MM-DD")
	f.Duration("timeout", 2*time.Minute, "Give up on the LLM after this long")
	f.Bool("json", false, "Print the summary as JSON")
	addLogFlags(f)
	return cmd
}

func runSummarize(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	style := v.GetString("style")
	if !prompts.IsValidStyle(style) {
		return fmt.Errorf("invalid --style %q (want brief or detailed)", style)
	}
	since := v.GetString("since")
	if since != "" {
		if _, err := time.Parse(model.DateLayout, since); err != nil {
			return fmt.Errorf("invalid --since %q: want YYYY-MM-DD", since)
		}
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
	defer cancel()

	entries, err := db.AllFeedback(ctx)
	if err != nil {
		return err
	}
	entries = feedbackSince(entries, since)

	client := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("LLM not reachable: %w", err)
	}
	slog.Info("summarizing feedback", "entries", len(entries), "style", style, "model", v.GetString("llm-model"))

	summary, err := client.SummarizeFeedback(ctx, entries, prompts.Style(style))
	if err != nil {
		return err
	}

	if v.GetBool("json") {
		return writeJSONOutput("-", summary)
	}
	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

// feedbackSince keeps entries stamped on or after day. Timestamps share the
// date prefix layout, so string comparison orders them.
func feedbackSince(entries []model.FeedbackEntry, day string) []model.FeedbackEntry {
	if day == "" {
		return entries
	}
	var out []model.FeedbackEntry
	for _, e := range entries {
		if e.Timestamp >= day {
			out = append(out, e)
		}
	}
	return out
}

func printSummary(w io.Writer, s *llm.Summary) {
	fmt.Fprintln(w, s.Summary)
	if s.Sentiment != "" {
		fmt.Fprintf(w, "\nSentiment: %s\n", s.Sentiment)
	}
	if len(s.Themes) > 0 {
		fmt.Fprintln(w, "\nThemes:")
		for _, t := range s.Themes {
			fmt.Fprintf(w, "  - %s\n", t)
		}
	}
	if len(s.ActionItems) > 0 {
		fmt.Fprintln(w, "\nAction items:")
		for _, a := range s.ActionItems {
			fmt.Fprintf(w, "  - %s\n", a)
		}
	}
}
