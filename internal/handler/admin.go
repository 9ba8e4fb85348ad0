package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/classbot/internal/model"
)

func (h *Handler) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.ListStudents(r.Context())
	if err != nil {
		slog.Error("failed to list students", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students})
}

type addStudentsRequest struct {
	Students []string `json:"students"`
}

func (h *Handler) handleAddStudents(w http.ResponseWriter, r *http.Request) {
	var req addStudentsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	added := 0
	for _, name := range req.Students {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := h.store.AddStudent(r.Context(), name); err != nil {
			slog.Error("failed to add student", "name", name, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		added++
	}
	if added == 0 {
		writeError(w, http.StatusBadRequest, "no student names given")
		return
	}

	h.handleListStudents(w, r)
}

func (h *Handler) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.AllFeedback(r.Context())
	if err != nil {
		slog.Error("failed to list feedback", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": entries})
}

func (h *Handler) handleAttendance(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	records, err := h.store.AttendanceFor(r.Context(), date)
	if err != nil {
		slog.Error("failed to get attendance", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attendance": records})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	export, err := h.store.ExportDay(r.Context(), date)
	if err != nil {
		slog.Error("failed to export day", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="classbot-%s.json"`, date))
	writeJSON(w, http.StatusOK, export)
}
