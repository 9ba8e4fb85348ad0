package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/classbot/internal/chat"
	"github.com/pavelanni/classbot/internal/handler/views"
	"github.com/pavelanni/classbot/internal/model"
	"github.com/pavelanni/classbot/internal/session"
	"github.com/pavelanni/classbot/internal/store"
)

// SessionHeader carries the conversation session id in both directions.
const SessionHeader = "X-Session-ID"

const (
	maxBodyBytes    = 64 << 10
	maxSessionIDLen = 128
)

type healthCheck struct {
	name  string
	check func(context.Context) error
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	engine    *chat.Engine
	sessions  *session.Registry
	config    model.ServerConfig
	adminHash []byte
	checks    []healthCheck
}

// New creates a new Handler. A non-empty admin password is hashed with
// bcrypt and enables basic auth on the roster and feedback endpoints.
func New(s *store.Store, e *chat.Engine, reg *session.Registry, cfg model.ServerConfig) (*Handler, error) {
	h := &Handler{store: s, engine: e, sessions: reg, config: cfg}
	if cfg.AdminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		h.adminHash = hash
	}
	h.AddHealthCheck("database", s.Ping)
	return h, nil
}

// AddHealthCheck registers a dependency probed by /healthz.
func (h *Handler) AddHealthCheck(name string, check func(context.Context) error) {
	h.checks = append(h.checks, healthCheck{name: name, check: check})
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/healthz", h.handleHealth)
	r.Post("/chat", h.handleChat)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/students", h.handleListStudents)
		r.Post("/students", h.handleAddStudents)
		r.Get("/feedback", h.handleListFeedback)
		r.Get("/attendance/{date}", h.handleAttendance)
		r.Get("/export/{date}", h.handleExport)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id := r.Header.Get(SessionHeader)
	if id == "" {
		id = req.SessionID
	}
	if id == "" {
		id = session.DefaultID
	}
	if len(id) > maxSessionIDLen {
		writeError(w, http.StatusBadRequest, "session id too long")
		return
	}
	w.Header().Set(SessionHeader, id)

	ctx := model.ContextWithSessionID(r.Context(), id)
	var reply string
	err := h.sessions.Do(ctx, id, func(st *chat.State) error {
		var err error
		reply, err = h.engine.Handle(ctx, st, req.Message)
		return err
	})
	if err != nil {
		slog.Error("chat message failed", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ChatPage(session.NewID()).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		if err := c.check(r.Context()); err != nil {
			slog.Error("health check failed", "check", c.name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "check": c.name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
