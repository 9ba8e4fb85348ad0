// Package session keeps one conversation state per session id and
// serializes the messages of each session.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/pavelanni/classbot/internal/chat"
)

const (
	// DefaultID is used when a client does not name a session.
	DefaultID = "default"
	// DefaultTTL is the idle time after which a session is forgotten.
	DefaultTTL = 12 * time.Hour
)

// Backend persists serialized conversation states.
type Backend interface {
	LoadSession(ctx context.Context, id string) ([]byte, bool, error)
	SaveSession(ctx context.Context, id string, state []byte, ttl time.Duration) error
}

// expirer is implemented by backends that need explicit cleanup.
type expirer interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// entry holds one session. mu serializes messages for the session; state
// is kept only when there is no backend. refs and lastUsed are guarded by
// Registry.mu.
type entry struct {
	mu       sync.Mutex
	state    *chat.State
	refs     int
	lastUsed time.Time
}

// Registry maps session ids to conversation states. Messages for the same
// session run one at a time; different sessions run concurrently.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     conc.WaitGroup
	closed bool
}

// New creates a registry. backend may be nil for in-memory sessions.
// Sessions idle for longer than ttl are dropped by a background sweeper.
func New(backend Backend, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		entries: make(map[string]*entry),
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		logger:  slog.Default().With("component", "session"),
		cancel:  cancel,
	}
	r.wg.Go(func() { r.sweepLoop(ctx) })
	return r
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// Do runs fn on the state of session id while holding the session lock.
// With a backend the state is read fresh before fn and written back after
// it. fn gets a working copy; the copy becomes the session state only when
// fn succeeds and the backend accepted it.
func (r *Registry) Do(ctx context.Context, id string, fn func(st *chat.State) error) error {
	if id == "" {
		id = DefaultID
	}
	e := r.acquire(id)
	defer r.release(e)

	e.mu.Lock()
	defer e.mu.Unlock()

	if r.backend == nil {
		if e.state == nil {
			e.state = chat.NewState()
		}
		work := e.state.Clone()
		if err := fn(work); err != nil {
			return err
		}
		e.state = work
		return nil
	}

	// The backend may be shared with other instances, so it is the source
	// of truth on every message.
	work, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(work); err != nil {
		return err
	}
	data, err := work.Encode()
	if err != nil {
		return err
	}
	if err := r.backend.SaveSession(ctx, id, data, r.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) acquire(id string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}
	e.refs++
	e.lastUsed = r.now()
	return e
}

func (r *Registry) release(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	e.lastUsed = r.now()
}

func (r *Registry) load(ctx context.Context, id string) (*chat.State, error) {
	data, ok, err := r.backend.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if !ok {
		return chat.NewState(), nil
	}
	st, err := chat.DecodeState(data)
	if err != nil {
		r.logger.Warn("discarding unreadable session state", "session", id, "error", err)
		return chat.NewState(), nil
	}
	return st, nil
}

// Sweep drops idle sessions from memory and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, e := range r.entries {
		if e.refs == 0 && now.Sub(e.lastUsed) > r.ttl {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) sweepLoop(ctx context.Context) {
	interval := r.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("evicted idle sessions", "count", n)
			}
			if ex, ok := r.backend.(expirer); ok {
				if n, err := ex.CleanupExpiredSessions(ctx); err != nil {
					r.logger.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					r.logger.Info("deleted expired sessions", "count", n)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the sweeper. It is safe to call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
