package orchestrator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halvar/vellum/internal/apperr"
	"github.com/halvar/vellum/internal/compiler"
	"github.com/halvar/vellum/internal/docstore"
)

// Manager tracks live compile sessions keyed by session id.
type Manager struct {
	svc      compiler.Service
	store    docstore.Store
	debounce time.Duration
	logger   *slog.Logger
	notify   func(sessionID, kind string, seq uint64)

	mu       sync.Mutex
	sessions map[string]*Orchestrator
}

// NewManager creates a session manager. notify, if non-nil, receives
// every session lifecycle event for broadcast.
func NewManager(svc compiler.Service, store docstore.Store, debounce time.Duration,
	logger *slog.Logger, notify func(sessionID, kind string, seq uint64)) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		svc:      svc,
		store:    store,
		debounce: debounce,
		logger:   logger,
		notify:   notify,
		sessions: make(map[string]*Orchestrator),
	}
}

// Open starts a new session for a document (docID may be empty for an
// unsaved scratch session) and returns its id.
func (m *Manager) Open(docID string) (string, *Orchestrator) {
	id := uuid.NewString()
	var notify EventFunc
	if m.notify != nil {
		fn := m.notify
		notify = func(kind string, seq uint64) { fn(id, kind, seq) }
	}
	o := New(Config{
		DocID:    docID,
		Service:  m.svc,
		Store:    m.store,
		Debounce: m.debounce,
		Logger:   m.logger,
		Notify:   notify,
	})

	m.mu.Lock()
	m.sessions[id] = o
	m.mu.Unlock()

	m.logger.Info("session opened",
		slog.String("session_id", id), slog.String("doc_id", docID))
	return id, o
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Orchestrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.sessions[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

// Close tears down one session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	o, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return apperr.ErrNotFound
	}
	o.Close()
	if m.notify != nil {
		m.notify(id, "session.closed", 0)
	}
	m.logger.Info("session closed", slog.String("session_id", id))
	return nil
}

// CloseAll tears down every session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make(map[string]*Orchestrator, len(m.sessions))
	for id, o := range m.sessions {
		all[id] = o
	}
	m.sessions = make(map[string]*Orchestrator)
	m.mu.Unlock()
	for id, o := range all {
		o.Close()
		if m.notify != nil {
			m.notify(id, "session.closed", 0)
		}
	}
}
