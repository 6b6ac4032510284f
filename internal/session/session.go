// Package session hosts one runtime page per session: a query coordinator,
// the view preferences, and the expand state of the hierarchy view. The
// HTTP surface exposes the coordinator's imperative handlers to peripheral
// controls (search box, filter pane, pagination).
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"metagrid/internal/apperr"
	"metagrid/internal/hierarchy"
	"metagrid/internal/query"
	"metagrid/internal/schema"
	"metagrid/internal/view"
)

type Session struct {
	ID          string
	Coordinator *query.Coordinator
	Expand      *hierarchy.ExpandState

	mu           sync.Mutex
	mode         view.Mode
	showMetadata bool
}

// SetView updates the presentation preferences. The effective mode is
// re-resolved against the schema on every snapshot.
func (s *Session) SetView(mode view.Mode, showMetadata bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.showMetadata = showMetadata
}

func (s *Session) viewPrefs() (view.Mode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, s.showMetadata
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	registry *schema.Registry
	backend  query.Backend
	debounce time.Duration
}

func NewManager(reg *schema.Registry, backend query.Backend, debounce time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		registry: reg,
		backend:  backend,
		debounce: debounce,
	}
}

// Open mounts a page: builds a coordinator with mount defaults (page 1,
// default page size, no filters) and issues the initial fetch. callerID,
// when known, becomes the default assignment-scope user.
func (m *Manager) Open(schemaID string, scope query.Scope, pageSize query.PageSize, callerID string) (*Session, error) {
	sch := m.registry.Get(schemaID)
	if sch == nil {
		return nil, apperr.UnknownSchema(schemaID)
	}

	if scope.AssignmentActive && scope.AssignmentUserID == "" {
		scope.AssignmentUserID = callerID
	}

	coord := query.NewCoordinator(sch, m.backend, query.Config{
		Scope:    scope,
		PageSize: pageSize,
		Debounce: m.debounce,
	})

	s := &Session{
		ID:          uuid.New().String(),
		Coordinator: coord,
		Expand:      hierarchy.NewExpandState(),
		mode:        view.ModeTable,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	coord.Start()
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session", id)
	}
	return s, nil
}

// Close discards a session, cancelling any in-flight fetch. Query state
// does not survive navigation away from the page.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Coordinator.Stop()
	}
}
