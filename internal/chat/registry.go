package chat

import "sync"

// Registry maps session IDs to their Managers, creating sessions lazily on
// first use. Safe for concurrent use.
type Registry struct {
	factory func() *Manager

	mu       sync.Mutex
	sessions map[string]*Manager
}

// NewRegistry creates a Registry that builds new sessions with factory.
func NewRegistry(factory func() *Manager) *Registry {
	return &Registry{
		factory:  factory,
		sessions: make(map[string]*Manager),
	}
}

// Get returns the Manager for sessionID, creating it if needed.
func (r *Registry) Get(sessionID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	mgr, ok := r.sessions[sessionID]
	if !ok {
		mgr = r.factory()
		r.sessions[sessionID] = mgr
	}
	return mgr
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
