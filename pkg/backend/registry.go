package backend

import (
	"sort"
	"sync"
)

// Registry maps backend ids to registered handles. Registration happens at
// startup or reconfiguration, not per-request, so reads vastly outnumber
// writes; a RWMutex keeps the read path a short critical section.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Register inserts or replaces the handle for its id. Re-registering an id
// replaces the prior handle; last write wins, no duplicate error.
func (r *Registry) Register(h Handle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.handles[h.ID()] = h
	r.mu.Unlock()
}

// Unregister removes the handle for id, if present.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.handles, id)
	r.mu.Unlock()
}

// Get returns the handle for id. A missing id is (nil, false); the
// orchestrator converts that into a BackendNotFound error.
func (r *Registry) Get(id string) (Handle, bool) {
	r.mu.RLock()
	h, ok := r.handles[id]
	r.mu.RUnlock()
	return h, ok
}

// IDs returns all registered backend ids in lexical order, the candidate
// set handed to selection strategies.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
