package schema

import "sync"

// Registry holds all loaded schemas. Load replaces the whole set, so readers
// never observe a half-applied reload.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Get returns the schema with the given id, or nil.
func (r *Registry) Get(id string) *Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[id]
}

// All returns all registered schemas.
func (r *Registry) All() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	return out
}

// Load replaces all schemas in the registry.
func (r *Registry) Load(schemas []*Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas = make(map[string]*Schema, len(schemas))
	for _, s := range schemas {
		r.schemas[s.ID] = s
	}
}
