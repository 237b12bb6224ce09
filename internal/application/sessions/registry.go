// Package sessions maps live connections to the room and member they joined.
package sessions

import "sync"

type Binding struct {
	RoomID   string
	MemberID string
}

type Registry struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]Binding)}
}

// Bind records the connection's current room and returns the binding it
// replaced, if any.
func (r *Registry) Bind(connectionID string, b Binding) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.bindings[connectionID]
	r.bindings[connectionID] = b
	return prev, ok
}

func (r *Registry) Lookup(connectionID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[connectionID]
	return b, ok
}

func (r *Registry) Unbind(connectionID string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[connectionID]
	delete(r.bindings, connectionID)
	return b, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
