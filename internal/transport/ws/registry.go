package ws

import "sync"

// Binding ties a transport connection to the (room, participant) acting on it.
type Binding struct {
	RoomCode      string
	ParticipantID string
}

// Registry maps connection IDs to bindings. It is the answer to "who sent
// this" for every inbound command, kept separate from room state so it can be
// read without the room lock.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Binding
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Binding)}
}

func (r *Registry) Register(connID string, binding Binding) {
	r.mu.Lock()
	r.conns[connID] = binding
	r.mu.Unlock()
}

func (r *Registry) Resolve(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.conns[connID]
	return b, ok
}

func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	delete(r.conns, connID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
