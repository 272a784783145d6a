package internal

import "sync"

// Handle is the registry's view of one live connection. Deliver enqueues an
// event without blocking and reports whether the connection accepted it.
type Handle interface {
	Deliver(ev Event) bool
}

// Registry maps user ids to their most recent announced connection. Each user
// holds at most one slot: a later announcement for the same id silently
// replaces the old handle, and removal is keyed by handle so a stale
// disconnect can never evict the replacement.
//
// The registry is written only by the websocket read pumps; the router and
// the presence broadcaster just read it.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]Handle
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]Handle)}
}

// Register records handle as the live connection for userID, replacing any
// previous one. It never fails.
func (r *Registry) Register(userID int64, handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = handle
}

// Unregister removes the entry currently owned by handle and reports whether
// one was removed. A handle that was already superseded by a newer
// registration is a no-op, not an error.
func (r *Registry) Unregister(handle Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, h := range r.conns {
		if h == handle {
			delete(r.conns, userID)
			return true
		}
	}
	return false
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID int64) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.conns[userID]
	return h, ok
}

// Online reports whether userID currently has a live connection.
func (r *Registry) Online(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// Snapshot returns the ids of all currently online users. Order is not
// significant; consumers treat the result as a set.
func (r *Registry) Snapshot() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}
