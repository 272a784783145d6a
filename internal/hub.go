package internal

import "sync"

// Hub tracks every open websocket connection, announced or not. Presence
// broadcasts go to all of them, so a freshly connected client sees the
// roster before it announces itself.
type Hub struct {
	mutex sync.RWMutex
	conns map[Handle]bool
}

func NewHub() *Hub {
	return &Hub{conns: make(map[Handle]bool)}
}

func (hub *Hub) Add(h Handle) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.conns[h] = true
}

func (hub *Hub) Remove(h Handle) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.conns, h)
}

// Len returns the number of open connections.
func (hub *Hub) Len() int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return len(hub.conns)
}

// Each calls f for every open connection. Deliveries inside f are
// non-blocking, so holding the read lock across the loop is safe.
func (hub *Hub) Each(f func(Handle)) {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	for h := range hub.conns {
		f(h)
	}
}
