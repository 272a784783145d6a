package internal

import "log"

// Router forwards persisted messages to the recipient's live connection.
// Callers only invoke Route after the message has been durably stored; the
// router itself never touches the database.
type Router struct {
	registry *Registry
	metrics  *Metrics
}

func NewRouter(registry *Registry, metrics *Metrics) *Router {
	return &Router{registry: registry, metrics: metrics}
}

// Route delivers msg to its recipient if they are online. An offline
// recipient is the expected quiet path: the message is already persisted and
// will be picked up by the next history fetch, so nothing is queued or
// retried here.
func (rt *Router) Route(msg Message) {
	handle, ok := rt.registry.Lookup(msg.RecipientID)
	if !ok {
		rt.metrics.IncRouted("offline")
		return
	}
	if handle.Deliver(Event{Type: EventDeliver, Message: &msg}) {
		rt.metrics.IncRouted("delivered")
		return
	}
	// The recipient's send buffer is full; real-time delivery is best
	// effort, so the event is dropped rather than blocking the sender.
	log.Printf("router: dropped delivery to slow connection for user %d", msg.RecipientID)
	rt.metrics.IncRouted("dropped")
}

// Broadcaster pushes the full online set to every open connection. It runs
// after each effective registry mutation; clients replace their cached set
// wholesale, so resending everything keeps them eventually consistent
// without diff bookkeeping.
type Broadcaster struct {
	hub      *Hub
	registry *Registry
	metrics  *Metrics
}

func NewBroadcaster(hub *Hub, registry *Registry, metrics *Metrics) *Broadcaster {
	return &Broadcaster{hub: hub, registry: registry, metrics: metrics}
}

func (b *Broadcaster) BroadcastPresence() {
	ev := Event{Type: EventPresence, Online: b.registry.Snapshot()}
	b.hub.Each(func(h Handle) {
		// A slow connection misses this update and catches the next one.
		_ = h.Deliver(ev)
	})
	b.metrics.IncPresenceBroadcast()
	b.metrics.SetOnlineUsers(len(ev.Online))
}
