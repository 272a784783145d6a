package internal

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 * 1024
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// we allow all origins in development; in production you should tighten this if the server is exposed publicly.
		return true
	},
}

// wsConn is one live websocket connection. It starts unannounced; the
// announce event binds it to the user authenticated on the upgrade request
// and puts it in the registry. The read pump is the only writer of the
// connection's registry entry.
type wsConn struct {
	server *Server
	conn   *websocket.Conn
	send   chan Event
	done   chan struct{}
	userID int64 // resolved from the upgrade request's token
}

// Deliver enqueues an event for the write pump. A full buffer means the
// client is too slow to read; the event is dropped rather than blocking
// the caller.
func (c *wsConn) Deliver(ev Event) bool {
	select {
	case <-c.done:
		return false
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// ServeWS authenticates and upgrades the request, then starts the
// connection's read and write pumps.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	authCtx, err := s.authenticateRequest(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	websocketConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	c := &wsConn{
		server: s,
		conn:   websocketConn,
		send:   make(chan Event, sendBuffer),
		done:   make(chan struct{}),
		userID: authCtx.UserID,
	}
	s.hub.Add(c)
	s.metrics.ConnOpened()

	go c.writePump()
	go c.readPump()
}

func (c *wsConn) readPump() {
	defer func() {
		c.server.hub.Remove(c)
		removed := c.server.registry.Unregister(c)
		close(c.done)
		c.conn.Close()
		c.server.metrics.ConnClosed()
		// Broadcast only when the disconnect actually changed the online
		// set. A stale handle that was already superseded by a newer
		// connection for the same user changes nothing, and clients do not
		// need to hear about it.
		if removed {
			c.server.broadcaster.BroadcastPresence()
		}
	}()
	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			// normal close or read error; the deferred cleanup runs.
			break
		}
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			log.Printf("ws: ignoring undecodable frame from user %d: %v", c.userID, err)
			continue
		}
		switch ev.Type {
		case EventAnnounce:
			c.handleAnnounce(ev)
		case EventSend:
			c.handleSend(ev)
		default:
			log.Printf("ws: ignoring unknown event %q from user %d", ev.Type, c.userID)
		}
	}
}

// handleAnnounce moves the connection into the announced state. The identity
// was already resolved on the upgrade request, so an announcement naming
// anyone else is ignored and the connection stays unannounced. Repeating the
// same announcement is a harmless overwrite.
func (c *wsConn) handleAnnounce(ev Event) {
	if ev.UserID == 0 || ev.UserID != c.userID {
		log.Printf("ws: ignoring announce for user %d on connection owned by %d", ev.UserID, c.userID)
		return
	}
	c.server.registry.Register(c.userID, c)
	c.server.broadcaster.BroadcastPresence()
}

// handleSend forwards a message the client already persisted through the
// HTTP API. The sender identity always comes from the connection, never
// from the frame.
func (c *wsConn) handleSend(ev Event) {
	if ev.Message == nil || ev.RecipientID == 0 {
		log.Printf("ws: ignoring malformed send event from user %d", c.userID)
		return
	}
	msg := *ev.Message
	msg.SenderID = c.userID
	msg.RecipientID = ev.RecipientID
	c.server.router.Route(msg)
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
