package internal

import "time"

// Event is the json envelope exchanged over a chat websocket. The type field
// decides which of the remaining fields are meaningful.
type Event struct {
	Type        string   `json:"type"`
	UserID      int64    `json:"user_id,omitempty"`      // announce
	RecipientID int64    `json:"recipient_id,omitempty"` // send
	Message     *Message `json:"message,omitempty"`      // send, deliver
	Online      []int64  `json:"online,omitempty"`       // presence
}

const (
	// EventAnnounce binds a connection to the user it represents.
	EventAnnounce = "announce"
	// EventSend asks the server to forward an already persisted message.
	EventSend = "send"
	// EventPresence carries the full set of online user ids.
	EventPresence = "presence"
	// EventDeliver pushes a message to its recipient's connection.
	EventDeliver = "deliver"
)

// Message is a persisted chat message as it travels over the wire. At least
// one of Text and Image is set; Image is the served path of a stored upload,
// never the raw bytes.
type Message struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"sender_id"`
	RecipientID int64     `json:"recipient_id"`
	Text        string    `json:"text,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
