package internal

import (
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// these are bubbletea messages that represent asynchronous events like
// connecting, a websocket event arriving, or a request finishing.
type (
	connectedMsg     struct{}
	connectFailedMsg struct{ err error }
	reconnectMsg     struct{}
	wsEventMsg       Event
	wsErrorMsg       error

	authOKMsg     struct{ session sessionFile }
	authFailedMsg struct{ err error }
	usersMsg      struct {
		users []userDTO
		err   error
	}
	historyMsg struct {
		peerID   int64
		messages []Message
		err      error
	}
	sentMsg struct {
		message *Message
		err     error
	}
	loggedOutMsg struct{}
)

// connectCmd dials the websocket endpoint. The guard makes it idempotent: a
// session holds at most one outstanding connection.
func (model *TUIModel) connectCmd() tea.Cmd {
	if model.websocketConn != nil && model.isConnected {
		return nil
	}
	return func() tea.Msg {
		wsURL, err := wsURLFromBase(model.serverURL, model.token)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{})
		if err != nil {
			return connectFailedMsg{err: err}
		}
		model.websocketConn = conn
		return connectedMsg{}
	}
}

// announceCmd declares which user this connection represents. The server
// only registers the connection once this arrives, so it runs right after
// the connected signal.
func (model *TUIModel) announceCmd() tea.Cmd {
	return model.writeEventCmd(Event{Type: EventAnnounce, UserID: model.userID})
}

// emitSendCmd asks the server to forward a message that the HTTP API has
// already persisted. Best effort: the recipient may be offline and that is
// fine.
func (model *TUIModel) emitSendCmd(msg Message) tea.Cmd {
	return model.writeEventCmd(Event{Type: EventSend, RecipientID: msg.RecipientID, Message: &msg})
}

func (model *TUIModel) writeEventCmd(ev Event) tea.Cmd {
	return func() tea.Msg {
		if model.websocketConn == nil {
			return wsErrorMsg(fmt.Errorf("websocket not connected"))
		}
		model.writeMutex.Lock()
		err := model.websocketConn.WriteJSON(ev)
		model.writeMutex.Unlock()
		if err != nil {
			return wsErrorMsg(err)
		}
		return nil
	}
}

// readOnceCmd reads a single event from the websocket; we schedule it again
// after every delivery to keep reading.
func (model *TUIModel) readOnceCmd() tea.Cmd {
	return func() tea.Msg {
		if model.websocketConn == nil {
			return wsErrorMsg(fmt.Errorf("websocket not connected"))
		}
		var ev Event
		if err := model.websocketConn.ReadJSON(&ev); err != nil {
			return wsErrorMsg(err)
		}
		return wsEventMsg(ev)
	}
}

func (model *TUIModel) scheduleReconnect() tea.Cmd {
	const retryDelay = 2 * time.Second
	// tea.Tick instead of time.After so the retry integrates with the
	// bubbletea event loop.
	return tea.Tick(retryDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

// disconnectWS closes the connection and clears the cached online set,
// which is stale the moment the presence feed stops.
func (model *TUIModel) disconnectWS() {
	if model.websocketConn != nil {
		_ = model.websocketConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = model.websocketConn.Close()
		model.websocketConn = nil
	}
	model.isConnected = false
	model.online = make(map[int64]bool)
}
