package internal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

func (model *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			model.disconnectWS()
			return model, tea.Quit
		}
		return model.updateKey(msg)

	case authOKMsg:
		model.token = msg.session.Token
		model.userID = msg.session.UserID
		model.username = msg.session.Username
		model.pendingAuth = authNone
		if err := saveSessionToDisk(model.sessionPath, msg.session); err != nil {
			model.addNotice("could not save session: " + err.Error())
		}
		model.mode = modeRoster
		model.textInput.Blur()
		return model, tea.Batch(model.fetchUsersCmd(), model.connectCmd())

	case authFailedMsg:
		model.addNotice(msg.err.Error())
		model.pendingAuth = authNone
		model.mode = modeMenu
		model.textInput.Blur()
		return model, nil

	case usersMsg:
		if msg.err != nil {
			return model, model.handleAPIError(msg.err)
		}
		model.roster = make([]Friend, 0, len(msg.users))
		online := make(map[int64]bool, len(msg.users))
		for _, u := range msg.users {
			model.roster = append(model.roster, Friend{ID: u.ID, Username: u.Username})
			if u.Online {
				online[u.ID] = true
			}
		}
		// the roster response carries a presence snapshot; the websocket
		// feed overwrites it as soon as events arrive.
		model.online = online
		if model.rosterIndex >= len(model.roster) {
			model.rosterIndex = 0
		}
		return model, nil

	case historyMsg:
		if msg.err != nil {
			return model, model.handleAPIError(msg.err)
		}
		// the user may have switched peers while the request was in
		// flight; a transcript for the wrong peer is discarded.
		if model.selected == nil || model.selected.ID != msg.peerID {
			return model, nil
		}
		model.transcript = msg.messages
		return model, nil

	case sentMsg:
		if msg.err != nil {
			return model, model.handleAPIError(msg.err)
		}
		// the user may have switched peers before the send completed; the
		// message still forwards, but it must not land in the transcript
		// of whichever conversation is open now.
		if model.selected != nil && model.selected.ID == msg.message.RecipientID {
			model.transcript = append(model.transcript, *msg.message)
		}
		// stored first, then forwarded: the recipient only hears about a
		// message the server has already persisted.
		return model, model.emitSendCmd(*msg.message)

	case connectedMsg:
		model.isConnected = true
		model.connectionError = nil
		return model, tea.Batch(model.announceCmd(), model.readOnceCmd())

	case connectFailedMsg:
		model.isConnected = false
		model.connectionError = msg.err
		return model, model.scheduleReconnect()

	case reconnectMsg:
		if model.token == "" {
			return model, nil
		}
		return model, model.connectCmd()

	case wsEventMsg:
		return model.updateWSEvent(Event(msg))

	case wsErrorMsg:
		model.disconnectWS()
		model.connectionError = error(msg)
		if model.token == "" {
			return model, nil
		}
		return model, model.scheduleReconnect()

	case loggedOutMsg:
		model.disconnectWS()
		model.token = ""
		model.userID = 0
		model.roster = nil
		model.closeConversation()
		model.mode = modeMenu
		return model, nil
	}

	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(msg)
	return model, cmd
}

func (model *TUIModel) updateWSEvent(ev Event) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case EventPresence:
		model.applyPresence(ev.Online)
	case EventDeliver:
		if ev.Message != nil {
			model.applyDeliver(*ev.Message)
		}
	}
	return model, model.readOnceCmd()
}

func (model *TUIModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch model.mode {
	case modeMenu:
		return model.updateMenuKey(msg)
	case modeUserPrompt, modePassPrompt:
		return model.updatePromptKey(msg)
	case modeRoster:
		return model.updateRosterKey(msg)
	case modeChat:
		return model.updateChatKey(msg)
	}
	return model, nil
}

func (model *TUIModel) updateMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "1", "l":
		model.pendingAuth = authLogin
		model.beginPrompt("username", false)
	case "2", "s":
		model.pendingAuth = authSignup
		model.beginPrompt("username", false)
	case "3", "q", "esc":
		return model, tea.Quit
	}
	return model, nil
}

func (model *TUIModel) beginPrompt(placeholder string, secret bool) {
	model.textInput.Reset()
	model.textInput.Placeholder = placeholder
	if secret {
		model.textInput.EchoMode = textinput.EchoPassword
		model.textInput.EchoCharacter = '*'
		model.mode = modePassPrompt
	} else {
		model.textInput.EchoMode = textinput.EchoNormal
		model.mode = modeUserPrompt
	}
	model.textInput.Focus()
}

func (model *TUIModel) updatePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		model.pendingAuth = authNone
		model.mode = modeMenu
		model.textInput.Blur()
		return model, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(model.textInput.Value())
		if value == "" {
			return model, nil
		}
		if model.mode == modeUserPrompt {
			model.authUser = value
			model.beginPrompt("password", true)
			return model, nil
		}
		model.textInput.Blur()
		return model, model.authCmd(model.authUser, value)
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(msg)
	return model, cmd
}

func (model *TUIModel) updateRosterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if model.rosterIndex > 0 {
			model.rosterIndex--
		}
	case "down", "j":
		if model.rosterIndex < len(model.roster)-1 {
			model.rosterIndex++
		}
	case "enter":
		if model.rosterIndex < len(model.roster) {
			friend := model.roster[model.rosterIndex]
			model.selectPeer(friend)
			model.mode = modeChat
			model.textInput.Reset()
			model.textInput.Placeholder = "message"
			model.textInput.EchoMode = textinput.EchoNormal
			model.textInput.Focus()
			return model, model.fetchHistoryCmd(friend.ID)
		}
	case "r":
		return model, model.fetchUsersCmd()
	case "q", "esc":
		model.disconnectWS()
		return model, tea.Quit
	}
	return model, nil
}

func (model *TUIModel) updateChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		model.closeConversation()
		model.mode = modeRoster
		model.textInput.Blur()
		return model, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(model.textInput.Value())
		model.textInput.Reset()
		if text == "" {
			return model, nil
		}
		return model.handleChatInput(text)
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(msg)
	return model, cmd
}

func (model *TUIModel) handleChatInput(text string) (tea.Model, tea.Cmd) {
	if !strings.HasPrefix(text, "/") {
		return model, model.sendMessageCmd(text, "")
	}
	parts := strings.SplitN(text, " ", 2)
	switch parts[0] {
	case "/quit":
		model.disconnectWS()
		return model, tea.Quit
	case "/back":
		model.closeConversation()
		model.mode = modeRoster
		model.textInput.Blur()
		return model, nil
	case "/logout":
		return model, model.logoutCmd()
	case "/image":
		if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
			model.addNotice("usage: /image <path>")
			return model, nil
		}
		return model, model.sendImageCmd(strings.TrimSpace(parts[1]))
	default:
		model.addNotice("unknown command " + parts[0])
		return model, nil
	}
}

// handleAPIError routes request failures: an expired session falls back to
// the menu, anything else just surfaces as a notice.
func (model *TUIModel) handleAPIError(err error) tea.Cmd {
	if errors.Is(err, errUnauthorized) {
		_ = deleteSessionFile(model.sessionPath)
		model.addNotice("session expired, please log in again")
		return func() tea.Msg { return loggedOutMsg{} }
	}
	model.addNotice(err.Error())
	return nil
}

func (model *TUIModel) authCmd(username, password string) tea.Cmd {
	action := model.pendingAuth
	serverURL := model.serverURL
	return func() tea.Msg {
		if action == authSignup {
			if err := apiSignup(serverURL, username, password); err != nil {
				return authFailedMsg{err: err}
			}
		}
		resp, err := apiLogin(serverURL, username, password)
		if err != nil {
			return authFailedMsg{err: err}
		}
		return authOKMsg{session: sessionFile{
			Username: resp.Username,
			UserID:   resp.UserID,
			Token:    resp.Token,
		}}
	}
}

func (model *TUIModel) fetchUsersCmd() tea.Cmd {
	serverURL, token := model.serverURL, model.token
	return func() tea.Msg {
		users, err := apiGetUsers(serverURL, token)
		return usersMsg{users: users, err: err}
	}
}

func (model *TUIModel) fetchHistoryCmd(peerID int64) tea.Cmd {
	serverURL, token := model.serverURL, model.token
	return func() tea.Msg {
		messages, err := apiGetMessages(serverURL, token, peerID)
		return historyMsg{peerID: peerID, messages: messages, err: err}
	}
}

func (model *TUIModel) sendMessageCmd(text, imageDataURL string) tea.Cmd {
	if model.selected == nil {
		return nil
	}
	serverURL, token, peerID := model.serverURL, model.token, model.selected.ID
	return func() tea.Msg {
		message, err := apiSendMessage(serverURL, token, peerID, text, imageDataURL)
		return sentMsg{message: message, err: err}
	}
}

func (model *TUIModel) sendImageCmd(path string) tea.Cmd {
	dataURL, err := encodeImageFile(path)
	if err != nil {
		model.addNotice(err.Error())
		return nil
	}
	return model.sendMessageCmd("", dataURL)
}

func (model *TUIModel) logoutCmd() tea.Cmd {
	serverURL, token, sessionPath := model.serverURL, model.token, model.sessionPath
	return func() tea.Msg {
		_ = apiLogout(serverURL, token)
		_ = deleteSessionFile(sessionPath)
		return loggedOutMsg{}
	}
}

var imageMediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// encodeImageFile turns a local file into the data URL the messages API
// accepts.
func encodeImageFile(path string) (string, error) {
	mediaType, ok := imageMediaTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("unsupported image type %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
