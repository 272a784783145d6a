package internal

import (
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

// Friend is one roster entry as the client sees it.
type Friend struct {
	ID       int64
	Username string
}

// this model holds the bubbletea state for the chat client: the auth flow,
// the roster with its presence view, the open conversation, and the
// websocket connection.
type TUIModel struct {
	textInput textinput.Model

	serverURL   string
	sessionPath string

	token    string
	userID   int64
	username string

	roster      []Friend
	rosterIndex int
	online      map[int64]bool

	selected   *Friend
	transcript []Message

	websocketConn   *websocket.Conn
	writeMutex      sync.Mutex
	isConnected     bool
	connectionError error

	mode        appMode
	pendingAuth authAction
	authUser    string
	notices     []string
}

type appMode int

const (
	modeMenu appMode = iota
	modeUserPrompt
	modePassPrompt
	modeRoster
	modeChat
)

type authAction int

const (
	authNone authAction = iota
	authLogin
	authSignup
)

var (
	appTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	subtitleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).MarginTop(1)
	menuBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 2).MarginTop(1)
	menuItemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).PaddingLeft(1)
	menuHotkeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	menuHintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	noticeBoxStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("95")).Padding(1, 2).MarginTop(1)
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle  = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle      = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	bodyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	boxStyle        = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle   = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle   = lipgloss.NewStyle().Bold(true)
	activeUserStyle = usernameStyle.Copy().Foreground(lipgloss.Color("213"))
	systemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	onlineDotStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offlineDotStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	selectedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	imageTagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Italic(true)
	dividerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
)

// NewTUIModel builds a fresh client model. A cached session on disk skips
// the auth screens entirely; a stale token falls back to the menu once the
// first request comes back unauthorized.
func NewTUIModel(serverURL, username, sessionPath string) *TUIModel {
	input := textinput.New()
	input.CharLimit = 0
	input.Prompt = ""

	model := &TUIModel{
		textInput:   input,
		serverURL:   serverURL,
		sessionPath: sessionPath,
		username:    username,
		online:      make(map[int64]bool),
		mode:        modeMenu,
	}
	if session, err := loadSessionFromDisk(sessionPath); err == nil {
		model.token = session.Token
		model.userID = session.UserID
		model.username = session.Username
		model.mode = modeRoster
	}
	return model
}

func (model *TUIModel) Init() tea.Cmd {
	if model.mode == modeRoster {
		return tea.Batch(model.fetchUsersCmd(), model.connectCmd())
	}
	return nil
}

// applyPresence replaces the cached online set wholesale. Presence events
// always carry the complete set, so there is nothing to merge.
func (model *TUIModel) applyPresence(ids []int64) {
	online := make(map[int64]bool, len(ids))
	for _, id := range ids {
		online[id] = true
	}
	model.online = online
}

// applyDeliver appends the message only when it belongs to the open
// conversation. The server does not scope deliveries, so this filter is the
// client's job; everything else is dropped without being an error.
func (model *TUIModel) applyDeliver(msg Message) bool {
	if model.selected == nil {
		return false
	}
	if msg.SenderID != model.selected.ID && msg.RecipientID != model.selected.ID {
		return false
	}
	model.transcript = append(model.transcript, msg)
	return true
}

// selectPeer opens the conversation with f. The previous transcript and its
// delivery filter are gone before the new one exists, so a late delivery
// for the old peer can never land in the new transcript.
func (model *TUIModel) selectPeer(f Friend) {
	model.selected = &f
	model.transcript = nil
}

// closeConversation returns to the roster and stops accepting deliveries.
func (model *TUIModel) closeConversation() {
	model.selected = nil
	model.transcript = nil
}

func (model *TUIModel) addNotice(text string) {
	model.notices = append(model.notices, text)
	if len(model.notices) > 5 {
		model.notices = model.notices[len(model.notices)-5:]
	}
}

// RunClient launches the bubbletea program so the user can chat from the
// terminal.
func RunClient(serverURL, username, sessionPath string) error {
	program := tea.NewProgram(NewTUIModel(serverURL, username, sessionPath))
	_, err := program.Run()
	return err
}
