package client

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fenggwsx/roomchat/internal/config"
	"github.com/fenggwsx/roomchat/internal/protocol"
)

const (
	pipeHistoryLimit = 200
	chatHistoryLimit = 1000
)

type primaryView int

const (
	viewChat primaryView = iota
	viewHelp
	viewPipe
)

func (v primaryView) String() string {
	switch v {
	case viewHelp:
		return "help"
	case viewPipe:
		return "pipe"
	default:
		return "chat"
	}
}

type logLevel int

const (
	logLevelInfo logLevel = iota
	logLevelError
)

type logEntry struct {
	label string
	body  string
	level logLevel
}

type pipeDirection string

const (
	pipeDirectionIn  pipeDirection = "IN"
	pipeDirectionOut pipeDirection = "OUT"
)

type pipeEntry struct {
	direction pipeDirection
	event     string
	timestamp time.Time
	body      string
}

type commandSpec struct {
	trigger     string
	usage       string
	description string
}

type pendingRequest struct {
	event protocol.EventType
	name  string
	room  string
}

type styleSet struct {
	title         lipgloss.Style
	view          lipgloss.Style
	statusOnline  lipgloss.Style
	statusOffline lipgloss.Style
	label         lipgloss.Style
	value         lipgloss.Style
	logLabel      lipgloss.Style
	logBody       lipgloss.Style
	logLabelError lipgloss.Style
	logBodyError  lipgloss.Style
	notice        lipgloss.Style
	help          lipgloss.Style
}

type connectResultMsg struct {
	session *Session
	address string
	err     error
}

type sessionEnvelopeMsg struct {
	session  *Session
	envelope protocol.Envelope
}

type sessionClosedMsg struct {
	session *Session
	err     error
}

type sendResultMsg struct {
	session     *Session
	id          string
	description string
	err         error
}

// App is the bubbletea model of the chat client.
type App struct {
	cfg config.ClientConfig

	session      *Session
	serverAddr   string
	statusOnline bool
	username     string
	room         string
	loggingOut   bool

	pendingRequests map[string]pendingRequest

	view        primaryView
	chatHistory []string
	pipeHistory []pipeEntry
	logLine     logEntry

	input    textinput.Model
	viewport viewport.Model
	helper   help.Model
	styles   styleSet
	commands []commandSpec

	showHelp   bool
	helpView   string
	helpHeight int

	width  int
	height int
}

// NewApp creates the client model.
func NewApp(cfg config.ClientConfig) *App {
	if cfg.CommandPrefix == 0 {
		cfg.CommandPrefix = '/'
	}

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = fmt.Sprintf("Type a message or %chelp", cfg.CommandPrefix)
	input.CharLimit = 4096
	input.Focus()

	a := &App{
		cfg:             cfg,
		serverAddr:      cfg.ServerURL,
		pendingRequests: make(map[string]pendingRequest),
		view:            viewChat,
		input:           input,
		viewport:        viewport.New(80, 20),
		helper:          help.New(),
		styles:          buildStyles(),
		commands:        defaultCommands(cfg.CommandPrefix),
		logLine:         logEntry{label: "INFO", body: "Welcome! Use /connect to reach the server."},
	}
	a.updateInputWidth()
	a.updateViewportContent()
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateInputWidth()
		a.updateHelp()
		a.updateViewportSize()
		a.updateViewportContent()
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(msg)
	case connectResultMsg:
		return a, a.handleConnectResult(msg)
	case sessionEnvelopeMsg:
		if msg.session != a.session {
			return a, nil
		}
		cmd := a.handleSessionEnvelope(msg.envelope)
		return a, tea.Batch(cmd, a.listenForSession())
	case sessionClosedMsg:
		a.handleSessionClosed(msg)
		return a, nil
	case sendResultMsg:
		a.handleSendResult(msg)
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		a.closeSession()
		return a, tea.Quit
	case tea.KeyEnter:
		value := a.input.Value()
		a.input.Reset()
		a.updateHelp()
		a.updateViewportSize()
		return a, a.handleSubmit(value)
	case tea.KeyTab:
		a.handleTabCompletion()
		a.updateHelp()
		a.updateViewportSize()
		return a, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.updateHelp()
	a.updateViewportSize()
	return a, cmd
}

func (a *App) handleConnectResult(msg connectResultMsg) tea.Cmd {
	if msg.session != a.session {
		_ = msg.session.Close()
		return nil
	}
	if msg.err != nil {
		a.session = nil
		a.statusOnline = false
		a.logErrorf("Connect to %s failed: %v", msg.address, msg.err)
		return nil
	}
	a.statusOnline = true
	a.logf("Connected to %s. Use /login <name> <room>.", msg.address)
	return a.listenForSession()
}

func (a *App) handleSessionClosed(msg sessionClosedMsg) {
	if msg.session != a.session {
		return
	}
	a.session = nil
	a.statusOnline = false
	a.username = ""
	a.room = ""
	a.pendingRequests = make(map[string]pendingRequest)
	a.updateViewportContent()

	if a.loggingOut {
		a.loggingOut = false
		a.logf("Logged out. Use /connect to start a new session.")
		return
	}
	if msg.err != nil {
		a.logErrorf("Disconnected: %v", msg.err)
		return
	}
	a.logErrorf("Disconnected from server")
}

func (a *App) handleSendResult(msg sendResultMsg) {
	if msg.err == nil || msg.session != a.session {
		return
	}
	delete(a.pendingRequests, msg.id)
	a.logErrorf("Failed to send %s: %v", msg.description, msg.err)
}

func (a *App) closeSession() {
	if a.session != nil {
		_ = a.session.Close()
		a.session = nil
	}
	a.statusOnline = false
}

func (a *App) isConnected() bool {
	return a.session != nil && a.statusOnline
}

func (a *App) logf(format string, args ...interface{}) {
	a.logLine = logEntry{label: "INFO", body: fmt.Sprintf(format, args...), level: logLevelInfo}
}

func (a *App) logErrorf(format string, args ...interface{}) {
	a.logLine = logEntry{label: "ERROR", body: fmt.Sprintf(format, args...), level: logLevelError}
}
