package client

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/roomchat/internal/config"
	"github.com/fenggwsx/roomchat/internal/protocol"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	a := NewApp(config.ClientConfig{ServerURL: "ws://127.0.0.1:1/ws", CommandPrefix: '/'})
	a.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return a
}

// online pretends a connection is established without dialing.
func online(a *App) *Session {
	s := NewSession(a.serverAddr)
	a.session = s
	a.statusOnline = true
	return s
}

func envelope(t *testing.T, event protocol.EventType, id string, payload interface{}) protocol.Envelope {
	t.Helper()
	frame, err := protocol.Encode(event, id, payload)
	require.NoError(t, err)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	return env
}

func submit(a *App, value string) tea.Cmd {
	a.input.SetValue(value)
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func pendingID(t *testing.T, a *App, event protocol.EventType) string {
	t.Helper()
	for id, req := range a.pendingRequests {
		if req.event == event {
			return id
		}
	}
	t.Fatalf("no pending %s request", event)
	return ""
}

func TestNewAppDefaults(t *testing.T) {
	a := NewApp(config.ClientConfig{ServerURL: "ws://example/ws"})

	assert.Equal(t, '/', a.cfg.CommandPrefix)
	assert.Equal(t, viewChat, a.view)
	assert.False(t, a.statusOnline)
	assert.Contains(t, a.statusLine(), "OFFLINE")
	assert.Contains(t, a.statusLine(), "ws://example/ws")
	assert.NotEmpty(t, a.View())
}

func TestCommandsRequireConnection(t *testing.T) {
	a := newTestApp(t)

	assert.Nil(t, submit(a, "/login ada lobby"))
	assert.Equal(t, logLevelError, a.logLine.level)
	assert.Contains(t, a.logLine.body, "Not connected")

	assert.Nil(t, submit(a, "hello"))
	assert.Contains(t, a.logLine.body, "Not connected")
	assert.Empty(t, a.pendingRequests)
}

func TestLoginUsage(t *testing.T) {
	a := newTestApp(t)
	online(a)

	assert.Nil(t, submit(a, "/login ada"))
	assert.Equal(t, logLevelError, a.logLine.level)
	assert.Contains(t, a.logLine.body, "Usage: /login <name> <room>")
}

func TestLoginAckReplaysHistory(t *testing.T) {
	a := newTestApp(t)
	s := online(a)

	require.NotNil(t, submit(a, "/login ada lobby"))
	id := pendingID(t, a, protocol.EventLogin)

	history := []protocol.MessagePayload{
		{User: "bob", Text: "earlier", Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	a.Update(sessionEnvelopeMsg{session: s, envelope: envelope(t, protocol.EventAck, id, protocol.LoginAck(history))})

	assert.Equal(t, "ada", a.username)
	assert.Equal(t, "lobby", a.room)
	require.Len(t, a.chatHistory, 1)
	assert.Contains(t, a.chatHistory[0], "bob: earlier")
	assert.Empty(t, a.pendingRequests)
	assert.Equal(t, logLevelInfo, a.logLine.level)
	assert.Contains(t, a.statusLine(), "lobby")

	assert.Nil(t, submit(a, "/login ada other"))
	assert.Contains(t, a.logLine.body, "Already in room lobby")
}

func TestLoginAckError(t *testing.T) {
	a := newTestApp(t)
	s := online(a)

	submit(a, "/login ada lobby")
	id := pendingID(t, a, protocol.EventLogin)
	a.Update(sessionEnvelopeMsg{session: s, envelope: envelope(t, protocol.EventAck, id, protocol.ErrorAck("name already taken"))})

	assert.Empty(t, a.room)
	assert.Equal(t, logLevelError, a.logLine.level)
	assert.Equal(t, "Login failed: name already taken", a.logLine.body)
}

func TestMessagesAndNotifications(t *testing.T) {
	a := newTestApp(t)
	s := online(a)
	a.room = "lobby"
	a.username = "ada"

	a.Update(sessionEnvelopeMsg{session: s, envelope: envelope(t, protocol.EventMessage, "", protocol.MessagePayload{
		User: "bob", Text: "hi ada", Timestamp: time.Now(),
	})})
	a.Update(sessionEnvelopeMsg{session: s, envelope: envelope(t, protocol.EventNotification, "", protocol.NotificationPayload{
		Title: "User joined", Description: "carol joined the room",
	})})

	require.Len(t, a.chatHistory, 2)
	assert.Contains(t, a.chatHistory[0], "bob: hi ada")
	assert.Contains(t, a.chatHistory[1], "* carol joined the room")
	assert.Len(t, a.pipeHistory, 2)
}

func TestSendMessageTracksRequest(t *testing.T) {
	a := newTestApp(t)
	s := online(a)

	assert.Nil(t, submit(a, "hello"))
	assert.Contains(t, a.logLine.body, "Join a room first")

	a.room = "lobby"
	require.NotNil(t, submit(a, "hello"))
	id := pendingID(t, a, protocol.EventSendMessage)
	require.Len(t, a.pipeHistory, 1)
	assert.Equal(t, pipeDirectionOut, a.pipeHistory[0].direction)

	a.Update(sessionEnvelopeMsg{session: s, envelope: envelope(t, protocol.EventAck, id, protocol.ErrorAck("join a room first"))})
	assert.Equal(t, "Message failed: join a room first", a.logLine.body)
	assert.Empty(t, a.pendingRequests)
}

func TestUnmatchedErrorAck(t *testing.T) {
	a := newTestApp(t)
	s := online(a)

	a.Update(sessionEnvelopeMsg{session: s, envelope: envelope(t, protocol.EventAck, "", protocol.ErrorAck("invalid frame"))})
	assert.Equal(t, logLevelError, a.logLine.level)
	assert.Equal(t, "Server: invalid frame", a.logLine.body)
}

func TestLogoutThenClose(t *testing.T) {
	a := newTestApp(t)
	s := online(a)
	a.room = "lobby"
	a.username = "ada"

	require.NotNil(t, submit(a, "/logout"))
	id := pendingID(t, a, protocol.EventLogout)
	a.Update(sessionEnvelopeMsg{session: s, envelope: envelope(t, protocol.EventAck, id, protocol.OKAck())})
	a.Update(sessionClosedMsg{session: s})

	assert.Nil(t, a.session)
	assert.False(t, a.statusOnline)
	assert.Empty(t, a.room)
	assert.Equal(t, logLevelInfo, a.logLine.level)
	assert.Contains(t, a.logLine.body, "Logged out")
}

func TestUnexpectedClose(t *testing.T) {
	a := newTestApp(t)
	s := online(a)
	a.room = "lobby"

	a.Update(sessionClosedMsg{session: s})
	assert.Equal(t, logLevelError, a.logLine.level)
	assert.Empty(t, a.room)
}

func TestStaleSessionIgnored(t *testing.T) {
	a := newTestApp(t)
	online(a)
	stale := NewSession("ws://old/ws")

	a.Update(sessionEnvelopeMsg{session: stale, envelope: envelope(t, protocol.EventMessage, "", protocol.MessagePayload{User: "x", Text: "y"})})
	a.Update(sessionClosedMsg{session: stale})

	assert.Empty(t, a.chatHistory)
	assert.True(t, a.statusOnline)
}

func TestConnectFailure(t *testing.T) {
	a := newTestApp(t)
	cmd := submit(a, "/connect ws://127.0.0.1:1/ws")
	require.NotNil(t, cmd)
	s := a.session

	a.Update(connectResultMsg{session: s, address: "ws://127.0.0.1:1/ws", err: assert.AnError})
	assert.Nil(t, a.session)
	assert.Equal(t, logLevelError, a.logLine.level)
	assert.Contains(t, a.logLine.body, "Connect to ws://127.0.0.1:1/ws failed")
}

func TestViewSwitching(t *testing.T) {
	a := newTestApp(t)

	submit(a, "/help")
	assert.Equal(t, viewHelp, a.view)
	assert.Contains(t, a.View(), "RoomChat Commands")

	submit(a, "/pipe")
	assert.Equal(t, viewPipe, a.view)

	a.pipeHistory = append(a.pipeHistory, pipeEntry{event: "ack"})
	submit(a, "/pipe clear")
	assert.Empty(t, a.pipeHistory)

	submit(a, "/chat")
	assert.Equal(t, viewChat, a.view)

	submit(a, "/bogus")
	assert.Equal(t, "Unknown command /bogus", a.logLine.body)
}

func TestTabCompletion(t *testing.T) {
	a := newTestApp(t)

	a.input.SetValue("/lo")
	a.input.CursorEnd()
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "/log", a.input.Value())

	a.input.SetValue("/co")
	a.input.CursorEnd()
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "/connect ", a.input.Value())
	assert.True(t, a.showHelp)
}

func TestCustomPrefix(t *testing.T) {
	a := NewApp(config.ClientConfig{CommandPrefix: ':'})

	submit(a, ":help")
	assert.Equal(t, viewHelp, a.view)

	submit(a, "/help")
	assert.Contains(t, a.logLine.body, "Not connected")
}
