package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/fenggwsx/roomchat/internal/protocol"
)

const requestTimeout = 5 * time.Second

func (a *App) handleSubmit(value string) tea.Cmd {
	if strings.HasPrefix(value, string(a.cfg.CommandPrefix)) {
		return a.executeCommand(value)
	}
	return a.sendChatMessage(value)
}

func (a *App) executeCommand(raw string) tea.Cmd {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}

	name := strings.TrimPrefix(fields[0], string(a.cfg.CommandPrefix))
	var cmds []tea.Cmd

	switch strings.ToLower(name) {
	case "chat":
		a.view = viewChat
		a.logf("Switched to CHAT view")
	case "help":
		a.view = viewHelp
		a.logf("Switched to HELP view")
	case "pipe":
		if len(fields) > 1 && strings.EqualFold(fields[1], "clear") {
			a.pipeHistory = make([]pipeEntry, 0, pipeHistoryLimit)
			a.logf("Cleared pipe history")
			break
		}
		a.view = viewPipe
		a.logf("Switched to PIPE view")
	case "connect":
		target := a.serverAddr
		if len(fields) > 1 {
			target = fields[1]
		}
		if target == "" {
			a.logErrorf("Provide a server URL to connect")
			break
		}
		if cmd := a.connectToServer(target); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case "login":
		if len(fields) != 3 {
			a.logErrorf("Usage: %clogin <name> <room>", a.cfg.CommandPrefix)
			break
		}
		if !a.isConnected() {
			a.logErrorf("Not connected. Use %cconnect first.", a.cfg.CommandPrefix)
			break
		}
		if a.room != "" {
			a.logErrorf("Already in room %s. Use %clogout first.", a.room, a.cfg.CommandPrefix)
			break
		}
		a.logf("Joining %s as %s ...", fields[2], fields[1])
		if cmd := a.sendLogin(fields[1], fields[2]); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case "logout":
		if !a.isConnected() {
			a.logErrorf("Not connected")
			break
		}
		a.logf("Logging out ...")
		if cmd := a.sendLogout(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case "quit":
		a.logf("Exiting client")
		a.closeSession()
		cmds = append(cmds, tea.Quit)
	default:
		a.logErrorf("Unknown command %s", fields[0])
	}

	a.updateViewportContent()
	return tea.Batch(cmds...)
}

func (a *App) connectToServer(target string) tea.Cmd {
	a.closeSession()

	session := NewSession(target)
	a.session = session
	a.serverAddr = target
	a.username = ""
	a.room = ""
	a.loggingOut = false
	a.chatHistory = nil
	a.pendingRequests = make(map[string]pendingRequest)
	a.logf("Connecting to %s ...", target)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := session.Connect(ctx)
		return connectResultMsg{session: session, address: target, err: err}
	}
}

func (a *App) listenForSession() tea.Cmd {
	session := a.session
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		env, ok := <-session.Messages()
		if !ok {
			return sessionClosedMsg{session: session, err: session.Err()}
		}
		return sessionEnvelopeMsg{session: session, envelope: env}
	}
}

func (a *App) sendLogin(name, room string) tea.Cmd {
	id := a.track(pendingRequest{event: protocol.EventLogin, name: name, room: room})
	return a.sendEnvelope(protocol.EventLogin, id, protocol.LoginRequest{Name: name, Room: room}, "login")
}

func (a *App) sendLogout() tea.Cmd {
	a.loggingOut = true
	id := a.track(pendingRequest{event: protocol.EventLogout})
	return a.sendEnvelope(protocol.EventLogout, id, nil, "logout")
}

func (a *App) sendChatMessage(text string) tea.Cmd {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if !a.isConnected() {
		a.logErrorf("Not connected. Use %cconnect first.", a.cfg.CommandPrefix)
		return nil
	}
	if a.room == "" {
		a.logErrorf("Join a room first (use %clogin <name> <room>)", a.cfg.CommandPrefix)
		return nil
	}
	if a.view != viewChat {
		a.view = viewChat
		a.updateViewportContent()
	}
	id := a.track(pendingRequest{event: protocol.EventSendMessage, room: a.room})
	return a.sendEnvelope(protocol.EventSendMessage, id, protocol.SendMessageRequest{Text: text}, "message")
}

func (a *App) track(req pendingRequest) string {
	id := uuid.NewString()
	a.pendingRequests[id] = req
	return id
}

func (a *App) sendEnvelope(event protocol.EventType, id string, payload interface{}, description string) tea.Cmd {
	session := a.session
	if session == nil {
		delete(a.pendingRequests, id)
		return nil
	}

	env := protocol.Envelope{Event: event, ID: id}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			env.Data = data
		}
	}
	a.appendPipeEntry(pipeDirectionOut, env)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := session.Send(ctx, event, id, payload)
		return sendResultMsg{session: session, id: id, description: description, err: err}
	}
}

func defaultCommands(prefix rune) []commandSpec {
	specs := []commandSpec{
		{trigger: "connect", usage: "connect [url]", description: "Connect to the server"},
		{trigger: "login", usage: "login <name> <room>", description: "Join a room under a display name"},
		{trigger: "logout", usage: "logout", description: "Leave the room and disconnect"},
		{trigger: "chat", usage: "chat", description: "Switch to chat view"},
		{trigger: "help", usage: "help", description: "Show command help"},
		{trigger: "pipe", usage: "pipe [clear]", description: "Inspect raw protocol frames"},
		{trigger: "quit", usage: "quit", description: "Exit the client"},
	}
	for i := range specs {
		specs[i].trigger = fmt.Sprintf("%c%s", prefix, specs[i].trigger)
		specs[i].usage = fmt.Sprintf("%c%s", prefix, specs[i].usage)
	}
	return specs
}
