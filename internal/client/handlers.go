package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenggwsx/roomchat/internal/protocol"
)

func (a *App) handleSessionEnvelope(env protocol.Envelope) tea.Cmd {
	a.appendPipeEntry(pipeDirectionIn, env)
	switch env.Event {
	case protocol.EventAck:
		a.handleAckEnvelope(env)
	case protocol.EventMessage:
		a.handleMessageEnvelope(env)
	case protocol.EventNotification:
		a.handleNotificationEnvelope(env)
	default:
		a.logErrorf("Received unexpected %s frame", env.Event)
	}
	return nil
}

func (a *App) handleAckEnvelope(env protocol.Envelope) {
	ack, err := decodeAckPayload(env)
	if err != nil {
		a.logErrorf("Failed to decode ack: %v", err)
		return
	}

	pending, ok := a.pendingRequests[env.ID]
	if !ok {
		if !ack.OK() {
			a.logErrorf("Server: %s", ack.Reason())
		}
		return
	}
	delete(a.pendingRequests, env.ID)

	if !ack.OK() {
		reason := ack.Reason()
		switch pending.event {
		case protocol.EventLogin:
			a.logErrorf("Login failed: %s", reason)
		case protocol.EventSendMessage:
			a.logErrorf("Message failed: %s", reason)
		case protocol.EventLogout:
			a.loggingOut = false
			a.logErrorf("Logout failed: %s", reason)
		default:
			a.logErrorf("%s failed: %s", pending.event, reason)
		}
		return
	}

	switch pending.event {
	case protocol.EventLogin:
		a.username = pending.name
		a.room = pending.room
		a.view = viewChat
		var history []protocol.MessagePayload
		if ack.History != nil {
			history = *ack.History
		}
		a.chatHistory = make([]string, 0, len(history))
		for _, msg := range history {
			a.chatHistory = append(a.chatHistory, formatChatMessage(msg))
		}
		a.updateViewportContent()
		a.logf("Joined %s as %s (%d earlier messages)", pending.room, pending.name, len(history))
	case protocol.EventLogout:
		a.logf("Logout accepted")
	}
}

func (a *App) handleMessageEnvelope(env protocol.Envelope) {
	msg, err := decodeMessagePayload(env)
	if err != nil {
		a.logErrorf("Failed to decode message: %v", err)
		return
	}
	a.appendChatLine(formatChatMessage(msg))
}

func (a *App) handleNotificationEnvelope(env protocol.Envelope) {
	n, err := decodeNotificationPayload(env)
	if err != nil {
		a.logErrorf("Failed to decode notification: %v", err)
		return
	}
	a.appendChatLine(formatNotification(n))
}

func (a *App) appendChatLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if len(a.chatHistory) >= chatHistoryLimit {
		a.chatHistory = append(a.chatHistory[1:], line)
	} else {
		a.chatHistory = append(a.chatHistory, line)
	}
	if a.view == viewChat {
		a.updateViewportContent()
	}
}

func (a *App) appendPipeEntry(direction pipeDirection, env protocol.Envelope) {
	if a.pipeHistory == nil {
		a.pipeHistory = make([]pipeEntry, 0, pipeHistoryLimit)
	}
	body, err := json.MarshalIndent(env, "", "  ")
	entry := pipeEntry{
		direction: direction,
		event:     string(env.Event),
		timestamp: time.Now(),
		body:      string(body),
	}
	if err != nil {
		entry.body = fmt.Sprintf(`{"marshal_error":%q}`, err.Error())
	}
	if len(a.pipeHistory) >= pipeHistoryLimit {
		a.pipeHistory = append(a.pipeHistory[1:], entry)
	} else {
		a.pipeHistory = append(a.pipeHistory, entry)
	}
	if a.view == viewPipe {
		a.updateViewportContent()
	}
}

func formatChatMessage(msg protocol.MessagePayload) string {
	user := strings.TrimSpace(msg.User)
	if user == "" {
		user = "unknown"
	}
	if msg.Timestamp.IsZero() {
		return fmt.Sprintf("%s: %s", user, msg.Text)
	}
	return fmt.Sprintf("[%s] %s: %s", msg.Timestamp.Local().Format("15:04:05"), user, msg.Text)
}

func formatNotification(n protocol.NotificationPayload) string {
	if n.Description == "" {
		return noticePrefix + n.Title
	}
	return noticePrefix + n.Description
}
