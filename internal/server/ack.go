package server

import (
	"errors"
	"fmt"

	"github.com/fenggwsx/roomchat/internal/chat"
	"github.com/fenggwsx/roomchat/internal/protocol"
	"github.com/fenggwsx/roomchat/internal/session"
)

const reasonInvalidFrame = "invalid frame"

func (a *App) sendAck(conn *Conn, referenceID string, ack protocol.AckPayload) {
	if err := conn.reply(referenceID, ack); err != nil {
		conn.log.Debug().Err(err).Str("ref", referenceID).Msg("send ack")
	}
}

// reportError answers a failed request with the client visible reason.
func (a *App) reportError(conn *Conn, env protocol.Envelope, err error) {
	reason := errorReason(env.Event, err)
	conn.log.Info().Err(err).Str("event", string(env.Event)).Str("reason", reason).Msg("request rejected")
	a.sendAck(conn, env.ID, protocol.ErrorAck(reason))
}

func errorReason(event protocol.EventType, err error) string {
	var verr *chat.ValidationError
	switch {
	case errors.Is(err, chat.ErrDuplicateName):
		return chat.ErrDuplicateName.Error()
	case errors.Is(err, chat.ErrNotJoined):
		return chat.ErrNotJoined.Error()
	case errors.Is(err, chat.ErrAlreadyJoined):
		return "already joined"
	case errors.As(err, &verr):
		return fmt.Sprintf("invalid %s payload: %s", event, verr.Error())
	case errors.Is(err, session.ErrSessionClosed):
		return session.ErrSessionClosed.Error()
	default:
		return "internal error"
	}
}
