package server

import (
	"context"

	"github.com/fenggwsx/roomchat/internal/chat"
	"github.com/fenggwsx/roomchat/internal/protocol"
	"github.com/fenggwsx/roomchat/internal/session"
)

// routeFrame decodes one inbound frame and dispatches it by event.
func (a *App) routeFrame(ctx context.Context, conn *Conn, sess *session.Session, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		conn.log.Debug().Err(err).Msg("malformed frame")
		a.sendAck(conn, "", protocol.ErrorAck(reasonInvalidFrame))
		return
	}

	switch env.Event {
	case protocol.EventLogin:
		a.handleLogin(ctx, conn, sess, env)
	case protocol.EventSendMessage:
		a.handleSendMessage(ctx, conn, sess, env)
	case protocol.EventLogout:
		a.handleLogout(conn, sess, env)
	default:
		conn.log.Info().Str("event", string(env.Event)).Msg("unhandled event")
	}
}

func (a *App) handleLogin(ctx context.Context, conn *Conn, sess *session.Session, env protocol.Envelope) {
	req, err := decodeLoginRequest(env)
	if err != nil {
		a.reportError(conn, env, err)
		return
	}

	_, err = a.sessions.Login(ctx, sess, req.Name, req.Room, func(history []chat.Message) {
		if err := conn.enqueue(outbound{event: protocol.EventAck, id: env.ID, payload: historyAck(history)}); err != nil {
			conn.log.Debug().Err(err).Msg("send login ack")
		}
	})
	if err != nil {
		a.reportError(conn, env, err)
	}
}

func (a *App) handleSendMessage(ctx context.Context, conn *Conn, sess *session.Session, env protocol.Envelope) {
	req, err := decodeSendMessageRequest(env)
	if err != nil {
		a.reportError(conn, env, err)
		return
	}
	if _, err := a.sessions.Send(ctx, sess, req.Text); err != nil {
		a.reportError(conn, env, err)
		return
	}
	a.sendAck(conn, env.ID, protocol.OKAck())
}

func (a *App) handleLogout(conn *Conn, sess *session.Session, env protocol.Envelope) {
	conn.log.Debug().Str("user", sess.Name()).Msg("logout")
	a.sendAck(conn, env.ID, protocol.OKAck())
	_ = conn.Close()
}
