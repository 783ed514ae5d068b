package client

import (
	"fmt"

	"github.com/fenggwsx/roomchat/internal/protocol"
)

func decodeAckPayload(env protocol.Envelope) (protocol.AckPayload, error) {
	var ack protocol.AckPayload
	if err := protocol.DecodeData(env, &ack); err != nil {
		return ack, fmt.Errorf("ack payload: %w", err)
	}
	return ack, nil
}

func decodeMessagePayload(env protocol.Envelope) (protocol.MessagePayload, error) {
	var msg protocol.MessagePayload
	if err := protocol.DecodeData(env, &msg); err != nil {
		return msg, fmt.Errorf("message payload: %w", err)
	}
	return msg, nil
}

func decodeNotificationPayload(env protocol.Envelope) (protocol.NotificationPayload, error) {
	var n protocol.NotificationPayload
	if err := protocol.DecodeData(env, &n); err != nil {
		return n, fmt.Errorf("notification payload: %w", err)
	}
	return n, nil
}
