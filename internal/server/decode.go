package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fenggwsx/roomchat/internal/chat"
	"github.com/fenggwsx/roomchat/internal/protocol"
)

func decodeLoginRequest(env protocol.Envelope) (protocol.LoginRequest, error) {
	var req protocol.LoginRequest
	if err := protocol.DecodeData(env, &req); err != nil {
		return req, payloadError(err)
	}
	return req, nil
}

func decodeSendMessageRequest(env protocol.Envelope) (protocol.SendMessageRequest, error) {
	var req protocol.SendMessageRequest
	if err := protocol.DecodeData(env, &req); err != nil {
		return req, payloadError(err)
	}
	return req, nil
}

func payloadError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.Is(err, protocol.ErrMissingData):
		return &chat.ValidationError{Reason: "missing data"}
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return &chat.ValidationError{Field: typeErr.Field, Reason: fmt.Sprintf("must be a %s", typeErr.Type)}
	case errors.As(err, &typeErr):
		return &chat.ValidationError{Reason: fmt.Sprintf("unexpected %s", typeErr.Value)}
	case errors.As(err, &syntaxErr):
		return &chat.ValidationError{Reason: "malformed JSON"}
	default:
		return &chat.ValidationError{Reason: err.Error()}
	}
}
