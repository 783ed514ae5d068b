package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame is returned for frames that are not a JSON envelope.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrMissingData is returned when a request requires data and has none.
	ErrMissingData = errors.New("missing data")
)

// Encode builds a frame for event. A nil payload omits the data field.
func Encode(event EventType, id string, payload interface{}) ([]byte, error) {
	env := Envelope{Event: event, ID: id}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses a frame. It only checks the envelope; payloads are decoded
// with DecodeData once the event is known.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return env, fmt.Errorf("%w: missing event", ErrMalformedFrame)
	}
	return env, nil
}

// DecodeData unmarshals the envelope data into dst.
func DecodeData(env Envelope, dst interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return ErrMissingData
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return err
	}
	return nil
}
