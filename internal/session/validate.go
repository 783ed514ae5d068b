package session

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fenggwsx/roomchat/internal/chat"
)

// Limits bounds the size of client supplied fields, counted in runes.
type Limits struct {
	MaxNameLength    int
	MaxRoomLength    int
	MaxMessageLength int
}

// DefaultLimits mirrors the server configuration defaults.
var DefaultLimits = Limits{
	MaxNameLength:    32,
	MaxRoomLength:    64,
	MaxMessageLength: 2000,
}

func (l Limits) sanitized() Limits {
	if l.MaxNameLength <= 0 {
		l.MaxNameLength = DefaultLimits.MaxNameLength
	}
	if l.MaxRoomLength <= 0 {
		l.MaxRoomLength = DefaultLimits.MaxRoomLength
	}
	if l.MaxMessageLength <= 0 {
		l.MaxMessageLength = DefaultLimits.MaxMessageLength
	}
	return l
}

func (l Limits) validateLogin(name, room string) (string, string, error) {
	name = strings.TrimSpace(name)
	room = strings.TrimSpace(room)
	if err := checkIdentifier("name", name, l.MaxNameLength); err != nil {
		return "", "", err
	}
	if err := checkIdentifier("room", room, l.MaxRoomLength); err != nil {
		return "", "", err
	}
	return name, room, nil
}

func (l Limits) validateText(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &chat.ValidationError{Field: "text", Reason: "required"}
	}
	if !utf8.ValidString(text) {
		return "", &chat.ValidationError{Field: "text", Reason: "must be valid UTF-8"}
	}
	if utf8.RuneCountInString(text) > l.MaxMessageLength {
		return "", &chat.ValidationError{Field: "text", Reason: "too long"}
	}
	return text, nil
}

func checkIdentifier(field, value string, max int) error {
	if value == "" {
		return &chat.ValidationError{Field: field, Reason: "required"}
	}
	if !utf8.ValidString(value) {
		return &chat.ValidationError{Field: field, Reason: "must be valid UTF-8"}
	}
	if utf8.RuneCountInString(value) > max {
		return &chat.ValidationError{Field: field, Reason: "too long"}
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return &chat.ValidationError{Field: field, Reason: "contains control characters"}
		}
	}
	return nil
}
