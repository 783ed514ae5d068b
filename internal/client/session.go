package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fenggwsx/roomchat/internal/protocol"
)

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
	inboxSize    = 64
)

// ErrNotConnected is returned when sending on a session that never connected.
var ErrNotConnected = errors.New("not connected")

// Session manages the client side of one websocket connection.
type Session struct {
	url string

	ws       *websocket.Conn
	writeMu  sync.Mutex
	messages chan protocol.Envelope

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// NewSession prepares a session for the websocket endpoint at url.
func NewSession(url string) *Session {
	return &Session{
		url:      url,
		messages: make(chan protocol.Envelope, inboxSize),
	}
}

// URL returns the endpoint the session dials.
func (s *Session) URL() string {
	return s.url
}

// Connect dials the server and starts reading frames.
func (s *Session) Connect(ctx context.Context) error {
	if s.url == "" {
		return ErrNotConnected
	}
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	ws, resp, err := dialer.DialContext(ctx, s.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}
	s.ws = ws
	go s.readLoop()
	return nil
}

// Messages yields decoded server frames. It is closed when the connection ends.
func (s *Session) Messages() <-chan protocol.Envelope {
	return s.messages
}

// Err returns the error that ended the read loop, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Send writes one frame.
func (s *Session) Send(ctx context.Context, event protocol.EventType, id string, payload interface{}) error {
	if s.ws == nil {
		return ErrNotConnected
	}
	frame, err := protocol.Encode(event, id, payload)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, frame)
}

// Close terminates the session.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.ws == nil {
			return
		}
		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.ws.Close()
	})
	return err
}

func (s *Session) readLoop() {
	defer close(s.messages)
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		s.messages <- env
	}
}
