package session

import (
	"sync"
	"time"

	"github.com/fenggwsx/roomchat/internal/chat"
)

// State is the lifecycle position of a session.
type State int

const (
	Connecting State = iota
	Authenticating
	Joined
	Leaving
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Joined:
		return "joined"
	case Leaving:
		return "leaving"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the binding of one connection to a display name and a room.
// Name and room never change once the session is Joined.
type Session struct {
	id         string
	member     chat.Member
	remoteAddr string
	openedAt   time.Time

	mu    sync.Mutex
	state State
	name  string
	room  *chat.Room
}

// ID returns the connection id the session was opened for.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Name returns the bound display name, empty before login.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// RoomName returns the joined room, empty before login.
func (s *Session) RoomName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return ""
	}
	return s.room.Name()
}

func (s *Session) reset() {
	s.mu.Lock()
	if s.state == Authenticating {
		s.state = Connecting
	}
	s.mu.Unlock()
}
