package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fenggwsx/roomchat/internal/chat"
	"github.com/fenggwsx/roomchat/internal/storage"
)

// ErrSessionClosed is returned for operations on a session that is shutting down.
var ErrSessionClosed = errors.New("session closed")

const auditTimeout = 5 * time.Second

// Manager binds connections to a display name and a room and tears that
// binding down exactly once.
type Manager struct {
	rooms  *chat.Registry
	store  storage.Store
	limits Limits
	log    zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option customizes a Manager.
type Option func(*Manager)

// WithStore records session joins and leaves in store.
func WithStore(store storage.Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithLimits overrides the field length limits.
func WithLimits(limits Limits) Option {
	return func(m *Manager) {
		m.limits = limits.sanitized()
	}
}

// NewManager creates a manager over rooms.
func NewManager(rooms *chat.Registry, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		rooms:    rooms,
		limits:   DefaultLimits,
		log:      log.With().Str("module", "session").Logger(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts tracking a freshly accepted connection.
func (m *Manager) Open(member chat.Member, remoteAddr string) *Session {
	s := &Session{
		id:         member.ID(),
		member:     member,
		remoteAddr: remoteAddr,
		state:      Connecting,
		openedAt:   time.Now().UTC(),
	}
	m.mu.Lock()
	m.sessions[s.id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.log.Debug().Str("conn", s.id).Str("remote", remoteAddr).Int("sessions", count).Msg("session opened")
	return s
}

// Login validates the request and joins the session to its room. On failure
// the session returns to Connecting and may retry.
func (m *Manager) Login(ctx context.Context, s *Session, name, room string, onAdmit func([]chat.Message)) ([]chat.Message, error) {
	s.mu.Lock()
	switch s.state {
	case Connecting:
	case Authenticating:
		s.mu.Unlock()
		return nil, &chat.ValidationError{Reason: "login already in progress"}
	case Joined:
		s.mu.Unlock()
		return nil, chat.ErrAlreadyJoined
	default:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.state = Authenticating
	s.mu.Unlock()

	name, room, err := m.limits.validateLogin(name, room)
	if err != nil {
		s.reset()
		return nil, err
	}

	joined, history, err := m.rooms.Join(s.member, room, name, onAdmit)
	if err != nil {
		s.reset()
		m.log.Info().Err(err).Str("conn", s.id).Str("user", name).Str("room", room).Msg("login rejected")
		return nil, err
	}

	m.recordJoin(ctx, s, name, room)

	s.mu.Lock()
	if s.state != Authenticating {
		// Closed while joining; undo the membership Close could not see.
		s.mu.Unlock()
		joined.Leave(s.id)
		m.recordLeave(s, ErrSessionClosed)
		return nil, ErrSessionClosed
	}
	s.state = Joined
	s.name = name
	s.room = joined
	s.mu.Unlock()

	m.log.Info().Str("conn", s.id).Str("user", name).Str("room", room).Int("history", len(history)).Msg("login accepted")
	return history, nil
}

// Send posts text to the session's room.
func (m *Manager) Send(_ context.Context, s *Session, text string) (chat.Message, error) {
	s.mu.Lock()
	if s.state != Joined {
		s.mu.Unlock()
		return chat.Message{}, chat.ErrNotJoined
	}
	room := s.room
	s.mu.Unlock()

	text, err := m.limits.validateText(text)
	if err != nil {
		return chat.Message{}, err
	}

	msg, err := room.Post(s.id, text)
	if err != nil {
		if errors.Is(err, chat.ErrNotAMember) {
			return chat.Message{}, fmt.Errorf("%w: %w", chat.ErrNotJoined, err)
		}
		return chat.Message{}, err
	}
	return msg, nil
}

// Close ends the session from any state. Only the first call has an effect.
func (m *Manager) Close(s *Session, cause error) {
	s.mu.Lock()
	if s.state == Leaving || s.state == Closed {
		s.mu.Unlock()
		return
	}
	wasJoined := s.state == Joined
	s.state = Leaving
	room := s.room
	name := s.name
	s.mu.Unlock()

	if room != nil {
		room.Leave(s.id)
	}

	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, s.id)
	count := len(m.sessions)
	m.mu.Unlock()

	event := m.log.Info()
	if cause != nil {
		event = event.Err(cause)
	}
	event.Str("conn", s.id).Str("user", name).Int("sessions", count).Msg("session closed")

	if wasJoined {
		m.recordLeave(s, cause)
	}
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) recordJoin(ctx context.Context, s *Session, name, room string) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	rec := &storage.SessionRecord{
		ID:         s.id,
		Name:       name,
		Room:       room,
		RemoteAddr: s.remoteAddr,
		JoinedAt:   time.Now().UTC(),
	}
	if err := m.store.RecordJoin(ctx, rec); err != nil {
		m.log.Warn().Err(err).Str("conn", s.id).Msg("record join")
	}
}

func (m *Manager) recordLeave(s *Session, cause error) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	if err := m.store.RecordLeave(ctx, s.id, time.Now().UTC(), closeReason(cause)); err != nil {
		m.log.Warn().Err(err).Str("conn", s.id).Msg("record leave")
	}
}

func closeReason(cause error) string {
	switch {
	case cause == nil:
		return "closed"
	case errors.Is(cause, chat.ErrBackpressure):
		return "backpressure"
	case errors.Is(cause, chat.ErrTransport):
		return "transport"
	default:
		return cause.Error()
	}
}
