package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultHistoryLimit bounds the replay window of a room.
const DefaultHistoryLimit = 250

type member struct {
	conn Member
	name string
}

// Room is a named broadcast domain. Join, Leave and Post are serialized by
// the room mutex, which gives every member the same event order.
type Room struct {
	name    string
	mu      sync.Mutex
	members map[string]member
	names   map[string]string
	history *history
	closed  bool
	onEmpty func(*Room)
	now     func() time.Time
	log     zerolog.Logger
}

func newRoom(name string, historyLimit int, log zerolog.Logger) *Room {
	return &Room{
		name:    name,
		members: make(map[string]member),
		names:   make(map[string]string),
		history: newHistory(historyLimit),
		now:     time.Now,
		log:     log.With().Str("room", name).Logger(),
	}
}

// Name returns the room key.
func (r *Room) Name() string {
	return r.name
}

// Join admits m under displayName and returns the history, oldest first.
//
// onAdmit, when set, runs before any later room event can reach m, so a
// login acknowledgement queued there always precedes subsequent broadcasts.
func (r *Room) Join(m Member, displayName string, onAdmit func([]Message)) ([]Message, error) {
	key := nameKey(displayName)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errRoomClosed
	}
	if _, taken := r.names[key]; taken {
		return nil, ErrDuplicateName
	}
	if _, ok := r.members[m.ID()]; ok {
		return nil, ErrAlreadyJoined
	}

	snapshot := r.history.snapshot()
	r.members[m.ID()] = member{conn: m, name: displayName}
	r.names[key] = m.ID()
	if onAdmit != nil {
		onAdmit(snapshot)
	}

	r.broadcastLocked(joinedNotification(displayName), m.ID())
	r.log.Info().Str("conn", m.ID()).Str("user", displayName).Int("members", len(r.members)).Msg("member joined")
	return snapshot, nil
}

// Leave removes the member and tells the others. Unknown ids are ignored so
// teardown may run from several paths.
func (r *Room) Leave(memberID string) bool {
	r.mu.Lock()
	m, ok := r.members[memberID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.members, memberID)
	delete(r.names, nameKey(m.name))
	remaining := len(r.members)
	r.broadcastLocked(leftNotification(m.name), "")
	onEmpty := r.onEmpty
	r.mu.Unlock()

	r.log.Info().Str("conn", memberID).Str("user", m.name).Int("members", remaining).Msg("member left")
	if remaining == 0 && onEmpty != nil {
		onEmpty(r)
	}
	return true
}

// Post appends text under the sender's bound name and delivers it to every
// member, the sender included.
func (r *Room) Post(memberID, text string) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[memberID]
	if !ok {
		return Message{}, ErrNotAMember
	}
	msg := Message{Sender: m.name, Text: text, Timestamp: r.now().UTC()}
	r.history.append(msg)
	r.broadcastLocked(msg, "")
	return msg, nil
}

// Len returns the current member count.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns the active display names in no particular order.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.members))
	for _, m := range r.members {
		names = append(names, m.name)
	}
	return names
}

// History returns the stored messages, oldest first.
func (r *Room) History() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.snapshot()
}

func (r *Room) historyLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.len()
}

// broadcastLocked must be called with r.mu held.
func (r *Room) broadcastLocked(ev Event, skip string) {
	for id, m := range r.members {
		if id == skip {
			continue
		}
		if err := m.conn.Deliver(ev); err != nil {
			r.log.Warn().Err(err).Str("conn", id).Str("user", m.name).Msg("delivery dropped")
		}
	}
}

// closeIfEmpty marks the room closed when it has no members.
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) != 0 {
		return false
	}
	r.closed = true
	return true
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
