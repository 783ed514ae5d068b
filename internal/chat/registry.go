package chat

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry maps room names to live rooms. Rooms are created on first join
// and dropped when their last member leaves.
type Registry struct {
	mu           sync.Mutex
	rooms        map[string]*Room
	historyLimit int
	log          zerolog.Logger
}

// RoomInfo is a point-in-time view of one room.
type RoomInfo struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	History int      `json:"history"`
}

// NewRegistry creates an empty registry whose rooms keep historyLimit messages.
func NewRegistry(historyLimit int, log zerolog.Logger) *Registry {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Registry{
		rooms:        make(map[string]*Room),
		historyLimit: historyLimit,
		log:          log.With().Str("module", "chat").Logger(),
	}
}

// GetOrCreate returns the room called name, registering a new empty one if needed.
func (g *Registry) GetOrCreate(name string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if room, ok := g.rooms[name]; ok {
		return room
	}
	room := newRoom(name, g.historyLimit, g.log)
	room.onEmpty = g.removeRoomIfEmpty
	g.rooms[name] = room
	g.log.Debug().Str("room", name).Msg("room created")
	return room
}

// Lookup returns the room called name if it is registered.
func (g *Registry) Lookup(name string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[name]
	return room, ok
}

// RemoveIfEmpty drops the room called name when it has no members. The
// membership check happens under both locks, so a concurrent join either
// lands first and keeps the room alive or sees it closed and retries.
func (g *Registry) RemoveIfEmpty(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[name]
	if !ok {
		return false
	}
	return g.removeLocked(room)
}

func (g *Registry) removeRoomIfEmpty(room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rooms[room.name] != room {
		return
	}
	g.removeLocked(room)
}

func (g *Registry) removeLocked(room *Room) bool {
	if !room.closeIfEmpty() {
		return false
	}
	delete(g.rooms, room.name)
	g.log.Debug().Str("room", room.name).Msg("room removed")
	return true
}

// Join admits m into the named room, creating it when absent.
func (g *Registry) Join(m Member, roomName, displayName string, onAdmit func([]Message)) (*Room, []Message, error) {
	for {
		room := g.GetOrCreate(roomName)
		history, err := room.Join(m, displayName, onAdmit)
		if err == errRoomClosed {
			continue
		}
		if err != nil {
			// A failed first join may leave a fresh room with nobody in it.
			g.removeRoomIfEmpty(room)
			return nil, nil, err
		}
		return room, history, nil
	}
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Snapshot describes every live room, sorted by name.
func (g *Registry) Snapshot() []RoomInfo {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.mu.Unlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		members := room.Members()
		sort.Strings(members)
		infos = append(infos, RoomInfo{Name: room.name, Members: members, History: room.historyLen()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
