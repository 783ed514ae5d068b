package server

import (
	"net/http"
	"strconv"

	"github.com/fenggwsx/roomchat/internal/chat"
	"github.com/fenggwsx/roomchat/internal/storage"
)

const maxSessionsLimit = 500

type healthResponse struct {
	Status   string `json:"status"`
	Rooms    int    `json:"rooms"`
	Sessions int    `json:"sessions"`
}

type roomsResponse struct {
	Rooms []chat.RoomInfo `json:"rooms"`
}

type sessionsResponse struct {
	Sessions []storage.SessionRecord `json:"sessions"`
}

func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", a.handleWebSocket)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /api/token", a.handleToken)
	mux.HandleFunc("GET /api/rooms", a.requireBearer(a.handleRooms))
	mux.HandleFunc("GET /api/sessions", a.requireBearer(a.handleSessions))
	return mux
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Rooms:    a.rooms.Len(),
		Sessions: a.sessions.Count(),
	})
}

func (a *App) handleRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, roomsResponse{Rooms: a.rooms.Snapshot()})
}

func (a *App) handleSessions(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusServiceUnavailable, "session audit disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxSessionsLimit)
	}

	records, err := a.store.ListSessions(r.Context(), limit)
	if err != nil {
		a.log.Error().Err(err).Str("operator", subjectFrom(r.Context())).Msg("list sessions")
		writeError(w, http.StatusInternalServerError, "list sessions failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: records})
}
