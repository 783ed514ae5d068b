package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fenggwsx/roomchat/internal/auth"
	"github.com/fenggwsx/roomchat/internal/chat"
	"github.com/fenggwsx/roomchat/internal/config"
	"github.com/fenggwsx/roomchat/internal/session"
	"github.com/fenggwsx/roomchat/internal/storage"
)

var errServerStopping = errors.New("server stopping")

// App coordinates the HTTP listener, websocket connections and room routing.
type App struct {
	cfg      config.ServerConfig
	store    storage.Store
	rooms    *chat.Registry
	sessions *session.Manager
	verifier auth.Verifier
	log      zerolog.Logger

	upgrader websocket.Upgrader
	origins  originPolicy
	connOpts ConnOptions
	mux      *http.ServeMux

	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error

	mu        sync.Mutex
	conns     map[*Conn]struct{}
	stopping  bool
	closeOnce sync.Once
}

// Option customizes an App.
type Option func(*App)

// WithVerifier replaces the bearer verifier of the operator API.
func WithVerifier(v auth.Verifier) Option {
	return func(a *App) {
		a.verifier = v
	}
}

// NewApp constructs a server instance using the provided dependencies. store
// may be nil, which disables the session audit log.
func NewApp(cfg config.ServerConfig, store storage.Store, log zerolog.Logger, opts ...Option) *App {
	rooms := chat.NewRegistry(cfg.HistoryLimit, log)

	sessionOpts := []session.Option{session.WithLimits(session.Limits{
		MaxNameLength:    cfg.MaxNameLength,
		MaxRoomLength:    cfg.MaxRoomLength,
		MaxMessageLength: cfg.MaxMessageLength,
	})}
	if store != nil {
		sessionOpts = append(sessionOpts, session.WithStore(store))
	}

	a := &App{
		cfg:      cfg,
		store:    store,
		rooms:    rooms,
		sessions: session.NewManager(rooms, log, sessionOpts...),
		verifier: auth.NewJWTVerifier(cfg.JWT),
		log:      log.With().Str("module", "server").Logger(),
		connOpts: ConnOptions{
			SendQueueSize: cfg.SendQueueSize,
			MaxFrameBytes: int64(cfg.MaxFrameBytes),
			PingInterval:  cfg.PingInterval,
			PongWait:      cfg.PongWait,
			WriteTimeout:  cfg.WriteTimeout,
		},
		serveErr: make(chan error, 1),
		conns:    make(map[*Conn]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.origins = newOriginPolicy(cfg.AllowedOrigins, a.log)
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.origins.check,
	}
	a.mux = a.routes()
	return a
}

// Handler returns the HTTP handler serving every endpoint.
func (a *App) Handler() http.Handler {
	return a.mux
}

// Rooms exposes the room registry.
func (a *App) Rooms() *chat.Registry {
	return a.rooms
}

// Sessions exposes the session manager.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// Start migrates storage, binds the listener and serves in the background.
func (a *App) Start(ctx context.Context) error {
	if a.store != nil {
		if err := a.store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	listener, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	a.listener = listener
	a.httpServer = &http.Server{
		Handler:           a.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := a.httpServer.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		a.serveErr <- err
	}()

	a.log.Info().Str("addr", listener.Addr().String()).Msg("listening")
	return nil
}

// Addr returns the bound listener address, empty before Start.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop stops accepting requests and closes every live connection. Queued
// frames are flushed before each socket closes.
func (a *App) Stop(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		if a.httpServer != nil {
			err = a.httpServer.Shutdown(ctx)
		}

		a.mu.Lock()
		a.stopping = true
		conns := make([]*Conn, 0, len(a.conns))
		for c := range a.conns {
			conns = append(conns, c)
		}
		a.mu.Unlock()

		for _, c := range conns {
			_ = c.Close()
		}
		a.log.Info().Int("connections", len(conns)).Msg("server stopped")
	})
	return err
}

// Run serves until ctx is canceled, then shuts down within the configured
// timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-a.serveErr:
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return serveErr
}

func (a *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	var (
		conn *Conn
		sess *session.Session
	)
	conn = NewConn(ws, clientAddr(r), a.connOpts, a.log, func(cause error) {
		a.sessions.Close(sess, cause)
		a.untrack(conn)
	})
	sess = a.sessions.Open(conn, conn.RemoteAddr())
	if !a.track(conn) {
		conn.closeWith(errServerStopping)
		return
	}

	ctx := r.Context()
	conn.Run(func(frame []byte) {
		a.routeFrame(ctx, conn, sess, frame)
	})
}

func (a *App) track(c *Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopping {
		return false
	}
	a.conns[c] = struct{}{}
	return true
}

func (a *App) untrack(c *Conn) {
	a.mu.Lock()
	delete(a.conns, c)
	a.mu.Unlock()
}
