package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/roomchat/internal/config"
	"github.com/fenggwsx/roomchat/internal/protocol"
	"github.com/fenggwsx/roomchat/internal/storage"
	"github.com/fenggwsx/roomchat/internal/storage/sqlite"
)

const readTimeout = 3 * time.Second

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:       "127.0.0.1:0",
		AllowedOrigins:   []string{"*"},
		JWT:              config.JWTConfig{Secret: "test-secret", Issuer: "roomchat", Expiration: time.Hour},
		PingInterval:     54 * time.Second,
		PongWait:         60 * time.Second,
		WriteTimeout:     5 * time.Second,
		MaxFrameBytes:    4096,
		SendQueueSize:    64,
		HistoryLimit:     250,
		MaxNameLength:    32,
		MaxRoomLength:    64,
		MaxMessageLength: 2000,
		ShutdownTimeout:  5 * time.Second,
	}
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "roomchat.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type testServer struct {
	app *App
	srv *httptest.Server
}

func newTestServer(t *testing.T, store storage.Store, customize func(*config.ServerConfig)) *testServer {
	t.Helper()
	cfg := testConfig()
	if customize != nil {
		customize(&cfg)
	}
	if store != nil {
		require.NoError(t, store.Migrate(t.Context()))
	}
	app := NewApp(cfg, store, zerolog.Nop())
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		_ = app.Stop(context.Background())
		srv.Close()
	})
	return &testServer{app: app, srv: srv}
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
}

type testClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func (s *testServer) dial(t *testing.T) *testClient {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(s.wsURL(), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return &testClient{t: t, ws: ws}
}

func (c *testClient) sendRaw(frame string) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (c *testClient) send(event protocol.EventType, id string, payload interface{}) {
	c.t.Helper()
	frame, err := protocol.Encode(event, id, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, frame))
}

func (c *testClient) read() protocol.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(readTimeout)))
	_, data, err := c.ws.ReadMessage()
	require.NoError(c.t, err)
	env, err := protocol.Decode(data)
	require.NoError(c.t, err)
	return env
}

func (c *testClient) readAck(id string) protocol.AckPayload {
	c.t.Helper()
	env := c.read()
	require.Equal(c.t, protocol.EventAck, env.Event, "frame %s", env.Data)
	require.Equal(c.t, id, env.ID)
	var ack protocol.AckPayload
	require.NoError(c.t, json.Unmarshal(env.Data, &ack))
	return ack
}

func (c *testClient) readNotification() protocol.NotificationPayload {
	c.t.Helper()
	env := c.read()
	require.Equal(c.t, protocol.EventNotification, env.Event, "frame %s", env.Data)
	var n protocol.NotificationPayload
	require.NoError(c.t, json.Unmarshal(env.Data, &n))
	return n
}

func (c *testClient) readMessage() protocol.MessagePayload {
	c.t.Helper()
	env := c.read()
	require.Equal(c.t, protocol.EventMessage, env.Event, "frame %s", env.Data)
	var m protocol.MessagePayload
	require.NoError(c.t, json.Unmarshal(env.Data, &m))
	return m
}

func (c *testClient) login(name, room string) protocol.AckPayload {
	c.t.Helper()
	c.send(protocol.EventLogin, "login-"+name, protocol.LoginRequest{Name: name, Room: room})
	return c.readAck("login-" + name)
}

func (c *testClient) expectClosed() error {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return err
		}
	}
}

func doRequest(t *testing.T, method, url, bearer, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}
