package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/roomchat/internal/chat"
	"github.com/fenggwsx/roomchat/internal/protocol"
)

type closeRecorder struct {
	mu     sync.Mutex
	causes []error
}

func (r *closeRecorder) record(cause error) {
	r.mu.Lock()
	r.causes = append(r.causes, cause)
	r.mu.Unlock()
}

func (r *closeRecorder) snapshot() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.causes...)
}

// newConnPair upgrades one connection and returns the server side Conn
// without starting its pumps, plus the client socket.
func newConnPair(t *testing.T, opts ConnOptions, onClose func(error)) (*Conn, *websocket.Conn) {
	t.Helper()
	conns := make(chan *Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- NewConn(ws, r.RemoteAddr, opts, zerolog.Nop(), onClose)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case c := <-conns:
		return c, client
	case <-time.After(readTimeout):
		t.Fatal("no server connection")
		return nil, nil
	}
}

func TestConn_BackpressureClosesSlowMember(t *testing.T) {
	rec := &closeRecorder{}
	conn, _ := newConnPair(t, ConnOptions{SendQueueSize: 2}, rec.record)

	note := chat.Notification{Title: "Bob", Description: "Bob has joined"}
	require.NoError(t, conn.Deliver(note))
	require.NoError(t, conn.Deliver(note))

	err := conn.Deliver(note)
	assert.ErrorIs(t, err, chat.ErrBackpressure)
	assert.True(t, conn.Degraded())

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, readTimeout, 5*time.Millisecond)
	assert.ErrorIs(t, rec.snapshot()[0], chat.ErrBackpressure)

	assert.ErrorIs(t, conn.Deliver(note), ErrConnClosed)
	_ = conn.Close()
	assert.Len(t, rec.snapshot(), 1, "teardown runs once")
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	rec := &closeRecorder{}
	conn, client := newConnPair(t, ConnOptions{}, rec.record)
	go conn.Run(func([]byte) {})

	require.NoError(t, conn.Deliver(chat.Message{Sender: "Ada", Text: "bye", Timestamp: time.Now().UTC()}))
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	require.NoError(t, client.SetReadDeadline(time.Now().Add(readTimeout)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err, "queued frames are flushed on close")
	env, err := protocol.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.EventMessage, env.Event)

	_, _, err = client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Equal(t, []error{nil}, rec.snapshot())
	select {
	case <-conn.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestConn_PeerDisconnectIsTransportError(t *testing.T) {
	rec := &closeRecorder{}
	conn, client := newConnPair(t, ConnOptions{}, rec.record)
	go conn.Run(func([]byte) {})

	require.NoError(t, client.Close())

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, readTimeout, 5*time.Millisecond)
	cause := rec.snapshot()[0]
	assert.ErrorIs(t, cause, chat.ErrTransport)
	assert.False(t, errors.Is(cause, chat.ErrBackpressure))
}

func TestConn_FramesHandledInOrder(t *testing.T) {
	conn, client := newConnPair(t, ConnOptions{}, nil)

	var mu sync.Mutex
	var got []string
	go conn.Run(func(frame []byte) {
		mu.Lock()
		got = append(got, string(frame))
		mu.Unlock()
	})

	want := []string{"one", "two", "three"}
	for _, f := range want {
		require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(f)))
	}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	}, readTimeout, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, want, got)
	mu.Unlock()
}

func TestConnOptions_Defaults(t *testing.T) {
	opts := ConnOptions{PingInterval: time.Minute, PongWait: 30 * time.Second}.withDefaults()
	assert.Equal(t, 64, opts.SendQueueSize)
	assert.EqualValues(t, 4096, opts.MaxFrameBytes)
	assert.Equal(t, 27*time.Second, opts.PingInterval)
	assert.Equal(t, 10*time.Second, opts.WriteTimeout)
}
