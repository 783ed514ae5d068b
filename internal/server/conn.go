package server

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fenggwsx/roomchat/internal/chat"
	"github.com/fenggwsx/roomchat/internal/protocol"
)

// ErrConnClosed is returned when enqueueing on a closed connection.
var ErrConnClosed = errors.New("connection closed")

// ConnOptions tunes a Conn.
type ConnOptions struct {
	SendQueueSize int
	MaxFrameBytes int64
	PingInterval  time.Duration
	PongWait      time.Duration
	WriteTimeout  time.Duration
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 64
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 4096
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

type outbound struct {
	event   protocol.EventType
	id      string
	payload interface{}
}

// Conn is one websocket client. Outbound frames go through a bounded queue
// drained by a single writer goroutine; Deliver never blocks.
type Conn struct {
	id         string
	ws         *websocket.Conn
	remoteAddr string
	opts       ConnOptions
	log        zerolog.Logger

	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
	cause     error
	degraded  atomic.Bool
	onClose   func(error)
}

var _ chat.Member = (*Conn)(nil)

// NewConn wraps an upgraded websocket. onClose runs exactly once with the
// close cause: nil for a local close, otherwise an error wrapping
// chat.ErrTransport or chat.ErrBackpressure.
func NewConn(ws *websocket.Conn, remoteAddr string, opts ConnOptions, log zerolog.Logger, onClose func(error)) *Conn {
	opts = opts.withDefaults()
	id := uuid.NewString()
	return &Conn{
		id:         id,
		ws:         ws,
		remoteAddr: remoteAddr,
		opts:       opts,
		log:        log.With().Str("conn", id).Logger(),
		send:       make(chan outbound, opts.SendQueueSize),
		done:       make(chan struct{}),
		onClose:    onClose,
	}
}

// ID returns the session token of the connection.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// Degraded reports whether the outbound queue has overflowed.
func (c *Conn) Degraded() bool {
	return c.degraded.Load()
}

// Done is closed once the connection starts shutting down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Deliver queues a room event for the client.
func (c *Conn) Deliver(ev chat.Event) error {
	switch e := ev.(type) {
	case chat.Message:
		return c.enqueue(outbound{event: protocol.EventMessage, payload: toMessagePayload(e)})
	case chat.Notification:
		return c.enqueue(outbound{event: protocol.EventNotification, payload: protocol.NotificationPayload{
			Title:       e.Title,
			Description: e.Description,
		}})
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
}

func (c *Conn) reply(id string, ack protocol.AckPayload) error {
	return c.enqueue(outbound{event: protocol.EventAck, id: id, payload: ack})
}

func (c *Conn) enqueue(o outbound) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- o:
		return nil
	default:
		if c.degraded.CompareAndSwap(false, true) {
			c.log.Warn().Int("queue", cap(c.send)).Msg("outbound queue full, closing")
			// Callers may hold a room lock; teardown takes it again.
			go c.closeWith(chat.ErrBackpressure)
		}
		return chat.ErrBackpressure
	}
}

// Close shuts the connection down after flushing queued frames. It is safe
// to call more than once.
func (c *Conn) Close() error {
	c.closeWith(nil)
	return nil
}

func (c *Conn) closeWith(cause error) {
	c.closeOnce.Do(func() {
		c.cause = cause
		close(c.done)
		if cause != nil {
			_ = c.ws.Close()
		}
		if c.onClose != nil {
			c.onClose(cause)
		}
	})
}

// Run starts the writer and reads frames until the connection ends. handle
// is called sequentially from the reading goroutine.
func (c *Conn) Run(handle func([]byte)) {
	go c.writePump()
	c.readPump(handle)
}

func (c *Conn) readPump(handle func([]byte)) {
	c.ws.SetReadLimit(c.opts.MaxFrameBytes)
	if err := c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
		c.closeWith(fmt.Errorf("%w: %w", chat.ErrTransport, err))
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			c.closeWith(fmt.Errorf("%w: %w", chat.ErrTransport, err))
			return
		}
		select {
		case <-c.done:
			return
		default:
		}
		handle(frame)
	}
}

func (c *Conn) logReadError(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Int64("limit", c.opts.MaxFrameBytes).Msg("frame exceeds limit")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.log.Debug().Err(err).Msg("peer closed")
	default:
		c.log.Debug().Err(err).Msg("read failed")
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case o := <-c.send:
			if err := c.write(o); err != nil {
				c.closeWith(fmt.Errorf("%w: %w", chat.ErrTransport, err))
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.closeWith(fmt.Errorf("%w: %w", chat.ErrTransport, err))
				return
			}
		case <-c.done:
			if c.cause == nil {
				c.flush()
			}
			return
		}
	}
}

// flush writes whatever is still queued and says goodbye.
func (c *Conn) flush() {
	for {
		select {
		case o := <-c.send:
			if err := c.write(o); err != nil {
				return
			}
		default:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteTimeout))
			return
		}
	}
}

// historyAck defers building the login acknowledgement to the writer so the
// room lock is never held for a copy of the history.
type historyAck []chat.Message

func (c *Conn) write(o outbound) error {
	payload := o.payload
	if h, ok := payload.(historyAck); ok {
		payload = protocol.LoginAck(toMessagePayloads(h))
	}
	frame, err := protocol.Encode(o.event, o.id, payload)
	if err != nil {
		c.log.Error().Err(err).Str("event", string(o.event)).Msg("encode frame")
		return nil
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func toMessagePayload(msg chat.Message) protocol.MessagePayload {
	return protocol.MessagePayload{
		User:      msg.Sender,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}
}

func toMessagePayloads(history []chat.Message) []protocol.MessagePayload {
	out := make([]protocol.MessagePayload, 0, len(history))
	for _, msg := range history {
		out = append(out, toMessagePayload(msg))
	}
	return out
}
