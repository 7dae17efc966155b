package hub

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnOptions tunes websocket connections.
type ConnOptions struct {
	MaxMessageSize int64
	SendBuffer     int
	PongWait       time.Duration
	PingPeriod     time.Duration
	WriteWait      time.Duration
}

// DefaultConnOptions returns the pump timings used in production.
func DefaultConnOptions() ConnOptions {
	return ConnOptions{
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		WriteWait:      10 * time.Second,
	}
}

func (o ConnOptions) withDefaults() ConnOptions {
	d := DefaultConnOptions()
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	return o
}

// wsConn adapts a gorilla websocket to Conn and runs its read and write pumps.
type wsConn struct {
	ws     *websocket.Conn
	hub    *Hub
	opts   ConnOptions
	addr   string
	logger *zap.Logger

	send    chan []byte
	done    chan struct{}
	flushed chan struct{}

	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string
}

func newWSConn(ws *websocket.Conn, h *Hub, opts ConnOptions, logger *zap.Logger) *wsConn {
	ws.SetReadLimit(opts.MaxMessageSize)
	return &wsConn{
		ws:      ws,
		hub:     h,
		opts:    opts,
		addr:    ws.RemoteAddr().String(),
		logger:  logger,
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
	}
}

func (c *wsConn) RemoteAddr() string { return c.addr }

func (c *wsConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *wsConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close marks the connection closed and leaves the close frame to the
// write pump, so callers never wait on the socket. Safe to call repeatedly.
func (c *wsConn) Close(code int, reason string) {
	c.markClosed(code, reason)
}

// Flushed is closed once the write pump has exited and the socket is gone.
func (c *wsConn) Flushed() <-chan struct{} { return c.flushed }

// markClosed records the close code for the write pump. A zero code means
// the peer is already gone and no close frame is written.
func (c *wsConn) markClosed(code int, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.closeCode, c.closeReason = code, reason
	close(c.done)
	return true
}

// run registers the connection and blocks until it is gone.
func (c *wsConn) run() {
	c.hub.OnConnect(c)
	go c.writePump()
	c.readPump()
}

func (c *wsConn) readPump() {
	defer func() {
		c.markClosed(0, "")
		_ = c.ws.Close()
	}()

	if err := c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
		c.hub.OnError(c, err)
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.hub.OnMessage(c, raw)
	}
}

// handleReadError routes a terminal read error to OnClose or OnError.
func (c *wsConn) handleReadError(err error) {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.hub.OnClose(c)
	case errors.Is(err, io.EOF), isExpectedCloseError(err), !c.Open():
		c.hub.OnClose(c)
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("message exceeded size limit", zap.String("remote_addr", c.addr), zap.Int64("limit", c.opts.MaxMessageSize))
		c.hub.OnError(c, err)
	default:
		c.hub.OnError(c, err)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.flushed)
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(websocket.TextMessage, frame) {
				return
			}
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		case <-c.done:
			c.finish()
			return
		}
	}
}

// finish flushes what was queued before Close and writes the close frame.
// A connection dropped for a full queue skips the flush.
func (c *wsConn) finish() {
	c.mu.Lock()
	code, reason := c.closeCode, c.closeReason
	c.mu.Unlock()
	if code == 0 {
		return
	}
	if code != CloseTryAgainLater && !c.drain() {
		return
	}
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait)); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("write close frame", zap.String("remote_addr", c.addr), zap.Error(err))
	}
}

// drain flushes frames queued before the connection was closed. Returns
// false if a write failed.
func (c *wsConn) drain() bool {
	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(websocket.TextMessage, frame) {
				return false
			}
		default:
			return true
		}
	}
}

func (c *wsConn) writeFrame(kind int, frame []byte) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return false
	}
	if err := c.ws.WriteMessage(kind, frame); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Debug("write failed", zap.String("remote_addr", c.addr), zap.Error(err))
		}
		return false
	}
	return true
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
