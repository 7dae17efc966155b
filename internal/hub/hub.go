// Package hub fans envelopes out between websocket clients.
package hub

import (
	"context"

	"github.com/matheus3301/wachat/internal/clock"
	"github.com/matheus3301/wachat/internal/metrics"
	"github.com/matheus3301/wachat/internal/wire"
	"go.uber.org/zap"
)

// Hub dispatches inbound envelopes and broadcasts to registered connections.
type Hub struct {
	reg    *Registry
	clock  clock.Clock
	logger *zap.Logger
}

// New creates a hub over reg.
func New(reg *Registry, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{reg: reg, clock: reg.clock, logger: logger}
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.reg
}

// OnConnect registers c and acknowledges it with its connection id.
func (h *Hub) OnConnect(c Conn) string {
	id := h.reg.Register(c)
	h.logger.Info("client connected", zap.String("conn_id", id), zap.String("remote_addr", c.RemoteAddr()))
	h.sendTo(c, wire.ConnectionAck{ConnectionID: id})
	return id
}

// OnMessage handles one inbound frame from c. Malformed frames are logged
// and dropped.
func (h *Hub) OnMessage(c Conn, raw []byte) {
	h.reg.Touch(c)

	p, err := wire.Decode(raw)
	if err != nil {
		metrics.HubDropped.WithLabelValues("malformed").Inc()
		h.logger.Warn("dropping malformed envelope",
			zap.String("remote_addr", c.RemoteAddr()),
			zap.Int("bytes", len(raw)),
			zap.Error(err),
		)
		return
	}
	kind := wire.KindOf(p)

	switch v := p.(type) {
	case wire.NewMessage, wire.StatusUpdate:
		metrics.HubEnvelopes.WithLabelValues(string(kind)).Inc()
		n := h.fanOut(c, v)
		h.logger.Debug("relayed envelope", zap.String("kind", string(kind)), zap.Int("recipients", n))
	case wire.Ping:
		metrics.HubEnvelopes.WithLabelValues(string(kind)).Inc()
		h.sendTo(c, wire.Pong{Time: h.clock.Now().UTC()})
	case wire.Hello:
		metrics.HubEnvelopes.WithLabelValues(string(kind)).Inc()
		h.logger.Debug("client hello", zap.String("client", v.Client), zap.String("remote_addr", c.RemoteAddr()))
	default:
		metrics.HubDropped.WithLabelValues("unhandled_kind").Inc()
		h.logger.Info("ignoring envelope", zap.String("kind", string(kind)), zap.String("remote_addr", c.RemoteAddr()))
	}
}

// OnClose forgets c.
func (h *Hub) OnClose(c Conn) {
	if rec, ok := h.reg.Lookup(c); ok {
		h.logger.Info("client disconnected",
			zap.String("conn_id", rec.ID),
			zap.Duration("age", h.clock.Now().Sub(rec.CreatedAt)),
		)
	}
	h.reg.Unregister(c)
}

// OnError forgets c after a transport error.
func (h *Hub) OnError(c Conn, err error) {
	h.logger.Warn("connection error", zap.String("remote_addr", c.RemoteAddr()), zap.Error(err))
	h.reg.Unregister(c)
}

// Broadcast sends p to every open connection. Returns how many
// connections it was queued to.
func (h *Hub) Broadcast(p wire.Payload) int {
	return h.fanOut(nil, p)
}

// fanOut queues p to every open connection except sender.
func (h *Hub) fanOut(sender Conn, p wire.Payload) int {
	frame, err := wire.Encode(p)
	if err != nil {
		h.logger.Error("encode envelope", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, e := range h.reg.Snapshot() {
		if e.Conn == sender || !e.Conn.Open() {
			continue
		}
		if !e.Conn.Send(frame) {
			h.dropSlow(e)
			continue
		}
		delivered++
	}
	metrics.HubDeliveries.Add(float64(delivered))
	return delivered
}

func (h *Hub) sendTo(c Conn, p wire.Payload) {
	frame, err := wire.Encode(p)
	if err != nil {
		h.logger.Error("encode envelope", zap.Error(err))
		return
	}
	if !c.Send(frame) {
		metrics.HubDropped.WithLabelValues("send_failed").Inc()
		h.logger.Warn("direct send failed", zap.String("kind", string(wire.KindOf(p))), zap.String("remote_addr", c.RemoteAddr()))
	}
}

// dropSlow disconnects a connection whose queue rejected a frame.
func (h *Hub) dropSlow(e Entry) {
	if !h.reg.Unregister(e.Conn) {
		return
	}
	metrics.HubDropped.WithLabelValues("buffer_full").Inc()
	h.logger.Warn("closing slow connection", zap.String("conn_id", e.Record.ID))
	e.Conn.Close(CloseTryAgainLater, "send buffer full")
}

// flusher is implemented by connections that write their close frame in the
// background.
type flusher interface {
	Flushed() <-chan struct{}
}

// Shutdown closes every registered connection with CloseGoingAway and waits
// until their close frames are written or ctx is done. Returns how many
// were closed.
func (h *Hub) Shutdown(ctx context.Context) int {
	entries := h.reg.Snapshot()
	for _, e := range entries {
		h.reg.Unregister(e.Conn)
		e.Conn.Close(CloseGoingAway, "server shutting down")
	}
	for _, e := range entries {
		f, ok := e.Conn.(flusher)
		if !ok {
			continue
		}
		select {
		case <-f.Flushed():
		case <-ctx.Done():
			h.logger.Warn("gave up waiting for close frames", zap.Error(ctx.Err()))
			return len(entries)
		}
	}
	if len(entries) > 0 {
		h.logger.Info("closed client connections", zap.Int("count", len(entries)))
	}
	return len(entries)
}

// Close codes sent by the hub.
const (
	CloseGoingAway     = 1001
	CloseTryAgainLater = 1013
)

