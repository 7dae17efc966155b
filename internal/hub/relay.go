package hub

import (
	"context"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/metrics"
	"github.com/matheus3301/wachat/internal/store"
	intsync "github.com/matheus3301/wachat/internal/sync"
	"github.com/matheus3301/wachat/internal/wire"
	"go.uber.org/zap"
)

// Relay forwards ingestion events from the bus to every connected client.
type Relay struct {
	hub    *Hub
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRelay creates a relay. Nothing is forwarded until Start.
func NewRelay(h *Hub, b *bus.Bus, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{hub: h, bus: b, logger: logger}
}

// Start subscribes to message and conversation events.
func (r *Relay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	msgCh, unsubMsg := r.bus.Subscribe("message.", 256)
	convCh, unsubConv := r.bus.Subscribe("conversation.", 64)

	go func() {
		defer close(r.done)
		defer unsubMsg()
		defer unsubConv()
		for {
			select {
			case evt := <-msgCh:
				r.forward(evt)
			case evt := <-convCh:
				r.forward(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the relay loop and waits for it to exit.
func (r *Relay) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Relay) forward(evt bus.Event) {
	metrics.BusDropped.Set(float64(r.bus.Dropped()))
	p, ok := payloadFor(evt)
	if !ok {
		r.logger.Debug("relay ignoring event", zap.String("kind", evt.Kind))
		return
	}
	n := r.hub.Broadcast(p)
	r.logger.Debug("relayed event", zap.String("kind", evt.Kind), zap.Int("recipients", n))
}

// payloadFor maps a bus event to the envelope clients receive.
func payloadFor(evt bus.Event) (wire.Payload, bool) {
	switch evt.Kind {
	case bus.MessageCreated:
		m, ok := evt.Payload.(store.Message)
		if !ok {
			return nil, false
		}
		return wire.NewMessage{WaID: m.WaID, Message: WireMessage(m)}, true
	case bus.MessageStatus:
		m, ok := evt.Payload.(store.Message)
		if !ok {
			return nil, false
		}
		id := m.MetaMsgID
		if id == "" {
			id = m.MessageID
		}
		return wire.StatusUpdate{WaID: m.WaID, MessageID: id, NewStatus: m.Status}, true
	case bus.ConversationCreated:
		c, ok := evt.Payload.(intsync.ConversationEvent)
		if !ok {
			return nil, false
		}
		return wire.NewConversation{WaID: c.WaID, UserName: c.UserName}, true
	}
	return nil, false
}

// WireMessage converts a stored message to its envelope form.
func WireMessage(m store.Message) wire.Message {
	return wire.Message{
		ID:        m.MessageID,
		WaID:      m.WaID,
		From:      m.From,
		To:        m.To,
		Text:      m.Content,
		Status:    m.Status,
		Timestamp: m.Timestamp,
		UserName:  m.UserName,
	}
}
