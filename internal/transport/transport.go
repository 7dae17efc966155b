// Package transport keeps one logical websocket connection to the hub alive
// and fans received envelopes out to local subscribers.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/clock"
	"github.com/matheus3301/wachat/internal/status"
	"github.com/matheus3301/wachat/internal/wire"
	"go.uber.org/zap"
)

// ErrStopped is returned by Connect after Disconnect.
var ErrStopped = errors.New("transport stopped")

// Handler receives one decoded envelope.
type Handler func(wire.Payload)

// Options configures a Transport.
type Options struct {
	URL         string
	ClientName  string
	BaseDelay   time.Duration
	MaxAttempts int
	Dialer      Dialer
	Clock       clock.Clock
	Bus         *bus.Bus
	Logger      *zap.Logger
}

// Transport is a reconnecting client connection to the hub.
type Transport struct {
	url         string
	clientName  string
	baseDelay   time.Duration
	maxAttempts int
	dialer      Dialer
	clock       clock.Clock
	machine     *status.Machine
	logger      *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	conn    Conn
	gen     int
	attempt int
	timer   clock.Timer
	stopped bool
	subs    map[wire.Kind]map[int]Handler
	nextSub int

	writeMu sync.Mutex
}

// New creates a disconnected transport.
func New(opts Options) *Transport {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ClientName == "" {
		opts.ClientName = "wachat"
	}
	return &Transport{
		url:         opts.URL,
		clientName:  opts.ClientName,
		baseDelay:   opts.BaseDelay,
		maxAttempts: opts.MaxAttempts,
		dialer:      opts.Dialer,
		clock:       opts.Clock,
		machine:     status.NewMachine(opts.Bus),
		logger:      opts.Logger,
		ctx:         context.Background(),
		subs:        make(map[wire.Kind]map[int]Handler),
	}
}

// State returns the current connection state.
func (t *Transport) State() status.State {
	return t.machine.Current()
}

// Online reports whether envelopes can be sent right now.
func (t *Transport) Online() bool {
	return t.machine.Online()
}

// Connect dials the hub. A failed dial schedules a reconnect and is also
// returned. Calling Connect while connecting or open does nothing; calling
// it after GivenUp starts a fresh round of attempts.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}
	switch t.machine.Current() {
	case status.Connecting, status.Open:
		t.mu.Unlock()
		return nil
	case status.GivenUp:
		t.attempt = 0
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.ctx = ctx
	t.mu.Unlock()
	return t.dial()
}

func (t *Transport) dial() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}
	if err := t.machine.Transition(status.Connecting); err != nil {
		t.mu.Unlock()
		return err
	}
	ctx, attempt := t.ctx, t.attempt
	t.mu.Unlock()

	t.logger.Info("connecting to hub", zap.String("url", t.url), zap.Int("attempt", attempt))
	conn, err := t.dialer.Dial(ctx, t.url)

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrStopped
	}
	if err != nil {
		_ = t.machine.Transition(status.Errored)
		t.logger.Warn("hub dial failed", zap.Error(err))
		t.scheduleLocked()
		t.mu.Unlock()
		return fmt.Errorf("connect: %w", err)
	}
	_ = t.machine.Transition(status.Open)
	t.attempt = 0
	t.conn = conn
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	t.logger.Info("connected to hub", zap.String("url", t.url))
	t.Send(wire.Hello{Client: t.clientName})
	go t.readLoop(conn, gen)
	return nil
}

// scheduleLocked moves a failed connection back to Disconnected and arms the
// next reconnect, or gives up once the attempts are exhausted.
func (t *Transport) scheduleLocked() {
	_ = t.machine.Transition(status.Disconnected)
	if t.attempt >= t.maxAttempts {
		_ = t.machine.Transition(status.GivenUp)
		t.logger.Error("giving up on hub connection", zap.Int("attempts", t.attempt))
		return
	}
	delay := Backoff(t.baseDelay, t.attempt)
	t.attempt++
	t.logger.Info("scheduling reconnect",
		zap.Duration("delay", delay),
		zap.Int("attempt", t.attempt),
		zap.Int("max_attempts", t.maxAttempts),
	)
	t.timer = t.clock.AfterFunc(delay, t.reconnect)
}

func (t *Transport) reconnect() {
	t.mu.Lock()
	t.timer = nil
	if t.stopped || t.machine.Current() != status.Disconnected {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	_ = t.dial()
}

func (t *Transport) readLoop(conn Conn, gen int) {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			t.dropped(gen, err)
			return
		}
		p, err := wire.Decode(raw)
		if err != nil {
			t.logger.Warn("dropping malformed envelope", zap.Int("bytes", len(raw)), zap.Error(err))
			continue
		}
		t.dispatch(p)
	}
}

// dropped handles the end of connection gen.
func (t *Transport) dropped(gen int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || gen != t.gen || t.conn == nil {
		return
	}
	_ = t.conn.Close()
	t.conn = nil
	if isCleanClose(err) {
		t.logger.Info("hub connection closed", zap.Error(err))
		_ = t.machine.Transition(status.Closed)
	} else {
		t.logger.Warn("hub connection failed", zap.Error(err))
		_ = t.machine.Transition(status.Errored)
	}
	t.scheduleLocked()
}

// Subscribe registers fn for envelopes of kind. The returned func removes
// the subscription and may be called more than once.
func (t *Transport) Subscribe(kind wire.Kind, fn Handler) func() {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	if t.subs[kind] == nil {
		t.subs[kind] = make(map[int]Handler)
	}
	t.subs[kind][id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs[kind], id)
		})
	}
}

// dispatch runs every subscriber of p's kind in subscription order.
func (t *Transport) dispatch(p wire.Payload) {
	kind := wire.KindOf(p)
	t.mu.Lock()
	ids := make([]int, 0, len(t.subs[kind]))
	for id := range t.subs[kind] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, t.subs[kind][id])
	}
	t.mu.Unlock()

	if len(handlers) == 0 {
		t.logger.Debug("no subscribers for envelope", zap.String("kind", string(kind)))
		return
	}
	for _, h := range handlers {
		t.invoke(kind, h, p)
	}
}

func (t *Transport) invoke(kind wire.Kind, h Handler, p wire.Payload) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("subscriber panicked", zap.String("kind", string(kind)), zap.Any("panic", r))
		}
	}()
	h(p)
}

// Send writes p if the connection is open. It never queues: when offline the
// envelope is dropped with a warning and false is returned.
func (t *Transport) Send(p wire.Payload) bool {
	t.mu.Lock()
	conn := t.conn
	online := t.machine.Current() == status.Open
	t.mu.Unlock()

	kind := wire.KindOf(p)
	if !online || conn == nil {
		t.logger.Warn("dropping envelope, transport offline", zap.String("kind", string(kind)), zap.String("state", string(t.State())))
		return false
	}
	frame, err := wire.Encode(p)
	if err != nil {
		t.logger.Error("encode envelope", zap.String("kind", string(kind)), zap.Error(err))
		return false
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(frame); err != nil {
		t.logger.Warn("send failed", zap.String("kind", string(kind)), zap.Error(err))
		return false
	}
	return true
}

// Disconnect closes the connection for good: no reconnect follows and all
// subscriptions are dropped. Safe to call more than once.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	conn := t.conn
	t.conn = nil
	t.subs = make(map[wire.Kind]map[int]Handler)
	_ = t.machine.Transition(status.Stopped)
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	t.logger.Info("transport stopped")
}
