package hub

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wachat/internal/clock"
	"github.com/matheus3301/wachat/internal/metrics"
	"go.uber.org/zap"
)

// CloseNormal is the websocket close code used for idle eviction.
const CloseNormal = 1000

// ReasonIdle is the close reason sent to evicted connections.
const ReasonIdle = "idle timeout"

// DefaultIdleTimeout is how long a connection may stay silent before a
// sweep evicts it.
const DefaultIdleTimeout = 30 * time.Minute

// Conn is one client connection as the hub sees it.
type Conn interface {
	// Send queues a frame. It returns false if the connection is closed or
	// its queue is full.
	Send(frame []byte) bool
	// Close sends a close frame with code and reason, then tears down. It
	// must not wait on the peer.
	Close(code int, reason string)
	// Open reports whether frames can still be queued.
	Open() bool
	RemoteAddr() string
}

// Record describes a registered connection.
type Record struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
}

// Entry pairs a connection with its record in a snapshot.
type Entry struct {
	Conn   Conn
	Record Record
}

// Registry tracks live connections and their last activity.
type Registry struct {
	mu          sync.RWMutex
	conns       map[Conn]*Record
	clock       clock.Clock
	idleTimeout time.Duration
	logger      *zap.Logger
}

// NewRegistry creates an empty registry. A zero idleTimeout uses
// DefaultIdleTimeout.
func NewRegistry(c clock.Clock, idleTimeout time.Duration, logger *zap.Logger) *Registry {
	if c == nil {
		c = clock.Real()
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		conns:       make(map[Conn]*Record),
		clock:       c,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// Register stores a new record for c and returns its identifier.
// Registering the same connection twice returns the existing identifier.
func (r *Registry) Register(c Conn) string {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.conns[c]; ok {
		return rec.ID
	}
	rec := &Record{ID: newConnID(now), CreatedAt: now, LastActivity: now}
	r.conns[c] = rec
	metrics.HubConnections.Set(float64(len(r.conns)))
	return rec.ID
}

// Touch marks c as active now. Returns false if c is not registered.
func (r *Registry) Touch(c Conn) bool {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.conns[c]
	if !ok {
		return false
	}
	rec.LastActivity = now
	return true
}

// Unregister removes c. Returns false if it was not registered.
func (r *Registry) Unregister(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c]; !ok {
		return false
	}
	delete(r.conns, c)
	metrics.HubConnections.Set(float64(len(r.conns)))
	return true
}

// Lookup returns a copy of c's record.
func (r *Registry) Lookup(c Conn) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.conns[c]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot copies the current connection set. Callers iterate the copy
// without holding the registry lock.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.conns))
	for c, rec := range r.conns {
		out = append(out, Entry{Conn: c, Record: *rec})
	}
	return out
}

// Sweep closes and unregisters every connection idle for longer than the
// idle timeout as of now. Returns the evicted identifiers.
func (r *Registry) Sweep(now time.Time) []string {
	var idle []Entry
	r.mu.Lock()
	for c, rec := range r.conns {
		if now.Sub(rec.LastActivity) > r.idleTimeout {
			idle = append(idle, Entry{Conn: c, Record: *rec})
			delete(r.conns, c)
		}
	}
	metrics.HubConnections.Set(float64(len(r.conns)))
	r.mu.Unlock()

	ids := make([]string, 0, len(idle))
	for _, e := range idle {
		e.Conn.Close(CloseNormal, ReasonIdle)
		metrics.HubEvictions.Inc()
		r.logger.Info("evicted idle connection",
			zap.String("conn_id", e.Record.ID),
			zap.String("remote_addr", e.Conn.RemoteAddr()),
			zap.Duration("idle", now.Sub(e.Record.LastActivity)),
		)
		ids = append(ids, e.Record.ID)
	}
	return ids
}

func newConnID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
