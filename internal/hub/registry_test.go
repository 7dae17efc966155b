package hub

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/matheus3301/wachat/internal/clock"
)

type fakeConn struct {
	mu     sync.Mutex
	addr   string
	frames [][]byte
	closed bool
	code   int
	reason string
	full   bool
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr}
}

func (c *fakeConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.full {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

func (c *fakeConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed, c.code, c.reason = true, code, reason
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func (c *fakeConn) closeInfo() (bool, int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.code, c.reason
}

var connIDPattern = regexp.MustCompile(`^\d+-[0-9a-f]{9}$`)

func TestRegisterAssignsID(t *testing.T) {
	fc := clock.NewFake(time.UnixMilli(1_700_000_000_000))
	reg := NewRegistry(fc, time.Minute, nil)

	a, b := newFakeConn("a"), newFakeConn("b")
	idA := reg.Register(a)
	idB := reg.Register(b)

	if !connIDPattern.MatchString(idA) {
		t.Errorf("id %q does not match <ms>-<suffix>", idA)
	}
	if idA == idB {
		t.Errorf("two connections share id %q", idA)
	}
	if again := reg.Register(a); again != idA {
		t.Errorf("re-register returned %q, want %q", again, idA)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}

	rec, ok := reg.Lookup(a)
	if !ok {
		t.Fatal("Lookup(a) not found")
	}
	if !rec.CreatedAt.Equal(fc.Now()) || !rec.LastActivity.Equal(fc.Now()) {
		t.Errorf("record times = %v/%v, want %v", rec.CreatedAt, rec.LastActivity, fc.Now())
	}
}

func TestTouchAndUnregister(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	reg := NewRegistry(fc, time.Minute, nil)
	c := newFakeConn("c")

	if reg.Touch(c) {
		t.Error("Touch() on unknown connection returned true")
	}
	reg.Register(c)
	fc.Advance(10 * time.Second)
	if !reg.Touch(c) {
		t.Fatal("Touch() returned false for registered connection")
	}
	rec, _ := reg.Lookup(c)
	if !rec.LastActivity.Equal(fc.Now()) {
		t.Errorf("LastActivity = %v, want %v", rec.LastActivity, fc.Now())
	}
	if rec.CreatedAt.Equal(rec.LastActivity) {
		t.Error("Touch() changed nothing")
	}

	if !reg.Unregister(c) {
		t.Error("Unregister() returned false for registered connection")
	}
	if reg.Unregister(c) {
		t.Error("second Unregister() returned true")
	}
	if _, ok := reg.Lookup(c); ok {
		t.Error("Lookup() found an unregistered connection")
	}
}

func TestSweepEvictsOnlyIdle(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	reg := NewRegistry(fc, 30*time.Minute, nil)

	stale, fresh := newFakeConn("stale"), newFakeConn("fresh")
	staleID := reg.Register(stale)
	reg.Register(fresh)

	fc.Advance(20 * time.Minute)
	reg.Touch(fresh)
	fc.Advance(11 * time.Minute)

	evicted := reg.Sweep(fc.Now())
	if len(evicted) != 1 || evicted[0] != staleID {
		t.Fatalf("evicted = %v, want [%s]", evicted, staleID)
	}
	closed, code, reason := stale.closeInfo()
	if !closed || code != CloseNormal || reason != ReasonIdle {
		t.Errorf("stale close = (%v, %d, %q), want (true, %d, %q)", closed, code, reason, CloseNormal, ReasonIdle)
	}
	if closed, _, _ := fresh.closeInfo(); closed {
		t.Error("fresh connection was closed")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestSweepAtExactTimeoutKeepsConnection(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	reg := NewRegistry(fc, time.Minute, nil)
	reg.Register(newFakeConn("edge"))

	fc.Advance(time.Minute)
	if got := reg.Sweep(fc.Now()); len(got) != 0 {
		t.Errorf("evicted at exactly the timeout: %v", got)
	}
}

func TestSweepEmptyRegistry(t *testing.T) {
	reg := NewRegistry(nil, 0, nil)
	if got := reg.Sweep(time.Now()); len(got) != 0 {
		t.Errorf("Sweep() on empty registry = %v", got)
	}
}

func TestSweepEvictsExactlyIdleConnections(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("sweep evicts a connection iff it is idle past the timeout", prop.ForAll(
		func(idleMinutes []int) bool {
			fc := clock.NewFake(time.Unix(0, 0))
			reg := NewRegistry(fc, 30*time.Minute, nil)
			fc.Advance(2 * time.Hour)

			conns := make([]*fakeConn, len(idleMinutes))
			for i := range idleMinutes {
				conns[i] = newFakeConn("c")
				reg.Register(conns[i])
			}
			// Each connection was last active idleMinutes[i] ago.
			now := fc.Now()
			for i, m := range idleMinutes {
				reg.mu.Lock()
				reg.conns[conns[i]].LastActivity = now.Add(-time.Duration(m) * time.Minute)
				reg.mu.Unlock()
			}

			evicted := reg.Sweep(now)
			want := 0
			for i, m := range idleMinutes {
				_, still := reg.Lookup(conns[i])
				closed, _, _ := conns[i].closeInfo()
				if m > 30 {
					want++
					if still || !closed {
						return false
					}
				} else if !still || closed {
					return false
				}
			}
			return len(evicted) == want && reg.Len() == len(idleMinutes)-want
		},
		gen.SliceOf(gen.IntRange(0, 90)),
	))

	properties.TestingRun(t)
}
