package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wachat/internal/bus"
)

// State represents a client transport connection state.
type State string

const (
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Open         State = "OPEN"
	Closed       State = "CLOSED"
	Errored      State = "ERRORED"
	GivenUp      State = "GIVEN_UP"
	Stopped      State = "STOPPED"
)

// EventStateChanged is the bus kind published on every transition.
const EventStateChanged = "transport.state_changed"

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Disconnected: {Connecting, GivenUp, Stopped},
	Connecting:   {Open, Closed, Errored, Stopped},
	Open:         {Closed, Errored, Stopped},
	Closed:       {Disconnected, Stopped},
	Errored:      {Disconnected, Stopped},
	GivenUp:      {Connecting, Stopped},
	Stopped:      {},
}

// Machine tracks and enforces transport state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Disconnected state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Online reports whether the transport can currently send.
func (m *Machine) Online() bool {
	return m.Current() == Open
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      EventStateChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
