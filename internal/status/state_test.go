package status

import (
	"testing"

	"github.com/matheus3301/wachat/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Disconnected {
		t.Errorf("initial state = %s, want DISCONNECTED", m.Current())
	}
	if m.Online() {
		t.Error("Online() = true before connecting")
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Disconnected, Connecting},
		{Disconnected, GivenUp},
		{Connecting, Open},
		{Connecting, Errored},
		{Open, Closed},
		{Open, Errored},
		{Closed, Disconnected},
		{Errored, Disconnected},
		{GivenUp, Connecting},
		{Open, Stopped},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Open); err == nil {
		t.Error("Transition(DISCONNECTED -> OPEN) should fail")
	}
}

func TestStoppedIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Stopped); err != nil {
		t.Fatal(err)
	}
	for _, s := range []State{Disconnected, Connecting, Open, GivenUp} {
		if err := m.Transition(s); err == nil {
			t.Errorf("Transition(STOPPED -> %s) should fail", s)
		}
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("transport.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != EventStateChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, EventStateChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Disconnected || change.To != Connecting {
		t.Errorf("change = %v -> %v, want DISCONNECTED -> CONNECTING", change.From, change.To)
	}
}

// TestReconnectCycle walks OPEN -> CLOSED -> DISCONNECTED -> CONNECTING -> OPEN.
func TestReconnectCycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Open)

	steps := []State{Closed, Disconnected, Connecting, Open}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if !m.Online() {
		t.Errorf("Online() = false in %s", m.Current())
	}
}

func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Disconnected: {},
		Connecting:   {Connecting},
		Open:         {Connecting, Open},
		Closed:       {Connecting, Open, Closed},
		Errored:      {Connecting, Errored},
		GivenUp:      {GivenUp},
		Stopped:      {Stopped},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
