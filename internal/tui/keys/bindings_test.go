package keys

import (
	"reflect"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wachat/internal/tui/ui"
)

func runeEvent(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestHandlePrefersPageBinding(t *testing.T) {
	r := NewRegistry()
	var got []string
	r.Bind(Global, Binding{Key: tcell.KeyRune, Rune: 'r', Handler: func() { got = append(got, "refresh") }})
	r.Bind("thread", Binding{Key: tcell.KeyRune, Rune: 'r', Handler: func() { got = append(got, "retry") }})

	if !r.Handle("thread", runeEvent('r')) {
		t.Fatal("thread r not handled")
	}
	if !r.Handle("conversations", runeEvent('r')) {
		t.Fatal("conversations r not handled")
	}
	if !reflect.DeepEqual(got, []string{"retry", "refresh"}) {
		t.Errorf("handlers ran = %v", got)
	}
	if r.Handle("thread", runeEvent('x')) {
		t.Error("unbound rune reported handled")
	}
}

func TestHintOnlyBindingFallsThrough(t *testing.T) {
	r := NewRegistry()
	r.Bind("conversations", Binding{Key: tcell.KeyEnter, Description: "Open"})
	if r.Handle("conversations", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)) {
		t.Error("hint-only Enter consumed the key")
	}
}

func TestBindReplacesSameKey(t *testing.T) {
	r := NewRegistry()
	r.Bind("thread", Binding{Key: tcell.KeyRune, Rune: 'd', Description: "Delete"})
	r.Bind("thread", Binding{Key: tcell.KeyRune, Rune: 'd', Description: "Details"})
	hints := r.Hints("thread")
	if len(hints) != 1 || hints[0].Description != "Details" {
		t.Errorf("Hints() = %+v", hints)
	}
}

func TestMatchesSpecialKey(t *testing.T) {
	b := Binding{Key: tcell.KeyEscape}
	if !b.Matches(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Error("Esc did not match")
	}
	if b.Matches(runeEvent('e')) {
		t.Error("rune matched a special key binding")
	}
	if b.Label() != "Esc" {
		t.Errorf("Label() = %q, want Esc", b.Label())
	}
}

func TestHints(t *testing.T) {
	r := NewRegistry()
	r.Bind(Global, Binding{Key: tcell.KeyRune, Rune: '?', Description: "Help", Handler: func() {}})
	r.Bind(Global, Binding{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Handler: func() {}})
	r.Bind("conversations", Binding{Key: tcell.KeyRune, Rune: 'j', Handler: func() {}})
	r.Bind("conversations", Binding{Key: tcell.KeyRune, Rune: 's', Description: "Search", Handler: func() {}})
	r.Bind("conversations", Binding{Key: tcell.KeyRune, Rune: 'q', Description: "Back", Handler: func() {}})
	for d := '1'; d <= '9'; d++ {
		r.Bind("conversations", Binding{Key: tcell.KeyRune, Rune: d, Description: "Jump", Handler: func() {}})
	}

	want := []ui.MenuHint{
		{Key: "s", Description: "Search"},
		{Key: "q", Description: "Back"},
		{Key: "1-9", Description: "Jump", Numeric: true},
		{Key: "?", Description: "Help"},
	}
	if got := r.Hints("conversations"); !reflect.DeepEqual(got, want) {
		t.Errorf("Hints() = %+v\nwant %+v", got, want)
	}
}
