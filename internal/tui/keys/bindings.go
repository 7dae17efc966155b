// Package keys maps key presses to actions per page and derives the
// header menu from the same bindings.
package keys

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wachat/internal/tui/ui"
)

// Global is the scope of bindings active on every page.
const Global = ""

// Binding ties a key to an action on one page.
type Binding struct {
	Key  tcell.Key
	Rune rune
	// Description is the menu text. Empty hides the binding from the menu.
	Description string
	// Handler runs on a match. A nil handler makes the binding a menu
	// hint only, and the key falls through to the focused widget.
	Handler func()
}

// Matches reports whether ev is this binding's key.
func (b Binding) Matches(ev *tcell.EventKey) bool {
	if b.Key != tcell.KeyRune {
		return ev.Key() == b.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == b.Rune
}

// Label is the key as shown in the menu, e.g. "r" or "Esc".
func (b Binding) Label() string {
	if b.Key == tcell.KeyRune {
		return string(b.Rune)
	}
	if name, ok := tcell.KeyNames[b.Key]; ok {
		return name
	}
	return fmt.Sprintf("key%d", b.Key)
}

func (b Binding) digit() bool {
	return b.Key == tcell.KeyRune && b.Rune >= '0' && b.Rune <= '9'
}

func (b Binding) sameKey(o Binding) bool {
	return b.Key == o.Key && (b.Key != tcell.KeyRune || b.Rune == o.Rune)
}

// Registry holds bindings per page in registration order.
type Registry struct {
	scopes map[string][]Binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{scopes: make(map[string][]Binding)}
}

// Bind adds b to scope, replacing an earlier binding of the same key.
func (r *Registry) Bind(scope string, b Binding) {
	list := r.scopes[scope]
	for i := range list {
		if list[i].sameKey(b) {
			list[i] = b
			return
		}
	}
	r.scopes[scope] = append(list, b)
}

// Handle runs the binding for ev on page, preferring page bindings over
// global ones. Returns true if a handler ran.
func (r *Registry) Handle(page string, ev *tcell.EventKey) bool {
	for _, scope := range []string{page, Global} {
		for _, b := range r.scopes[scope] {
			if !b.Matches(ev) {
				continue
			}
			if b.Handler == nil {
				return false
			}
			b.Handler()
			return true
		}
	}
	return false
}

// Hints lists the menu entries for page: page bindings first, then global
// bindings the page does not shadow. Consecutive digit bindings with the
// same description collapse into one range such as "1-9".
func (r *Registry) Hints(page string) []ui.MenuHint {
	var visible []Binding
	own := r.scopes[page]
	for _, b := range own {
		if b.Description != "" {
			visible = append(visible, b)
		}
	}
	if page != Global {
	global:
		for _, g := range r.scopes[Global] {
			if g.Description == "" {
				continue
			}
			for _, b := range own {
				if b.sameKey(g) {
					continue global
				}
			}
			visible = append(visible, g)
		}
	}

	var hints []ui.MenuHint
	for i := 0; i < len(visible); i++ {
		b := visible[i]
		if !b.digit() {
			hints = append(hints, ui.MenuHint{Key: b.Label(), Description: b.Description})
			continue
		}
		j := i
		for j+1 < len(visible) && visible[j+1].digit() &&
			visible[j+1].Description == b.Description && visible[j+1].Rune == visible[j].Rune+1 {
			j++
		}
		key := b.Label()
		if j > i {
			key = b.Label() + "-" + visible[j].Label()
		}
		hints = append(hints, ui.MenuHint{Key: key, Description: b.Description, Numeric: true})
		i = j
	}
	return hints
}
