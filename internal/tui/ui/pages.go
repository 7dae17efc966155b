package ui

import "github.com/rivo/tview"

// Pages is the page stack behind the crumb bar.
type Pages struct {
	*tview.Pages
	stack    []string
	onChange func(stack []string)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Push shows name on top of the stack. A page already on the stack is not
// stacked twice: the stack unwinds back to it, so jumping from a
// conversation's details to the same conversation returns to its thread.
// Returns false if name was already on top.
func (p *Pages) Push(name string) bool {
	if p.Current() == name {
		return false
	}
	for i, n := range p.stack {
		if n == name {
			p.unwind(i + 1)
			return true
		}
	}
	if top := p.Current(); top != "" {
		p.HidePage(top)
	}
	p.stack = append(p.stack, name)
	p.show(name)
	return true
}

// Pop removes the top page and shows the one below it. The root page is
// never popped. Returns the popped page name, or "" at the root.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.Current()
	p.unwind(len(p.stack) - 1)
	return top
}

// Current returns the page on top of the stack.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Stack returns a copy of the stack, root first.
func (p *Pages) Stack() []string {
	return append([]string(nil), p.stack...)
}

// Depth returns the stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

// Reset makes name the only page on the stack.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.show(name)
}

// unwind hides every page above depth n and shows the new top.
func (p *Pages) unwind(n int) {
	for _, name := range p.stack[n:] {
		p.HidePage(name)
	}
	p.stack = p.stack[:n]
	p.show(p.Current())
}

func (p *Pages) show(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}
