package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Crumb is one entry of the breadcrumb trail.
type Crumb struct {
	Label string
	// Count is rendered as "label(n)". Negative hides it.
	Count int
}

// CrumbsFor builds the trail for a page stack.
func CrumbsFor(stack []string, pages map[string]Page) []Crumb {
	out := make([]Crumb, 0, len(stack))
	for _, name := range stack {
		p, ok := pages[name]
		if !ok {
			out = append(out, Crumb{Label: name, Count: -1})
			continue
		}
		out = append(out, Crumb{Label: p.Name(), Count: p.Count()})
	}
	return out
}

// Crumbs is the breadcrumb bar under the page stack.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update renders the trail. The last crumb is the active page.
func (c *Crumbs) Update(trail []Crumb) {
	c.Clear()
	_, _ = fmt.Fprint(c, c.render(trail))
}

func (c *Crumbs) render(trail []Crumb) string {
	parts := make([]string, 0, len(trail))
	for i, cr := range trail {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(trail)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		label := tview.Escape(cr.Label)
		if cr.Count >= 0 {
			label = fmt.Sprintf("%s(%d)", label, cr.Count)
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", colorName(fg), colorName(bg), attr, label))
	}
	return strings.Join(parts, " ")
}
