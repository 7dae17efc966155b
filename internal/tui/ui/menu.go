package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// menuRows is how many hints fit in one header column.
const menuRows = 6

// Menu shows the key hints of the current page in header columns.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

// Update renders hints column by column, menuRows per column.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, m.render(hints, menuRows))
}

func (m *Menu) render(hints []MenuHint, rows int) string {
	cols := layoutHints(hints, rows)
	widths := make([]int, len(cols))
	for i, col := range cols {
		for _, h := range col {
			widths[i] = max(widths[i], hintWidth(h))
		}
	}

	keyColor := colorName(m.theme.MenuKeyColor)
	numColor := colorName(m.theme.NumericKeyColor)
	fg := colorName(m.theme.FgColor)

	var b strings.Builder
	for r := 0; r < rows; r++ {
		var line strings.Builder
		for c, col := range cols {
			if r >= len(col) {
				continue
			}
			h := col[r]
			kc := keyColor
			if h.Numeric {
				kc = numColor
			}
			fmt.Fprintf(&line, "[%s::b]<%s>[-:-:-] [%s]%s[-]", kc, tview.Escape(h.Key), fg, h.Description)
			if c < len(cols)-1 {
				line.WriteString(strings.Repeat(" ", widths[c]-hintWidth(h)+3))
			}
		}
		if line.Len() == 0 {
			break
		}
		b.WriteString(line.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// layoutHints splits hints into columns of at most rows entries.
func layoutHints(hints []MenuHint, rows int) [][]MenuHint {
	if rows <= 0 {
		rows = 1
	}
	var cols [][]MenuHint
	for start := 0; start < len(hints); start += rows {
		end := min(start+rows, len(hints))
		cols = append(cols, hints[start:end])
	}
	return cols
}

// hintWidth is the on-screen width of "<key> description".
func hintWidth(h MenuHint) int {
	return len([]rune(h.Key)) + 3 + len([]rune(h.Description))
}
