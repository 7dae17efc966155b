package ui

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wachat/internal/status"
	"github.com/rivo/tview"
)

var wordmark = [...]string{
	" ╦ ╦╔═╗╔═╗╦ ╦╔═╗╔╦╗",
	" ║║║╠═╣║  ╠═╣╠═╣ ║ ",
	" ╚╩╝╩ ╩╚═╝╩ ╩╩ ╩ ╩ ",
}

// Logo is the wordmark in the header. Its last line shows a live dot
// colored by the daemon connection state.
type Logo struct {
	*tview.TextView
	theme *Theme
	state status.State
}

// NewLogo creates a new logo component.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{TextView: tv, theme: theme}
	l.SetText(l.render())
	return l
}

// SetState recolors the live dot. Repeated states are ignored.
func (l *Logo) SetState(s status.State) {
	if s == l.state {
		return
	}
	l.state = s
	l.SetText(l.render())
}

func (l *Logo) render() string {
	title := colorName(l.theme.TitleColor)
	var b strings.Builder
	for _, line := range wordmark {
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-]\n", title, line)
	}
	fmt.Fprintf(&b, "[%s]●[-] [%s]live chat sync[-:-:-]",
		colorName(stateColor(l.theme, l.state)), colorName(l.theme.FgColor))
	return b.String()
}
