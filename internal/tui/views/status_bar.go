package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/wachat/internal/status"
	"github.com/rivo/tview"
)

// StatusBar displays persistent session and connectivity status.
type StatusBar struct {
	*tview.TextView
	session string
	state   status.State
	failed  int
	flash   string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetState updates the transport state.
func (sb *StatusBar) SetState(s status.State) {
	sb.state = s
	sb.render()
}

// SetFailed updates the count of sends waiting for a retry.
func (sb *StatusBar) SetFailed(n int) {
	sb.failed = n
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, statusLine(sb.session, sb.state, sb.failed, sb.flash, time.Now()))
}

func statusLine(session string, state status.State, failed int, flash string, now time.Time) string {
	var conn string
	switch state {
	case status.Open:
		conn = "[green]ONLINE[-]"
	case status.GivenUp, status.Stopped, "":
		conn = "[red]OFFLINE[-]"
	default:
		conn = fmt.Sprintf("[yellow]OFFLINE[-] (%s)", strings.ToLower(string(state)))
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s", session, conn)
	if failed > 0 {
		line += fmt.Sprintf(" | [red]%d failed[-]", failed)
	}
	line += " | " + now.Format("15:04")
	if flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", flash)
	}
	return line
}
