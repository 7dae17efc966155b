package ui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wachat/internal/status"
	"github.com/rivo/tview"
)

// SessionData holds session information for display.
type SessionData struct {
	Session       string
	Server        string
	State         string
	Conversations int
	Messages      int
	Failed        int
	Uptime        time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}

	fgColor := colorName(si.theme.FgColor)
	counterColor := colorName(si.theme.CounterColor)

	server := data.Server
	if server == "" {
		server = "-"
	}

	uptime := formatDuration(data.Uptime)

	text := fmt.Sprintf(
		"[%s::b]Session:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Server:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]State:[-:-:-]   [%s]%s[-]\n"+
			"[%s::b]Chats:[-:-:-]   [%s]%d[-]\n"+
			"[%s::b]Msgs:[-:-:-]    [%s]%d[-]\n"+
			"[%s::b]Failed:[-:-:-]  [%s]%d[-]\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fgColor, counterColor, data.Session,
		fgColor, counterColor, tview.Escape(server),
		fgColor, colorName(stateColor(si.theme, status.State(data.State))), stateLabel(data.State),
		fgColor, counterColor, data.Conversations,
		fgColor, counterColor, data.Messages,
		fgColor, counterColor, data.Failed,
		fgColor, counterColor, uptime,
	)

	_, _ = fmt.Fprint(si, text)
}

// stateColor maps a connection state to the theme's connectivity colors.
// Closed and Errored count as connecting since the reconnect loop is running.
func stateColor(theme *Theme, state status.State) tcell.Color {
	switch state {
	case status.Open:
		return theme.OnlineColor
	case status.Connecting, status.Closed, status.Errored:
		return theme.ConnectingColor
	default:
		return theme.OfflineColor
	}
}

func stateLabel(state string) string {
	if state == "" {
		return string(status.Disconnected)
	}
	return state
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
