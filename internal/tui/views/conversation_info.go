package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/wachat/internal/reconcile"
	"github.com/matheus3301/wachat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements ui.Page.
func (ci *ConversationInfo) Name() string { return "Details" }

// Count implements ui.Page.
func (ci *ConversationInfo) Count() int { return -1 }

// Update renders conversation details. failed is the number of local sends
// in this conversation waiting for a retry.
func (ci *ConversationInfo) Update(conv reconcile.Conversation, failed int) {
	ci.Clear()

	fg := ui.ColorTag(ci.theme.FgColor)
	ct := ui.ColorTag(ci.theme.CounterColor)

	lastActive := "-"
	if !conv.LastAt.IsZero() {
		lastActive = conv.LastAt.Local().Format(time.DateTime)
	}

	text := fmt.Sprintf(
		"\n [%s::b]Name:[-:-:-]         [%s]%s[-]\n"+
			" [%s::b]WA ID:[-:-:-]        [%s]%s[-]\n"+
			" [%s::b]Messages:[-:-:-]     [%s]%d[-]\n"+
			" [%s::b]Failed sends:[-:-:-] [%s]%d[-]\n"+
			" [%s::b]Last Active:[-:-:-]  [%s]%s[-]\n"+
			" [%s::b]Last Message:[-:-:-] [%s]%s[-]",
		fg, ct, displayText(displayName(conv)),
		fg, ct, tview.Escape(conv.WaID),
		fg, ct, conv.MessageCount,
		fg, ct, failed,
		fg, ct, lastActive,
		fg, ct, previewText(conv.LastText),
	)

	_, _ = fmt.Fprint(ci, text)
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(displayName(conv))))
}
