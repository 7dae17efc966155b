package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wachat/internal/reconcile"
	"github.com/matheus3301/wachat/internal/tui/ui"
	"github.com/matheus3301/wachat/internal/wire"
	"github.com/rivo/tview"
)

// MessageThread displays messages and a composer for a single conversation.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	name     string
	waID     string
	count    int
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	return mt
}

// Name implements ui.Page.
func (mt *MessageThread) Name() string {
	if mt.name != "" {
		return mt.name
	}
	return "Messages"
}

// Count implements ui.Page.
func (mt *MessageThread) Count() int { return mt.count }

// SetConversation sets the wa_id and display name shown in the title.
func (mt *MessageThread) SetConversation(waID, name string) {
	mt.waID = waID
	mt.name = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))
}

// WaID returns the displayed conversation.
func (mt *MessageThread) WaID() string {
	return mt.waID
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update refreshes the message view. msgs are in display order.
func (mt *MessageThread) Update(msgs []reconcile.Message) {
	mt.messages.Clear()
	mt.count = len(msgs)

	now := time.Now()
	for _, m := range msgs {
		sender := m.UserName
		if sender == "" || sender == reconcile.UnknownUser {
			sender = m.From
		}
		if m.Mine {
			sender = "You"
		}
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-] %s\n%s\n\n",
			displayText(sender),
			formatTimestamp(m.Timestamp, now),
			statusMark(m),
			displayText(m.Text))
		_, _ = fmt.Fprint(mt.messages, line)
	}

	mt.messages.ScrollToEnd()
}

// statusMark renders delivery progress for our own messages.
func statusMark(m reconcile.Message) string {
	if !m.Mine {
		return ""
	}
	if m.State == reconcile.Provisional {
		return "[gray]sending[-]"
	}
	switch m.Status {
	case wire.StatusRead:
		return "[dodgerblue]✓✓[-]"
	case wire.StatusDelivered:
		return "[gray]✓✓[-]"
	default:
		return "[gray]✓[-]"
	}
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
