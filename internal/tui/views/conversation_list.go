package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wachat/internal/reconcile"
	"github.com/matheus3301/wachat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationList is the main conversation list view.
type ConversationList struct {
	*tview.Table
	theme  *ui.Theme
	convs  []reconcile.Conversation
	filter string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{
		Table: table,
		theme: theme,
	}
	return cl
}

// Name implements ui.Page.
func (cl *ConversationList) Name() string { return "Conversations" }

// Count implements ui.Page. It counts rows left by the filter.
func (cl *ConversationList) Count() int { return len(cl.visible()) }

// Update refreshes the list with new data.
func (cl *ConversationList) Update(convs []reconcile.Conversation) {
	cl.convs = convs
	cl.render()
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" MSGS", 0},
		{" TIME", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	visible := cl.visible()
	for i, c := range visible {
		row := i + 1
		cl.SetCell(row, 0, tview.NewTableCell(" "+previewText(displayName(c))).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+previewText(c.LastText)).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", c.MessageCount)).SetTextColor(cl.theme.CounterColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(formatTimestamp(c.LastAt, time.Now())).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(visible), len(cl.convs), cl.filter))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// visible returns the conversations matching the filter, in display order.
func (cl *ConversationList) visible() []reconcile.Conversation {
	if cl.filter == "" {
		return cl.convs
	}
	var out []reconcile.Conversation
	for _, c := range cl.convs {
		if containsFold(displayName(c), cl.filter) || containsFold(c.WaID, cl.filter) || containsFold(c.LastText, cl.filter) {
			out = append(out, c)
		}
	}
	return out
}

// SelectedConversation returns the wa_id of the selected row.
func (cl *ConversationList) SelectedConversation() string {
	row, _ := cl.GetSelection()
	return cl.ConversationByIndex(row)
}

// ConversationByIndex returns the wa_id of the Nth visible conversation (1-based).
func (cl *ConversationList) ConversationByIndex(n int) string {
	visible := cl.visible()
	if n < 1 || n > len(visible) {
		return ""
	}
	return visible[n-1].WaID
}

func displayName(c reconcile.Conversation) string {
	if c.UserName != "" && c.UserName != reconcile.UnknownUser {
		return c.UserName
	}
	return c.WaID
}

// formatTimestamp shows the time of day for today and the date otherwise.
func formatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
