package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/wachat/internal/status"
	"github.com/rivo/tview"
)

// FlashLevel is the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// How long each kind of flash stays up.
const (
	infoTTL = 5 * time.Second
	warnTTL = 8 * time.Second
	errTTL  = 10 * time.Second
	// A given-up connection stays flagged until the user reconnects.
	lostTTL = time.Hour
)

// Flash texts for connectivity events.
const (
	FlashConnectionLost = "Connection lost. :reconnect to try again"
	FlashBackOnline     = "Back online"
)

// FlashMessage is a flash notification with a level and expiry.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the current notification. Connectivity and send
// failure events map to levels here so every caller words them the same.
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	offline bool
	now     func() time.Time
	watchCh chan FlashMessage
}

// NewFlashModel creates a new flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{
		now:     time.Now,
		watchCh: make(chan FlashMessage, 8),
	}
}

// Info sets an info-level flash message.
func (f *FlashModel) Info(msg string) {
	f.set(msg, FlashInfo, infoTTL)
}

// Warn sets a warn-level flash message.
func (f *FlashModel) Warn(msg string) {
	f.set(msg, FlashWarn, warnTTL)
}

// Err sets an error-level flash message.
func (f *FlashModel) Err(err error) {
	f.set(err.Error(), FlashErr, errTTL)
}

// Offline reports a failed connection attempt. The transport keeps
// retrying on its own.
func (f *FlashModel) Offline(err error) {
	f.mu.Lock()
	f.offline = true
	f.mu.Unlock()
	f.set("Offline: "+err.Error(), FlashWarn, warnTTL)
}

// ConnectionChanged flashes the transitions the user needs to know about:
// giving up, and coming back after an outage.
func (f *FlashModel) ConnectionChanged(to status.State) {
	switch to {
	case status.GivenUp:
		f.mu.Lock()
		f.offline = true
		f.mu.Unlock()
		f.set(FlashConnectionLost, FlashWarn, lostTTL)
	case status.Open:
		f.mu.Lock()
		wasOffline := f.offline
		f.offline = false
		f.mu.Unlock()
		if wasOffline {
			f.set(FlashBackOnline, FlashInfo, infoTTL)
		}
	}
}

// SendFailed reports a message the hub or the API did not accept. Failed
// sends stay in the thread until retried.
func (f *FlashModel) SendFailed(err error) {
	f.set(fmt.Sprintf("Send failed: %v (r to retry)", err), FlashErr, errTTL)
}

// Resent reports a manual retry of failed sends.
func (f *FlashModel) Resent(n int) {
	if n == 0 {
		f.Info("Nothing to retry")
		return
	}
	f.Info(fmt.Sprintf("Resent %d message(s)", n))
}

// Clear drops the current message.
func (f *FlashModel) Clear() {
	f.mu.Lock()
	f.current = FlashMessage{}
	f.mu.Unlock()
}

// set replaces the current message. Repeating the live message only
// extends it, so a flapping connection does not flood watchers.
func (f *FlashModel) set(msg string, level FlashLevel, d time.Duration) {
	now := f.now()
	fm := FlashMessage{Text: msg, Level: level, Expires: now.Add(d)}

	f.mu.Lock()
	repeat := f.current.Text == msg && f.current.Level == level && now.Before(f.current.Expires)
	f.current = fm
	f.mu.Unlock()
	if repeat {
		return
	}
	select {
	case f.watchCh <- fm:
	default:
	}
}

// Get returns the current flash message text, or empty if expired.
func (f *FlashModel) Get() string {
	if m := f.GetMessage(); m != nil {
		return m.Text
	}
	return ""
}

// GetMessage returns the current flash message, or nil if expired.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text == "" || !f.now().Before(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// Watch returns a channel that receives new flash messages.
func (f *FlashModel) Watch() <-chan FlashMessage {
	return f.watchCh
}

// FlashBar is the UI component that displays flash notifications.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Update renders msg, or clears the bar for nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}
	color, mark := fb.theme.FlashInfoColor, ""
	switch msg.Level {
	case FlashWarn:
		color, mark = fb.theme.FlashWarnColor, "! "
	case FlashErr:
		color, mark = fb.theme.FlashErrColor, "✗ "
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s%s[-]", colorName(color), mark, tview.Escape(msg.Text))
}
