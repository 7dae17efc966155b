package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode is what the prompt input is used for.
type PromptMode int

const (
	// PromptCommand runs ":" commands such as :chat or :retry.
	PromptCommand PromptMode = iota
	// PromptFilter narrows the conversation list.
	PromptFilter
)

// historySize bounds the remembered commands.
const historySize = 50

// Prompt is the command and filter input above the page stack. Command
// mode remembers submitted commands (Up/Down) and completes command names.
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	history  *History
	complete func(prefix string) []string
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a new prompt input bar.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{
		InputField: input,
		theme:      theme,
		history:    NewHistory(historySize),
	}

	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := p.GetText()
			if text == "" {
				return
			}
			if p.mode == PromptCommand {
				p.history.Add(text)
			}
			p.SetText("")
			if p.onSubmit != nil {
				p.onSubmit(p.mode, text)
			}
		case tcell.KeyEscape:
			p.SetText("")
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})
	input.SetInputCapture(p.capture)
	input.SetAutocompleteFunc(func(text string) []string {
		if p.mode != PromptCommand || p.complete == nil {
			return nil
		}
		return p.complete(text)
	})

	return p
}

func (p *Prompt) capture(ev *tcell.EventKey) *tcell.EventKey {
	if p.mode != PromptCommand {
		return ev
	}
	switch ev.Key() {
	case tcell.KeyUp:
		if text, ok := p.history.Prev(); ok {
			p.SetText(text)
		}
		return nil
	case tcell.KeyDown:
		text, _ := p.history.Next()
		p.SetText(text)
		return nil
	}
	return ev
}

// SetOnSubmit sets the callback for a non-empty submitted line.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback for Esc.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// SetCompletions sets the command name completer used in command mode.
func (p *Prompt) SetCompletions(fn func(prefix string) []string) {
	p.complete = fn
}

// Activate clears the input and switches it to mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.SetText("")
	p.history.Rewind()
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Filter conversations ")
	}
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}

// History is a bounded list of submitted commands with a browse cursor.
type History struct {
	entries []string
	limit   int
	cursor  int
}

// NewHistory creates a history keeping at most limit entries.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Add records text as the newest entry. Repeating the newest entry is a
// no-op. The browse cursor is reset.
func (h *History) Add(text string) {
	if n := len(h.entries); n == 0 || h.entries[n-1] != text {
		h.entries = append(h.entries, text)
		if len(h.entries) > h.limit {
			h.entries = h.entries[len(h.entries)-h.limit:]
		}
	}
	h.Rewind()
}

// Rewind moves the cursor past the newest entry.
func (h *History) Rewind() {
	h.cursor = len(h.entries)
}

// Prev steps back to an older entry. Returns false at the oldest one.
func (h *History) Prev() (string, bool) {
	if h.cursor == 0 {
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Next steps forward. Past the newest entry it returns "" and false.
func (h *History) Next() (string, bool) {
	if h.cursor >= len(h.entries)-1 {
		h.cursor = len(h.entries)
		return "", false
	}
	h.cursor++
	return h.entries[h.cursor], true
}
