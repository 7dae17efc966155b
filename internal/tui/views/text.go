package views

import (
	"strings"
	"unicode"

	"github.com/rivo/tview"
)

// Message text comes from webhook payloads and other clients, so it is
// cleaned before it reaches tview: control characters could move the
// cursor, and emoji modifier sequences render at the wrong width.

// displayText prepares a name or message body for a color-tagged view.
// Newlines are kept.
func displayText(s string) string {
	return tview.Escape(stripUnsafe(s, false))
}

// previewText prepares text for a single table cell: newlines and tabs
// become spaces and runs of spaces collapse.
func previewText(s string) string {
	return tview.Escape(strings.Join(strings.Fields(stripUnsafe(s, true)), " "))
}

// stripUnsafe drops runes tcell renders badly and control characters.
// With flatten, line breaks turn into spaces instead of being kept.
func stripUnsafe(s string, flatten bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			if flatten {
				b.WriteByte(' ')
			} else {
				b.WriteRune(r)
			}
		case r == unicode.ReplacementChar, isEmojiModifier(r), unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isEmojiModifier(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF: // variation selectors
		return true
	}
	return false
}
