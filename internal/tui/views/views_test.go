package views

import (
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wachat/internal/reconcile"
	"github.com/matheus3301/wachat/internal/status"
	"github.com/matheus3301/wachat/internal/tui/ui"
	"github.com/matheus3301/wachat/internal/wire"
)

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2025, 8, 5, 18, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"zero", time.Time{}, ""},
		{"today", time.Date(2025, 8, 5, 9, 7, 0, 0, time.UTC), "09:07"},
		{"earlier", time.Date(2025, 8, 1, 9, 7, 0, 0, time.UTC), "08/01"},
		{"last year same day", time.Date(2024, 8, 5, 9, 7, 0, 0, time.UTC), "08/05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTimestamp(tt.in, now); got != tt.want {
				t.Errorf("formatTimestamp() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusMark(t *testing.T) {
	tests := []struct {
		name string
		msg  reconcile.Message
		want string
	}{
		{"incoming", reconcile.Message{Status: wire.StatusRead}, ""},
		{"provisional", reconcile.Message{Mine: true, State: reconcile.Provisional}, "sending"},
		{"sent", reconcile.Message{Mine: true, State: reconcile.Confirmed, Status: wire.StatusSent}, "[gray]✓[-]"},
		{"delivered", reconcile.Message{Mine: true, State: reconcile.Confirmed, Status: wire.StatusDelivered}, "[gray]✓✓[-]"},
		{"read", reconcile.Message{Mine: true, State: reconcile.Confirmed, Status: wire.StatusRead}, "[dodgerblue]✓✓[-]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := statusMark(tt.msg)
			if tt.want == "" && got != "" || !strings.Contains(got, tt.want) {
				t.Errorf("statusMark() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusLine(t *testing.T) {
	now := time.Date(2025, 8, 5, 18, 30, 0, 0, time.Local)

	line := statusLine("default", status.Open, 0, "", now)
	if !strings.Contains(line, "ONLINE") || strings.Contains(line, "OFFLINE") || !strings.HasSuffix(line, "18:30") {
		t.Errorf("open line = %q", line)
	}

	line = statusLine("default", status.Connecting, 2, "sent", now)
	for _, want := range []string{"OFFLINE", "(connecting)", "2 failed", "sent"} {
		if !strings.Contains(line, want) {
			t.Errorf("connecting line %q missing %q", line, want)
		}
	}

	line = statusLine("default", status.GivenUp, 0, "", now)
	if !strings.Contains(line, "[red]OFFLINE") {
		t.Errorf("given up line = %q", line)
	}
}

func TestConversationListFilter(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update([]reconcile.Conversation{
		{WaID: "919937320320", UserName: "Ravi Kumar", LastText: "Hi"},
		{WaID: "929967673820", UserName: "Neha Joshi", LastText: "Is the store open?"},
		{WaID: "900000000000", UserName: reconcile.UnknownUser},
	})

	if got := cl.ConversationByIndex(2); got != "929967673820" {
		t.Errorf("ConversationByIndex(2) = %q", got)
	}
	if got := cl.ConversationByIndex(4); got != "" {
		t.Errorf("ConversationByIndex(4) = %q, want empty", got)
	}

	cl.SetFilter("neha")
	if got := cl.ConversationByIndex(1); got != "929967673820" {
		t.Errorf("filtered ConversationByIndex(1) = %q", got)
	}
	if got := cl.ConversationByIndex(2); got != "" {
		t.Errorf("filter left extra rows: %q", got)
	}

	cl.SetFilter("STORE")
	if got := cl.ConversationByIndex(1); got != "929967673820" {
		t.Errorf("filter by last text = %q", got)
	}

	cl.ClearFilter()
	if got := cl.ConversationByIndex(3); got != "900000000000" {
		t.Errorf("after clear ConversationByIndex(3) = %q", got)
	}
}

func TestDisplayNameFallsBackToWaID(t *testing.T) {
	if got := displayName(reconcile.Conversation{WaID: "1", UserName: reconcile.UnknownUser}); got != "1" {
		t.Errorf("displayName = %q", got)
	}
	if got := displayName(reconcile.Conversation{WaID: "1", UserName: "Ravi"}); got != "Ravi" {
		t.Errorf("displayName = %q", got)
	}
}

func TestDisplayText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"emoji modifiers", "ok \U0001F44D\U0001F3FB a\u200db \u2764\uFE0F", "ok \U0001F44D ab \u2764"},
		{"keeps newlines", "line one\nline two", "line one\nline two"},
		{"drops escape sequences", "bold \x1b[1mtext\x07", "bold [1mtext"},
		{"escapes color tags", "see [red]this[-]", "see [red[]this[-[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayText(tt.in); got != tt.want {
				t.Errorf("displayText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPreviewTextFlattens(t *testing.T) {
	in := "  Hi Neha,\n\tyour order\r\nshipped  "
	if got := previewText(in); got != "Hi Neha, your order shipped" {
		t.Errorf("previewText() = %q", got)
	}
}
