package tui

import (
	"reflect"
	"testing"

	"github.com/matheus3301/wachat/internal/reconcile"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		want    Command
		wantErr string
	}{
		{"quit", Command{Kind: CmdQuit, Name: "quit"}, ""},
		{"  Q  ", Command{Kind: CmdQuit, Name: "quit"}, ""},
		{":search hello world", Command{Kind: CmdSearch, Name: "search", Args: "hello world"}, ""},
		{"s", Command{Kind: CmdSearch, Name: "search"}, ""},
		{"chat   Neha Joshi  ", Command{Kind: CmdChat, Name: "chat", Args: "Neha Joshi"}, ""},
		{"c", Command{Kind: CmdChat, Name: "chat"}, "usage: :chat <name or wa_id>"},
		{"RETRY", Command{Kind: CmdRetry, Name: "retry"}, ""},
		{"reconnect now", Command{Kind: CmdReconnect, Name: "reconnect", Args: "now"}, ":reconnect takes no arguments"},
		{"refresh", Command{Kind: CmdRefresh, Name: "refresh"}, ""},
		{"h", Command{Kind: CmdHelp, Name: "help"}, ""},
		{"delete all", Command{Name: "delete", Args: "all"}, "unknown command: delete"},
		{"  ", Command{}, ErrEmptyCommand.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
			gotErr := ""
			if err != nil {
				gotErr = err.Error()
			}
			if gotErr != tt.wantErr {
				t.Errorf("ParseCommand(%q) error = %q, want %q", tt.input, gotErr, tt.wantErr)
			}
		})
	}
}

func TestCompleteCommand(t *testing.T) {
	tests := []struct {
		prefix string
		want   []string
	}{
		{"re", []string{"reconnect", "refresh", "retry"}},
		{":ch", []string{"chat"}},
		{"chat", nil},
		{"chat ne", nil},
		{"", nil},
		{"x", nil},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := CompleteCommand(tt.prefix); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CompleteCommand(%q) = %v, want %v", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestFindConversation(t *testing.T) {
	convs := []reconcile.Conversation{
		{WaID: "919937320320", UserName: "Ravi Kumar"},
		{WaID: "929967673820", UserName: "Neha Joshi"},
		{WaID: "900000000001", UserName: "919937320320"},
	}
	tests := []struct {
		name   string
		query  string
		want   string
		wantOK bool
	}{
		{"exact wa_id", "929967673820", "929967673820", true},
		{"wa_id wins over name", "919937320320", "919937320320", true},
		{"name substring", "neha", "929967673820", true},
		{"name with spaces", " Ravi K ", "919937320320", true},
		{"no match", "nobody", "", false},
		{"empty", "  ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := findConversation(convs, tt.query)
			if ok != tt.wantOK || got.WaID != tt.want {
				t.Errorf("findConversation(%q) = %q, %v; want %q, %v", tt.query, got.WaID, ok, tt.want, tt.wantOK)
			}
		})
	}
}
