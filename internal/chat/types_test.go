package chat

import (
	"errors"
	"strings"
	"testing"
)

func TestNewMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      NewMessage
		missing string
	}{
		{"complete", NewMessage{WaID: "w1", Content: "hi", From: "a", To: "w1"}, ""},
		{"blank content", NewMessage{WaID: "w1", Content: "  ", From: "a", To: "w1"}, "content"},
		{"empty", NewMessage{}, "wa_id, content, from, to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.missing == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() = %v, want ErrValidation", err)
			}
			if !strings.HasSuffix(err.Error(), tt.missing) {
				t.Errorf("Validate() = %q, want missing %q", err, tt.missing)
			}
		})
	}
}

func TestIngestSummaryAddFailure(t *testing.T) {
	var s IngestSummary
	s.AddFailure("payload_3.json", errors.New("bad json"))
	s.AddFailure("", errors.New("db closed"))

	if s.Failed != 2 {
		t.Errorf("Failed = %d, want 2", s.Failed)
	}
	want := []string{"payload_3.json: bad json", "db closed"}
	for i, w := range want {
		if s.Errors[i] != w {
			t.Errorf("Errors[%d] = %q, want %q", i, s.Errors[i], w)
		}
	}
}
