package wa

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const messagePayload = `{
  "payload_type": "whatsapp_webhook",
  "_id": "conv1-msg1-user",
  "metaData": {
    "entry": [{
      "changes": [{
        "field": "messages",
        "value": {
          "messaging_product": "whatsapp",
          "metadata": {"display_phone_number": "918329446654", "phone_number_id": "629305560276479"},
          "contacts": [{"profile": {"name": "Ravi Kumar"}, "wa_id": "919937320320"}],
          "messages": [{
            "from": "919937320320",
            "id": "wamid.HBgMOTE5OTY3NTc4NzIwFQIAEhggMTIzQURFRjEyMzQ1Njc4OTA=",
            "timestamp": "1754400000",
            "text": {"body": "Hi, I'd like to know more about your services."},
            "type": "text"
          }]
        }
      }],
      "id": "30164062719905277"
    }],
    "gs_app_id": "conv1-app",
    "object": "whatsapp_business_account"
  }
}`

const statusPayload = `{
  "payload_type": "whatsapp_webhook",
  "metaData": {
    "entry": [{
      "changes": [{
        "field": "messages",
        "value": {
          "messaging_product": "whatsapp",
          "metadata": {"display_phone_number": "918329446654"},
          "statuses": [{
            "id": "wamid.HBgMOTE5OTY3NTc4NzIwFQIAEhggMTIzQURFRjEyMzQ1Njc4OTA=",
            "meta_msg_id": "wamid.HBgMOTE5OTY3NTc4NzIwFQIAEhggMTIzQURFRjEyMzQ1Njc4OTA=",
            "recipient_id": "919937320320",
            "status": "read",
            "timestamp": "1754400020"
          }]
        }
      }]
    }]
  }
}`

func TestParseMessagePayload(t *testing.T) {
	p, err := Parse([]byte(messagePayload))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.IsStatus() || p.Message == nil {
		t.Fatalf("parsed = %+v, want message", p)
	}
	m := p.Message
	if m.WaID != "919937320320" || m.From != "919937320320" || m.To != "918329446654" {
		t.Errorf("ids = %s/%s/%s", m.WaID, m.From, m.To)
	}
	if m.UserName != "Ravi Kumar" {
		t.Errorf("UserName = %q", m.UserName)
	}
	if !m.Timestamp.Equal(time.Unix(1754400000, 0)) {
		t.Errorf("Timestamp = %v", m.Timestamp)
	}

	sm := m.ToStoreMessage()
	if sm.MessageID != sm.MetaMsgID || sm.ConversationID != "919937320320" || sm.Status != "sent" {
		t.Errorf("store message = %+v", sm)
	}
}

func TestParseStatusPayload(t *testing.T) {
	p, err := Parse([]byte(statusPayload))
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsStatus() {
		t.Fatalf("parsed = %+v, want status", p)
	}
	if p.Status.Status != "read" || p.Status.MetaMsgID == "" {
		t.Errorf("status = %+v", p.Status)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"wrong payload type", `{"payload_type":"other"}`, ErrUnsupported},
		{"no entries", `{"payload_type":"whatsapp_webhook","metaData":{"entry":[]}}`, ErrEmpty},
		{"empty value", `{"payload_type":"whatsapp_webhook","metaData":{"entry":[{"changes":[{"value":{}}]}]}}`, ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Error("Parse(not json) should fail")
	}
}

func TestParseStatusFallsBackToID(t *testing.T) {
	raw := `{"payload_type":"whatsapp_webhook","metaData":{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.X","status":"delivered","timestamp":"10"}]}}]}]}}`
	p, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if p.Status.MetaMsgID != "wamid.X" {
		t.Errorf("MetaMsgID = %q, want wamid.X", p.Status.MetaMsgID)
	}
}

func TestParseStatusUnknownValue(t *testing.T) {
	raw := `{"payload_type":"whatsapp_webhook","metaData":{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.X","status":"failed","timestamp":"10"}]}}]}]}}`
	if _, err := Parse([]byte(raw)); err == nil {
		t.Error("status failed should be rejected")
	}
}

func TestExtractTextBody(t *testing.T) {
	tests := []struct {
		name string
		msg  WebhookMessage
		want string
	}{
		{"text", WebhookMessage{Type: "text", Text: &struct {
			Body string `json:"body"`
		}{Body: "hello"}}, "hello"},
		{"image placeholder", WebhookMessage{Type: "image"}, "[image]"},
		{"nothing", WebhookMessage{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTextBody(tt.msg); got != tt.want {
				t.Errorf("extractTextBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadDirAndOrdering(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a_status.json":  statusPayload,
		"b_message.json": messagePayload,
		"c_broken.json":  `{`,
		"notes.txt":      "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}

	parsed, failed, err := ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != 2 {
		t.Fatalf("parsed %d payloads, want 2", len(parsed))
	}
	if len(failed) != 1 || failed[0].File != "c_broken.json" {
		t.Errorf("failed = %v", failed)
	}
	if !parsed[0].IsStatus() || parsed[0].Source != "a_status.json" {
		t.Errorf("first parsed = %+v, want a_status.json", parsed[0])
	}

	ordered := MessagesFirst(parsed)
	if ordered[0].IsStatus() || !ordered[1].IsStatus() {
		t.Error("MessagesFirst did not put the message first")
	}
}

func TestParseBatch(t *testing.T) {
	ps, err := ParseBatch([]byte("[" + messagePayload + "," + statusPayload + "]"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 2 {
		t.Fatalf("len = %d, want 2", len(ps))
	}
	single, err := ParseBatch([]byte("  " + statusPayload))
	if err != nil {
		t.Fatal(err)
	}
	if len(single) != 1 || !single[0].IsStatus() {
		t.Errorf("single = %+v", single)
	}
	if _, err := ParseBatch([]byte(`[{"payload_type":"x"}]`)); !errors.Is(err, ErrUnsupported) {
		t.Errorf("batch with bad item error = %v", err)
	}
}
