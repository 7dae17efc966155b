// Package wa parses WhatsApp Business webhook payloads.
package wa

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/matheus3301/wachat/internal/store"
	"github.com/matheus3301/wachat/internal/wire"
)

// PayloadTypeWebhook is the payload_type of processable payloads.
const PayloadTypeWebhook = "whatsapp_webhook"

var (
	// ErrUnsupported is returned for payloads that are not WhatsApp webhooks.
	ErrUnsupported = errors.New("unsupported payload")
	// ErrEmpty is returned for webhooks carrying neither messages nor statuses.
	ErrEmpty = errors.New("payload has no messages or statuses")
)

// Payload is the envelope around a webhook delivery.
type Payload struct {
	PayloadType string   `json:"payload_type"`
	MetaData    MetaData `json:"metaData"`
}

type MetaData struct {
	Entry []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         PhoneMetadata    `json:"metadata"`
	Contacts         []Contact        `json:"contacts"`
	Messages         []WebhookMessage `json:"messages"`
	Statuses         []WebhookStatus  `json:"statuses"`
}

type PhoneMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type WebhookMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

type WebhookStatus struct {
	ID          string `json:"id"`
	MetaMsgID   string `json:"meta_msg_id"`
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
}

// ParsedMessage is a normalized message ready for ingestion.
type ParsedMessage struct {
	MessageID string
	WaID      string
	From      string
	To        string
	Body      string
	UserName  string
	Timestamp time.Time
}

// ParsedStatus is a normalized delivery status update.
type ParsedStatus struct {
	MetaMsgID string
	Status    string
	Timestamp time.Time
}

// Parsed holds exactly one of Message or Status.
type Parsed struct {
	Source  string
	Message *ParsedMessage
	Status  *ParsedStatus
}

// IsStatus reports whether p carries a status update.
func (p *Parsed) IsStatus() bool { return p.Status != nil }

// Parse decodes and normalizes a single webhook payload.
func Parse(raw []byte) (*Parsed, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return ParsePayload(&p)
}

// ParsePayload normalizes an already decoded webhook payload. Only the first
// entry, change, message and status are considered.
func ParsePayload(p *Payload) (*Parsed, error) {
	if p.PayloadType != PayloadTypeWebhook {
		return nil, fmt.Errorf("%w: payload_type %q", ErrUnsupported, p.PayloadType)
	}
	if len(p.MetaData.Entry) == 0 || len(p.MetaData.Entry[0].Changes) == 0 {
		return nil, ErrEmpty
	}
	value := p.MetaData.Entry[0].Changes[0].Value

	switch {
	case len(value.Messages) > 0:
		msg, err := parseMessage(value)
		if err != nil {
			return nil, err
		}
		return &Parsed{Message: msg}, nil
	case len(value.Statuses) > 0:
		st, err := parseStatus(value.Statuses[0])
		if err != nil {
			return nil, err
		}
		return &Parsed{Status: st}, nil
	}
	return nil, ErrEmpty
}

func parseMessage(v Value) (*ParsedMessage, error) {
	m := v.Messages[0]
	if m.ID == "" {
		return nil, errors.New("message without id")
	}
	if len(v.Contacts) == 0 || v.Contacts[0].WaID == "" {
		return nil, fmt.Errorf("message %s: missing contact", m.ID)
	}
	ts, err := parseUnix(m.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", m.ID, err)
	}
	contact := v.Contacts[0]
	return &ParsedMessage{
		MessageID: m.ID,
		WaID:      contact.WaID,
		From:      m.From,
		To:        v.Metadata.DisplayPhoneNumber,
		Body:      extractTextBody(m),
		UserName:  contact.Profile.Name,
		Timestamp: ts,
	}, nil
}

func parseStatus(s WebhookStatus) (*ParsedStatus, error) {
	id := s.MetaMsgID
	if id == "" {
		id = s.ID
	}
	if id == "" {
		return nil, errors.New("status without message id")
	}
	if !wire.ValidStatus(s.Status) {
		return nil, fmt.Errorf("status for %s: unknown status %q", id, s.Status)
	}
	ts, err := parseUnix(s.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("status for %s: %w", id, err)
	}
	return &ParsedStatus{MetaMsgID: id, Status: s.Status, Timestamp: ts}, nil
}

// parseUnix reads a string of Unix seconds.
func parseUnix(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return time.Unix(sec, 0).UTC(), nil
}

func extractTextBody(m WebhookMessage) string {
	if m.Text != nil && m.Text.Body != "" {
		return m.Text.Body
	}
	if m.Type != "" && m.Type != "text" {
		return "[" + m.Type + "]"
	}
	return ""
}

// ToStoreMessage converts a ParsedMessage to a store.Message.
func (p *ParsedMessage) ToStoreMessage() *store.Message {
	return &store.Message{
		MessageID:      p.MessageID,
		MetaMsgID:      p.MessageID,
		WaID:           p.WaID,
		From:           p.From,
		To:             p.To,
		MessageType:    store.TypeText,
		Content:        p.Body,
		Status:         wire.StatusSent,
		Timestamp:      p.Timestamp,
		UserName:       p.UserName,
		ConversationID: p.WaID,
	}
}
