// Package wire defines the JSON envelope exchanged between the hub and its clients.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind names an envelope type on the wire.
type Kind string

const (
	KindHello           Kind = "connection"
	KindConnectionAck   Kind = "connection_ack"
	KindNewMessage      Kind = "new_message"
	KindStatusUpdate    Kind = "message_status_update"
	KindPing            Kind = "ping"
	KindPong            Kind = "pong"
	KindNewConversation Kind = "new_conversation"
)

// ErrMalformed is returned when raw bytes are not a valid envelope.
var ErrMalformed = errors.New("malformed envelope")

// Envelope is the on-the-wire frame: {"type": ..., "data": {...}}.
type Envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Payload is implemented only by the payload types in this package.
type Payload interface {
	kind() Kind
}

// Hello is sent by a client right after its connection opens.
type Hello struct {
	Client string `json:"client"`
}

// ConnectionAck is sent by the hub to a newly registered connection.
type ConnectionAck struct {
	ConnectionID string `json:"connectionId"`
}

// Message is the view of a chat message carried by new_message envelopes.
type Message struct {
	ID        string    `json:"id"`
	WaID      string    `json:"wa_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	UserName  string    `json:"user_name,omitempty"`
}

// NewMessage announces a message that was persisted somewhere.
type NewMessage struct {
	WaID    string  `json:"wa_id"`
	Message Message `json:"message"`
}

// StatusUpdate announces a delivery status change for a message.
type StatusUpdate struct {
	WaID      string `json:"wa_id"`
	MessageID string `json:"messageId"`
	NewStatus string `json:"newStatus"`
}

// Ping asks the hub for a liveness reply.
type Ping struct{}

// Pong is the hub's reply to Ping.
type Pong struct {
	Time time.Time `json:"time"`
}

// NewConversation announces that a conversation was created.
type NewConversation struct {
	WaID     string `json:"wa_id"`
	UserName string `json:"user_name,omitempty"`
}

// Unknown carries a kind this package does not recognize.
type Unknown struct {
	Type Kind
	Data json.RawMessage
}

func (Hello) kind() Kind           { return KindHello }
func (ConnectionAck) kind() Kind   { return KindConnectionAck }
func (NewMessage) kind() Kind      { return KindNewMessage }
func (StatusUpdate) kind() Kind    { return KindStatusUpdate }
func (Ping) kind() Kind            { return KindPing }
func (Pong) kind() Kind            { return KindPong }
func (NewConversation) kind() Kind { return KindNewConversation }
func (u Unknown) kind() Kind       { return u.Type }

// KindOf returns the wire kind of p.
func KindOf(p Payload) Kind {
	return p.kind()
}

// Encode wraps p in an envelope and marshals it.
func Encode(p Payload) ([]byte, error) {
	env, err := Wrap(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Wrap builds the envelope for p without marshaling the outer frame.
func Wrap(p Payload) (Envelope, error) {
	if u, ok := p.(Unknown); ok {
		return Envelope{Type: u.Type, Data: u.Data}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", p.kind(), err)
	}
	return Envelope{Type: p.kind(), Data: data}, nil
}

// Decode parses raw bytes into a typed payload. Unrecognized kinds decode to
// Unknown so callers can log and drop them.
func Decode(raw []byte) (Payload, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env.Payload()
}

// Payload decodes the envelope's data according to its type.
func (e Envelope) Payload() (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch e.Type {
	case KindHello:
		var v Hello
		err = unmarshalData(e.Data, &v)
		p = v
	case KindConnectionAck:
		var v ConnectionAck
		err = unmarshalData(e.Data, &v)
		p = v
	case KindNewMessage:
		var v NewMessage
		err = unmarshalData(e.Data, &v)
		p = v
	case KindStatusUpdate:
		var v StatusUpdate
		err = unmarshalData(e.Data, &v)
		p = v
	case KindPing:
		p = Ping{}
	case KindPong:
		var v Pong
		err = unmarshalData(e.Data, &v)
		p = v
	case KindNewConversation:
		var v NewConversation
		err = unmarshalData(e.Data, &v)
		p = v
	default:
		p = Unknown{Type: e.Type, Data: e.Data}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s data: %v", ErrMalformed, e.Type, err)
	}
	return p, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
