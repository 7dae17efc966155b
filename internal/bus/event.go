package bus

import "time"

// Event kinds published by the server side.
const (
	MessageCreated      = "message.created"
	MessageStatus       = "message.status"
	ConversationCreated = "conversation.created"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
