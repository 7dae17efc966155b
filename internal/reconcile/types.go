// Package reconcile merges optimistic local sends, persisted history and hub
// broadcasts into one view of every conversation.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/wachat/internal/chat"
	"github.com/matheus3301/wachat/internal/transport"
	"github.com/matheus3301/wachat/internal/wire"
)

// DedupWindow is how close two messages with the same text and sender must be
// to count as the same message.
const DedupWindow = 5 * time.Second

// UnknownUser is sent as user_name when a conversation has none.
const UnknownUser = "Unknown User"

// ErrEmptyText is returned by Submit for blank text.
var ErrEmptyText = errors.New("message text is empty")

// ErrNoFailure is returned by Retry for an id without a recorded failure.
var ErrNoFailure = errors.New("no failed message with that id")

// State is where a message is in its local lifecycle.
type State string

const (
	// Provisional messages were submitted locally and are not persisted yet.
	Provisional State = "provisional"
	// Confirmed messages carry a server-assigned id.
	Confirmed State = "confirmed"
	// Failed messages could not be persisted and wait for a retry.
	Failed State = "failed"
)

// Message is the client view of one chat message.
type Message struct {
	ID        string
	WaID      string
	From      string
	To        string
	Text      string
	Status    string
	Timestamp time.Time
	UserName  string
	Mine      bool
	State     State
}

// Conversation summarizes one conversation for the chat list.
type Conversation struct {
	WaID         string
	UserName     string
	LastText     string
	LastAt       time.Time
	MessageCount int
}

// Failure records a submit that could not be persisted.
type Failure struct {
	TempID string
	WaID   string
	Text   string
	Err    error
	At     time.Time
}

// Persister stores and loads messages. *store.DB and the HTTP API client
// both satisfy it.
type Persister interface {
	CreateMessage(ctx context.Context, in chat.NewMessage) (*chat.Message, error)
	ListConversations(ctx context.Context) ([]chat.Conversation, error)
	ListMessages(ctx context.Context, waID string) ([]chat.Message, error)
}

// Transport is the part of the hub connection the layer uses.
type Transport interface {
	Send(p wire.Payload) bool
	Subscribe(kind wire.Kind, fn transport.Handler) func()
}
