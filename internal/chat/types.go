// Package chat holds the message types exchanged between the store, the
// HTTP API and its clients. It has no dependencies so clients can use it
// without linking the database driver.
package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrValidation marks input rejected before touching the database.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
)

// Message types.
const (
	TypeText         = "text"
	TypeStatusUpdate = "status_update"
)

// Message is a stored chat message.
type Message struct {
	ID             int64     `json:"-"`
	MessageID      string    `json:"message_id"`
	MetaMsgID      string    `json:"meta_msg_id,omitempty"`
	WaID           string    `json:"wa_id"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	MessageType    string    `json:"message_type"`
	Content        string    `json:"content"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	UserName       string    `json:"user_name"`
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewMessage is the input for creating an outgoing message.
type NewMessage struct {
	WaID     string `json:"wa_id"`
	Content  string `json:"content"`
	UserName string `json:"user_name"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// Validate checks the fields a new message requires.
func (n NewMessage) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"wa_id", n.WaID}, {"content", n.Content}, {"from", n.From}, {"to", n.To},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// Conversation summarizes all messages sharing a wa_id.
type Conversation struct {
	WaID          string  `json:"_id"`
	LatestMessage Message `json:"latestMessage"`
	MessageCount  int     `json:"messageCount"`
	UserName      string  `json:"user_name"`
	From          string  `json:"from"`
}

// SearchResult holds a message with a content snippet around the match.
type SearchResult struct {
	Message Message `json:"message"`
	Snippet string  `json:"snippet"`
}

// IngestSummary reports what a batch ingestion did.
type IngestSummary struct {
	MessagesCreated   int      `json:"messages_created"`
	MessagesSkipped   int      `json:"messages_skipped"`
	StatusesApplied   int      `json:"statuses_applied"`
	StatusesUnchanged int      `json:"statuses_unchanged"`
	StatusesMissed    int      `json:"statuses_missed"`
	Failed            int      `json:"failed"`
	Errors            []string `json:"errors,omitempty"`
}

// AddFailure counts one failed item, prefixing err with its source file
// when known.
func (s *IngestSummary) AddFailure(source string, err error) {
	s.Failed++
	if source != "" {
		err = fmt.Errorf("%s: %w", source, err)
	}
	s.Errors = append(s.Errors, err.Error())
}
