package store

import "github.com/matheus3301/wachat/internal/chat"

var (
	ErrValidation = chat.ErrValidation
	ErrNotFound   = chat.ErrNotFound
)

const (
	TypeText         = chat.TypeText
	TypeStatusUpdate = chat.TypeStatusUpdate
)

type (
	Message      = chat.Message
	NewMessage   = chat.NewMessage
	Conversation = chat.Conversation
	SearchResult = chat.SearchResult
)

// StatusResult describes the outcome of UpdateStatusByMetaID.
type StatusResult struct {
	Message *Message
	// Changed is false when the stored status already ranked at or above
	// the requested one.
	Changed bool
}
