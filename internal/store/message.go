package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wachat/internal/wire"
)

const messageColumns = `id, message_id, meta_msg_id, wa_id, from_id, to_id, message_type,
	content, status, timestamp, user_name, conversation_id, created_at, updated_at`

// DefaultUserName is stored when a demo message carries no user_name.
const DefaultUserName = "Demo User"

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*Message, error) {
	var (
		m                   Message
		ts, created, update int64
	)
	if err := s.Scan(&m.ID, &m.MessageID, &m.MetaMsgID, &m.WaID, &m.From, &m.To, &m.MessageType,
		&m.Content, &m.Status, &ts, &m.UserName, &m.ConversationID, &created, &update); err != nil {
		return nil, err
	}
	m.Timestamp = time.UnixMilli(ts).UTC()
	m.CreatedAt = time.UnixMilli(created).UTC()
	m.UpdatedAt = time.UnixMilli(update).UTC()
	return &m, nil
}

// CreateMessage stores a new outgoing demo message with status "sent". Demo
// messages use their own id as meta_msg_id so status updates can find them.
func (db *DB) CreateMessage(ctx context.Context, in NewMessage) (*Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	userName := in.UserName
	if userName == "" {
		userName = DefaultUserName
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	id := "demo-" + uuid.NewString()
	m := &Message{
		MessageID:      id,
		MetaMsgID:      id,
		WaID:           in.WaID,
		From:           in.From,
		To:             in.To,
		MessageType:    TypeText,
		Content:        in.Content,
		Status:         wire.StatusSent,
		Timestamp:      now,
		UserName:       userName,
		ConversationID: in.WaID,
	}
	if _, err := db.UpsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UpsertMessage inserts m unless a message with the same message_id already
// exists. Returns whether a row was created.
func (db *DB) UpsertMessage(ctx context.Context, m *Message) (bool, error) {
	if m.MessageID == "" {
		return false, fmt.Errorf("%w: message_id is required", ErrValidation)
	}
	if m.MessageType == "" {
		m.MessageType = TypeText
	}
	if m.Status == "" {
		m.Status = wire.StatusSent
	}
	if m.ConversationID == "" {
		m.ConversationID = m.WaID
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC().Truncate(time.Millisecond)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	res, err := db.ExecContext(ctx, `
		INSERT INTO messages (message_id, meta_msg_id, wa_id, from_id, to_id, message_type,
			content, status, timestamp, user_name, conversation_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING`,
		m.MessageID, m.MetaMsgID, m.WaID, m.From, m.To, m.MessageType,
		m.Content, m.Status, m.Timestamp.UnixMilli(), m.UserName, m.ConversationID,
		now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	if n == 1 {
		m.CreatedAt, m.UpdatedAt = now, now
		if id, err := res.LastInsertId(); err == nil {
			m.ID = id
		}
	}
	return n == 1, nil
}

// GetMessage returns a message by message_id.
func (db *DB) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	row := db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE message_id = ?`, messageID)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// ListMessages returns a conversation's messages, oldest first.
func (db *DB) ListMessages(ctx context.Context, waID string) ([]Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE wa_id = ?
		ORDER BY timestamp ASC, id ASC`, waID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// ListConversations groups messages by wa_id, latest conversation first.
// The summary's user_name and from come from the latest message.
func (db *DB) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := db.QueryContext(ctx, `
		WITH ranked AS (
			SELECT `+messageColumns+`,
				ROW_NUMBER() OVER (PARTITION BY wa_id ORDER BY timestamp DESC, id DESC) AS rn,
				COUNT(*) OVER (PARTITION BY wa_id) AS cnt
			FROM messages
		)
		SELECT `+messageColumns+`, cnt
		FROM ranked
		WHERE rn = 1
		ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	convs := []Conversation{}
	for rows.Next() {
		var (
			c                   Conversation
			ts, created, update int64
		)
		m := &c.LatestMessage
		if err := rows.Scan(&m.ID, &m.MessageID, &m.MetaMsgID, &m.WaID, &m.From, &m.To, &m.MessageType,
			&m.Content, &m.Status, &ts, &m.UserName, &m.ConversationID, &created, &update, &c.MessageCount); err != nil {
			return nil, err
		}
		m.Timestamp = time.UnixMilli(ts).UTC()
		m.CreatedAt = time.UnixMilli(created).UTC()
		m.UpdatedAt = time.UnixMilli(update).UTC()
		c.WaID = m.WaID
		c.UserName = m.UserName
		c.From = m.From
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// UpdateStatusByMetaID moves the status of the message with the given
// meta_msg_id forward. A status that does not outrank the stored one leaves
// the row untouched. Returns ErrNotFound when no message matches.
func (db *DB) UpdateStatusByMetaID(ctx context.Context, metaMsgID, status string) (*StatusResult, error) {
	if metaMsgID == "" {
		return nil, fmt.Errorf("%w: meta_msg_id is required", ErrValidation)
	}
	if !wire.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE meta_msg_id = ? ORDER BY id LIMIT 1`, metaMsgID)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meta_msg_id %s: %w", metaMsgID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}

	if wire.StatusRank(status) <= wire.StatusRank(m.Status) {
		return &StatusResult{Message: m}, nil
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := tx.ExecContext(ctx, `UPDATE messages SET status = ?, updated_at = ? WHERE id = ?`,
		status, now.UnixMilli(), m.ID); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status: %w", err)
	}
	m.Status = status
	m.UpdatedAt = now
	return &StatusResult{Message: m, Changed: true}, nil
}

// ConversationSize counts the messages stored for waID.
func (db *DB) ConversationSize(ctx context.Context, waID string) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE wa_id = ?`, waID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conversation: %w", err)
	}
	return n, nil
}
