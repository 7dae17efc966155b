package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(t *testing.T, db *DB, msgs ...*Message) {
	t.Helper()
	for _, m := range msgs {
		if _, err := db.UpsertMessage(context.Background(), m); err != nil {
			t.Fatal(err)
		}
	}
}

func at(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestMigrateSchemaRejectsUnknownStatus(t *testing.T) {
	db := testDB(t)
	_, err := db.Exec(`INSERT INTO messages (message_id, wa_id, from_id, to_id, status, timestamp, created_at, updated_at)
		VALUES ('x', 'w', 'f', 't', 'bogus', 0, 0, 0)`)
	if err == nil {
		t.Error("insert with status=bogus should violate CHECK constraint")
	}
}

func TestCreateMessage(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m, err := db.CreateMessage(ctx, NewMessage{WaID: "919937320320", Content: "hello", From: "918329446654", To: "919937320320"})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if !strings.HasPrefix(m.MessageID, "demo-") {
		t.Errorf("MessageID = %q, want demo- prefix", m.MessageID)
	}
	if m.Status != "sent" || m.UserName != DefaultUserName || m.ConversationID != "919937320320" {
		t.Errorf("created = %+v", m)
	}

	got, err := db.GetMessage(ctx, m.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "hello" || !got.Timestamp.Equal(m.Timestamp) {
		t.Errorf("stored = %+v, want content hello at %v", got, m.Timestamp)
	}
}

func TestCreateMessageValidation(t *testing.T) {
	db := testDB(t)
	tests := []struct {
		name string
		in   NewMessage
	}{
		{"missing wa_id", NewMessage{Content: "x", From: "a", To: "b"}},
		{"missing content", NewMessage{WaID: "w", From: "a", To: "b"}},
		{"blank from", NewMessage{WaID: "w", Content: "x", From: "  ", To: "b"}},
		{"missing to", NewMessage{WaID: "w", Content: "x", From: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.CreateMessage(context.Background(), tt.in)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
	s, err := db.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Messages != 0 {
		t.Errorf("messages = %d, want 0 after rejected creates", s.Messages)
	}
}

func TestUpsertMessageSkipsExisting(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := &Message{MessageID: "wamid.1", MetaMsgID: "wamid.1", WaID: "w1", From: "w1", To: "biz", Content: "v1", Timestamp: at(100)}
	created, err := db.UpsertMessage(ctx, m)
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	dup := &Message{MessageID: "wamid.1", WaID: "w1", From: "w1", To: "biz", Content: "v2", Timestamp: at(200)}
	created, err = db.UpsertMessage(ctx, dup)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second upsert reported created")
	}
	got, err := db.GetMessage(ctx, "wamid.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "v1" {
		t.Errorf("content = %q, want v1 (existing messages are not overwritten)", got.Content)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetMessage(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListMessagesAscending(t *testing.T) {
	db := testDB(t)
	seed(t, db,
		&Message{MessageID: "b", WaID: "w1", From: "w1", To: "biz", Content: "second", Timestamp: at(200)},
		&Message{MessageID: "a", WaID: "w1", From: "w1", To: "biz", Content: "first", Timestamp: at(100)},
		&Message{MessageID: "c", WaID: "w2", From: "w2", To: "biz", Content: "other", Timestamp: at(150)},
	)

	msgs, err := db.ListMessages(context.Background(), "w1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].MessageID != "a" || msgs[1].MessageID != "b" {
		t.Errorf("order = %s, %s; want a, b", msgs[0].MessageID, msgs[1].MessageID)
	}

	empty, err := db.ListMessages(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("empty conversation = %v, want non-nil empty slice", empty)
	}
}

func TestListConversations(t *testing.T) {
	db := testDB(t)
	seed(t, db,
		&Message{MessageID: "a1", WaID: "alice", From: "alice", To: "biz", Content: "hi", Timestamp: at(100), UserName: "Alice"},
		&Message{MessageID: "a2", WaID: "alice", From: "biz", To: "alice", Content: "hello alice", Timestamp: at(300), UserName: "Demo User"},
		&Message{MessageID: "b1", WaID: "bob", From: "bob", To: "biz", Content: "yo", Timestamp: at(200), UserName: "Bob"},
	)

	convs, err := db.ListConversations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].WaID != "alice" || convs[1].WaID != "bob" {
		t.Errorf("order = %s, %s; want alice, bob", convs[0].WaID, convs[1].WaID)
	}
	if convs[0].MessageCount != 2 || convs[0].LatestMessage.MessageID != "a2" {
		t.Errorf("alice summary = %+v", convs[0])
	}
	if convs[1].UserName != "Bob" || convs[1].From != "bob" {
		t.Errorf("bob summary = %+v", convs[1])
	}
}

func TestUpdateStatusByMetaID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db, &Message{MessageID: "wamid.9", MetaMsgID: "wamid.9", WaID: "w", From: "w", To: "biz", Content: "x", Timestamp: at(1)})

	res, err := db.UpdateStatusByMetaID(ctx, "wamid.9", "delivered")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed || res.Message.Status != "delivered" {
		t.Errorf("result = %+v", res)
	}

	// Same status again is a no-op.
	res, err = db.UpdateStatusByMetaID(ctx, "wamid.9", "delivered")
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed {
		t.Error("repeated update reported Changed")
	}

	// Never moves backwards.
	res, err = db.UpdateStatusByMetaID(ctx, "wamid.9", "sent")
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed || res.Message.Status != "delivered" {
		t.Errorf("backwards update = %+v", res)
	}

	if _, err := db.UpdateStatusByMetaID(ctx, "wamid.9", "read"); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetMessage(ctx, "wamid.9")
	if got.Status != "read" {
		t.Errorf("status = %q, want read", got.Status)
	}
}

func TestUpdateStatusErrors(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if _, err := db.UpdateStatusByMetaID(ctx, "nope", "read"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id error = %v, want ErrNotFound", err)
	}
	if _, err := db.UpdateStatusByMetaID(ctx, "nope", "seen"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad status error = %v, want ErrValidation", err)
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)
	seed(t, db,
		&Message{MessageID: "1", WaID: "w1", From: "w1", To: "biz", Content: "Hello there, how is the weather today?", Timestamp: at(1)},
		&Message{MessageID: "2", WaID: "w2", From: "w2", To: "biz", Content: "nothing relevant", Timestamp: at(2)},
		&Message{MessageID: "3", WaID: "w2", From: "w2", To: "biz", Content: "100% sure", Timestamp: at(3)},
	)
	ctx := context.Background()

	res, err := db.SearchMessages(ctx, "WEATHER", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Message.MessageID != "1" {
		t.Fatalf("results = %+v", res)
	}
	if !strings.Contains(res[0].Snippet, "<<weather>>") {
		t.Errorf("snippet = %q", res[0].Snippet)
	}

	res, err = db.SearchMessages(ctx, "%", "w2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Message.MessageID != "3" {
		t.Errorf("literal %% search = %+v", res)
	}

	if _, err := db.SearchMessages(ctx, "  ", "", 10); !errors.Is(err, ErrValidation) {
		t.Errorf("empty query error = %v", err)
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)
	seed(t, db,
		&Message{MessageID: "1", WaID: "w1", From: "w1", To: "biz", Content: "a", Timestamp: at(1)},
		&Message{MessageID: "2", WaID: "w1", From: "w1", To: "biz", Content: "b", Timestamp: at(2)},
		&Message{MessageID: "3", WaID: "w2", From: "w2", To: "biz", Content: "c", Timestamp: at(3)},
	)
	s, err := db.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Messages != 3 || s.Conversations != 2 {
		t.Errorf("stats = %+v, want 3 messages / 2 conversations", s)
	}
}
