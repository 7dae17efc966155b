package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/chat"
	"github.com/matheus3301/wachat/internal/metrics"
	"github.com/matheus3301/wachat/internal/store"
	"github.com/matheus3301/wachat/internal/wa"
	"go.uber.org/zap"
)

// Store is the part of the message store the engine writes through.
// *store.DB implements it.
type Store interface {
	UpsertMessage(ctx context.Context, m *store.Message) (bool, error)
	UpdateStatusByMetaID(ctx context.Context, metaMsgID, status string) (*store.StatusResult, error)
	ConversationSize(ctx context.Context, waID string) (int, error)
}

// Engine handles idempotent ingestion of webhook payloads into the store
// and announces every change on the bus.
type Engine struct {
	db     Store
	bus    *bus.Bus
	logger *zap.Logger
}

// NewEngine creates a new sync engine.
func NewEngine(db Store, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// StatusOutcome classifies the result of ApplyStatus.
type StatusOutcome string

const (
	StatusApplied   StatusOutcome = "applied"
	StatusUnchanged StatusOutcome = "unchanged"
	StatusMissed    StatusOutcome = "missed"
)

// ConversationEvent is the payload of conversation.created events.
type ConversationEvent struct {
	WaID     string
	UserName string
}

// Summary reports what a batch ingestion did.
type Summary = chat.IngestSummary

// IngestMessage stores a parsed message unless its id is already known.
// Returns whether it was created.
func (e *Engine) IngestMessage(ctx context.Context, pm *wa.ParsedMessage) (bool, error) {
	msg := pm.ToStoreMessage()
	created, err := e.db.UpsertMessage(ctx, msg)
	if err != nil {
		metrics.IngestedMessages.WithLabelValues("error").Inc()
		return false, fmt.Errorf("upsert message: %w", err)
	}
	if !created {
		metrics.IngestedMessages.WithLabelValues("skipped").Inc()
		e.logger.Debug("message already exists", zap.String("message_id", msg.MessageID))
		return false, nil
	}
	metrics.IngestedMessages.WithLabelValues("created").Inc()

	// The row is stored either way; a failed size lookup only costs the
	// conversation announcement.
	size, err := e.db.ConversationSize(ctx, msg.WaID)
	if err != nil {
		e.logger.Warn("conversation size lookup failed", zap.String("wa_id", msg.WaID), zap.Error(err))
	}
	if err == nil && size == 1 {
		e.bus.Publish(bus.Event{
			Kind:    bus.ConversationCreated,
			Payload: ConversationEvent{WaID: msg.WaID, UserName: msg.UserName},
		})
	}
	e.bus.Publish(bus.Event{Kind: bus.MessageCreated, Payload: *msg})
	return true, nil
}

// ApplyStatus moves a stored message's status forward. A status for an
// unknown message is counted and otherwise ignored.
func (e *Engine) ApplyStatus(ctx context.Context, ps *wa.ParsedStatus) (StatusOutcome, error) {
	res, err := e.db.UpdateStatusByMetaID(ctx, ps.MetaMsgID, ps.Status)
	if errors.Is(err, store.ErrNotFound) {
		metrics.StatusUpdates.WithLabelValues(string(StatusMissed)).Inc()
		e.logger.Info("status for unknown message", zap.String("meta_msg_id", ps.MetaMsgID))
		return StatusMissed, nil
	}
	if err != nil {
		metrics.StatusUpdates.WithLabelValues("error").Inc()
		return "", fmt.Errorf("update status: %w", err)
	}
	if !res.Changed {
		metrics.StatusUpdates.WithLabelValues(string(StatusUnchanged)).Inc()
		return StatusUnchanged, nil
	}
	metrics.StatusUpdates.WithLabelValues(string(StatusApplied)).Inc()
	e.bus.Publish(bus.Event{Kind: bus.MessageStatus, Payload: *res.Message})
	return StatusApplied, nil
}

// IngestBatch processes messages before status updates so a status can
// find a message delivered in the same batch. Individual failures are
// recorded in the summary; only context cancellation aborts the batch.
func (e *Engine) IngestBatch(ctx context.Context, items []*wa.Parsed) (Summary, error) {
	var sum Summary
	for _, p := range wa.MessagesFirst(items) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if p.IsStatus() {
			outcome, err := e.ApplyStatus(ctx, p.Status)
			if err != nil {
				sum.AddFailure(p.Source, err)
				continue
			}
			switch outcome {
			case StatusApplied:
				sum.StatusesApplied++
			case StatusUnchanged:
				sum.StatusesUnchanged++
			case StatusMissed:
				sum.StatusesMissed++
			}
			continue
		}
		created, err := e.IngestMessage(ctx, p.Message)
		if err != nil {
			sum.AddFailure(p.Source, err)
			continue
		}
		if created {
			sum.MessagesCreated++
		} else {
			sum.MessagesSkipped++
		}
	}
	e.logger.Info("payload batch ingested",
		zap.Int("messages_created", sum.MessagesCreated),
		zap.Int("messages_skipped", sum.MessagesSkipped),
		zap.Int("statuses_applied", sum.StatusesApplied),
		zap.Int("statuses_missed", sum.StatusesMissed),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}
