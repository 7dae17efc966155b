// Package outbox resubmits messages whose persistence failed.
package outbox

import (
	"context"
	"sync"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/reconcile"
	"github.com/matheus3301/wachat/internal/status"
	"go.uber.org/zap"
)

// Failed is the part of the reconciliation layer the resender drives.
type Failed interface {
	Failures() []reconcile.Failure
	Retry(ctx context.Context, tempID string) (string, error)
}

// Resender retries every failed submission once each time the transport
// comes back online. Failures that happen while online are left for the
// user to retry.
type Resender struct {
	layer  Failed
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewResender creates a resender for layer driven by transport state
// events on b.
func NewResender(layer Failed, b *bus.Bus, logger *zap.Logger) *Resender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resender{layer: layer, bus: b, logger: logger}
}

// Start begins watching for the transport going online.
func (r *Resender) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	ch, unsub := r.bus.Subscribe(status.EventStateChanged, 16)
	go r.loop(ctx, ch, unsub)
}

// Stop stops the resender and waits for any retry pass to finish.
func (r *Resender) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Resender) loop(ctx context.Context, ch <-chan bus.Event, unsub func()) {
	defer close(r.done)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			change, ok := evt.Payload.(status.StatusChange)
			if !ok || change.To != status.Open {
				continue
			}
			r.RetryAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RetryAll resubmits every recorded failure. Returns how many were
// resubmitted.
func (r *Resender) RetryAll(ctx context.Context) int {
	failures := r.layer.Failures()
	retried := 0
	for _, f := range failures {
		if ctx.Err() != nil {
			break
		}
		newID, err := r.layer.Retry(ctx, f.TempID)
		if err != nil {
			r.logger.Warn("failed to resubmit message", zap.String("temp_id", f.TempID), zap.Error(err))
			continue
		}
		retried++
		r.logger.Info("message resubmitted",
			zap.String("temp_id", f.TempID),
			zap.String("new_temp_id", newID),
			zap.String("wa_id", f.WaID),
		)
	}
	return retried
}
