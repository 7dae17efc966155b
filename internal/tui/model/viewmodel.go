package model

import (
	"context"
	"errors"
	"sync"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/chat"
	"github.com/matheus3301/wachat/internal/outbox"
	"github.com/matheus3301/wachat/internal/reconcile"
	"github.com/matheus3301/wachat/internal/status"
	"github.com/matheus3301/wachat/internal/transport"
	"github.com/matheus3301/wachat/internal/tui/ui"
	"github.com/matheus3301/wachat/internal/wire"
)

// ErrNoConversation is returned by Send when no conversation is open.
var ErrNoConversation = errors.New("no conversation open")

// searchLimit caps results shown by the search view.
const searchLimit = 50

// Transport is the live connection the view model drives.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect()
	State() status.State
	Online() bool
	Send(p wire.Payload) bool
	Subscribe(kind wire.Kind, fn transport.Handler) func()
}

// Searcher runs server-side message search.
type Searcher interface {
	Search(ctx context.Context, query, waID string, limit int) ([]chat.SearchResult, error)
}

// ViewModel joins the reconciled client state with the transport and
// signals UI refreshes.
type ViewModel struct {
	layer    *reconcile.Layer
	tr       Transport
	search   Searcher
	bus      *bus.Bus
	resender *outbox.Resender
	Flash    *ui.FlashModel

	mu      sync.RWMutex
	active  string
	cleanup []func()

	refreshCh chan struct{}
}

// NewViewModel creates a view model. b must be the bus the transport
// publishes its state changes on.
func NewViewModel(layer *reconcile.Layer, tr Transport, search Searcher, b *bus.Bus) *ViewModel {
	return &ViewModel{
		layer:     layer,
		tr:        tr,
		search:    search,
		bus:       b,
		resender:  outbox.NewResender(layer, b, nil),
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Start binds the layer to the transport, connects and loads the
// conversation list. A failed first dial is not fatal: the transport keeps
// retrying and the status bar shows the client offline.
func (vm *ViewModel) Start(ctx context.Context) error {
	unbind := vm.layer.Bind(vm.tr)
	unwatch := vm.layer.OnChange(vm.signalRefresh)
	stateCh, unsub := vm.bus.Subscribe(status.EventStateChanged, 16)
	watchCtx, cancel := context.WithCancel(ctx)
	go vm.watchState(watchCtx, stateCh)
	vm.resender.Start(ctx)

	vm.mu.Lock()
	vm.cleanup = append(vm.cleanup, unbind, unwatch, cancel, unsub, vm.resender.Stop)
	vm.mu.Unlock()

	if err := vm.tr.Connect(ctx); err != nil {
		vm.Flash.Offline(err)
	}
	return vm.layer.LoadConversations(ctx)
}

func (vm *ViewModel) watchState(ctx context.Context, ch <-chan bus.Event) {
	for {
		select {
		case evt := <-ch:
			if change, ok := evt.Payload.(status.StatusChange); ok {
				vm.Flash.ConnectionChanged(change.To)
			}
			vm.signalRefresh()
		case <-ctx.Done():
			return
		}
	}
}

// Stop disconnects and releases subscriptions.
func (vm *ViewModel) Stop() {
	vm.tr.Disconnect()
	vm.mu.Lock()
	cleanup := vm.cleanup
	vm.cleanup = nil
	vm.mu.Unlock()
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
}

// Open makes waID the active conversation and loads its history.
func (vm *ViewModel) Open(ctx context.Context, waID string) error {
	if err := vm.layer.Load(ctx, waID); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.active = waID
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// ActiveWaID returns the open conversation, or "".
func (vm *ViewModel) ActiveWaID() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

// Send submits text to the active conversation.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	waID := vm.ActiveWaID()
	if waID == "" {
		return ErrNoConversation
	}
	_, err := vm.layer.Submit(ctx, waID, text)
	return err
}

// RetryFailed resubmits every failed message. Returns how many were
// resubmitted.
func (vm *ViewModel) RetryFailed(ctx context.Context) int {
	return vm.resender.RetryAll(ctx)
}

// Reconnect starts a fresh connection attempt.
func (vm *ViewModel) Reconnect(ctx context.Context) error {
	return vm.tr.Connect(ctx)
}

// Refresh reloads the conversation list and the open conversation.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	if err := vm.layer.LoadConversations(ctx); err != nil {
		return err
	}
	if waID := vm.ActiveWaID(); waID != "" {
		return vm.layer.Load(ctx, waID)
	}
	return nil
}

// Search runs a message search across all conversations.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]chat.SearchResult, error) {
	return vm.search.Search(ctx, query, "", searchLimit)
}

// Conversations returns conversation summaries, most recent first.
func (vm *ViewModel) Conversations() []reconcile.Conversation {
	return vm.layer.Conversations()
}

// Conversation returns the summary for waID.
func (vm *ViewModel) Conversation(waID string) (reconcile.Conversation, bool) {
	for _, c := range vm.layer.Conversations() {
		if c.WaID == waID {
			return c, true
		}
	}
	return reconcile.Conversation{}, false
}

// Messages returns the active conversation's messages.
func (vm *ViewModel) Messages() []reconcile.Message {
	waID := vm.ActiveWaID()
	if waID == "" {
		return nil
	}
	return vm.layer.Messages(waID)
}

// Failures returns messages that could not be persisted.
func (vm *ViewModel) Failures() []reconcile.Failure {
	return vm.layer.Failures()
}

// State returns the transport state.
func (vm *ViewModel) State() status.State {
	return vm.tr.State()
}

// Online reports whether the transport is connected.
func (vm *ViewModel) Online() bool {
	return vm.tr.Online()
}

// PopErr returns and clears the last send failure.
func (vm *ViewModel) PopErr() error {
	err := vm.layer.Err()
	if err != nil {
		vm.layer.ClearErr()
	}
	return err
}
