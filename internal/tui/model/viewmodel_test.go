package model

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/chat"
	"github.com/matheus3301/wachat/internal/reconcile"
	"github.com/matheus3301/wachat/internal/status"
	"github.com/matheus3301/wachat/internal/transport"
	"github.com/matheus3301/wachat/internal/tui/ui"
	"github.com/matheus3301/wachat/internal/wire"
)

const me = "918329446654"

var errDown = errors.New("server unavailable")

type fakeTransport struct {
	machine *status.Machine
	dialErr error

	mu       sync.Mutex
	sent     []wire.Payload
	handlers map[wire.Kind][]transport.Handler
}

func newFakeTransport(b *bus.Bus) *fakeTransport {
	return &fakeTransport{machine: status.NewMachine(b), handlers: map[wire.Kind][]transport.Handler{}}
}

func (f *fakeTransport) Connect(context.Context) error {
	_ = f.machine.Transition(status.Connecting)
	if f.dialErr != nil {
		_ = f.machine.Transition(status.Errored)
		_ = f.machine.Transition(status.Disconnected)
		return f.dialErr
	}
	return f.machine.Transition(status.Open)
}

func (f *fakeTransport) Disconnect() { _ = f.machine.Transition(status.Stopped) }

func (f *fakeTransport) State() status.State { return f.machine.Current() }

func (f *fakeTransport) Online() bool { return f.machine.Online() }

func (f *fakeTransport) Send(p wire.Payload) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return true
}

func (f *fakeTransport) Subscribe(kind wire.Kind, fn transport.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[kind] = append(f.handlers[kind], fn)
	return func() {}
}

func (f *fakeTransport) deliver(p wire.Payload) {
	f.mu.Lock()
	hs := append([]transport.Handler(nil), f.handlers[wire.KindOf(p)]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(p)
	}
}

type fakeServer struct {
	mu     sync.Mutex
	down   bool
	next   int
	convs  []chat.Conversation
	msgs   map[string][]chat.Message
	search []chat.SearchResult
	query  string
}

func (s *fakeServer) CreateMessage(_ context.Context, in chat.NewMessage) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errDown
	}
	s.next++
	m := chat.Message{
		MessageID: "demo-" + strconv.Itoa(s.next),
		WaID:      in.WaID,
		From:      in.From,
		To:        in.To,
		Content:   in.Content,
		Status:    wire.StatusSent,
		Timestamp: time.Now().UTC(),
	}
	s.msgs[in.WaID] = append(s.msgs[in.WaID], m)
	return &m, nil
}

func (s *fakeServer) ListConversations(context.Context) ([]chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Conversation(nil), s.convs...), nil
}

func (s *fakeServer) ListMessages(_ context.Context, waID string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.msgs[waID]...), nil
}

func (s *fakeServer) Search(_ context.Context, query, _ string, _ int) ([]chat.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	return s.search, nil
}

func (s *fakeServer) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func newTestViewModel(t *testing.T) (*ViewModel, *fakeTransport, *fakeServer, *reconcile.Layer) {
	t.Helper()
	at := time.Date(2025, 8, 5, 10, 0, 0, 0, time.UTC)
	srv := &fakeServer{
		convs: []chat.Conversation{{
			WaID:          "929967673820",
			UserName:      "Neha Joshi",
			MessageCount:  1,
			LatestMessage: chat.Message{Content: "Is the store open?", Timestamp: at},
		}},
		msgs: map[string][]chat.Message{
			"929967673820": {{MessageID: "wamid.1", WaID: "929967673820", From: "929967673820", To: me, Content: "Is the store open?", Status: wire.StatusSent, Timestamp: at}},
		},
	}
	b := bus.New()
	tr := newFakeTransport(b)
	layer := reconcile.New(reconcile.Options{Identity: me, Persister: srv})
	vm := NewViewModel(layer, tr, srv, b)
	return vm, tr, srv, layer
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartLoadsConversationsAndConnects(t *testing.T) {
	vm, _, _, _ := newTestViewModel(t)
	if err := vm.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer vm.Stop()

	if !vm.Online() || vm.State() != status.Open {
		t.Errorf("state = %s", vm.State())
	}
	convs := vm.Conversations()
	if len(convs) != 1 || convs[0].UserName != "Neha Joshi" {
		t.Errorf("conversations = %+v", convs)
	}
	select {
	case <-vm.RefreshCh():
	case <-time.After(time.Second):
		t.Error("no refresh signalled after load")
	}
}

func TestStartOfflineIsNotFatal(t *testing.T) {
	vm, tr, _, _ := newTestViewModel(t)
	tr.dialErr = errors.New("connection refused")
	if err := vm.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer vm.Stop()

	if vm.Online() {
		t.Error("online after failed dial")
	}
	if msg := vm.Flash.Get(); msg != "Offline: connection refused" {
		t.Errorf("flash = %q", msg)
	}
}

func TestSendRequiresOpenConversation(t *testing.T) {
	vm, _, _, _ := newTestViewModel(t)
	if err := vm.Send(context.Background(), "hi"); !errors.Is(err, ErrNoConversation) {
		t.Errorf("Send() error = %v, want ErrNoConversation", err)
	}
}

func TestOpenAndSend(t *testing.T) {
	vm, tr, _, layer := newTestViewModel(t)
	ctx := context.Background()
	if err := vm.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer vm.Stop()

	if err := vm.Open(ctx, "929967673820"); err != nil {
		t.Fatal(err)
	}
	if vm.ActiveWaID() != "929967673820" || len(vm.Messages()) != 1 {
		t.Fatalf("after open: active=%q messages=%+v", vm.ActiveWaID(), vm.Messages())
	}

	if err := vm.Send(ctx, "Yes, until 9pm"); err != nil {
		t.Fatal(err)
	}
	layer.Wait()

	msgs := vm.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %+v", msgs)
	}
	last := msgs[1]
	if !last.Mine || last.State != reconcile.Confirmed || last.ID != "demo-1" {
		t.Errorf("sent message = %+v", last)
	}
	tr.mu.Lock()
	sent := len(tr.sent)
	tr.mu.Unlock()
	if sent != 1 {
		t.Errorf("transport sends = %d, want 1", sent)
	}
}

func TestFailedSendSurfacesErrorAndRetries(t *testing.T) {
	vm, _, srv, layer := newTestViewModel(t)
	ctx := context.Background()
	if err := vm.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer vm.Stop()
	if err := vm.Open(ctx, "929967673820"); err != nil {
		t.Fatal(err)
	}

	srv.setDown(true)
	if err := vm.Send(ctx, "are you there?"); err != nil {
		t.Fatal(err)
	}
	layer.Wait()

	if err := vm.PopErr(); !errors.Is(err, errDown) {
		t.Errorf("PopErr() = %v, want %v", err, errDown)
	}
	if err := vm.PopErr(); err != nil {
		t.Errorf("second PopErr() = %v, want nil", err)
	}
	if len(vm.Failures()) != 1 {
		t.Fatalf("failures = %+v", vm.Failures())
	}

	srv.setDown(false)
	if n := vm.RetryFailed(ctx); n != 1 {
		t.Errorf("RetryFailed() = %d, want 1", n)
	}
	layer.Wait()
	if len(vm.Failures()) != 0 {
		t.Errorf("failures after retry = %+v", vm.Failures())
	}
	msgs := vm.Messages()
	if len(msgs) != 2 || msgs[1].Text != "are you there?" || msgs[1].State != reconcile.Confirmed {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestRemoteMessageSignalsRefresh(t *testing.T) {
	vm, tr, _, _ := newTestViewModel(t)
	ctx := context.Background()
	if err := vm.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer vm.Stop()
	if err := vm.Open(ctx, "929967673820"); err != nil {
		t.Fatal(err)
	}
	// Drain signals from loading.
	for len(vm.refreshCh) > 0 {
		<-vm.refreshCh
	}

	tr.deliver(wire.NewMessage{WaID: "929967673820", Message: wire.Message{
		ID:        "wamid.2",
		WaID:      "929967673820",
		From:      "929967673820",
		To:        me,
		Text:      "Thanks!",
		Status:    wire.StatusSent,
		Timestamp: time.Date(2025, 8, 5, 10, 1, 0, 0, time.UTC),
	}})

	select {
	case <-vm.RefreshCh():
	case <-time.After(time.Second):
		t.Fatal("no refresh after remote message")
	}
	waitFor(t, func() bool { return len(vm.Messages()) == 2 })
}

func TestGivenUpFlashesWarning(t *testing.T) {
	vm, tr, _, _ := newTestViewModel(t)
	tr.dialErr = errors.New("connection refused")
	if err := vm.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer vm.Stop()

	_ = tr.machine.Transition(status.GivenUp)
	waitFor(t, func() bool { return vm.Flash.Get() == ui.FlashConnectionLost })
}

func TestReconnectAfterOutageFlashesBackOnline(t *testing.T) {
	vm, tr, _, _ := newTestViewModel(t)
	tr.dialErr = errors.New("connection refused")
	if err := vm.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer vm.Stop()

	tr.dialErr = nil
	if err := vm.Reconnect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return vm.Flash.Get() == ui.FlashBackOnline })
}

func TestSearchUsesAllConversations(t *testing.T) {
	vm, _, srv, _ := newTestViewModel(t)
	srv.search = []chat.SearchResult{{Message: chat.Message{MessageID: "wamid.1"}, Snippet: "store"}}

	results, err := vm.Search(context.Background(), "store")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || srv.query != "store" {
		t.Errorf("results = %+v, query = %q", results, srv.query)
	}
}
