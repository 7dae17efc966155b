package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wachat/internal/chat"
	"github.com/matheus3301/wachat/internal/clock"
	"github.com/matheus3301/wachat/internal/wire"
	"go.uber.org/zap"
)

// Options configures a Layer.
type Options struct {
	// Identity is the local sender id. Broadcasts from it are echoes of our
	// own sends and are ignored.
	Identity  string
	Persister Persister
	Clock     clock.Clock
	Logger    *zap.Logger
}

// Layer holds the reconciled client state. All methods are safe for
// concurrent use.
type Layer struct {
	identity  string
	persister Persister
	clock     clock.Clock
	logger    *zap.Logger

	mu        sync.Mutex
	messages  map[string][]*Message
	convs     map[string]*Conversation
	failures  map[string]Failure
	lastErr   error
	transport Transport
	listeners map[int]func()
	nextL     int

	inflight sync.WaitGroup
}

// New creates an empty layer.
func New(opts Options) *Layer {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Layer{
		identity:  opts.Identity,
		persister: opts.Persister,
		clock:     opts.Clock,
		logger:    opts.Logger,
		messages:  make(map[string][]*Message),
		convs:     make(map[string]*Conversation),
		failures:  make(map[string]Failure),
		listeners: make(map[int]func()),
	}
}

// OnChange registers fn to run after every state change. fn runs without the
// layer lock held. The returned func unregisters it.
func (l *Layer) OnChange(fn func()) func() {
	l.mu.Lock()
	id := l.nextL
	l.nextL++
	l.listeners[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

func (l *Layer) notify() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Bind subscribes the layer to hub broadcasts on tr and uses tr to announce
// confirmed sends. The returned func undoes both.
func (l *Layer) Bind(tr Transport) func() {
	l.mu.Lock()
	l.transport = tr
	l.mu.Unlock()

	unsubs := []func(){
		tr.Subscribe(wire.KindNewMessage, l.OnRemoteEvent),
		tr.Subscribe(wire.KindStatusUpdate, l.OnStatusEvent),
		tr.Subscribe(wire.KindNewConversation, l.OnRemoteEvent),
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, u := range unsubs {
				u()
			}
			l.mu.Lock()
			if l.transport == tr {
				l.transport = nil
			}
			l.mu.Unlock()
		})
	}
}

// Submit appends a provisional message to waID's conversation and persists
// it in the background. It returns the temporary id of the new entry.
func (l *Layer) Submit(ctx context.Context, waID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	now := l.clock.Now().UTC()
	msg := &Message{
		ID:        newTempID(now),
		WaID:      waID,
		From:      l.identity,
		To:        waID,
		Text:      text,
		Status:    wire.StatusSent,
		Timestamp: now,
		Mine:      true,
		State:     Provisional,
	}

	l.mu.Lock()
	l.messages[waID] = append(l.messages[waID], msg)
	l.touchConversationLocked(msg, false)
	userName := UnknownUser
	if c, ok := l.convs[waID]; ok && c.UserName != "" {
		userName = c.UserName
	}
	l.inflight.Add(1)
	l.mu.Unlock()
	l.notify()

	in := chat.NewMessage{WaID: waID, Content: text, UserName: userName, From: l.identity, To: waID}
	go l.persist(ctx, msg.ID, in)
	return msg.ID, nil
}

// Retry resubmits a failed message. It returns the new temporary id.
func (l *Layer) Retry(ctx context.Context, tempID string) (string, error) {
	l.mu.Lock()
	f, ok := l.failures[tempID]
	if ok {
		delete(l.failures, tempID)
	}
	l.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoFailure, tempID)
	}
	return l.Submit(ctx, f.WaID, f.Text)
}

// Wait blocks until every in-flight submit has settled.
func (l *Layer) Wait() {
	l.inflight.Wait()
}

func (l *Layer) persist(ctx context.Context, tempID string, in chat.NewMessage) {
	defer l.inflight.Done()

	var (
		saved *chat.Message
		err   error
	)
	if l.persister == nil {
		err = fmt.Errorf("no persister configured")
	} else {
		saved, err = l.persister.CreateMessage(ctx, in)
	}
	if err != nil {
		l.fail(tempID, in, err)
		return
	}
	confirmed := l.confirm(tempID, saved)
	if confirmed == nil {
		return
	}

	l.mu.Lock()
	tr := l.transport
	l.mu.Unlock()
	if tr != nil {
		tr.Send(wire.NewMessage{WaID: confirmed.WaID, Message: confirmed.wire()})
	}
}

// confirm swaps the provisional entry for the persisted message. Returns nil
// when the provisional entry is already gone.
func (l *Layer) confirm(tempID string, saved *chat.Message) *Message {
	m := fromStore(*saved, l.identity)
	m.State = Confirmed

	l.mu.Lock()
	list := l.messages[m.WaID]
	idx := indexOf(list, tempID)
	if idx < 0 {
		l.mu.Unlock()
		l.logger.Warn("provisional message vanished before confirmation", zap.String("temp_id", tempID))
		return nil
	}
	if l.findLocked(m.WaID, m.ID) != nil {
		// History loaded while the request was in flight already holds it.
		l.messages[m.WaID] = append(list[:idx], list[idx+1:]...)
		l.refreshConversationLocked(m.WaID)
		l.logger.Debug("confirmed message already present", zap.String("message_id", m.ID))
	} else {
		list[idx] = m
		l.touchConversationLocked(m, false)
	}
	l.mu.Unlock()

	l.logger.Debug("message confirmed", zap.String("temp_id", tempID), zap.String("message_id", m.ID))
	l.notify()
	return m
}

func (l *Layer) fail(tempID string, in chat.NewMessage, err error) {
	now := l.clock.Now()
	l.mu.Lock()
	list := l.messages[in.WaID]
	if idx := indexOf(list, tempID); idx >= 0 {
		l.messages[in.WaID] = append(list[:idx], list[idx+1:]...)
		l.rollbackConversationLocked(in.WaID)
	}
	l.failures[tempID] = Failure{TempID: tempID, WaID: in.WaID, Text: in.Content, Err: err, At: now}
	l.lastErr = err
	l.mu.Unlock()

	l.logger.Warn("failed to persist message", zap.String("temp_id", tempID), zap.String("wa_id", in.WaID), zap.Error(err))
	l.notify()
}

// OnRemoteEvent applies a broadcast new_message or new_conversation.
func (l *Layer) OnRemoteEvent(p wire.Payload) {
	switch v := p.(type) {
	case wire.NewMessage:
		l.applyRemoteMessage(v)
	case wire.NewConversation:
		l.mu.Lock()
		_, known := l.convs[v.WaID]
		if !known {
			l.convs[v.WaID] = &Conversation{WaID: v.WaID, UserName: v.UserName}
		}
		l.mu.Unlock()
		if !known {
			l.notify()
		}
	default:
		l.logger.Debug("ignoring remote event", zap.String("kind", string(wire.KindOf(p))))
	}
}

func (l *Layer) applyRemoteMessage(nm wire.NewMessage) {
	wm := nm.Message
	if wm.From == l.identity {
		return
	}
	waID := nm.WaID
	if waID == "" {
		waID = wm.WaID
	}
	if waID == "" {
		l.logger.Warn("remote message without wa_id", zap.String("message_id", wm.ID))
		return
	}
	m := &Message{
		ID:        wm.ID,
		WaID:      waID,
		From:      wm.From,
		To:        wm.To,
		Text:      wm.Text,
		Status:    wm.Status,
		Timestamp: wm.Timestamp,
		UserName:  wm.UserName,
		State:     Confirmed,
	}
	if m.Status == "" {
		m.Status = wire.StatusSent
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = l.clock.Now().UTC()
	}

	l.mu.Lock()
	if l.findLocked(waID, m.ID) != nil || l.similarLocked(waID, m, false) {
		l.mu.Unlock()
		l.logger.Debug("skipping duplicate remote message", zap.String("message_id", m.ID))
		return
	}
	l.messages[waID] = append(l.messages[waID], m)
	l.touchConversationLocked(m, true)
	l.mu.Unlock()
	l.notify()
}

// OnStatusEvent applies a broadcast status update. Unknown messages are
// ignored and a status never moves backwards.
func (l *Layer) OnStatusEvent(p wire.Payload) {
	su, ok := p.(wire.StatusUpdate)
	if !ok || !wire.ValidStatus(su.NewStatus) {
		return
	}
	l.mu.Lock()
	changed := false
	for waID, list := range l.messages {
		if su.WaID != "" && waID != su.WaID {
			continue
		}
		if idx := indexOf(list, su.MessageID); idx >= 0 {
			m := list[idx]
			if wire.StatusRank(su.NewStatus) > wire.StatusRank(m.Status) {
				m.Status = su.NewStatus
				changed = true
			}
			break
		}
	}
	l.mu.Unlock()
	if changed {
		l.notify()
	}
}

// Load fetches waID's history and merges it into the current view.
func (l *Layer) Load(ctx context.Context, waID string) error {
	if l.persister == nil {
		return fmt.Errorf("no persister configured")
	}
	history, err := l.persister.ListMessages(ctx, waID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	l.mu.Lock()
	for _, sm := range history {
		m := fromStore(sm, l.identity)
		m.State = Confirmed
		if existing := l.findLocked(waID, m.ID); existing != nil {
			if wire.StatusRank(m.Status) > wire.StatusRank(existing.Status) {
				existing.Status = m.Status
			}
			continue
		}
		if l.similarLocked(waID, m, true) {
			// A provisional send whose confirmation has not arrived yet.
			continue
		}
		l.messages[waID] = append(l.messages[waID], m)
	}
	list := l.messages[waID]
	sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
	l.refreshConversationLocked(waID)
	l.mu.Unlock()
	l.notify()
	return nil
}

// LoadConversations fetches conversation summaries and merges them.
func (l *Layer) LoadConversations(ctx context.Context) error {
	if l.persister == nil {
		return fmt.Errorf("no persister configured")
	}
	convs, err := l.persister.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	l.mu.Lock()
	for _, sc := range convs {
		c, ok := l.convs[sc.WaID]
		if !ok {
			c = &Conversation{WaID: sc.WaID}
			l.convs[sc.WaID] = c
		}
		if sc.UserName != "" {
			c.UserName = sc.UserName
		}
		if !sc.LatestMessage.Timestamp.Before(c.LastAt) {
			c.LastText = sc.LatestMessage.Content
			c.LastAt = sc.LatestMessage.Timestamp
		}
		if sc.MessageCount > c.MessageCount {
			c.MessageCount = sc.MessageCount
		}
	}
	l.mu.Unlock()
	l.notify()
	return nil
}

// Messages returns a copy of waID's messages in display order.
func (l *Layer) Messages(waID string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, 0, len(l.messages[waID]))
	for _, m := range l.messages[waID] {
		out = append(out, *m)
	}
	return out
}

// Conversations returns summaries, most recent first.
func (l *Layer) Conversations() []Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Conversation, 0, len(l.convs))
	for _, c := range l.convs {
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastAt.Equal(out[j].LastAt) {
			return out[i].WaID < out[j].WaID
		}
		return out[i].LastAt.After(out[j].LastAt)
	})
	return out
}

// Failures returns failed submits, oldest first.
func (l *Layer) Failures() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Failure, 0, len(l.failures))
	for _, f := range l.failures {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Err returns the most recent submit failure, if any.
func (l *Layer) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// ClearErr resets the error flag.
func (l *Layer) ClearErr() {
	l.mu.Lock()
	l.lastErr = nil
	l.mu.Unlock()
}

// similarLocked reports whether waID already holds a message with m's text
// from the same side within DedupWindow. With provisionalOnly set, only
// unconfirmed local sends are compared.
func (l *Layer) similarLocked(waID string, m *Message, provisionalOnly bool) bool {
	for _, e := range l.messages[waID] {
		if provisionalOnly && e.State != Provisional {
			continue
		}
		if e.Text == m.Text && e.Mine == m.Mine && absDuration(e.Timestamp.Sub(m.Timestamp)) < DedupWindow {
			return true
		}
	}
	return false
}

func (l *Layer) findLocked(waID, id string) *Message {
	if idx := indexOf(l.messages[waID], id); idx >= 0 {
		return l.messages[waID][idx]
	}
	return nil
}

// touchConversationLocked moves waID's summary to m. count adds m to the
// message count.
func (l *Layer) touchConversationLocked(m *Message, count bool) {
	c, ok := l.convs[m.WaID]
	if !ok {
		c = &Conversation{WaID: m.WaID}
		l.convs[m.WaID] = c
	}
	if !m.Mine && m.UserName != "" {
		c.UserName = m.UserName
	}
	if !m.Timestamp.Before(c.LastAt) {
		c.LastText = m.Text
		c.LastAt = m.Timestamp
	}
	if count || m.State == Provisional {
		c.MessageCount++
	}
}

// refreshConversationLocked recomputes waID's summary from its loaded messages.
func (l *Layer) refreshConversationLocked(waID string) {
	list := l.messages[waID]
	c, ok := l.convs[waID]
	if !ok {
		if len(list) == 0 {
			return
		}
		c = &Conversation{WaID: waID}
		l.convs[waID] = c
	}
	c.MessageCount = len(list)
	c.LastText, c.LastAt = "", time.Time{}
	for _, m := range list {
		if !m.Timestamp.Before(c.LastAt) {
			c.LastText, c.LastAt = m.Text, m.Timestamp
		}
		if !m.Mine && m.UserName != "" {
			c.UserName = m.UserName
		}
	}
}

// rollbackConversationLocked undoes the summary change of a removed
// provisional message.
func (l *Layer) rollbackConversationLocked(waID string) {
	c, ok := l.convs[waID]
	if !ok {
		return
	}
	if c.MessageCount > 0 {
		c.MessageCount--
	}
	c.LastText, c.LastAt = "", time.Time{}
	for _, m := range l.messages[waID] {
		if !m.Timestamp.Before(c.LastAt) {
			c.LastText, c.LastAt = m.Text, m.Timestamp
		}
	}
}

func (m *Message) wire() wire.Message {
	return wire.Message{
		ID:        m.ID,
		WaID:      m.WaID,
		From:      m.From,
		To:        m.To,
		Text:      m.Text,
		Status:    m.Status,
		Timestamp: m.Timestamp,
		UserName:  m.UserName,
	}
}

func fromStore(sm chat.Message, identity string) *Message {
	return &Message{
		ID:        sm.MessageID,
		WaID:      sm.WaID,
		From:      sm.From,
		To:        sm.To,
		Text:      sm.Content,
		Status:    sm.Status,
		Timestamp: sm.Timestamp,
		UserName:  sm.UserName,
		Mine:      sm.From == identity,
	}
}

func indexOf(list []*Message, id string) int {
	for i, m := range list {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func newTempID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("temp-%d-%s", now.UnixMilli(), suffix)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
