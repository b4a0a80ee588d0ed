package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	gosync "sync"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/backend"
	"github.com/phantodev/oficinas-chat/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeSubscription is a controllable live feed for tests.
type fakeSubscription struct {
	scope  string
	events chan backend.Event

	mu     gosync.Mutex
	killed bool
}

func newFakeSubscription(scope string) *fakeSubscription {
	return &fakeSubscription{scope: scope, events: make(chan backend.Event, 16)}
}

func (s *fakeSubscription) Events() <-chan backend.Event { return s.events }

func (s *fakeSubscription) Kill(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.killed {
		s.killed = true
		close(s.events)
	}
	return nil
}

func (s *fakeSubscription) Killed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killed
}

// emit pushes an event into the feed. Tests drive event delivery
// explicitly so ordering and duplication stay deterministic.
func (s *fakeSubscription) emit(ev backend.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.killed {
		return
	}
	s.events <- ev
}

type fakeConversation struct {
	id         surrealmodels.RecordID
	a, b       surrealmodels.RecordID // canonical order: a < b
	lastAt     *time.Time
	lastText   *string
	lastSender *surrealmodels.RecordID
	createdAt  time.Time
	updatedAt  time.Time
}

// fakeBackend is an in-memory Backend with injectable failures and call
// counters. Live events are never emitted implicitly; tests push them via
// the returned subscriptions.
type fakeBackend struct {
	mu gosync.Mutex

	me            *models.User
	users         map[string]models.User
	conversations []*fakeConversation
	messages      []models.Message
	receipts      map[string]map[string]bool // message key -> reader key

	clock      time.Time
	msgCounter int

	msgPageCalls  int
	convPageCalls int
	markReadCalls int

	failMessagePage       error
	failConversationPage  error
	failInsert            error
	failMarkRead          error
	blockMessagePage      chan struct{}
	blockConversationPage chan struct{}

	threadSubs map[string]*fakeSubscription
	listSub    *fakeSubscription
	allMsgSub  *fakeSubscription
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:      make(map[string]models.User),
		receipts:   make(map[string]map[string]bool),
		threadSubs: make(map[string]*fakeSubscription),
		clock:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeBackend) addUser(id, email string) models.User {
	u := models.User{ID: models.UserRecord(id), Email: email}
	f.mu.Lock()
	f.users[u.ID.String()] = u
	f.mu.Unlock()
	return u
}

func (f *fakeBackend) signIn(u models.User) {
	f.mu.Lock()
	f.me = &u
	f.mu.Unlock()
}

func (f *fakeBackend) CurrentUser(ctx context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.me, nil
}

func (f *fakeBackend) GetOrCreateConversation(ctx context.Context, a, b surrealmodels.RecordID) (surrealmodels.RecordID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b.String() < a.String() {
		a, b = b, a
	}
	for _, c := range f.conversations {
		if c.a.String() == a.String() && c.b.String() == b.String() {
			return c.id, nil
		}
	}
	conv := &fakeConversation{
		id:        models.ConversationRecord(fmt.Sprintf("c%d", len(f.conversations)+1)),
		a:         a,
		b:         b,
		createdAt: f.clock,
		updatedAt: f.clock,
	}
	f.conversations = append(f.conversations, conv)
	return conv.id, nil
}

func (f *fakeBackend) ConversationPage(ctx context.Context, me surrealmodels.RecordID, page, limit int) ([]models.Conversation, error) {
	f.mu.Lock()
	f.convPageCalls++
	block := f.blockConversationPage
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failConversationPage != nil {
		return nil, f.failConversationPage
	}

	var rows []models.Conversation
	for _, c := range f.conversations {
		if c.a.String() != me.String() && c.b.String() != me.String() {
			continue
		}
		other := c.a
		if other.String() == me.String() {
			other = c.b
		}
		row := models.Conversation{
			ID:                c.id,
			OtherParticipant:  other,
			LastMessageAt:     c.lastAt,
			LastMessageText:   c.lastText,
			LastMessageSender: c.lastSender,
			CreatedAt:         c.createdAt,
			UpdatedAt:         c.updatedAt,
		}
		if u, ok := f.users[other.String()]; ok {
			row.OtherParticipantEmail = u.Email
		}
		if c.lastSender != nil && c.lastSender.String() == me.String() {
			row.LastMessageIsMine = true
		}
		rows = append(rows, row)
	}

	// last_message_at descending, nulls last
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].LastMessageAt, rows[j].LastMessageAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	return pageOf(rows, page, limit), nil
}

func (f *fakeBackend) MessagePage(ctx context.Context, conversation surrealmodels.RecordID, page, limit int) ([]models.Message, error) {
	f.mu.Lock()
	f.msgPageCalls++
	fail := f.failMessagePage
	block := f.blockMessagePage
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var rows []models.Message
	for _, m := range f.messages {
		if m.Conversation.String() == conversation.String() {
			rows = append(rows, m)
		}
	}
	// newest first
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[j].Before(rows[i])
	})

	return pageOf(rows, page, limit), nil
}

func (f *fakeBackend) ReadReceipts(ctx context.Context, messageIDs []surrealmodels.RecordID, reader surrealmodels.RecordID) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]struct{})
	for _, id := range messageIDs {
		if readers, ok := f.receipts[id.String()]; ok && readers[reader.String()] {
			out[id.String()] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeBackend) InsertMessage(ctx context.Context, conversation, sender surrealmodels.RecordID, content string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failInsert != nil {
		return nil, f.failInsert
	}
	return f.insertLocked(conversation, sender, content), nil
}

// addMessage seeds a message directly, bypassing failure injection.
func (f *fakeBackend) addMessage(conversation, sender surrealmodels.RecordID, content string) models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.insertLocked(conversation, sender, content)
}

func (f *fakeBackend) insertLocked(conversation, sender surrealmodels.RecordID, content string) *models.Message {
	f.msgCounter++
	f.clock = f.clock.Add(time.Second)
	msg := models.Message{
		ID:           surrealmodels.NewRecordID("message", fmt.Sprintf("m%04d", f.msgCounter)),
		Conversation: conversation,
		Sender:       sender,
		Content:      content,
		CreatedAt:    f.clock,
		UpdatedAt:    f.clock,
	}
	f.messages = append(f.messages, msg)

	for _, c := range f.conversations {
		if c.id.String() == conversation.String() {
			at := msg.CreatedAt
			text := msg.Content
			from := msg.Sender
			c.lastAt = &at
			c.lastText = &text
			c.lastSender = &from
			c.updatedAt = f.clock
		}
	}
	return &msg
}

func (f *fakeBackend) MarkMessagesRead(ctx context.Context, conversation, reader surrealmodels.RecordID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.markReadCalls++
	if f.failMarkRead != nil {
		return 0, f.failMarkRead
	}

	count := 0
	for _, m := range f.messages {
		if m.Conversation.String() != conversation.String() {
			continue
		}
		if m.Sender.String() == reader.String() {
			continue
		}
		readers, ok := f.receipts[m.Key()]
		if !ok {
			readers = make(map[string]bool)
			f.receipts[m.Key()] = readers
		}
		if !readers[reader.String()] {
			readers[reader.String()] = true
			count++
		}
	}
	return count, nil
}

func (f *fakeBackend) SubscribeConversations(ctx context.Context, me surrealmodels.RecordID) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listSub = newFakeSubscription("conversations")
	return f.listSub, nil
}

func (f *fakeBackend) SubscribeMessages(ctx context.Context, conversation surrealmodels.RecordID) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := newFakeSubscription("messages:" + conversation.String())
	f.threadSubs[conversation.String()] = sub
	return sub, nil
}

func (f *fakeBackend) SubscribeAllMessages(ctx context.Context) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allMsgSub = newFakeSubscription("all-messages")
	return f.allMsgSub, nil
}

func (f *fakeBackend) threadSub(conversation surrealmodels.RecordID) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threadSubs[conversation.String()]
}

func (f *fakeBackend) conversationPageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.convPageCalls
}

func (f *fakeBackend) messagePageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgPageCalls
}

func (f *fakeBackend) markReadCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markReadCalls
}

func (f *fakeBackend) hasReceipt(message models.Message, reader surrealmodels.RecordID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	readers, ok := f.receipts[message.Key()]
	return ok && readers[reader.String()]
}

// insertEvent builds the live event the backend would deliver for a
// message insert.
func insertEvent(msg models.Message) backend.Event {
	return backend.Event{
		Table:  "message",
		Action: backend.ActionCreate,
		Row: map[string]any{
			"id":           msg.ID,
			"conversation": msg.Conversation,
			"sender":       msg.Sender,
			"content":      msg.Content,
		},
	}
}

func pageOf[T any](rows []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(rows) {
		return []T{}
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	out := make([]T, end-start)
	copy(out, rows[start:end])
	return out
}
