package sync

import (
	"sort"
	"sync"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/models"
)

// ConversationListKey is the resource key of the conversation list.
const ConversationListKey = "conversations"

// MessagesKey returns the resource key of one conversation's message thread.
func MessagesKey(conversation surrealmodels.RecordID) string {
	return "messages:" + conversation.String()
}

// Keyed is an entity with a stable de-duplication identifier.
type Keyed interface {
	Key() string
}

// Store is the shared, keyed snapshot cache. It is injected into views
// rather than living as ambient global state, so invalidation scope stays
// auditable. Replacement is structural: a refetched result set supersedes
// the cached one wholesale, guarded by a per-slot epoch so stale in-flight
// results are discarded ("latest successful refetch wins").
type Store[T Keyed] struct {
	mu       sync.Mutex
	slots    map[string]*slot[T]
	watchers map[string][]chan struct{}
}

type slot[T Keyed] struct {
	items []T
	epoch uint64
	ready bool
}

// NewStore creates an empty store.
func NewStore[T Keyed]() *Store[T] {
	return &Store[T]{
		slots:    make(map[string]*slot[T]),
		watchers: make(map[string][]chan struct{}),
	}
}

// Snapshot returns the cached sequence for a key and whether a successful
// fetch has populated it since the last structural replacement. The
// returned slice must be treated as read-only.
func (s *Store[T]) Snapshot(key string) ([]T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[key]
	if !ok {
		return nil, false
	}
	return sl.items, sl.ready
}

// Epoch returns the current epoch for a key. A refetch captures the epoch
// before fetching and passes it to Replace; if an invalidation intervened,
// the replace is rejected and the pending invalidation signal drives
// another refetch.
func (s *Store[T]) Epoch(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(key).epoch
}

// Replace installs a freshly fetched result set if the slot's epoch still
// matches. Returns false when the result is stale and was discarded.
func (s *Store[T]) Replace(key string, epoch uint64, items []T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.ensure(key)
	if sl.epoch != epoch {
		return false
	}
	sl.items = items
	sl.ready = true
	return true
}

// Invalidate bumps the key's epoch and signals watchers to refetch from
// page 1. Cached items stay visible until the replacement lands.
func (s *Store[T]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.ensure(key)
	sl.epoch++

	for _, ch := range s.watchers[key] {
		select {
		case ch <- struct{}{}:
		default: // already pending, coalesce
		}
	}
}

// Watch registers an invalidation signal channel for a key. The channel has
// capacity 1: overlapping invalidations coalesce into one pending signal.
func (s *Store[T]) Watch(key string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	s.watchers[key] = append(s.watchers[key], ch)
	return ch
}

// Unwatch removes a previously registered signal channel.
func (s *Store[T]) Unwatch(key string, ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	watchers := s.watchers[key]
	for i, w := range watchers {
		if w == ch {
			s.watchers[key] = append(watchers[:i], watchers[i+1:]...)
			break
		}
	}
	if len(s.watchers[key]) == 0 {
		delete(s.watchers, key)
	}
}

func (s *Store[T]) ensure(key string) *slot[T] {
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot[T]{}
		s.slots[key] = sl
	}
	return sl
}

// Stores bundles the process-wide caches shared across views.
type Stores struct {
	Conversations *Store[models.Conversation]
	Messages      *Store[models.Message]
}

// NewStores creates the shared cache bundle.
func NewStores() *Stores {
	return &Stores{
		Conversations: NewStore[models.Conversation](),
		Messages:      NewStore[models.Message](),
	}
}

// dedupeByKey removes entities sharing an identifier, keeping the first
// occurrence in fetch order. Pages can overlap when rows are inserted while
// paginating; earlier pages are fresher so they win.
func dedupeByKey[T Keyed](items []T) []T {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, item := range items {
		key := item.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// FlattenConversations flattens conversation pages in fetch order and
// removes duplicates. Ordering inside pages (last_message_at descending,
// nulls last) comes from the backend and is preserved.
func FlattenConversations(pages [][]models.Conversation) []models.Conversation {
	var flat []models.Conversation
	for _, page := range pages {
		flat = append(flat, page...)
	}
	return dedupeByKey(flat)
}

// FlattenMessages flattens message pages (each newest-first), removes
// duplicates, and sorts the result into ascending chronological order with
// id tie-breaks, which is the display order of a thread.
func FlattenMessages(pages [][]models.Message) []models.Message {
	var flat []models.Message
	for _, page := range pages {
		flat = append(flat, page...)
	}
	flat = dedupeByKey(flat)
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].Before(flat[j])
	})
	return flat
}
