package sync

import (
	"context"
	"log/slog"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/backend"
	"github.com/phantodev/oficinas-chat/internal/metrics"
)

// Listener translates raw change-feed events into cache invalidations and
// read-receipt writes. Every event, regardless of payload granularity,
// invalidates the corresponding resource key and lets the owning view
// refetch — which keeps handling idempotent against the feed's
// at-least-once, possibly duplicated and reordered delivery.
type Listener struct {
	stores  *Stores
	tracker *Tracker
	log     *slog.Logger
	metrics *metrics.Collector
}

// NewListener creates a change-feed listener over the shared stores.
func NewListener(stores *Stores, tracker *Tracker, log *slog.Logger, collector *metrics.Collector) *Listener {
	return &Listener{stores: stores, tracker: tracker, log: log, metrics: collector}
}

// HandleThreadEvent processes a message event scoped to one open
// conversation: invalidate the thread's cache slot, and on a foreign insert
// also receipt the conversation for the reader.
func (l *Listener) HandleThreadEvent(ctx context.Context, conversation surrealmodels.RecordID, reader surrealmodels.RecordID, ev backend.Event) {
	start := time.Now()
	defer func() {
		if l.metrics != nil {
			l.metrics.RecordTiming(metrics.OpLiveEvent, time.Since(start))
		}
	}()

	l.log.Debug("thread event", "conversation", conversation, "action", ev.Action)
	l.stores.Messages.Invalidate(MessagesKey(conversation))

	if ev.Action == backend.ActionCreate && ev.RecordField("sender") != reader.String() {
		l.tracker.MarkRead(ctx, conversation, reader)
	}
}

// HandleListEvent processes a conversation-row change or a message insert
// anywhere: either way the conversation list's denormalized last-message
// fields may have moved, so the list slot is invalidated wholesale.
func (l *Listener) HandleListEvent(ev backend.Event) {
	start := time.Now()
	defer func() {
		if l.metrics != nil {
			l.metrics.RecordTiming(metrics.OpLiveEvent, time.Since(start))
		}
	}()

	l.log.Debug("list event", "table", ev.Table, "action", ev.Action)
	l.stores.Conversations.Invalidate(ConversationListKey)
}
