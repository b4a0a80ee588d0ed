package sync

import (
	"context"
	"log/slog"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/metrics"
	"github.com/phantodev/oficinas-chat/internal/models"
)

// receiptSource is the slice of the backend the tracker reads from.
type receiptSource interface {
	ReadReceipts(ctx context.Context, messageIDs []surrealmodels.RecordID, reader surrealmodels.RecordID) (map[string]struct{}, error)
}

// receiptWriter is the slice of the backend the tracker writes through.
type receiptWriter interface {
	MarkMessagesRead(ctx context.Context, conversation, reader surrealmodels.RecordID) (int, error)
}

// Tracker derives per-message read state and writes read receipts. Receipt
// writes are best-effort side effects: failures are logged and never block
// the caller.
type Tracker struct {
	source  receiptSource
	writer  receiptWriter
	log     *slog.Logger
	metrics *metrics.Collector
}

// NewTracker creates a read-state tracker.
func NewTracker(source receiptSource, writer receiptWriter, log *slog.Logger, collector *metrics.Collector) *Tracker {
	return &Tracker{source: source, writer: writer, log: log, metrics: collector}
}

// StampReadFlags sets IsRead on each message by membership in the reader's
// receipt set, resolved with a single batched lookup for the whole batch.
func (t *Tracker) StampReadFlags(ctx context.Context, messages []models.Message, reader surrealmodels.RecordID) ([]models.Message, error) {
	if len(messages) == 0 {
		return messages, nil
	}

	ids := make([]surrealmodels.RecordID, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}

	receipts, err := t.source.ReadReceipts(ctx, ids, reader)
	if err != nil {
		return nil, err
	}

	stamped := make([]models.Message, len(messages))
	for i, m := range messages {
		_, m.IsRead = receipts[m.Key()]
		stamped[i] = m
	}
	return stamped, nil
}

// MarkRead receipts every unread foreign message in the conversation for
// the reader. Idempotent: repeating the call affects 0 additional rows.
// Failures become a logged ReadMarkError and are otherwise swallowed.
func (t *Tracker) MarkRead(ctx context.Context, conversation, reader surrealmodels.RecordID) int {
	start := time.Now()
	count, err := t.writer.MarkMessagesRead(ctx, conversation, reader)
	if t.metrics != nil {
		t.metrics.RecordTiming(metrics.OpMarkRead, time.Since(start))
	}
	if err != nil {
		markErr := &ReadMarkError{Err: err}
		t.log.Warn("read mark failed", "conversation", conversation, "error", markErr)
		return 0
	}
	if count > 0 {
		t.log.Debug("marked messages read", "conversation", conversation, "count", count)
	}
	return count
}
