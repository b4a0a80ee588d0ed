package sync

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/metrics"
	"github.com/phantodev/oficinas-chat/internal/models"
)

// messageInserter is the slice of the backend the sender writes through.
type messageInserter interface {
	InsertMessage(ctx context.Context, conversation, sender surrealmodels.RecordID, content string) (*models.Message, error)
}

// Sender is the send pipeline: trim, synchronous create round-trip, then
// cache invalidation by the caller. There is no optimistic local insertion;
// the sent message becomes visible only after the subsequent refetch. A
// second send while one is pending is rejected, not queued.
type Sender struct {
	inserter messageInserter
	log      *slog.Logger
	metrics  *metrics.Collector

	mu       sync.Mutex
	inFlight bool
}

// NewSender creates a send pipeline.
func NewSender(inserter messageInserter, log *slog.Logger, collector *metrics.Collector) *Sender {
	return &Sender{inserter: inserter, log: log, metrics: collector}
}

// Sending reports whether a send is in flight.
func (s *Sender) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Send creates a message. Content is trimmed and must be non-empty. On
// failure the typed *SendError surfaces and the caller keeps its compose
// buffer; there is no automatic retry.
func (s *Sender) Send(ctx context.Context, conversation, sender surrealmodels.RecordID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &SendError{Err: ErrEmptyMessage}
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	start := time.Now()
	msg, err := s.inserter.InsertMessage(ctx, conversation, sender, content)
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpSend, time.Since(start))
	}
	if err != nil {
		return nil, &SendError{Err: err}
	}

	s.log.Debug("message sent", "conversation", conversation, "message", msg.ID)
	return msg, nil
}
