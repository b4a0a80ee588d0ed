package sync

import (
	"context"
	"log/slog"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/metrics"
)

// ViewState is the lifecycle state of a synchronized view.
type ViewState int

const (
	StateClosed ViewState = iota
	StateOpening
	StateOpen
	StateClosing
	StateErrored
)

func (s ViewState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Flags are the boolean indicators a view exposes to the UI layer.
type Flags struct {
	IsLoading      bool
	IsFetchingMore bool
	IsError        bool
	IsSending      bool
}

// Options tunes the orchestrator's page sizes.
type Options struct {
	ConversationPageLimit int
	MessagePageLimit      int
}

// DefaultOptions matches the app's production page sizes.
func DefaultOptions() Options {
	return Options{
		ConversationPageLimit: 20,
		MessagePageLimit:      50,
	}
}

// Orchestrator builds synchronized views over one backend and one shared
// store bundle. Views coordinate mount/unmount, live subscriptions, and
// user actions; the orchestrator itself only wires dependencies.
type Orchestrator struct {
	backend Backend
	stores  *Stores
	log     *slog.Logger
	metrics *metrics.Collector
	opts    Options
}

// New creates an orchestrator.
func New(b Backend, stores *Stores, log *slog.Logger, collector *metrics.Collector, opts Options) *Orchestrator {
	if opts.ConversationPageLimit <= 0 {
		opts.ConversationPageLimit = DefaultOptions().ConversationPageLimit
	}
	if opts.MessagePageLimit <= 0 {
		opts.MessagePageLimit = DefaultOptions().MessagePageLimit
	}
	return &Orchestrator{
		backend: b,
		stores:  stores,
		log:     log,
		metrics: collector,
		opts:    opts,
	}
}

// Stores returns the shared cache bundle.
func (o *Orchestrator) Stores() *Stores {
	return o.stores
}

// Metrics returns the collector, nil when metrics are disabled.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// CurrentUser resolves the authenticated user, mapping absence to
// ErrAuthUnavailable.
func (o *Orchestrator) CurrentUser(ctx context.Context) (surrealmodels.RecordID, string, error) {
	user, err := o.backend.CurrentUser(ctx)
	if err != nil {
		return surrealmodels.RecordID{}, "", err
	}
	if user == nil {
		return surrealmodels.RecordID{}, "", ErrAuthUnavailable
	}
	return user.ID, user.Email, nil
}

// ResolveConversation returns the conversation id for the current user and
// another user, creating the conversation when it does not exist yet.
func (o *Orchestrator) ResolveConversation(ctx context.Context, other surrealmodels.RecordID) (surrealmodels.RecordID, error) {
	me, _, err := o.CurrentUser(ctx)
	if err != nil {
		return surrealmodels.RecordID{}, &ConversationResolveError{Err: err}
	}

	id, err := o.backend.GetOrCreateConversation(ctx, me, other)
	if err != nil {
		return surrealmodels.RecordID{}, &ConversationResolveError{Err: err}
	}
	return id, nil
}

// timedFetch wraps a page fetch with metrics timing.
func timedFetch[T any](collector *metrics.Collector, fetch FetchPage[T]) FetchPage[T] {
	if collector == nil {
		return fetch
	}
	return func(ctx context.Context, page, limit int) ([]T, error) {
		start := time.Now()
		rows, err := fetch(ctx, page, limit)
		collector.RecordTiming(metrics.OpFetchPage, time.Since(start))
		return rows, err
	}
}
