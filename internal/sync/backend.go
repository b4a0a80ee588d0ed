// Package sync implements the client-side conversation/message
// synchronization core: paginated fetching reconciled with a live change
// feed, read-state tracking, and exactly-once-visible rendering of new
// messages. It consumes the backend through narrow interfaces so the logic
// is testable against an in-memory fake.
package sync

import (
	"context"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/backend"
	"github.com/phantodev/oficinas-chat/internal/models"
)

// Querier is the backend's paginated query surface.
type Querier interface {
	ConversationPage(ctx context.Context, me surrealmodels.RecordID, page, limit int) ([]models.Conversation, error)
	MessagePage(ctx context.Context, conversation surrealmodels.RecordID, page, limit int) ([]models.Message, error)
	ReadReceipts(ctx context.Context, messageIDs []surrealmodels.RecordID, reader surrealmodels.RecordID) (map[string]struct{}, error)
}

// Mutator is the backend's write surface: message inserts plus the two
// server-side atomic operations.
type Mutator interface {
	InsertMessage(ctx context.Context, conversation, sender surrealmodels.RecordID, content string) (*models.Message, error)
	MarkMessagesRead(ctx context.Context, conversation, reader surrealmodels.RecordID) (int, error)
	GetOrCreateConversation(ctx context.Context, a, b surrealmodels.RecordID) (surrealmodels.RecordID, error)
}

// Subscription is a live change feed with explicit teardown.
type Subscription interface {
	Events() <-chan backend.Event
	Kill(ctx context.Context) error
}

// Feed is the backend's subscribe surface.
type Feed interface {
	SubscribeConversations(ctx context.Context, me surrealmodels.RecordID) (Subscription, error)
	SubscribeMessages(ctx context.Context, conversation surrealmodels.RecordID) (Subscription, error)
	SubscribeAllMessages(ctx context.Context) (Subscription, error)
}

// Identity resolves the authenticated user, nil when none.
type Identity interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Backend is the full surface the sync core consumes.
type Backend interface {
	Querier
	Mutator
	Feed
	Identity
}

// FromClient adapts the SurrealDB client to the Backend interface. Only the
// subscribe methods need wrapping; everything else is promoted.
func FromClient(c *backend.Client) Backend {
	return clientBackend{c}
}

type clientBackend struct {
	*backend.Client
}

func (b clientBackend) SubscribeConversations(ctx context.Context, me surrealmodels.RecordID) (Subscription, error) {
	return b.Client.SubscribeConversations(ctx, me)
}

func (b clientBackend) SubscribeMessages(ctx context.Context, conversation surrealmodels.RecordID) (Subscription, error) {
	return b.Client.SubscribeMessages(ctx, conversation)
}

func (b clientBackend) SubscribeAllMessages(ctx context.Context) (Subscription, error) {
	return b.Client.SubscribeAllMessages(ctx)
}
