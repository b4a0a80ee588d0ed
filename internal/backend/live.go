package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Action classifies a live event.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event is one change-feed notification: the changed row's new state plus
// the table and event type. Delivery is at-least-once and may be duplicated
// or reordered across rows; consumers must be idempotent.
type Event struct {
	Table  string
	Action Action
	Row    map[string]any
}

// RecordField extracts a record-link field from the row as its id string.
// Returns "" when the field is absent or not a record id.
func (e Event) RecordField(name string) string {
	v, ok := e.Row[name]
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case surrealmodels.RecordID:
		return id.String()
	case *surrealmodels.RecordID:
		if id == nil {
			return ""
		}
		return id.String()
	case string:
		return id
	default:
		return ""
	}
}

// Subscription is a live change feed with explicit teardown. The event
// channel is closed after Kill or when the underlying live query ends.
type Subscription struct {
	// ID identifies this subscription in logs.
	ID string

	client  *Client
	queryID surrealmodels.UUID
	events  chan Event

	killOnce sync.Once
	killErr  error
	done     chan struct{}
}

// Events returns the live event stream.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Kill terminates the live query and releases the subscription. Safe to
// call more than once; later calls return the first result.
func (s *Subscription) Kill(ctx context.Context) error {
	s.killOnce.Do(func() {
		close(s.done)
		_, err := surrealdb.Query[any](ctx, s.client.db, "KILL $id", map[string]any{
			"id": s.queryID,
		})
		if err != nil {
			s.killErr = fmt.Errorf("kill live query: %w", err)
		}
	})
	return s.killErr
}

// SubscribeConversations opens a live feed of conversation-row changes
// (insert/update/delete) touching the given user.
func (c *Client) SubscribeConversations(ctx context.Context, me surrealmodels.RecordID) (*Subscription, error) {
	return c.live(ctx, "conversation", `
		LIVE SELECT * FROM conversation
		WHERE participant_a = $me OR participant_b = $me
	`, map[string]any{"me": me})
}

// SubscribeMessages opens a live feed of message changes scoped to one
// conversation.
func (c *Client) SubscribeMessages(ctx context.Context, conversation surrealmodels.RecordID) (*Subscription, error) {
	return c.live(ctx, "message", `
		LIVE SELECT * FROM message WHERE conversation = $conversation
	`, map[string]any{"conversation": conversation})
}

// SubscribeAllMessages opens a live feed of message inserts across all
// conversations, used by the list view to refresh denormalized last-message
// fields.
func (c *Client) SubscribeAllMessages(ctx context.Context) (*Subscription, error) {
	return c.live(ctx, "message", `LIVE SELECT * FROM message`, nil)
}

// live issues a LIVE SELECT, wires its notification channel, and returns
// the subscription. Raw notifications are translated into Events on a
// dedicated goroutine that exits on Kill or channel close.
func (c *Client) live(ctx context.Context, table, sql string, vars map[string]any) (*Subscription, error) {
	results, err := surrealdb.Query[surrealmodels.UUID](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("live select %s: %w", table, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return nil, fmt.Errorf("live select %s: no query id returned", table)
	}
	queryID := (*results)[0].Result

	notifications, err := c.db.LiveNotifications(queryID.String())
	if err != nil {
		_, _ = surrealdb.Query[any](ctx, c.db, "KILL $id", map[string]any{"id": queryID})
		return nil, fmt.Errorf("live notifications %s: %w", table, err)
	}

	events := make(chan Event)
	sub := &Subscription{
		ID:      uuid.New().String()[:8],
		client:  c,
		queryID: queryID,
		events:  events,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(events)
		for {
			select {
			case <-sub.done:
				return
			case n, ok := <-notifications:
				if !ok {
					return
				}
				ev := Event{
					Table:  table,
					Action: Action(strings.ToLower(string(n.Action))),
					Row:    asRow(n.Result),
				}
				select {
				case events <- ev:
				case <-sub.done:
					return
				}
			}
		}
	}()

	c.logger.Info("live subscription established", "table", table, "subscription", sub.ID)
	return sub, nil
}

// asRow normalizes a notification payload into a string-keyed map.
func asRow(result any) map[string]any {
	switch row := result.(type) {
	case map[string]any:
		return row
	case map[any]any:
		out := make(map[string]any, len(row))
		for k, v := range row {
			if key, ok := k.(string); ok {
				out[key] = v
			}
		}
		return out
	default:
		return map[string]any{}
	}
}
