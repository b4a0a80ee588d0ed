package backend

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/models"
)

// conversationPageSQL projects conversation rows relative to the requesting
// user: the other participant is resolved per row and last_message_is_mine
// compares the denormalized sender against $me. Conversations without
// messages sort after all timestamped ones.
const conversationPageSQL = `
	SELECT
		id,
		(IF participant_a = $me { participant_b } ELSE { participant_a }) AS other_participant,
		(IF participant_a = $me { participant_b.email } ELSE { participant_a.email }) AS other_participant_email,
		last_message_at,
		last_message_text,
		last_message_sender,
		last_message_sender = $me AS last_message_is_mine,
		created_at,
		updated_at
	FROM conversation
	WHERE participant_a = $me OR participant_b = $me
	ORDER BY last_message_at DESC
	LIMIT $limit START $start
`

// ConversationPage fetches one page of the requesting user's conversation
// list, ordered by last_message_at descending with null timestamps last.
func (c *Client) ConversationPage(ctx context.Context, me surrealmodels.RecordID, page, limit int) ([]models.Conversation, error) {
	start, err := pageStart(page, limit)
	if err != nil {
		return nil, err
	}

	results, err := surrealdb.Query[[]models.Conversation](ctx, c.db, conversationPageSQL, map[string]any{
		"me":    me,
		"limit": limit,
		"start": start,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation page: %w", wrapQueryError(err))
	}

	return firstResult(results), nil
}

// MessagePage fetches one page of a conversation's messages, newest first.
// Callers accumulate pages and reverse the flattened sequence for display.
func (c *Client) MessagePage(ctx context.Context, conversation surrealmodels.RecordID, page, limit int) ([]models.Message, error) {
	start, err := pageStart(page, limit)
	if err != nil {
		return nil, err
	}

	results, err := surrealdb.Query[[]models.Message](ctx, c.db, `
		SELECT * FROM message
		WHERE conversation = $conversation
		ORDER BY created_at DESC, id DESC
		LIMIT $limit START $start
	`, map[string]any{
		"conversation": conversation,
		"limit":        limit,
		"start":        start,
	})
	if err != nil {
		return nil, fmt.Errorf("message page: %w", wrapQueryError(err))
	}

	return firstResult(results), nil
}

// ReadReceipts returns the subset of the given message ids the reader has
// receipted, as a set keyed by record id string.
func (c *Client) ReadReceipts(ctx context.Context, messageIDs []surrealmodels.RecordID, reader surrealmodels.RecordID) (map[string]struct{}, error) {
	receipts := make(map[string]struct{}, len(messageIDs))
	if len(messageIDs) == 0 {
		return receipts, nil
	}

	results, err := surrealdb.Query[[]surrealmodels.RecordID](ctx, c.db, `
		SELECT VALUE message FROM message_read
		WHERE message INSIDE $messages AND reader = $reader
	`, map[string]any{
		"messages": messageIDs,
		"reader":   reader,
	})
	if err != nil {
		return nil, fmt.Errorf("read receipts: %w", wrapQueryError(err))
	}

	for _, id := range firstResult(results) {
		receipts[id.String()] = struct{}{}
	}
	return receipts, nil
}

// InsertMessage creates a message row. The message_created table event
// updates the conversation's denormalized last-message fields in the same
// transaction.
func (c *Client) InsertMessage(ctx context.Context, conversation, sender surrealmodels.RecordID, content string) (*models.Message, error) {
	results, err := surrealdb.Query[[]models.Message](ctx, c.db, `
		CREATE message SET
			conversation = $conversation,
			sender = $sender,
			content = $content
	`, map[string]any{
		"conversation": conversation,
		"sender":       sender,
		"content":      content,
	})
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert message: no row returned")
	}
	return &rows[0], nil
}

// MarkMessagesRead receipts every unread foreign message in the conversation
// for the reader and returns the number of receipts created. Idempotent: a
// repeat call returns 0.
func (c *Client) MarkMessagesRead(ctx context.Context, conversation, reader surrealmodels.RecordID) (int, error) {
	results, err := surrealdb.Query[int](ctx, c.db, `
		RETURN fn::mark_messages_as_read($conversation, $reader)
	`, map[string]any{
		"conversation": conversation,
		"reader":       reader,
	})
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return (*results)[0].Result, nil
}

// GetOrCreateConversation resolves the conversation for an unordered user
// pair, creating it when absent, and returns its id.
func (c *Client) GetOrCreateConversation(ctx context.Context, a, b surrealmodels.RecordID) (surrealmodels.RecordID, error) {
	results, err := surrealdb.Query[surrealmodels.RecordID](ctx, c.db, `
		RETURN fn::get_or_create_conversation($u1, $u2)
	`, map[string]any{
		"u1": a,
		"u2": b,
	})
	if err != nil {
		return surrealmodels.RecordID{}, fmt.Errorf("get or create conversation: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return surrealmodels.RecordID{}, fmt.Errorf("get or create conversation: no id returned")
	}
	return (*results)[0].Result, nil
}

// CurrentUser resolves the authenticated user. Returns (nil, nil) when no
// user is available; callers map that to their auth-unavailable error.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	if c.cfg.UserID != "" {
		user := models.User{
			ID:    models.UserRecord(c.cfg.UserID),
			Email: c.cfg.UserEmail,
		}
		return &user, nil
	}

	results, err := surrealdb.Query[[]models.User](ctx, c.db, `SELECT * FROM $auth`, nil)
	if err != nil {
		return nil, fmt.Errorf("current user: %w", wrapQueryError(err))
	}

	users := firstResult(results)
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// EnsureUser upserts a user record. The mobile app's users come from its
// auth layer; this exists for provisioning root-auth setups and tests.
func (c *Client) EnsureUser(ctx context.Context, id, email string) (*models.User, error) {
	results, err := surrealdb.Query[[]models.User](ctx, c.db, `
		UPSERT $user SET email = $email
	`, map[string]any{
		"user":  models.UserRecord(id),
		"email": email,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", wrapQueryError(err))
	}

	users := firstResult(results)
	if len(users) == 0 {
		return nil, fmt.Errorf("ensure user: no row returned")
	}
	return &users[0], nil
}

// pageStart converts a 1-based (page, limit) cursor into a row offset.
func pageStart(page, limit int) (int, error) {
	if page < 1 {
		return 0, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if limit <= 0 {
		return 0, fmt.Errorf("limit must be > 0, got %d", limit)
	}
	return (page - 1) * limit, nil
}

// firstResult extracts the first statement's rows from a query result
// wrapper, tolerating nil/empty wrappers.
func firstResult[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return []T{}
	}
	return (*results)[0].Result
}
