// Package models defines data structures for the oficinas chat sync core.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// User is the authenticated identity a view operates as.
type User struct {
	ID    surrealmodels.RecordID `json:"id"`
	Email string                 `json:"email"`
}

// Conversation is one row of the conversation list as the requesting user
// sees it: the other participant plus denormalized last-message fields.
// LastMessageIsMine is computed server-side relative to the requester.
type Conversation struct {
	ID                    surrealmodels.RecordID  `json:"id"`
	OtherParticipant      surrealmodels.RecordID  `json:"other_participant"`
	OtherParticipantEmail string                  `json:"other_participant_email"`
	LastMessageAt         *time.Time              `json:"last_message_at,omitempty"`
	LastMessageText       *string                 `json:"last_message_text,omitempty"`
	LastMessageSender     *surrealmodels.RecordID `json:"last_message_sender,omitempty"`
	LastMessageIsMine     bool                    `json:"last_message_is_mine"`
	CreatedAt             time.Time               `json:"created_at"`
	UpdatedAt             time.Time               `json:"updated_at"`
}

// HasUnread reports the list-view unread marker. This deliberately only
// looks at the denormalized last-message fields, not per-message receipts:
// a conversation counts as unread whenever the most recent message exists
// and was written by the other participant.
func (c Conversation) HasUnread() bool {
	return !c.LastMessageIsMine && c.LastMessageAt != nil
}

// Key returns the identifier used for de-duplication in cached snapshots.
func (c Conversation) Key() string {
	return c.ID.String()
}

// Message is an immutable content unit within a conversation. IsRead is
// client-derived by joining against the reader's receipts; it is not stored
// on the message row.
type Message struct {
	ID           surrealmodels.RecordID `json:"id"`
	Conversation surrealmodels.RecordID `json:"conversation"`
	Sender       surrealmodels.RecordID `json:"sender"`
	Content      string                 `json:"content"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	IsRead       bool                   `json:"is_read,omitempty"`
}

// Key returns the identifier used for de-duplication in cached snapshots.
func (m Message) Key() string {
	return m.ID.String()
}

// Before orders messages chronologically for display: by created_at, ties
// broken by record id so the order is total.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID.String() < other.ID.String()
}

// ReadReceipt marks that a reader has seen a message. Receipts are
// append-only and exist at most once per (message, reader) pair.
type ReadReceipt struct {
	ID      surrealmodels.RecordID `json:"id"`
	Message surrealmodels.RecordID `json:"message"`
	Reader  surrealmodels.RecordID `json:"reader"`
	ReadAt  time.Time              `json:"read_at"`
}
