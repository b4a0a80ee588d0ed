package sync

import (
	"errors"
	"fmt"

	"github.com/phantodev/oficinas-chat/internal/backend"
)

// Sentinel errors for sync operations.
var (
	// ErrAuthUnavailable indicates no authenticated user was available for
	// an operation that requires one.
	ErrAuthUnavailable = errors.New("no authenticated user")

	// ErrSendInFlight indicates a send was rejected because another send
	// from the same view is still pending. Sends are rejected, not queued.
	ErrSendInFlight = errors.New("send already in progress")

	// ErrEmptyMessage indicates the message content was empty after
	// trimming.
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrViewNotClosed indicates an open was attempted while the view is
	// not in a closed or errored state.
	ErrViewNotClosed = errors.New("view is not closed")

	// ErrViewNotOpen indicates an operation that requires an open view.
	ErrViewNotOpen = errors.New("view is not open")

	// ErrFeedClosed reports that a live subscription's event channel
	// closed on its own while the view was mounted.
	ErrFeedClosed = errors.New("live feed closed")
)

// FetchError indicates a page query failed. It surfaces to the UI as a
// typed failure with a retry affordance; fetches are never retried
// automatically.
type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Message returns a human-readable description, preferring the backend's
// own message when one is available.
func (e *FetchError) Message() string {
	if msg, ok := backend.HumanMessage(e.Err); ok {
		return msg
	}
	return "failed to load " + e.Resource
}

// SendError indicates a message insert failed. The caller's compose buffer
// must be left intact so the user can resubmit without data loss.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Message returns a human-readable description, preferring the backend's
// own message when one is available.
func (e *SendError) Message() string {
	if msg, ok := backend.HumanMessage(e.Err); ok {
		return msg
	}
	return "failed to send message"
}

// ReadMarkError indicates the read-receipt RPC failed. Non-fatal: it is
// logged and never blocks the UI.
type ReadMarkError struct {
	Err error
}

func (e *ReadMarkError) Error() string {
	return fmt.Sprintf("mark messages read: %v", e.Err)
}

func (e *ReadMarkError) Unwrap() error { return e.Err }

// ConversationResolveError indicates the get-or-create conversation RPC
// failed.
type ConversationResolveError struct {
	Err error
}

func (e *ConversationResolveError) Error() string {
	return fmt.Sprintf("resolve conversation: %v", e.Err)
}

func (e *ConversationResolveError) Unwrap() error { return e.Err }

// Message returns a human-readable description, preferring the backend's
// own message when one is available.
func (e *ConversationResolveError) Message() string {
	if msg, ok := backend.HumanMessage(e.Err); ok {
		return msg
	}
	return "failed to open conversation"
}
