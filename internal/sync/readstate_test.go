package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/models"
)

func TestStampReadFlagsMatchesReceipts(t *testing.T) {
	f := newFakeBackend()
	alice := f.addUser("alice", "alice@example.com")
	bob := f.addUser("bob", "bob@example.com")

	ctx := context.Background()
	conv, err := f.GetOrCreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	m1 := f.addMessage(conv, bob.ID, "first")
	m2 := f.addMessage(conv, bob.ID, "second")

	tracker := NewTracker(f, f, testLogger(), nil)

	// receipt only the first message
	_, err = f.MarkMessagesRead(ctx, conv, alice.ID)
	require.NoError(t, err)
	m3 := f.addMessage(conv, bob.ID, "third")

	stamped, err := tracker.StampReadFlags(ctx, []models.Message{m1, m2, m3}, alice.ID)
	require.NoError(t, err)
	require.Len(t, stamped, 3)
	assert.True(t, stamped[0].IsRead)
	assert.True(t, stamped[1].IsRead)
	assert.False(t, stamped[2].IsRead, "message sent after mark-read must stay unread")
}

func TestStampReadFlagsEmptyBatch(t *testing.T) {
	tracker := NewTracker(newFakeBackend(), newFakeBackend(), testLogger(), nil)
	stamped, err := tracker.StampReadFlags(context.Background(), nil, models.UserRecord("alice"))
	require.NoError(t, err)
	assert.Empty(t, stamped)
}

func TestMarkReadIsIdempotentAndSkipsOwnMessages(t *testing.T) {
	f := newFakeBackend()
	alice := f.addUser("alice", "alice@example.com")
	bob := f.addUser("bob", "bob@example.com")

	ctx := context.Background()
	conv, err := f.GetOrCreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	f.addMessage(conv, bob.ID, "from bob")
	mine := f.addMessage(conv, alice.ID, "from alice")

	tracker := NewTracker(f, f, testLogger(), nil)

	count := tracker.MarkRead(ctx, conv, alice.ID)
	assert.Equal(t, 1, count, "only the foreign message gets a receipt")
	assert.False(t, f.hasReceipt(mine, alice.ID), "own messages are never receipted")

	count = tracker.MarkRead(ctx, conv, alice.ID)
	assert.Equal(t, 0, count, "repeating mark-read affects no rows")
}

func TestMarkReadSwallowsBackendFailure(t *testing.T) {
	f := newFakeBackend()
	f.failMarkRead = assert.AnError

	tracker := NewTracker(f, f, testLogger(), nil)
	count := tracker.MarkRead(context.Background(),
		models.ConversationRecord("c1"), models.UserRecord("alice"))
	assert.Equal(t, 0, count)
}

func TestSendTrimsAndRejectsEmpty(t *testing.T) {
	f := newFakeBackend()
	alice := f.addUser("alice", "alice@example.com")
	bob := f.addUser("bob", "bob@example.com")

	ctx := context.Background()
	conv, err := f.GetOrCreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	sender := NewSender(f, testLogger(), nil)

	_, err = sender.Send(ctx, conv, alice.ID, "   \n\t ")
	require.Error(t, err)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	msg, err := sender.Send(ctx, conv, alice.ID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
}

func TestSendRejectsWhileInFlight(t *testing.T) {
	f := newFakeBackend()
	alice := f.addUser("alice", "alice@example.com")
	bob := f.addUser("bob", "bob@example.com")

	ctx := context.Background()
	conv, err := f.GetOrCreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	sender := NewSender(&blockingInserter{backend: f, started: started, release: release},
		testLogger(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := sender.Send(ctx, conv, alice.ID, "slow one")
		assert.NoError(t, err)
	}()

	<-started
	assert.True(t, sender.Sending())

	_, err = sender.Send(ctx, conv, alice.ID, "second")
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	<-done
	assert.False(t, sender.Sending())

	// the rejected send created nothing
	rows, err := f.MessagePage(ctx, conv, 1, 50)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSendWrapsInsertFailure(t *testing.T) {
	f := newFakeBackend()
	f.failInsert = assert.AnError

	sender := NewSender(f, testLogger(), nil)
	_, err := sender.Send(context.Background(),
		models.ConversationRecord("c1"), models.UserRecord("alice"), "hello")

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, sender.Sending(), "in-flight flag must clear on failure")
}

// blockingInserter delays the insert until released so tests can observe
// the in-flight window.
type blockingInserter struct {
	backend *fakeBackend
	started chan struct{}
	release chan struct{}
}

func (b *blockingInserter) InsertMessage(ctx context.Context, conversation, sender surrealmodels.RecordID, content string) (*models.Message, error) {
	close(b.started)
	<-b.release
	return b.backend.InsertMessage(ctx, conversation, sender, content)
}
