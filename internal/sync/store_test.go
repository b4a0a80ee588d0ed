package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/models"
)

func msg(id string, at time.Time) models.Message {
	return models.Message{
		ID:           surrealmodels.NewRecordID("message", id),
		Conversation: models.ConversationRecord("c1"),
		Sender:       models.UserRecord("u1"),
		Content:      "msg " + id,
		CreatedAt:    at,
	}
}

func TestStoreReplaceRejectsStaleEpoch(t *testing.T) {
	store := NewStore[models.Conversation]()
	key := ConversationListKey

	epoch := store.Epoch(key)
	store.Invalidate(key)

	ok := store.Replace(key, epoch, []models.Conversation{{ID: models.ConversationRecord("c1")}})
	assert.False(t, ok, "replace with pre-invalidation epoch must be discarded")

	_, ready := store.Snapshot(key)
	assert.False(t, ready)

	ok = store.Replace(key, store.Epoch(key), []models.Conversation{{ID: models.ConversationRecord("c1")}})
	require.True(t, ok)

	items, ready := store.Snapshot(key)
	assert.True(t, ready)
	assert.Len(t, items, 1)
}

func TestStoreInvalidateSignalsAndCoalesces(t *testing.T) {
	store := NewStore[models.Message]()
	key := MessagesKey(models.ConversationRecord("c1"))

	watch := store.Watch(key)
	defer store.Unwatch(key, watch)

	store.Invalidate(key)
	store.Invalidate(key)
	store.Invalidate(key)

	// three invalidations collapse into one pending signal
	select {
	case <-watch:
	default:
		t.Fatal("expected a pending invalidation signal")
	}
	select {
	case <-watch:
		t.Fatal("signals must coalesce, got a second one")
	default:
	}
}

func TestStoreUnwatchStopsSignals(t *testing.T) {
	store := NewStore[models.Message]()
	key := MessagesKey(models.ConversationRecord("c1"))

	watch := store.Watch(key)
	store.Unwatch(key, watch)
	store.Invalidate(key)

	select {
	case <-watch:
		t.Fatal("unwatched channel must not receive signals")
	default:
	}
}

func TestFlattenMessagesDedupesOverlapAndSortsAscending(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m1 := msg("m1", base.Add(1*time.Second))
	m2 := msg("m2", base.Add(2*time.Second))
	m3 := msg("m3", base.Add(3*time.Second))
	m4 := msg("m4", base.Add(4*time.Second))

	// pages arrive newest-first; a row inserted mid-pagination repeats m2
	pages := [][]models.Message{
		{m4, m3, m2},
		{m2, m1},
	}

	flat := FlattenMessages(pages)
	require.Len(t, flat, 4)
	for i := 1; i < len(flat); i++ {
		assert.True(t, flat[i-1].Before(flat[i]),
			"messages must be in ascending chronological order")
	}
	assert.Equal(t, "m1", flat[0].ID.ID)
	assert.Equal(t, "m4", flat[3].ID.ID)
}

func TestFlattenMessagesTieBreaksOnID(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := msg("ma", at)
	b := msg("mb", at)

	flat := FlattenMessages([][]models.Message{{b, a}})
	require.Len(t, flat, 2)
	assert.Equal(t, "ma", flat[0].ID.ID)
	assert.Equal(t, "mb", flat[1].ID.ID)
}

func TestFlattenConversationsKeepsFetchOrder(t *testing.T) {
	c1 := models.Conversation{ID: models.ConversationRecord("c1")}
	c2 := models.Conversation{ID: models.ConversationRecord("c2")}
	c3 := models.Conversation{ID: models.ConversationRecord("c3")}

	flat := FlattenConversations([][]models.Conversation{
		{c1, c2},
		{c2, c3},
	})
	require.Len(t, flat, 3)
	assert.Equal(t, "c1", flat[0].ID.ID)
	assert.Equal(t, "c2", flat[1].ID.ID)
	assert.Equal(t, "c3", flat[2].ID.ID)
}
