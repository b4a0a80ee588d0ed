package sync

import (
	"context"
	"sync"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/models"
)

// ListView synchronizes the conversation list. It follows the same
// lifecycle as ThreadView but holds two subscriptions: conversation-row
// changes touching the current user, and message inserts anywhere (either
// may move a conversation's denormalized last-message fields).
type ListView struct {
	orch     *Orchestrator
	listener *Listener

	// life serializes Open and Close, see ThreadView.
	life sync.Mutex

	mu       sync.Mutex
	state    ViewState
	me       surrealmodels.RecordID
	pager    *Pager[models.Conversation]
	convSub  Subscription
	msgSub   Subscription
	watch    chan struct{}
	loopStop context.CancelFunc
	loopDone chan struct{}
	lastErr  error
}

// ListView creates a conversation-list view. The view starts Closed; call
// Open to mount it.
func (o *Orchestrator) ListView() *ListView {
	tracker := NewTracker(o.backend, o.backend, o.log, o.metrics)
	return &ListView{
		orch:     o,
		listener: NewListener(o.stores, tracker, o.log, o.metrics),
	}
}

// State returns the current lifecycle state.
func (v *ListView) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the typed error that moved the view to Errored or failed the
// last load-more, nil otherwise.
func (v *ListView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Flags returns the boolean indicators for the UI.
func (v *ListView) Flags() Flags {
	v.mu.Lock()
	state := v.state
	pager := v.pager
	v.mu.Unlock()

	flags := Flags{
		IsLoading: state == StateOpening,
		IsError:   state == StateErrored,
	}
	if pager != nil {
		flags.IsFetchingMore = pager.Fetching()
	}
	return flags
}

// HasNextPage reports whether further conversations may exist.
func (v *ListView) HasNextPage() bool {
	v.mu.Lock()
	pager := v.pager
	v.mu.Unlock()
	return pager != nil && pager.HasNextPage()
}

// Snapshot returns the current ordered, de-duplicated conversation list.
func (v *ListView) Snapshot() []models.Conversation {
	items, _ := v.orch.stores.Conversations.Snapshot(ConversationListKey)
	return items
}

// Open mounts the view: resolve the current user, fetch page 1, and
// establish both live subscriptions.
func (v *ListView) Open(ctx context.Context) error {
	v.life.Lock()
	defer v.life.Unlock()

	v.mu.Lock()
	if v.state != StateClosed && v.state != StateErrored {
		v.mu.Unlock()
		return ErrViewNotClosed
	}
	v.state = StateOpening
	v.lastErr = nil
	v.mu.Unlock()

	user, err := v.orch.backend.CurrentUser(ctx)
	if err == nil && user == nil {
		err = ErrAuthUnavailable
	}
	if err != nil {
		return v.failOpen(&FetchError{Resource: "conversations", Err: err})
	}

	me := user.ID
	pager := NewPager("conversations", v.orch.opts.ConversationPageLimit,
		timedFetch(v.orch.metrics, func(ctx context.Context, page, limit int) ([]models.Conversation, error) {
			return v.orch.backend.ConversationPage(ctx, me, page, limit)
		}))

	v.mu.Lock()
	v.me = me
	v.pager = pager
	v.mu.Unlock()

	if err := v.refresh(ctx); err != nil {
		return v.failOpen(err)
	}

	convSub, err := v.orch.backend.SubscribeConversations(ctx, me)
	if err != nil {
		return v.failOpen(&FetchError{Resource: "conversations", Err: err})
	}
	msgSub, err := v.orch.backend.SubscribeAllMessages(ctx)
	if err != nil {
		_ = convSub.Kill(ctx)
		return v.failOpen(&FetchError{Resource: "conversations", Err: err})
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	watch := v.orch.stores.Conversations.Watch(ConversationListKey)

	v.mu.Lock()
	v.state = StateOpen
	v.convSub = convSub
	v.msgSub = msgSub
	v.watch = watch
	v.loopStop = cancel
	v.loopDone = make(chan struct{})
	v.mu.Unlock()

	go v.run(loopCtx, convSub, msgSub, watch)

	v.orch.log.Info("list view open")
	return nil
}

// Retry re-enters Opening from the Errored state.
func (v *ListView) Retry(ctx context.Context) error {
	return v.Open(ctx)
}

// Close unmounts the view, releasing both subscriptions synchronously. A
// Close concurrent with a slow Open waits for the mount to complete and
// then unmounts it.
func (v *ListView) Close(ctx context.Context) error {
	v.life.Lock()
	defer v.life.Unlock()

	v.mu.Lock()
	switch v.state {
	case StateClosed:
		v.mu.Unlock()
		return nil
	case StateErrored:
		v.state = StateClosed
		v.mu.Unlock()
		return nil
	case StateOpen:
		v.state = StateClosing
	default:
		v.mu.Unlock()
		return ErrViewNotOpen
	}
	convSub := v.convSub
	msgSub := v.msgSub
	watch := v.watch
	stop := v.loopStop
	done := v.loopDone
	v.mu.Unlock()

	killErr := convSub.Kill(ctx)
	if err := msgSub.Kill(ctx); killErr == nil {
		killErr = err
	}
	stop()
	<-done

	v.orch.stores.Conversations.Unwatch(ConversationListKey, watch)
	v.orch.stores.Conversations.Invalidate(ConversationListKey)

	v.mu.Lock()
	v.state = StateClosed
	v.pager = nil
	v.convSub = nil
	v.msgSub = nil
	v.watch = nil
	v.loopStop = nil
	v.loopDone = nil
	v.mu.Unlock()

	v.orch.log.Info("list view closed")
	return killErr
}

// LoadMore fetches the next conversations page if one may exist. A call
// while a fetch is in flight or after the terminal page is a no-op.
func (v *ListView) LoadMore(ctx context.Context) error {
	v.mu.Lock()
	if v.state != StateOpen {
		v.mu.Unlock()
		return nil
	}
	pager := v.pager
	v.mu.Unlock()

	epoch := v.orch.stores.Conversations.Epoch(ConversationListKey)
	loaded, pages, err := pager.LoadMore(ctx)
	if err != nil {
		v.mu.Lock()
		v.lastErr = err
		v.mu.Unlock()
		return err
	}
	if !loaded {
		return nil
	}

	v.orch.stores.Conversations.Replace(ConversationListKey, epoch, FlattenConversations(pages))
	return nil
}

func (v *ListView) failOpen(err error) error {
	v.mu.Lock()
	v.state = StateErrored
	v.lastErr = err
	v.mu.Unlock()
	v.orch.log.Warn("list view open failed", "error", err)
	return err
}

// run is the view's event loop. Either subscription closing ends the loop.
func (v *ListView) run(ctx context.Context, convSub, msgSub Subscription, watch chan struct{}) {
	v.mu.Lock()
	done := v.loopDone
	v.mu.Unlock()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-convSub.Events():
			if !ok {
				v.feedLost()
				return
			}
			v.listener.HandleListEvent(ev)
		case ev, ok := <-msgSub.Events():
			if !ok {
				v.feedLost()
				return
			}
			v.listener.HandleListEvent(ev)
		case <-watch:
			if err := v.refresh(ctx); err != nil {
				v.orch.log.Warn("list refresh failed", "error", err)
			}
		}
	}
}

// feedLost handles either live event channel closing on its own while the
// view is Open. The view unmounts itself and moves to Errored so the UI
// offers Retry instead of rendering a snapshot no feed keeps fresh. A
// no-op when Close already started the teardown.
func (v *ListView) feedLost() {
	v.mu.Lock()
	if v.state != StateOpen {
		v.mu.Unlock()
		return
	}
	convSub := v.convSub
	msgSub := v.msgSub
	stop := v.loopStop
	v.state = StateErrored
	v.lastErr = &FetchError{Resource: "conversations", Err: ErrFeedClosed}
	v.orch.stores.Conversations.Unwatch(ConversationListKey, v.watch)
	v.orch.stores.Conversations.Invalidate(ConversationListKey)
	v.pager = nil
	v.convSub = nil
	v.msgSub = nil
	v.watch = nil
	v.loopStop = nil
	v.loopDone = nil
	v.mu.Unlock()

	stop()
	_ = convSub.Kill(context.Background())
	_ = msgSub.Kill(context.Background())
	v.orch.log.Warn("live conversation feed closed, list view errored")
}

// refresh performs a full refetch from page 1 through the current cursor
// and structurally replaces the list slot.
func (v *ListView) refresh(ctx context.Context) error {
	v.mu.Lock()
	pager := v.pager
	v.mu.Unlock()

	epoch := v.orch.stores.Conversations.Epoch(ConversationListKey)
	pages, err := pager.Refresh(ctx)
	if err != nil {
		return err
	}

	if !v.orch.stores.Conversations.Replace(ConversationListKey, epoch, FlattenConversations(pages)) {
		v.orch.log.Debug("discarded stale list refetch")
	}
	return nil
}
