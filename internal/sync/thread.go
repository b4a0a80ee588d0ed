package sync

import (
	"context"
	"sync"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/models"
)

// ThreadView synchronizes one conversation's message thread: initial page
// fetch, live subscription, read marking, pagination, and sends. Lifecycle:
//
//	Closed -> Opening (fetch page 1 + subscribe + mark-read) -> Open
//	Open -> Closing (unsubscribe) -> Closed
//
// A fetch or subscribe failure during Opening moves the view to Errored,
// terminal until Retry re-enters Opening. Close releases the subscription
// synchronously before any new Opening is allowed for the same scope.
type ThreadView struct {
	conversation surrealmodels.RecordID
	orch         *Orchestrator
	tracker      *Tracker
	sender       *Sender
	listener     *Listener

	// life serializes Open and Close so a Close racing a slow Open waits
	// for the mount to finish and then tears it down, instead of failing.
	life sync.Mutex

	mu       sync.Mutex
	state    ViewState
	me       surrealmodels.RecordID
	pager    *Pager[models.Message]
	sub      Subscription
	watch    chan struct{}
	loopStop context.CancelFunc
	loopDone chan struct{}
	lastErr  error
}

// ThreadView creates a view over one conversation. The view starts Closed;
// call Open to mount it.
func (o *Orchestrator) ThreadView(conversation surrealmodels.RecordID) *ThreadView {
	tracker := NewTracker(o.backend, o.backend, o.log, o.metrics)
	return &ThreadView{
		conversation: conversation,
		orch:         o,
		tracker:      tracker,
		sender:       NewSender(o.backend, o.log, o.metrics),
		listener:     NewListener(o.stores, tracker, o.log, o.metrics),
		pager: NewPager("messages", o.opts.MessagePageLimit,
			timedFetch(o.metrics, func(ctx context.Context, page, limit int) ([]models.Message, error) {
				return o.backend.MessagePage(ctx, conversation, page, limit)
			})),
	}
}

// Key returns the view's resource key in the shared store.
func (v *ThreadView) Key() string {
	return MessagesKey(v.conversation)
}

// State returns the current lifecycle state.
func (v *ThreadView) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the typed error that moved the view to Errored or failed the
// last load-more, nil otherwise.
func (v *ThreadView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Flags returns the boolean indicators for the UI.
func (v *ThreadView) Flags() Flags {
	v.mu.Lock()
	state := v.state
	v.mu.Unlock()

	return Flags{
		IsLoading:      state == StateOpening,
		IsFetchingMore: v.pager.Fetching(),
		IsError:        state == StateErrored,
		IsSending:      v.sender.Sending(),
	}
}

// HasNextPage reports whether further history may exist.
func (v *ThreadView) HasNextPage() bool {
	return v.pager.HasNextPage()
}

// Snapshot returns the current ordered, de-duplicated thread.
func (v *ThreadView) Snapshot() []models.Message {
	items, _ := v.orch.stores.Messages.Snapshot(v.Key())
	return items
}

// Open mounts the view: resolve the current user, fetch page 1, establish
// the live subscription, and mark the conversation read. Both the fetch and
// the subscription must succeed before the view is Open.
func (v *ThreadView) Open(ctx context.Context) error {
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
		return v.failOpen(&FetchError{Resource: "messages", Err: err})
	}

	v.mu.Lock()
	v.me = user.ID
	v.mu.Unlock()

	if err := v.refresh(ctx); err != nil {
		return v.failOpen(err)
	}

	sub, err := v.orch.backend.SubscribeMessages(ctx, v.conversation)
	if err != nil {
		return v.failOpen(&FetchError{Resource: "messages", Err: err})
	}

	// Best-effort: a failed receipt write never blocks opening
	v.tracker.MarkRead(ctx, v.conversation, user.ID)

	loopCtx, cancel := context.WithCancel(context.Background())
	watch := v.orch.stores.Messages.Watch(v.Key())

	v.mu.Lock()
	v.state = StateOpen
	v.sub = sub
	v.watch = watch
	v.loopStop = cancel
	v.loopDone = make(chan struct{})
	v.mu.Unlock()

	go v.run(loopCtx, sub, watch)

	v.orch.log.Info("thread view open", "conversation", v.conversation)
	return nil
}

// Retry re-enters Opening from the Errored state.
func (v *ThreadView) Retry(ctx context.Context) error {
	return v.Open(ctx)
}

// Close unmounts the view: the live subscription is released synchronously
// and the slot's epoch is bumped so an in-flight fetch that resolves later
// cannot mutate the torn-down slot. A Close concurrent with a slow Open
// waits for the mount to complete and then unmounts it.
func (v *ThreadView) Close(ctx context.Context) error {
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
	sub := v.sub
	watch := v.watch
	stop := v.loopStop
	done := v.loopDone
	v.mu.Unlock()

	killErr := sub.Kill(ctx)
	stop()
	<-done

	v.orch.stores.Messages.Unwatch(v.Key(), watch)
	v.orch.stores.Messages.Invalidate(v.Key())
	v.pager.Reset()

	v.mu.Lock()
	v.state = StateClosed
	v.sub = nil
	v.watch = nil
	v.loopStop = nil
	v.loopDone = nil
	v.mu.Unlock()

	v.orch.log.Info("thread view closed", "conversation", v.conversation)
	return killErr
}

// LoadMore fetches the next history page if one may exist. A call while a
// fetch is in flight or after the terminal page is a no-op.
func (v *ThreadView) LoadMore(ctx context.Context) error {
	v.mu.Lock()
	if v.state != StateOpen {
		v.mu.Unlock()
		return nil
	}
	me := v.me
	v.mu.Unlock()

	epoch := v.orch.stores.Messages.Epoch(v.Key())
	loaded, pages, err := v.pager.LoadMore(ctx)
	if err != nil {
		v.mu.Lock()
		v.lastErr = err
		v.mu.Unlock()
		return err
	}
	if !loaded {
		return nil
	}

	items := FlattenMessages(pages)
	items, err = v.tracker.StampReadFlags(ctx, items, me)
	if err != nil {
		fetchErr := &FetchError{Resource: "messages", Err: err}
		v.mu.Lock()
		v.lastErr = fetchErr
		v.mu.Unlock()
		return fetchErr
	}

	v.orch.stores.Messages.Replace(v.Key(), epoch, items)
	return nil
}

// Send creates a message in this conversation and invalidates both the
// thread slot and the conversation list so denormalized last-message fields
// refresh. The message becomes visible on the subsequent refetch.
func (v *ThreadView) Send(ctx context.Context, content string) error {
	v.mu.Lock()
	if v.state != StateOpen {
		v.mu.Unlock()
		return ErrViewNotOpen
	}
	me := v.me
	v.mu.Unlock()

	if _, err := v.sender.Send(ctx, v.conversation, me, content); err != nil {
		return err
	}

	v.orch.stores.Messages.Invalidate(v.Key())
	v.orch.stores.Conversations.Invalidate(ConversationListKey)
	return nil
}

// failOpen records the typed error and moves the view to Errored.
func (v *ThreadView) failOpen(err error) error {
	v.mu.Lock()
	v.state = StateErrored
	v.lastErr = err
	v.mu.Unlock()
	v.orch.log.Warn("thread view open failed", "conversation", v.conversation, "error", err)
	return err
}

// run is the view's event loop: live events invalidate, invalidation
// signals refetch. It exits when the subscription closes or Close cancels
// the context.
func (v *ThreadView) run(ctx context.Context, sub Subscription, watch chan struct{}) {
	v.mu.Lock()
	done := v.loopDone
	me := v.me
	v.mu.Unlock()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				v.feedLost()
				return
			}
			v.listener.HandleThreadEvent(ctx, v.conversation, me, ev)
		case <-watch:
			if err := v.refreshStamped(ctx, me); err != nil {
				v.orch.log.Warn("thread refresh failed", "conversation", v.conversation, "error", err)
			}
		}
	}
}

// feedLost handles the live event channel closing on its own while the
// view is Open. The view unmounts itself and moves to Errored so the UI
// offers Retry instead of rendering a snapshot no feed keeps fresh. A
// no-op when Close already started the teardown.
func (v *ThreadView) feedLost() {
	v.mu.Lock()
	if v.state != StateOpen {
		v.mu.Unlock()
		return
	}
	sub := v.sub
	stop := v.loopStop
	v.state = StateErrored
	v.lastErr = &FetchError{Resource: "messages", Err: ErrFeedClosed}
	v.orch.stores.Messages.Unwatch(v.Key(), v.watch)
	v.orch.stores.Messages.Invalidate(v.Key())
	v.pager.Reset()
	v.sub = nil
	v.watch = nil
	v.loopStop = nil
	v.loopDone = nil
	v.mu.Unlock()

	stop()
	_ = sub.Kill(context.Background())
	v.orch.log.Warn("live message feed closed, thread view errored", "conversation", v.conversation)
}

// refresh performs a full refetch from page 1 through the current cursor
// and structurally replaces the slot, stamping read flags for the view's
// reader when known.
func (v *ThreadView) refresh(ctx context.Context) error {
	v.mu.Lock()
	me := v.me
	v.mu.Unlock()
	return v.refreshStamped(ctx, me)
}

func (v *ThreadView) refreshStamped(ctx context.Context, me surrealmodels.RecordID) error {
	key := v.Key()
	epoch := v.orch.stores.Messages.Epoch(key)

	pages, err := v.pager.Refresh(ctx)
	if err != nil {
		return err
	}

	items := FlattenMessages(pages)
	items, err = v.tracker.StampReadFlags(ctx, items, me)
	if err != nil {
		return &FetchError{Resource: "messages", Err: err}
	}

	if !v.orch.stores.Messages.Replace(key, epoch, items) {
		v.orch.log.Debug("discarded stale thread refetch", "conversation", v.conversation)
	}
	return nil
}
