package sync

import (
	"context"
	"sync"
)

// FetchPage issues one page query for a resource. Pages are 1-based;
// results are 0..limit rows in the resource's fetch order.
type FetchPage[T any] func(ctx context.Context, page, limit int) ([]T, error)

// Pager manages the forward-only page cursor for one resource. A page is
// terminal iff it holds fewer rows than the limit; the cursor advances only
// past non-terminal pages. Requests for the same resource are never issued
// concurrently: a LoadMore while a fetch is in flight is a no-op, and a
// Refresh queues behind whatever is running.
type Pager[T any] struct {
	resource string
	limit    int
	fetch    FetchPage[T]

	// fetchMu serializes network fetches; mu guards cursor state.
	fetchMu sync.Mutex
	mu      sync.Mutex

	pages    [][]T
	hasNext  bool
	inFlight bool
}

// NewPager creates a pager for one resource key. The resource name appears
// in fetch errors.
func NewPager[T any](resource string, limit int, fetch FetchPage[T]) *Pager[T] {
	return &Pager[T]{
		resource: resource,
		limit:    limit,
		fetch:    fetch,
		hasNext:  true,
	}
}

// HasNextPage reports whether a further page may exist.
func (p *Pager[T]) HasNextPage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasNext
}

// Fetching reports whether a LoadMore fetch is in flight.
func (p *Pager[T]) Fetching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// PageCount returns the number of pages fetched so far.
func (p *Pager[T]) PageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}

// LoadMore fetches the next page if one may exist and no fetch is in
// flight; otherwise it is a no-op returning (false, nil). The returned
// pages are the accumulated sequence after the fetch. Errors surface as
// *FetchError without advancing the cursor; there is no automatic retry.
func (p *Pager[T]) LoadMore(ctx context.Context) (loaded bool, pages [][]T, err error) {
	p.mu.Lock()
	if !p.hasNext || p.inFlight {
		p.mu.Unlock()
		return false, nil, nil
	}
	p.inFlight = true
	pageNum := len(p.pages) + 1
	p.mu.Unlock()

	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	rows, err := p.fetch(ctx, pageNum, p.limit)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false

	if err != nil {
		return false, nil, &FetchError{Resource: p.resource, Err: err}
	}

	p.pages = append(p.pages, rows)
	p.hasNext = len(rows) == p.limit
	return true, p.snapshotPages(), nil
}

// Refresh refetches every page fetched so far (at least page 1) and
// structurally replaces the accumulated sequence. Used for the initial load
// and after every cache invalidation.
func (p *Pager[T]) Refresh(ctx context.Context) ([][]T, error) {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	p.mu.Lock()
	count := len(p.pages)
	p.mu.Unlock()
	if count == 0 {
		count = 1
	}

	fresh := make([][]T, 0, count)
	hasNext := true
	for pageNum := 1; pageNum <= count; pageNum++ {
		rows, err := p.fetch(ctx, pageNum, p.limit)
		if err != nil {
			return nil, &FetchError{Resource: p.resource, Err: err}
		}
		fresh = append(fresh, rows)
		hasNext = len(rows) == p.limit
		if !hasNext {
			break
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = fresh
	p.hasNext = hasNext
	return p.snapshotPages(), nil
}

// Reset discards the cursor so the next Refresh starts from page 1 only.
func (p *Pager[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = nil
	p.hasNext = true
}

// snapshotPages copies the page slice so callers can flatten without racing
// the cursor. Caller must hold mu.
func (p *Pager[T]) snapshotPages() [][]T {
	out := make([][]T, len(p.pages))
	copy(out, p.pages)
	return out
}
