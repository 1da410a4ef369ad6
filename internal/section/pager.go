package section

import (
	"context"
	"errors"
	"sync"

	"mediahub.dev/portal/internal/content"
)

// ErrLoadInProgress is returned when LoadMore is called while a load is running.
var ErrLoadInProgress = errors.New("section: load already in progress")

// Pager tracks offset-based paging of a list.
type Pager struct {
	PageSize int
	Offset   int
	HasMore  bool
}

// NewPager starts a pager at offset zero.
func NewPager(pageSize int) Pager {
	if pageSize <= 0 {
		pageSize = content.PageSize
	}
	return Pager{PageSize: pageSize, HasMore: true}
}

// Advance records a received page. A short page ends the list.
func (p *Pager) Advance(received int) {
	if received < 0 {
		received = 0
	}
	p.Offset += received
	if received < p.PageSize {
		p.HasMore = false
	}
}

// PageFunc loads limit items starting at offset.
type PageFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// Feed accumulates pages of T.
type Feed[T any] struct {
	mu      sync.Mutex
	items   []T
	pager   Pager
	loading bool
}

// NewFeed seeds a feed with its first page.
func NewFeed[T any](first []T, pageSize int) *Feed[T] {
	f := &Feed[T]{pager: NewPager(pageSize)}
	f.items = append(f.items, first...)
	f.pager.Advance(len(first))
	return f
}

// LoadMore appends the next page and returns the new items. A finished feed returns
// nothing without calling fetch.
func (f *Feed[T]) LoadMore(ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		return nil, ErrLoadInProgress
	}
	if !f.pager.HasMore || fetch == nil {
		f.mu.Unlock()
		return nil, nil
	}
	f.loading = true
	offset, limit := f.pager.Offset, f.pager.PageSize
	f.mu.Unlock()

	next, err := fetch(ctx, offset, limit)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
	if err != nil {
		return nil, err
	}
	f.items = append(f.items, next...)
	f.pager.Advance(len(next))
	return next, nil
}

// Items returns a copy of everything loaded so far.
func (f *Feed[T]) Items() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]T(nil), f.items...)
}

// Pager returns the current paging state.
func (f *Feed[T]) Pager() Pager {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pager
}

// Loading reports whether a load is running.
func (f *Feed[T]) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}
