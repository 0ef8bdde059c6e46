package cachecheck

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
)

var errBookMissing = errors.New("book missing")

// fakeSource implements Source over in-memory book states
type fakeSource struct {
	mu sync.Mutex

	States  map[int64]*domain.BookCacheState
	Changed []int64
	SaveErr error

	// OnLoad runs after each successful LoadBookCacheState
	OnLoad func(bookID int64)

	SinceSeen []time.Time
	Loaded    []int64
	Saves     [][]domain.CacheFields
}

func newFakeSource() *fakeSource {
	return &fakeSource{States: make(map[int64]*domain.BookCacheState)}
}

func (f *fakeSource) add(state *domain.BookCacheState) {
	f.States[state.Cached.BookID] = state
	f.Changed = append(f.Changed, state.Cached.BookID)
}

func (f *fakeSource) ChangedBookIDs(_ context.Context, since time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SinceSeen = append(f.SinceSeen, since)
	return append([]int64(nil), f.Changed...), nil
}

func (f *fakeSource) LoadBookCacheState(_ context.Context, bookID int64) (*domain.BookCacheState, error) {
	f.mu.Lock()
	state, ok := f.States[bookID]
	if ok {
		f.Loaded = append(f.Loaded, bookID)
	}
	hook := f.OnLoad
	f.mu.Unlock()

	if !ok {
		return nil, errBookMissing
	}
	if hook != nil {
		hook(bookID)
	}
	copied := *state
	return &copied, nil
}

func (f *fakeSource) SaveCacheFields(_ context.Context, fields []domain.CacheFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.Saves = append(f.Saves, fields)
	for _, fx := range fields {
		if s, ok := f.States[fx.BookID]; ok {
			s.Cached = fx
		}
	}
	return nil
}

// recordingReporter implements Reporter and keeps what it was given
type recordingReporter struct {
	mu       sync.Mutex
	Reported []Discrepancy
	FixFlags []bool
}

func (r *recordingReporter) Report(_ context.Context, d Discrepancy, fix bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reported = append(r.Reported, d)
	r.FixFlags = append(r.FixFlags, fix)
}

// failingWatermark implements Watermark with a Set that always fails
type failingWatermark struct {
	MemoryWatermark
}

func (f *failingWatermark) Set(_ context.Context, _ time.Time) error {
	return errors.New("watermark store down")
}
