package pagination

import (
	"sync"

	"github.com/rs/zerolog"
)

// Store holds the listing state for one collection and serializes updates.
type Store[T Record] struct {
	mu        sync.Mutex
	state     State[T]
	listeners []func(State[T])

	// generation of the most recent fetch; older fetches are stale
	generation uint64

	logger zerolog.Logger
}

// NewStore creates a store holding the initial listing state.
func NewStore[T Record](logger zerolog.Logger) *Store[T] {
	return &Store[T]{
		state:  NewState[T](),
		logger: logger,
	}
}

// State returns a snapshot of the current state.
func (s *Store[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update replaces the state with fn(current) and notifies subscribers.
func (s *Store[T]) Update(fn func(State[T]) State[T]) State[T] {
	s.mu.Lock()
	s.state = fn(s.state)
	next := s.state
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(next, listeners)
	return next
}

func (s *Store[T]) notify(next State[T], listeners []func(State[T])) {
	s.logger.Debug().
		Int("page", next.Pagination.Page).
		Int("total_pages", next.TotalPages).
		Int("total_items", next.TotalItems).
		Bool("search_mode", next.Pagination.InSearchMode()).
		Bool("has_prev_page", next.HasPrevPage).
		Bool("has_next_page", next.HasNextPage).
		Bool("is_loading", next.IsLoading).
		Msg("Listing state updated")

	for _, l := range listeners {
		l(next)
	}
}

// Subscribe registers fn to be called with the new state after every update.
func (s *Store[T]) Subscribe(fn func(State[T])) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// beginFetch marks a fetch in flight and returns its generation.
func (s *Store[T]) beginFetch() uint64 {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state = s.state.SetIsLoading(true)
	next := s.state
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(next, listeners)
	return gen
}

// applyIfCurrent runs fn only when gen is still the newest fetch.
func (s *Store[T]) applyIfCurrent(gen uint64, fn func(State[T]) State[T]) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	s.state = fn(s.state)
	next := s.state
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(next, listeners)
	return true
}

// endFetch clears the loading flag unless a newer fetch has started.
func (s *Store[T]) endFetch(gen uint64) {
	s.applyIfCurrent(gen, func(st State[T]) State[T] { return st.SetIsLoading(false) })
}
