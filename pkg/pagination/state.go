package pagination

import (
	"slices"
)

// DefaultLimit is the page size used by paged mode when nothing else is requested.
const DefaultLimit = 10

// Mode selects how a listing is fetched. It is either Paged or Search.
type Mode interface {
	isMode()
}

// Paged fetches fixed-size pages and enables page navigation.
type Paged struct {
	Limit int
}

// Search fetches every matching row unbounded; page navigation is disabled.
type Search struct{}

func (Paged) isMode()  {}
func (Search) isMode() {}

// Record is a list row that can be matched by identity.
type Record interface {
	RecordID() int64
}

// PaginationState is the request-facing part of a listing.
type PaginationState struct {
	Page   int
	Mode   Mode
	Search string
}

// Limit returns the page size and true in paged mode, or 0 and false in search mode.
func (p PaginationState) Limit() (int, bool) {
	switch m := p.Mode.(type) {
	case Paged:
		return m.Limit, true
	default:
		return 0, false
	}
}

// InSearchMode reports whether pagination controls are disabled.
func (p PaginationState) InSearchMode() bool {
	_, paged := p.Limit()
	return !paged
}

// DefaultPagination returns page 1 of the default page size with no filter.
func DefaultPagination() PaginationState {
	return PaginationState{
		Page:   1,
		Mode:   Paged{Limit: DefaultLimit},
		Search: "",
	}
}

// PaginationPatch is a partial update of PaginationState.
// Nil fields keep their current value.
type PaginationPatch struct {
	Page   *int
	Mode   Mode
	Search *string
}

// Metadata describes the full result set beyond the current page.
type Metadata struct {
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// State is the complete listing state consumed by views.
//
// HasNextPage and HasPrevPage are derived; every transition that touches
// the page, the totals or the mode recomputes them.
type State[T Record] struct {
	Pagination  PaginationState
	Rows        []T
	IsLoading   bool
	Err         *string
	TotalItems  int
	TotalPages  int
	HasNextPage bool
	HasPrevPage bool
}

// NewState returns the initial listing state.
func NewState[T Record]() State[T] {
	return State[T]{
		Pagination: DefaultPagination(),
		Rows:       []T{},
	}
}

// ErrorMessage returns the stored error message and whether one is set.
func (s State[T]) ErrorMessage() (string, bool) {
	if s.Err == nil {
		return "", false
	}
	return *s.Err, true
}

func (s State[T]) recompute() State[T] {
	if s.Pagination.InSearchMode() {
		s.HasPrevPage = false
		s.HasNextPage = false
		return s
	}
	s.HasPrevPage = s.Pagination.Page > 1
	s.HasNextPage = s.TotalPages > 0 && s.Pagination.Page < s.TotalPages
	return s
}

// SetRows replaces the current rows.
func (s State[T]) SetRows(rows []T) State[T] {
	if rows == nil {
		rows = []T{}
	}
	s.Rows = rows
	return s
}

// SetPagination merges patch into the pagination state.
func (s State[T]) SetPagination(patch PaginationPatch) State[T] {
	if patch.Page != nil {
		s.Pagination.Page = *patch.Page
	}
	if patch.Mode != nil {
		s.Pagination.Mode = patch.Mode
	}
	if patch.Search != nil {
		s.Pagination.Search = *patch.Search
	}
	return s.recompute()
}

// NextPage advances one page when a next page is known to exist.
func (s State[T]) NextPage() State[T] {
	if s.Pagination.InSearchMode() || !s.HasNextPage {
		return s
	}
	s.Pagination.Page++
	return s.recompute()
}

// PrevPage moves back one page, never below page 1.
func (s State[T]) PrevPage() State[T] {
	if s.Pagination.InSearchMode() || !s.HasPrevPage {
		return s
	}
	s.Pagination.Page = max(1, s.Pagination.Page-1)
	return s.recompute()
}

// GoToPage jumps to page n. Pages past TotalPages are allowed.
func (s State[T]) GoToPage(n int) State[T] {
	if s.Pagination.InSearchMode() {
		return s
	}
	s.Pagination.Page = max(1, n)
	return s.recompute()
}

// SetPaginationMetadata stores server-side totals.
func (s State[T]) SetPaginationMetadata(md Metadata) State[T] {
	s.TotalItems = md.TotalItems
	s.TotalPages = md.TotalPages
	return s.recompute()
}

// ResetPagination returns to page 1 of the default page size with no filter.
// Totals are kept.
func (s State[T]) ResetPagination() State[T] {
	s.Pagination = DefaultPagination()
	s.HasPrevPage = false
	s.HasNextPage = false
	return s
}

// SetIsLoading sets the loading flag.
func (s State[T]) SetIsLoading(loading bool) State[T] {
	s.IsLoading = loading
	return s
}

// SetError stores msg; nil clears the error.
func (s State[T]) SetError(msg *string) State[T] {
	s.Err = msg
	return s
}

// AddRow appends row.
func (s State[T]) AddRow(row T) State[T] {
	rows := make([]T, 0, len(s.Rows)+1)
	rows = append(rows, s.Rows...)
	s.Rows = append(rows, row)
	return s
}

// UpdateRow applies patch to the first row whose id matches.
func (s State[T]) UpdateRow(id int64, patch func(T) T) State[T] {
	i := slices.IndexFunc(s.Rows, func(r T) bool { return r.RecordID() == id })
	if i < 0 {
		return s
	}
	rows := slices.Clone(s.Rows)
	rows[i] = patch(rows[i])
	s.Rows = rows
	return s
}

// DeleteRow removes every row whose id matches.
func (s State[T]) DeleteRow(id int64) State[T] {
	rows := make([]T, 0, len(s.Rows))
	for _, r := range s.Rows {
		if r.RecordID() != id {
			rows = append(rows, r)
		}
	}
	s.Rows = rows
	return s
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[V any](v V) *V {
	return &v
}
