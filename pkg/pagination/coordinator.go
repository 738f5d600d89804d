package pagination

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for listing operations.
var (
	listFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaxflow_list_fetches_total",
		Help: "Total list fetches by collection and outcome",
	}, []string{"collection", "outcome"})

	listStaleResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaxflow_list_stale_responses_total",
		Help: "Total list responses discarded because a newer fetch had started",
	}, []string{"collection"})
)

// fallbackErrorMessage is stored when a failed fetch carries no message.
const fallbackErrorMessage = "An error occurred"

// ErrNotFound marks an empty listing. Listers may wrap it instead of
// returning an error exposing HTTPStatus.
var ErrNotFound = errors.New("not found")

// Lister is the remote listing endpoint of a collection.
type Lister[T any] interface {
	List(ctx context.Context, q Query) (*ListResponse[T], error)
}

// Mutator is the create/update/delete side of a collection.
type Mutator[T any] interface {
	Create(ctx context.Context, body any) (T, error)
	Update(ctx context.Context, id int64, body any) (T, error)
	Delete(ctx context.Context, id int64) error
}

// Source is a collection that can be listed and mutated.
type Source[T any] interface {
	Lister[T]
	Mutator[T]
}

// IsNotFound reports whether err means the listing has no results.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var se interface{ HTTPStatus() int }
	return errors.As(err, &se) && se.HTTPStatus() == http.StatusNotFound
}

// Coordinator turns listing intents into remote fetches and store updates.
// None of its methods return errors: failures end up in State.Err or the log.
type Coordinator[T Record] struct {
	source     Source[T]
	store      *Store[T]
	collection string
	logger     zerolog.Logger
}

// NewCoordinator creates a coordinator for one collection.
func NewCoordinator[T Record](collection string, source Source[T], store *Store[T], logger zerolog.Logger) *Coordinator[T] {
	return &Coordinator[T]{
		source:     source,
		store:      store,
		collection: collection,
		logger:     logger.With().Str("collection", collection).Logger(),
	}
}

// Store returns the store the coordinator writes to.
func (c *Coordinator[T]) Store() *Store[T] {
	return c.store
}

// FetchList fetches one page. With nil params the committed pagination state
// is used. It returns the normalized response, or nil when the fetch failed
// or found nothing.
func (c *Coordinator[T]) FetchList(ctx context.Context, params *PaginationState) *ListResponse[T] {
	gen := c.store.beginFetch()
	defer c.store.endFetch(gen)

	requested := c.store.State().Pagination
	if params != nil {
		requested = *params
	}
	q := QueryFor(requested)

	resp, err := c.source.List(ctx, q)
	if err != nil {
		if IsNotFound(err) {
			c.logger.Debug().Int("page", q.Page).Str("search", q.Search).Msg("Listing not found, treating as empty")
			c.apply(gen, "not_found", func(st State[T]) State[T] {
				return st.SetRows(nil).
					SetPaginationMetadata(Metadata{}).
					SetError(nil)
			})
			return nil
		}

		msg := err.Error()
		if msg == "" {
			msg = fallbackErrorMessage
		}
		c.logger.Error().Err(err).Int("page", q.Page).Msg("List fetch failed")
		c.apply(gen, "error", func(st State[T]) State[T] {
			return st.SetError(&msg)
		})
		return nil
	}

	c.apply(gen, "success", func(st State[T]) State[T] {
		st = st.SetRows(resp.Rows)
		if resp.Echo == nil {
			// no server metadata: keep the requested params, never infer totals
			return st.SetPagination(patchFor(requested))
		}
		st = st.SetPagination(echoPatch(resp.Echo, requested))
		if md := resp.Metadata; md != nil && (md.TotalItems != st.TotalItems || md.TotalPages != st.TotalPages) {
			st = st.SetPaginationMetadata(*md)
		}
		return st
	})

	return resp
}

func (c *Coordinator[T]) apply(gen uint64, outcome string, fn func(State[T]) State[T]) {
	if !c.store.applyIfCurrent(gen, fn) {
		listStaleResponsesTotal.WithLabelValues(c.collection).Inc()
		c.logger.Debug().Str("outcome", outcome).Msg("Discarding stale list response")
		return
	}
	listFetchesTotal.WithLabelValues(c.collection, outcome).Inc()
}

// FetchCount learns the collection size by listing page 1 without a limit,
// then stores totals computed against the current page size.
func (c *Coordinator[T]) FetchCount(ctx context.Context) {
	resp, err := c.source.List(ctx, Query{Page: 1})
	if err != nil {
		if IsNotFound(err) {
			c.store.Update(func(st State[T]) State[T] {
				return st.SetPaginationMetadata(Metadata{})
			})
			return
		}
		c.logger.Error().Err(err).Msg("Count fetch failed")
		return
	}

	totalItems := len(resp.Rows)
	if resp.Metadata != nil {
		totalItems = resp.Metadata.TotalItems
	}

	st := c.store.Update(func(st State[T]) State[T] {
		return st.SetPaginationMetadata(Metadata{
			TotalItems: totalItems,
			TotalPages: totalPagesForMode(totalItems, st.Pagination),
		})
	})

	c.logger.Debug().
		Int("total_items", st.TotalItems).
		Int("total_pages", st.TotalPages).
		Msg("Count fetched")
}

// totalPagesForMode returns the page count in paged mode; search mode
// presents everything as one page.
func totalPagesForMode(totalItems int, p PaginationState) int {
	if limit, ok := p.Limit(); ok {
		return TotalPagesFor(totalItems, limit)
	}
	if totalItems > 0 {
		return 1
	}
	return 0
}

// SetSearchAndFetch applies a search term and fetches the first page.
// A blank term returns to paged mode with the default page size.
func (c *Coordinator[T]) SetSearchAndFetch(ctx context.Context, term string) *ListResponse[T] {
	c.store.Update(func(st State[T]) State[T] { return st.SetError(nil) })

	trimmed := strings.TrimSpace(term)
	patch := PaginationPatch{
		Page:   Ptr(1),
		Mode:   Paged{Limit: DefaultLimit},
		Search: Ptr(""),
	}
	if trimmed != "" {
		patch.Mode = Search{}
		patch.Search = Ptr(trimmed)
	}
	c.store.Update(func(st State[T]) State[T] { return st.SetPagination(patch) })

	return c.FetchList(ctx, nil)
}

// InitializePagination fetches the total count, then the first page.
func (c *Coordinator[T]) InitializePagination(ctx context.Context) *ListResponse[T] {
	c.FetchCount(ctx)
	return c.FetchList(ctx, nil)
}

// NextPageAndFetch advances one page and fetches it.
func (c *Coordinator[T]) NextPageAndFetch(ctx context.Context) *ListResponse[T] {
	c.store.Update(State[T].NextPage)
	return c.FetchList(ctx, nil)
}

// PrevPageAndFetch moves back one page and fetches it.
func (c *Coordinator[T]) PrevPageAndFetch(ctx context.Context) *ListResponse[T] {
	c.store.Update(State[T].PrevPage)
	return c.FetchList(ctx, nil)
}

// GoToPageAndFetch jumps to page n and fetches it.
func (c *Coordinator[T]) GoToPageAndFetch(ctx context.Context, n int) *ListResponse[T] {
	c.store.Update(func(st State[T]) State[T] { return st.GoToPage(n) })
	return c.FetchList(ctx, nil)
}

// CreateAndSync creates a row remotely and appends it locally.
func (c *Coordinator[T]) CreateAndSync(ctx context.Context, body any) (T, bool) {
	row, err := c.source.Create(ctx, body)
	if err != nil {
		c.logger.Error().Err(err).Msg("Create failed")
		var zero T
		return zero, false
	}
	c.store.Update(func(st State[T]) State[T] { return st.AddRow(row) })
	return row, true
}

// UpdateAndSync updates a row remotely and replaces the local copy.
func (c *Coordinator[T]) UpdateAndSync(ctx context.Context, id int64, body any) (T, bool) {
	row, err := c.source.Update(ctx, id, body)
	if err != nil {
		c.logger.Error().Err(err).Int64("id", id).Msg("Update failed")
		var zero T
		return zero, false
	}
	c.store.Update(func(st State[T]) State[T] {
		return st.UpdateRow(id, func(T) T { return row })
	})
	return row, true
}

// DeleteAndSync deletes a row remotely and drops it locally.
func (c *Coordinator[T]) DeleteAndSync(ctx context.Context, id int64) bool {
	if err := c.source.Delete(ctx, id); err != nil {
		c.logger.Error().Err(err).Int64("id", id).Msg("Delete failed")
		return false
	}
	c.store.Update(func(st State[T]) State[T] { return st.DeleteRow(id) })
	return true
}

// patchFor turns a full pagination state into a patch that reproduces it.
func patchFor(p PaginationState) PaginationPatch {
	return PaginationPatch{
		Page:   Ptr(p.Page),
		Mode:   p.Mode,
		Search: Ptr(p.Search),
	}
}

// echoPatch applies the server's echo of page, limit and search. The mode
// stays as requested: an echoed limit only resizes pages in paged mode.
func echoPatch(e *Echo, requested PaginationState) PaginationPatch {
	patch := PaginationPatch{
		Page:   Ptr(requested.Page),
		Mode:   requested.Mode,
		Search: Ptr(requested.Search),
	}
	if e.Page > 0 {
		patch.Page = Ptr(e.Page)
	}
	if e.Search != nil {
		patch.Search = Ptr(*e.Search)
	}
	if _, paged := requested.Limit(); paged && e.Limit != nil && *e.Limit > 0 {
		patch.Mode = Paged{Limit: *e.Limit}
	}
	return patch
}
