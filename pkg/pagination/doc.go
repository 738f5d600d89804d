// Package pagination holds listing state for admin collections and the
// coordinator that keeps it in sync with the backend.
//
// State is a value: every transition returns a new State. A listing is in
// one of two modes:
//
//   - Paged{Limit}: fixed-size pages, HasPrevPage/HasNextPage follow the page
//     and TotalPages.
//   - Search{}: every matching row is fetched at once and both navigation
//     flags stay false.
//
// Totals only change through SetPaginationMetadata, which is fed by response
// metadata or by Coordinator.FetchCount. They are never derived from the size
// of one page.
//
// Example usage:
//
//	store := pagination.NewStore[api.User](logger)
//	coord := pagination.NewCoordinator("users", users, store, logger)
//	coord.InitializePagination(ctx)
//	coord.NextPageAndFetch(ctx)
//	coord.SetSearchAndFetch(ctx, "alice")
//
// BatchFetcher exports a whole collection by fetching its pages with a
// worker pool.
package pagination
