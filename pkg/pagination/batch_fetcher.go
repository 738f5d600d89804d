package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BatchConfig holds batch fetcher configuration.
type BatchConfig struct {
	// MaxConcurrency is the maximum number of parallel page requests
	MaxConcurrency int
	// PageSize is the limit sent with every page request
	PageSize int
	// Timeout per page fetch
	Timeout time.Duration
	// MaxPages caps the page count a backend may report before FetchAll
	// refuses to export
	MaxPages int
}

// DefaultBatchConfig returns a conservative configuration for the admin backend.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		PageSize:       50,
		Timeout:        15 * time.Second,
		MaxPages:       1000,
	}
}

// ErrTooManyPages is returned when the backend reports more pages than
// BatchConfig.MaxPages allows.
var ErrTooManyPages = errors.New("too many pages")

// PageResult is the outcome of fetching a single page.
type PageResult[T any] struct {
	PageNumber int
	Rows       []T
	Error      error
}

// BatchFetcher fetches every page of a collection in parallel.
type BatchFetcher[T any] struct {
	lister Lister[T]
	config BatchConfig
	logger zerolog.Logger
}

// NewBatchFetcher creates a batch fetcher, filling in zero config values.
func NewBatchFetcher[T any](lister Lister[T], config BatchConfig, logger zerolog.Logger) *BatchFetcher[T] {
	def := DefaultBatchConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = def.MaxConcurrency
	}
	if config.PageSize <= 0 {
		config.PageSize = def.PageSize
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = def.MaxPages
	}

	return &BatchFetcher[T]{
		lister: lister,
		config: config,
		logger: logger,
	}
}

// FetchAll fetches page 1 to learn the page count, then the remaining pages
// with a worker pool. Rows are returned in page order. When a page fails the
// rows fetched so far are returned together with the error.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context, search string) ([]T, error) {
	start := time.Now()

	first, err := bf.lister.List(ctx, Query{Page: 1, Limit: bf.config.PageSize, Search: search})
	if err != nil {
		if IsNotFound(err) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	totalPages, err := bf.pageCount(first.Metadata)
	if err != nil {
		return first.Rows, err
	}

	bf.logger.Info().
		Int("total_pages", totalPages).
		Int("page_size", bf.config.PageSize).
		Msg("Starting parallel page fetch")

	if totalPages == 1 {
		bf.logger.Info().
			Int("rows", len(first.Rows)).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first.Rows, nil
	}

	pages := map[int][]T{1: first.Rows}

	pageQueue := make(chan int, totalPages)
	results := make(chan PageResult[T], totalPages)

	for page := 2; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(ctx, search, pageQueue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	fetched := 1
	for result := range results {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = result.Error
			}
			continue
		}
		pages[result.PageNumber] = result.Rows
		fetched++
	}

	rows := make([]T, 0, len(first.Rows)*len(pages))
	for page := 1; page <= totalPages; page++ {
		rows = append(rows, pages[page]...)
	}

	if firstErr != nil {
		bf.logger.Warn().
			Err(firstErr).
			Int("fetched_pages", fetched).
			Int("total_pages", totalPages).
			Msg("Page fetch failed - returning partial results")
		return rows, fmt.Errorf("partial data (%d/%d pages): %w", fetched, totalPages, firstErr)
	}

	bf.logger.Info().
		Int("pages", fetched).
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return rows, nil
}

// pageCount derives the number of pages to fetch from page 1's metadata.
// The reported page count is capped by what the reported item count needs at
// the configured page size, and must not exceed MaxPages.
func (bf *BatchFetcher[T]) pageCount(md *Metadata) (int, error) {
	if md == nil || md.TotalPages <= 1 {
		return 1, nil
	}

	n := md.TotalPages
	if needed := TotalPagesFor(md.TotalItems, bf.config.PageSize); n > needed {
		bf.logger.Warn().
			Int("reported_pages", n).
			Int("total_items", md.TotalItems).
			Int("page_size", bf.config.PageSize).
			Msg("Page count exceeds item count, capping")
		n = needed
	}
	if n <= 1 {
		return 1, nil
	}
	if n > bf.config.MaxPages {
		return 0, fmt.Errorf("%w: backend reported %d pages, limit is %d", ErrTooManyPages, n, bf.config.MaxPages)
	}
	return n, nil
}

// worker processes pages from the queue until it is drained or ctx ends.
func (bf *BatchFetcher[T]) worker(ctx context.Context, search string, pageQueue <-chan int, results chan<- PageResult[T], wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for pageNum := range pageQueue {
		if err := ctx.Err(); err != nil {
			results <- PageResult[T]{PageNumber: pageNum, Error: err}
			continue
		}

		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		resp, err := bf.lister.List(pageCtx, Query{Page: pageNum, Limit: bf.config.PageSize, Search: search})
		cancel()

		switch {
		case err != nil && IsNotFound(err):
			results <- PageResult[T]{PageNumber: pageNum, Rows: []T{}}
		case err != nil:
			bf.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Page fetch failed")
			results <- PageResult[T]{PageNumber: pageNum, Error: fmt.Errorf("page %d: %w", pageNum, err)}
		default:
			results <- PageResult[T]{PageNumber: pageNum, Rows: resp.Rows}
			processed++
		}
	}

	bf.logger.Debug().
		Int("worker_id", workerID).
		Int("pages_processed", processed).
		Msg("Worker completed")
}
