// Package client provides the HTTP transport for the RelaxFlow admin API with
// rate limiting, response caching, retries and error handling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/relaxflow-admin/pkg/cache"
	"github.com/Sternrassler/relaxflow-admin/pkg/ratelimit"
)

// Prometheus metrics for backend requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaxflow_requests_total",
		Help: "Total backend requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaxflow_request_duration_seconds",
		Help:    "Backend request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaxflow_errors_total",
		Help: "Total backend errors by class",
	}, []string{"class"})
)

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Config holds the client configuration.
type Config struct {
	// BaseURL of the backend, e.g. "https://api.relaxflow.app".
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// UserAgent header (required).
	UserAgent string

	// Timeout per HTTP round trip.
	Timeout time.Duration

	// MaxRetries caps attempts per request for every error class when > 0.
	MaxRetries int

	// Redis enables the response cache and shares rate limit state. Optional.
	Redis *redis.Client
}

// DefaultConfig returns a configuration with sane timeouts and retries.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// Client talks to the admin API.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	cacheScope  string
	config      Config
	logger      zerolog.Logger
	retryPolicy func(ErrorClass) RetryConfig
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "relaxflow-client").Logger()

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     base,
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logger),
		cacheScope:  cache.ScopeForToken(cfg.Token),
		config:      cfg,
		logger:      logger,
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}

	maxRetries := cfg.MaxRetries
	c.retryPolicy = func(class ErrorClass) RetryConfig {
		rc := RetryConfigForErrorClass(class)
		if maxRetries > 0 {
			rc.MaxAttempts = maxRetries
		}
		return rc
	}

	return c, nil
}

// Do performs an HTTP request with rate limiting, caching, retries and
// metrics. Responses with status >= 400 that are not retried are returned
// to the caller as-is.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		c.logger.Warn().Str("endpoint", endpoint).Msg("Request blocked by rate limiter")
		requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, ErrRateLimited
	}

	cacheable := c.cache != nil && req.Method == http.MethodGet
	cacheKey := cache.CacheKey{
		Path:        endpoint,
		QueryParams: req.URL.Query(),
		Scope:       c.cacheScope,
	}

	var cachedEntry *cache.CacheEntry
	if cacheable {
		cachedEntry, err = c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if cachedEntry != nil && cachedEntry.Revalidatable() {
			cache.AddConditionalHeaders(req, cachedEntry)
			cache.ConditionalRequestsSent.Inc()
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", cachedEntry.ETag).
				Msg("Making conditional request")
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("Executing request")

	var resp *http.Response
	attempt := func() (ErrorClass, error) {
		attemptReq, err := rewind(req)
		if err != nil {
			return "", err
		}

		r, err := c.httpClient.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return ErrorClassNetwork, &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
		}

		if err := c.rateLimiter.UpdateFromHeaders(ctx, r.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode)).Inc()

		class := classify(r.StatusCode)
		if class == "" {
			resp = r
			return "", nil
		}

		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", r.StatusCode).
			Str("error_class", string(class)).
			Msg("Request error")

		if !shouldRetry(class) {
			resp = r
			return "", nil
		}

		body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
		r.Body.Close()
		return class, &APIError{
			StatusCode: r.StatusCode,
			ErrorClass: class,
			Message:    errorMessage(r.StatusCode, r.Status, body),
		}
	}

	if isIdempotent(req.Method) {
		err = c.retryWithBackoff(ctx, attempt)
	} else {
		_, err = attempt()
	}
	if err != nil {
		return nil, err
	}

	if c.cache != nil && isMutation(req.Method) && resp.StatusCode < http.StatusBadRequest {
		c.invalidate(ctx, endpoint)
	}

	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()
		resp.Body.Close()

		if err := c.cache.Revalidate(ctx, cacheKey, cachedEntry, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh revalidated cache entry")
		}
		return cache.EntryToResponse(cachedEntry, req), nil
	}

	if cacheable && cache.Cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// invalidate drops cached listings and records of the collection a mutation
// touched.
func (c *Client) invalidate(ctx context.Context, endpoint string) {
	path := cache.CollectionOf(endpoint)
	n, err := c.cache.InvalidatePath(ctx, path)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("Cache invalidation failed")
		return
	}
	c.logger.Debug().Str("path", path).Int("keys", n).Msg("Invalidated cached listings")
}

// rewind returns a copy of req with a fresh body for another attempt.
func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		r.Body = body
	}
	return r, nil
}

// NewRequest builds a request against the base URL. A non-nil body is
// encoded as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Fetch sends a request and returns the response body. Status codes >= 400
// become an *APIError carrying the server's message.
func (c *Client) Fetch(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	req, err := c.NewRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: classify(resp.StatusCode),
			Message:    errorMessage(resp.StatusCode, resp.Status, data),
		}
	}

	return data, nil
}

// Send is Fetch followed by decoding the JSON response into out.
// out may be nil.
func (c *Client) Send(ctx context.Context, method, path string, query url.Values, body, out any) error {
	data, err := c.Fetch(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.Fetch(ctx, http.MethodGet, path, query, nil)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Send(ctx, http.MethodPost, path, nil, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Send(ctx, http.MethodPut, path, nil, body, out)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Send(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetRetryPolicy overrides the per-class retry configuration (for testing).
func (c *Client) SetRetryPolicy(policy func(ErrorClass) RetryConfig) {
	c.retryPolicy = policy
}
