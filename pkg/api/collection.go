// Package api exposes the admin backend's collections as typed listing and
// mutation endpoints for the pagination coordinator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/relaxflow-admin/pkg/pagination"
)

var (
	validate      = validator.New()
	schemaEncoder = schema.NewEncoder()
)

// Transport performs a request against the backend and returns the body.
// *client.Client satisfies it.
type Transport interface {
	Fetch(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error)
}

// Collection is one REST collection, e.g. /api/v1/users.
type Collection[T pagination.Record] struct {
	name      string
	path      string
	transport Transport
	logger    zerolog.Logger
}

// NewCollection creates a collection rooted at path.
func NewCollection[T pagination.Record](name, path string, transport Transport, logger zerolog.Logger) *Collection[T] {
	return &Collection[T]{
		name:      name,
		path:      path,
		transport: transport,
		logger:    logger.With().Str("collection", name).Logger(),
	}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Path returns the collection path.
func (c *Collection[T]) Path() string { return c.path }

// List fetches one page. A 404 is returned as an error satisfying
// pagination.IsNotFound.
func (c *Collection[T]) List(ctx context.Context, q pagination.Query) (*pagination.ListResponse[T], error) {
	values := url.Values{}
	if err := schemaEncoder.Encode(q, values); err != nil {
		return nil, fmt.Errorf("encode %s query: %w", c.name, err)
	}

	body, err := c.transport.Fetch(ctx, http.MethodGet, c.path, values, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}

	resp, err := pagination.DecodeListResponse[T](body)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}

	c.logger.Debug().
		Int("page", q.Page).
		Int("limit", q.Limit).
		Str("search", q.Search).
		Int("rows", len(resp.Rows)).
		Msg("Listed page")

	return resp, nil
}

// Create posts body and returns the created record.
func (c *Collection[T]) Create(ctx context.Context, body any) (T, error) {
	var zero T
	if err := validateBody(body); err != nil {
		return zero, fmt.Errorf("create %s: %w", c.name, err)
	}

	data, err := c.transport.Fetch(ctx, http.MethodPost, c.path, nil, body)
	if err != nil {
		return zero, fmt.Errorf("create %s: %w", c.name, err)
	}
	return decodeRecord[T](data)
}

// Update replaces the record with id and returns the stored version.
func (c *Collection[T]) Update(ctx context.Context, id int64, body any) (T, error) {
	var zero T
	if err := validateBody(body); err != nil {
		return zero, fmt.Errorf("update %s %d: %w", c.name, id, err)
	}

	data, err := c.transport.Fetch(ctx, http.MethodPut, c.itemPath(id), nil, body)
	if err != nil {
		return zero, fmt.Errorf("update %s %d: %w", c.name, id, err)
	}
	return decodeRecord[T](data)
}

// Delete removes the record with id.
func (c *Collection[T]) Delete(ctx context.Context, id int64) error {
	if _, err := c.transport.Fetch(ctx, http.MethodDelete, c.itemPath(id), nil, nil); err != nil {
		return fmt.Errorf("delete %s %d: %w", c.name, id, err)
	}
	return nil
}

func (c *Collection[T]) itemPath(id int64) string {
	return c.path + "/" + strconv.FormatInt(id, 10)
}

// decodeRecord accepts a `{data: T}` envelope or a bare T.
func decodeRecord[T any](body []byte) (T, error) {
	var zero T
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return zero, fmt.Errorf("empty response body")
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		body = envelope.Data
	}

	var record T
	if err := json.Unmarshal(body, &record); err != nil {
		return zero, fmt.Errorf("decode record: %w", err)
	}
	return record, nil
}

// validateBody checks struct bodies against their validate tags. Other
// bodies (maps, raw JSON) are passed through.
func validateBody(body any) error {
	err := validate.Struct(body)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &ValidationError{Fields: fieldErrors(verrs)}
	}
	return err
}
