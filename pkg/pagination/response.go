package pagination

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Query is the outgoing listing request. Zero Limit and empty Search are
// omitted so the backend sees an unbounded, unfiltered request.
type Query struct {
	Page   int    `schema:"page,omitempty"`
	Limit  int    `schema:"limit,omitempty"`
	Search string `schema:"search,omitempty"`
}

// QueryFor builds the request for p. Search mode omits the limit.
func QueryFor(p PaginationState) Query {
	limit, _ := p.Limit()
	return Query{
		Page:   p.Page,
		Limit:  limit,
		Search: p.Search,
	}
}

// Echo is the pagination block a backend sends back with a page.
type Echo struct {
	Page   int
	Limit  *int
	Search *string
}

// ListResponse is the normalized form of every listing response shape.
type ListResponse[T any] struct {
	Rows     []T
	Echo     *Echo
	Metadata *Metadata
}

type wirePagination struct {
	Page       int     `json:"page"`
	Limit      *int    `json:"limit"`
	Search     *string `json:"search"`
	TotalItems *int    `json:"totalItems"`
	TotalPages *int    `json:"totalPages"`
}

type wireEnvelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination *wirePagination `json:"pagination"`
}

// DecodeListResponse normalizes a `{data, pagination?}` envelope or a bare
// array into a ListResponse. A missing or non-array data field yields no rows.
// Metadata is set only when both totals are present.
func DecodeListResponse[T any](body []byte) (*ListResponse[T], error) {
	body = bytes.TrimSpace(body)
	resp := &ListResponse[T]{Rows: []T{}}
	if len(body) == 0 {
		return resp, nil
	}

	if body[0] == '[' {
		if err := json.Unmarshal(body, &resp.Rows); err != nil {
			return nil, fmt.Errorf("decode list rows: %w", err)
		}
		return resp, nil
	}

	var env wireEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode list envelope: %w", err)
	}

	if data := bytes.TrimSpace(env.Data); len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &resp.Rows); err != nil {
			return nil, fmt.Errorf("decode list rows: %w", err)
		}
	}

	if p := env.Pagination; p != nil {
		resp.Echo = &Echo{
			Page:   p.Page,
			Limit:  p.Limit,
			Search: p.Search,
		}
		if p.TotalItems != nil && p.TotalPages != nil {
			resp.Metadata = &Metadata{
				TotalItems: *p.TotalItems,
				TotalPages: *p.TotalPages,
			}
		}
	}

	return resp, nil
}

// TotalPagesFor returns ceil(totalItems/limit); 0 when either is not positive.
func TotalPagesFor(totalItems, limit int) int {
	if limit <= 0 || totalItems <= 0 {
		return 0
	}
	n := totalItems / limit
	if totalItems%limit != 0 {
		n++
	}
	return n
}
