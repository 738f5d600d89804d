// Package testutil provides an in-memory RelaxFlow admin backend for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/schema"
)

var schemaDecoder = schema.NewDecoder()

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
}

// MockResponse is a canned response for one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Record is a stored JSON object. "id" holds an int64.
type Record = map[string]any

type listQuery struct {
	Page   int    `schema:"page"`
	Limit  int    `schema:"limit"`
	Search string `schema:"search"`
}

type collection struct {
	records []Record
	nextID  int64
	version int
}

// MockBackend serves REST collections from memory: paged and searchable
// GET listings, POST/PUT/DELETE mutations, optional ETag revalidation.
type MockBackend struct {
	server *httptest.Server

	mu              sync.RWMutex
	collections     map[string]*collection
	overrides       map[string]func(w http.ResponseWriter, r *http.Request)
	omitMetadata    bool
	notFoundOnEmpty bool
	etags           bool
	rateRemaining   int

	requestCount      int
	conditionalCount  int
	lastRequestHeader http.Header
	queries           []listQuery
}

// NewMockBackend starts a backend. Empty listings answer 404 like the real
// backend does, until SetNotFoundOnEmpty(false).
func NewMockBackend() *MockBackend {
	m := &MockBackend{
		collections:     make(map[string]*collection),
		overrides:       make(map[string]func(w http.ResponseWriter, r *http.Request)),
		notFoundOnEmpty: true,
		rateRemaining:   100,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the server URL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockBackend) Close() {
	m.server.Close()
}

// Reset clears the tracking counters.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.conditionalCount = 0
	m.lastRequestHeader = nil
	m.queries = nil
}

// AddCollection registers records under path. Records without an id get one.
func (m *MockBackend) AddCollection(path string, records []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &collection{nextID: 1}
	for _, rec := range records {
		copied := make(Record, len(rec)+1)
		for k, v := range rec {
			copied[k] = v
		}
		id, ok := toInt64(copied["id"])
		if !ok {
			id = c.nextID
		}
		copied["id"] = id
		if id >= c.nextID {
			c.nextID = id + 1
		}
		c.records = append(c.records, copied)
	}
	m.collections[path] = c
}

// SeedUsers adds n users to /api/v1/users named "User 1" .. "User n".
func (m *MockBackend) SeedUsers(n int) {
	records := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		role := "User"
		if i%5 == 0 {
			role = "Admin"
		}
		records = append(records, Record{
			"id":        int64(i),
			"firstName": "User",
			"lastName":  strconv.Itoa(i),
			"email":     fmt.Sprintf("user%d@relaxflow.test", i),
			"role":      role,
			"status":    "Active",
		})
	}
	m.AddCollection("/api/v1/users", records)
}

// Records returns a copy of the records stored under path.
func (m *MockBackend) Records(path string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[path]
	if !ok {
		return nil
	}
	return append([]Record(nil), c.records...)
}

// SetHandler overrides every request to path.
func (m *MockBackend) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[path] = handler
}

// SetResponse overrides path with a canned response.
func (m *MockBackend) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetOmitMetadata makes listings return a bare JSON array.
func (m *MockBackend) SetOmitMetadata(omit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.omitMetadata = omit
}

// SetNotFoundOnEmpty controls whether empty listings answer 404.
func (m *MockBackend) SetNotFoundOnEmpty(notFound bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notFoundOnEmpty = notFound
}

// SetETags enables ETag headers and 304 answers to If-None-Match.
func (m *MockBackend) SetETags(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = enabled
}

// SetRateLimitRemaining sets the X-RateLimit-Remaining value sent back.
func (m *MockBackend) SetRateLimitRemaining(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateRemaining = n
}

// GetRequestCount returns the number of requests served.
func (m *MockBackend) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockBackend) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// LastRequestHeader returns the headers of the latest request.
func (m *MockBackend) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// ListQueries returns the page, limit and search of every listing request
// as "page=N limit=N search=S".
func (m *MockBackend) ListQueries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.queries))
	for _, q := range m.queries {
		out = append(out, fmt.Sprintf("page=%d limit=%d search=%s", q.Page, q.Limit, q.Search))
	}
	return out
}

func (m *MockBackend) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.lastRequestHeader = r.Header.Clone()
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.conditionalCount++
	}
	override, hasOverride := m.overrides[r.URL.Path]
	remaining := m.rateRemaining
	m.mu.Unlock()

	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", "60")

	if hasOverride {
		override(w, r)
		return
	}

	path, id, hasID := splitItemPath(r.URL.Path)

	switch {
	case r.Method == http.MethodGet && !hasID:
		m.list(w, r, path)
	case r.Method == http.MethodPost && !hasID:
		m.create(w, r, path)
	case r.Method == http.MethodPut && hasID:
		m.update(w, r, path, id)
	case r.Method == http.MethodDelete && hasID:
		m.remove(w, path, id)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed"})
	}
}

func (m *MockBackend) list(w http.ResponseWriter, r *http.Request, path string) {
	var q listQuery
	if err := schemaDecoder.Decode(&q, r.URL.Query()); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}

	m.mu.Lock()
	m.queries = append(m.queries, q)
	c, ok := m.collections[path]
	var matched []Record
	version := 0
	if ok {
		version = c.version
		for _, rec := range c.records {
			if matches(rec, q.Search) {
				matched = append(matched, rec)
			}
		}
	}
	omitMetadata, notFoundOnEmpty, etags := m.omitMetadata, m.notFoundOnEmpty, m.etags
	m.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	if len(matched) == 0 && notFoundOnEmpty {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No records found"})
		return
	}

	if etags {
		etag := fmt.Sprintf(`"%s-v%d-%s"`, strings.Trim(strings.ReplaceAll(path, "/", "-"), "-"), version, r.URL.Query().Encode())
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	total := len(matched)
	page := matched
	totalPages := 0
	if q.Limit > 0 {
		totalPages = (total + q.Limit - 1) / q.Limit
		start := (q.Page - 1) * q.Limit
		end := start + q.Limit
		if start > total {
			start = total
		}
		if end > total {
			end = total
		}
		page = matched[start:end]
	} else if total > 0 {
		totalPages = 1
	}
	if page == nil {
		page = []Record{}
	}

	if omitMetadata {
		writeJSON(w, http.StatusOK, page)
		return
	}

	pagination := map[string]any{
		"page":       q.Page,
		"totalItems": total,
		"totalPages": totalPages,
	}
	if q.Limit > 0 {
		pagination["limit"] = q.Limit
	}
	if q.Search != "" {
		pagination["search"] = q.Search
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": page, "pagination": pagination})
}

func (m *MockBackend) create(w http.ResponseWriter, r *http.Request, path string) {
	var body Record
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON body"})
		return
	}

	m.mu.Lock()
	c, ok := m.collections[path]
	if !ok {
		c = &collection{nextID: 1}
		m.collections[path] = c
	}
	body["id"] = c.nextID
	c.nextID++
	c.version++
	c.records = append(c.records, body)
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"data": body})
}

func (m *MockBackend) update(w http.ResponseWriter, r *http.Request, path string, id int64) {
	var body Record
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON body"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, idx := m.find(path, id)
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Record not found"})
		return
	}

	updated := make(Record, len(rec)+len(body))
	for k, v := range rec {
		updated[k] = v
	}
	for k, v := range body {
		updated[k] = v
	}
	updated["id"] = id

	c := m.collections[path]
	c.records[idx] = updated
	c.version++

	writeJSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (m *MockBackend) remove(w http.ResponseWriter, path string, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, idx := m.find(path, id)
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Record not found"})
		return
	}

	c := m.collections[path]
	c.records = append(c.records[:idx:idx], c.records[idx+1:]...)
	c.version++

	w.WriteHeader(http.StatusNoContent)
}

// find must be called with m.mu held.
func (m *MockBackend) find(path string, id int64) (Record, int) {
	c, ok := m.collections[path]
	if !ok {
		return nil, -1
	}
	for i, rec := range c.records {
		if recID, _ := toInt64(rec["id"]); recID == id {
			return rec, i
		}
	}
	return nil, -1
}

// splitItemPath splits "/api/v1/users/7" into ("/api/v1/users", 7, true).
func splitItemPath(p string) (string, int64, bool) {
	p = strings.TrimRight(p, "/")
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return p, 0, false
	}
	id, err := strconv.ParseInt(p[idx+1:], 10, 64)
	if err != nil {
		return p, 0, false
	}
	return p[:idx], id, true
}

func matches(rec Record, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)

	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if s, ok := rec[k].(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
