// Package apitest provides an in-memory JSON REST backend for exercising
// the SDK over real HTTP. Resources live in named collections and follow
// the same envelope conventions as the production API: {"data", "meta"}
// bodies, paginated listings, 422 validation errors and 204 deletes.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Handler is a http.Handler that returns an error.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware defines a signature to chain Handler together.
type Middleware func(handler Handler) Handler

// Recorded is a request as the server received it.
type Recorded struct {
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	Body    []byte
	TraceID trace.TraceID
}

// Server is a running fake backend. Close it when done.
type Server struct {
	*httptest.Server

	token    string
	perPage  int
	required map[string][]string
	logger   *slog.Logger
	validate *validator.Validate

	mu          sync.Mutex
	collections map[string]*collection
	requests    []Recorded
}

// Option configures a Server.
type Option func(*Server)

// WithToken makes every request without an exactly matching
// Authorization header fail with 401.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithPerPage sets the default page size of listings.
func WithPerPage(n int) Option {
	return func(s *Server) {
		s.perPage = n
	}
}

// WithRequired makes creating a record in collection fail with 422
// unless every field is present and non-empty.
func WithRequired(collection string, fields ...string) Option {
	return func(s *Server) {
		s.required[collection] = fields
	}
}

// WithLogger sets the logger used for request logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New starts a Server.
func New(optFns ...Option) *Server {
	s := &Server{
		perPage:     15,
		required:    make(map[string][]string),
		logger:      slog.New(slog.DiscardHandler),
		validate:    validator.New(),
		collections: make(map[string]*collection),
	}
	for _, opt := range optFns {
		opt(s)
	}

	mux := http.NewServeMux()
	mw := []Middleware{s.record, s.logged, errorsMW(s.logger), s.auth}

	s.handle(mux, "GET /{collection}", s.list, mw)
	s.handle(mux, "POST /{collection}", s.create, mw)
	s.handle(mux, "GET /{collection}/{id}", s.show, mw)
	s.handle(mux, "PATCH /{collection}/{id}", s.update, mw)
	s.handle(mux, "PUT /{collection}/{id}", s.update, mw)
	s.handle(mux, "DELETE /{collection}/{id}", s.destroy, mw)

	s.Server = httptest.NewServer(mux)

	return s
}

// Seed stores records in collection. Records without a positive "id" are
// given the next free one.
func (s *Server) Seed(collection string, records ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	for _, rec := range records {
		c.insert(rec)
	}
}

// Record returns a copy of the stored record, if any.
func (s *Server) Record(collection string, id int) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collection(collection).records[id]
	return maps.Clone(rec), ok
}

// Requests returns every request received so far, in arrival order.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.requests)
}

// Last returns the most recent request. It panics if there is none.
func (s *Server) Last() Recorded {
	reqs := s.Requests()
	return reqs[len(reqs)-1]
}

// collection must be called with s.mu held.
func (s *Server) collection(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = newCollection()
		s.collections[name] = c
	}
	return c
}

func (s *Server) handle(mux *http.ServeMux, pattern string, handler Handler, mw []Middleware) {
	for _, m := range slices.Backward(mw) {
		handler = m(handler)
	}

	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if err := handler(r.Context(), w, r); err != nil {
			s.logger.Error("apitest", "handle", err)
		}
	})
}

// ————————————————————————————————————————————————————————————————————
// Middleware
// ————————————————————————————————————————————————————————————————————

func (s *Server) record(handler Handler) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))

		s.mu.Lock()
		s.requests = append(s.requests, Recorded{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			Header:  r.Header.Clone(),
			Body:    body,
			TraceID: trace.SpanContextFromContext(ctx).TraceID(),
		})
		s.mu.Unlock()

		return handler(ctx, w, r)
	}
}

func (s *Server) logged(handler Handler) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		began := time.Now()
		s.logger.Info("request started", "method", r.Method, "path", r.URL.Path)

		err := handler(ctx, w, r)

		s.logger.Info("request completed", "method", r.Method, "path", r.URL.Path, "since", time.Since(began).String())

		return err
	}
}

func (s *Server) auth(handler Handler) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if s.token != "" && r.Header.Get("Authorization") != s.token {
			return newError(http.StatusUnauthorized, "Unauthenticated", "missing or invalid API token")
		}

		return handler(ctx, w, r)
	}
}

// ————————————————————————————————————————————————————————————————————
// Handlers
// ————————————————————————————————————————————————————————————————————

func (s *Server) list(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	page := positive(q.Get("page"), 1)
	perPage := positive(q.Get("per_page"), s.perPage)

	filters := make(map[string]string)
	for k := range q {
		if k != "page" && k != "per_page" {
			filters[k] = q.Get(k)
		}
	}

	s.mu.Lock()
	c := s.collection(r.PathValue("collection"))
	ids := c.filter(filters)
	total := len(ids)

	lo := min((page-1)*perPage, total)
	hi := min(lo+perPage, total)

	items := make([]map[string]any, 0, hi-lo)
	for _, id := range ids[lo:hi] {
		items = append(items, maps.Clone(c.records[id]))
	}
	s.mu.Unlock()

	totalPages := max((total+perPage-1)/perPage, 1)

	link := func(n int) any {
		if n < 1 || n > totalPages {
			return nil
		}
		u := *r.URL
		lq := u.Query()
		lq.Set("page", strconv.Itoa(n))
		u.RawQuery = lq.Encode()
		return u.String()
	}

	return respond(w, http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"pagination": map[string]any{
				"total":        total,
				"count":        len(items),
				"per_page":     perPage,
				"current_page": page,
				"total_pages":  totalPages,
				"links": map[string]any{
					"next":     link(page + 1),
					"previous": link(page - 1),
					"first":    link(1),
					"last":     link(totalPages),
				},
			},
		},
	})
}

func (s *Server) show(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	rec, ok := s.Record(r.PathValue("collection"), id)
	if !ok {
		return notFound(fmt.Sprintf("record %d not found", id))
	}

	return respond(w, http.StatusOK, map[string]any{
		"data": rec,
		"meta": map[string]any{"location": locationOf(r, id)},
	})
}

func (s *Server) create(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("collection")

	data, err := decodeBody(r)
	if err != nil {
		return err
	}

	if fields := s.required[name]; len(fields) > 0 {
		rules := make(map[string]any, len(fields))
		for _, f := range fields {
			rules[f] = "required"
		}
		if failures := s.validate.ValidateMap(data, rules); len(failures) > 0 {
			return validationError(failures)
		}
	}

	delete(data, "id")

	s.mu.Lock()
	id := s.collection(name).insert(data)
	s.mu.Unlock()

	return respond(w, http.StatusCreated, map[string]any{
		"data": map[string]any{"id": id},
		"meta": map[string]any{"location": locationOf(r, id)},
	})
}

// update merges the body into the record for PATCH and replaces it for PUT.
func (s *Server) update(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	data, err := decodeBody(r)
	if err != nil {
		return err
	}
	delete(data, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(r.PathValue("collection"))
	rec, ok := c.records[id]
	if !ok {
		return notFound(fmt.Sprintf("record %d not found", id))
	}

	if r.Method == http.MethodPut {
		rec = map[string]any{"id": id}
	}
	maps.Copy(rec, data)
	c.records[id] = rec

	return respond(w, http.StatusOK, map[string]any{
		"data": map[string]any{"id": id},
		"meta": map[string]any{"location": locationOf(r, id)},
	})
}

func (s *Server) destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(r.PathValue("collection"))
	if _, ok := c.records[id]; !ok {
		return notFound(fmt.Sprintf("record %d not found", id))
	}
	delete(c.records, id)

	return respond(w, http.StatusNoContent, nil)
}

// ————————————————————————————————————————————————————————————————————
// Helpers
// ————————————————————————————————————————————————————————————————————

func decodeBody(r *http.Request) (map[string]any, error) {
	data := make(map[string]any)
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		return nil, newError(http.StatusBadRequest, "Bad Request", "request body must be a JSON object")
	}

	return data, nil
}

func pathID(r *http.Request) (int, error) {
	id, ok := idOf(r.PathValue("id"))
	if !ok {
		return 0, notFound(fmt.Sprintf("record %q not found", r.PathValue("id")))
	}

	return id, nil
}

func locationOf(r *http.Request, id int) string {
	return fmt.Sprintf("http://%s/%s/%d", r.Host, r.PathValue("collection"), id)
}

func positive(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
