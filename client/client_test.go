package client_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adamwoolhether/simplesdk/client"
	"github.com/adamwoolhether/simplesdk/internal/apitest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func newTestClient(t *testing.T, baseURL string, opts ...client.Option) *client.Client {
	t.Helper()

	opts = append([]client.Option{client.WithBasePath(baseURL)}, opts...)
	c, err := client.Build(opts...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return c
}

func TestBuild_DefaultBasePath(t *testing.T) {
	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if got := c.BasePath(); got != client.DefaultBasePath {
		t.Errorf("exp base path %q, got %q", client.DefaultBasePath, got)
	}

	if got := c.SetBasePath("http://localhost:8080").BasePath(); got != "http://localhost:8080" {
		t.Errorf("exp changed base path, got %q", got)
	}
}

func TestBuild_InvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		opt   client.Option
		field string
	}{
		{
			name:  "base path not a url",
			opt:   client.WithBasePath("not a url"),
			field: "base_path",
		},
		{
			name:  "empty base path",
			opt:   client.WithBasePath(""),
			field: "base_path",
		},
		{
			name:  "zero rps",
			opt:   client.WithThrottle(0, 1),
			field: "throttle.rps",
		},
		{
			name:  "zero burst",
			opt:   client.WithThrottle(1, 0),
			field: "throttle.burst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Build(tt.opt)
			if err == nil {
				t.Fatal("exp error, got nil")
			}

			var fe client.FieldErrors
			if !errors.As(err, &fe) {
				t.Fatalf("exp FieldErrors, got %T: %v", err, err)
			}

			if _, ok := fe.Fields()[tt.field]; !ok {
				t.Errorf("exp failure on %q, got %v", tt.field, fe.Fields())
			}
		})
	}
}

func TestBuild_InvalidHeaderName(t *testing.T) {
	_, err := client.Build(client.WithHeaders(map[string]string{"Bad:Name": "x"}))
	if err == nil {
		t.Fatal("exp error for header name containing ':'")
	}

	var fe client.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("exp FieldErrors, got %T", err)
	}
}

func TestBuild_NilOptions(t *testing.T) {
	tests := map[string]client.Option{
		"http client": client.WithHTTPClient(nil),
		"transport":   client.WithTransport(nil),
		"tracer":      client.WithTracer(nil),
		"timeout":     client.WithTimeout(-time.Second),
	}

	for name, opt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := client.Build(opt); err == nil {
				t.Error("exp error, got nil")
			}
		})
	}
}

func TestClient_GetEntity(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.Seed("widgets", map[string]any{"id": 1, "name": "alpha", "tags": []any{"a", "b"}})

	c := newTestClient(t, srv.URL)

	p, err := c.Get(t.Context(), "/widgets/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	e, ok := p.Entity()
	if !ok {
		t.Fatal("exp entity payload")
	}

	if got := e.Get("name").Str(); got != "alpha" {
		t.Errorf("exp name %q, got %q", "alpha", got)
	}
	if id, ok := e.Get("id").Int(); !ok || id != 1 {
		t.Errorf("exp id 1, got %d (%t)", id, ok)
	}
	if got := e.Get("tags").Index(1).Str(); got != "b" {
		t.Errorf("exp second tag %q, got %q", "b", got)
	}

	last := srv.Last()
	if last.Method != http.MethodGet || last.Path != "/widgets/1" {
		t.Errorf("exp GET /widgets/1, got %s %s", last.Method, last.Path)
	}
	if got := last.Header.Get("Accept"); got != "application/json" {
		t.Errorf("exp Accept application/json, got %q", got)
	}
	if got := last.Header.Get("Content-Type"); got != "" {
		t.Errorf("exp no Content-Type without a body, got %q", got)
	}
}

func TestClient_GetPage(t *testing.T) {
	srv := apitest.New(apitest.WithPerPage(2))
	defer srv.Close()
	srv.Seed("widgets",
		map[string]any{"name": "alpha"},
		map[string]any{"name": "beta"},
		map[string]any{"name": "gamma"},
	)

	c := newTestClient(t, srv.URL)

	p, err := c.Get(t.Context(), "widgets")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	page, ok := p.Page()
	if !ok {
		t.Fatal("exp page payload")
	}

	var names []string
	for _, item := range page.Items() {
		names = append(names, item.Get("name").Str())
	}
	if diff := cmp.Diff([]string{"alpha", "beta"}, names); diff != "" {
		t.Errorf("items mismatch (-exp +got):\n%s", diff)
	}

	if total, ok := page.TotalItems(); !ok || total != 3 {
		t.Errorf("exp total 3, got %d (%t)", total, ok)
	}
	if pages, ok := page.TotalPages(); !ok || pages != 2 {
		t.Errorf("exp 2 pages, got %d (%t)", pages, ok)
	}
	if next, ok := page.Link("next"); !ok || !strings.Contains(next, "page=2") {
		t.Errorf("exp next link to page 2, got %q (%t)", next, ok)
	}
	if _, ok := page.Link("previous"); ok {
		t.Error("exp no previous link on first page")
	}
}

func TestClient_QueryEncoding(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.Seed("widgets",
		map[string]any{"name": "alpha"},
		map[string]any{"name": "beta"},
		map[string]any{"name": "gamma"},
	)

	c := newTestClient(t, srv.URL)

	p, err := c.Get(t.Context(), "/widgets", client.WithQuery(map[string]any{
		"id:in": []int{1, 3},
	}))
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got := srv.Last().Query.Get("id:in"); got != "1,3" {
		t.Errorf("exp query value %q, got %q", "1,3", got)
	}

	page, _ := p.Page()
	if page.Len() != 2 {
		t.Fatalf("exp 2 filtered items, got %d", page.Len())
	}
	if got := page.Item(1).Get("name").Str(); got != "gamma" {
		t.Errorf("exp %q, got %q", "gamma", got)
	}
}

func TestClient_HeaderPrecedence(t *testing.T) {
	srv := apitest.New(apitest.WithToken("s3cret"))
	defer srv.Close()
	srv.Seed("widgets", map[string]any{"name": "alpha"})

	c := newTestClient(t, srv.URL,
		client.WithToken("s3cret"),
		client.WithHeaders(map[string]string{
			"X-Team":     "core",
			"X-Override": "persistent",
		}),
	)

	_, err := c.Get(t.Context(), "/widgets/1", client.WithRequestHeaders(map[string]string{
		"x-override":    "one-off",
		"Authorization": "forged",
	}))
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	h := srv.Last().Header
	exp := map[string]string{
		"X-Team":        "core",
		"X-Override":    "one-off",
		"Authorization": "s3cret",
	}
	got := map[string]string{
		"X-Team":        h.Get("X-Team"),
		"X-Override":    h.Get("X-Override"),
		"Authorization": h.Get("Authorization"),
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Errorf("headers mismatch (-exp +got):\n%s", diff)
	}
}

func TestClient_NoTokenNoAuthorization(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	if _, err := c.Get(t.Context(), "/widgets"); err != nil {
		t.Fatalf("get: %v", err)
	}

	if _, ok := srv.Last().Header["Authorization"]; ok {
		t.Error("exp no Authorization header")
	}
}

func TestClient_StateSnapshotAtIssue(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	c := newTestClient(t, srv.URL, client.WithToken("first"))

	pending := c.GetAsync(t.Context(), "/widgets")
	c.Auth("second").SetHeaders(map[string]string{"X-Late": "yes"})

	if err := pending.Err(); err != nil {
		t.Fatalf("get: %v", err)
	}

	h := srv.Last().Header
	if got := h.Get("Authorization"); got != "first" {
		t.Errorf("exp token captured at issue %q, got %q", "first", got)
	}
	if got := h.Get("X-Late"); got != "" {
		t.Errorf("exp no header set after issue, got %q", got)
	}
}

func TestClient_Create(t *testing.T) {
	srv := apitest.New(apitest.WithRequired("widgets", "name"))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	self, err := c.Create(t.Context(), "/widgets", map[string]any{"name": "bing"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	last := srv.Last()
	if last.Method != http.MethodPost {
		t.Errorf("exp POST, got %s", last.Method)
	}
	if got := last.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("exp Content-Type application/json, got %q", got)
	}

	var body map[string]any
	if err := json.Unmarshal(last.Body, &body); err != nil {
		t.Fatalf("decoding sent body: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"name": "bing"}, body); diff != "" {
		t.Errorf("body mismatch (-exp +got):\n%s", diff)
	}

	id := self.Get("id").Int()
	if id != 1 {
		t.Errorf("exp id 1, got %d", id)
	}
	if loc := self.Meta("location").String(); !strings.HasSuffix(loc, "/widgets/1") {
		t.Errorf("exp location of the new record, got %q", loc)
	}

	rec, ok := srv.Record("widgets", 1)
	if !ok || rec["name"] != "bing" {
		t.Errorf("exp stored record, got %v (%t)", rec, ok)
	}
}

func TestClient_CreateValidation(t *testing.T) {
	srv := apitest.New(apitest.WithRequired("widgets", "name"))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.Create(t.Context(), "/widgets", map[string]any{"color": "red"})
	if err == nil {
		t.Fatal("exp validation error, got nil")
	}

	if !client.IsValidation(err) {
		t.Fatalf("exp validation error, got %T: %v", err, err)
	}
	if !errors.Is(err, client.ErrValidation) {
		t.Error("exp error to wrap ErrValidation")
	}
	if got := err.Error(); got != "Validation error" {
		t.Errorf("exp message %q, got %q", "Validation error", got)
	}

	set := client.ValidationErrors(err)
	if len(set) != 1 {
		t.Fatalf("exp 1 validation error, got %d", len(set))
	}
	if got := set[0].Status; got != "422" {
		t.Errorf("exp status %q, got %q", "422", got)
	}
	if got := string(set[0].Source); got != `{"pointer":"name"}` {
		t.Errorf("exp source pointer to name, got %s", got)
	}
}

func TestClient_CreateUnauthorized(t *testing.T) {
	srv := apitest.New(apitest.WithToken("s3cret"))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.Create(t.Context(), "/widgets", map[string]any{"name": "bing"})
	if err == nil {
		t.Fatal("exp error, got nil")
	}

	if client.IsValidation(err) {
		t.Error("exp 401 not to be a validation error")
	}
	if !errors.Is(err, client.ErrAuthFailure) {
		t.Errorf("exp ErrAuthFailure, got %v", err)
	}

	var he *client.HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusUnauthorized {
		t.Errorf("exp HTTPError with 401, got %v", err)
	}
}

func TestClient_Update(t *testing.T) {
	tests := []struct {
		name   string
		opts   []client.CallOption
		method string
		exp    map[string]any
	}{
		{
			name:   "patch merges",
			method: http.MethodPatch,
			exp:    map[string]any{"id": 1, "name": "renamed", "color": "red"},
		},
		{
			name:   "put replaces",
			opts:   []client.CallOption{client.WithPut()},
			method: http.MethodPut,
			exp:    map[string]any{"id": 1, "name": "renamed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apitest.New()
			defer srv.Close()
			srv.Seed("widgets", map[string]any{"name": "alpha", "color": "red"})

			c := newTestClient(t, srv.URL)

			self, err := c.Update(t.Context(), "/widgets/1", map[string]any{"name": "renamed"}, tt.opts...)
			if err != nil {
				t.Fatalf("update: %v", err)
			}

			if got := srv.Last().Method; got != tt.method {
				t.Errorf("exp method %s, got %s", tt.method, got)
			}
			if got := self.Get("id").Int(); got != 1 {
				t.Errorf("exp id 1, got %d", got)
			}

			rec, _ := srv.Record("widgets", 1)
			if diff := cmp.Diff(tt.exp, rec); diff != "" {
				t.Errorf("record mismatch (-exp +got):\n%s", diff)
			}
		})
	}
}

func TestClient_Destroy(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.Seed("widgets", map[string]any{"name": "alpha"})

	c := newTestClient(t, srv.URL)

	if err := c.Destroy(t.Context(), "/widgets/1"); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, ok := srv.Record("widgets", 1); ok {
		t.Error("exp record to be gone")
	}

	err := c.Destroy(t.Context(), "/widgets/1")

	var he *client.HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusNotFound {
		t.Fatalf("exp 404 HTTPError, got %v", err)
	}
	if !errors.Is(err, client.ErrUnexpectedStatusCode) {
		t.Error("exp ErrUnexpectedStatusCode")
	}
}

func TestClient_StatusHandling(t *testing.T) {
	const errorsBody = `{"errors":[{"title":"Validation Error","detail":"bad","status":422}]}`

	tests := []struct {
		name   string
		status int
		body   string
		call   func(*client.Client, *testing.T) error
		check  func(*testing.T, error)
	}{
		{
			name:   "422 on get is not translated",
			status: http.StatusUnprocessableEntity,
			body:   errorsBody,
			call: func(c *client.Client, t *testing.T) error {
				_, err := c.Get(t.Context(), "/x")
				return err
			},
			check: func(t *testing.T, err error) {
				var he *client.HTTPError
				if !errors.As(err, &he) || client.IsValidation(err) {
					t.Errorf("exp plain HTTPError, got %T: %v", err, err)
				}
			},
		},
		{
			name:   "422 without errors array stays http error",
			status: http.StatusUnprocessableEntity,
			body:   `{"message":"nope"}`,
			call: func(c *client.Client, t *testing.T) error {
				_, err := c.Create(t.Context(), "/x", map[string]any{})
				return err
			},
			check: func(t *testing.T, err error) {
				var he *client.HTTPError
				if !errors.As(err, &he) || client.IsValidation(err) {
					t.Errorf("exp plain HTTPError, got %T: %v", err, err)
				}
			},
		},
		{
			name:   "422 on update is translated",
			status: http.StatusUnprocessableEntity,
			body:   errorsBody,
			call: func(c *client.Client, t *testing.T) error {
				_, err := c.Update(t.Context(), "/x/1", map[string]any{})
				return err
			},
			check: func(t *testing.T, err error) {
				if got := client.ValidationErrors(err).Details(); !cmp.Equal(got, []string{"bad"}) {
					t.Errorf("exp details [bad], got %v", got)
				}
			},
		},
		{
			name:   "403 is an auth failure",
			status: http.StatusForbidden,
			body:   `{}`,
			call: func(c *client.Client, t *testing.T) error {
				_, err := c.Get(t.Context(), "/x")
				return err
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, client.ErrAuthFailure) {
					t.Errorf("exp ErrAuthFailure, got %v", err)
				}
			},
		},
		{
			name:   "invalid json on success",
			status: http.StatusOK,
			body:   `not json`,
			call: func(c *client.Client, t *testing.T) error {
				_, err := c.Get(t.Context(), "/x")
				return err
			},
			check: func(t *testing.T, err error) {
				var de *client.DecodeError
				if !errors.As(err, &de) || !errors.Is(err, client.ErrDecode) {
					t.Errorf("exp DecodeError, got %T: %v", err, err)
				}
			},
		},
		{
			name:   "missing data envelope",
			status: http.StatusOK,
			body:   `{"meta":{}}`,
			call: func(c *client.Client, t *testing.T) error {
				_, err := c.Create(t.Context(), "/x", map[string]any{})
				return err
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, client.ErrDecode) {
					t.Errorf("exp ErrDecode, got %v", err)
				}
			},
		},
		{
			name:   "201 without meta",
			status: http.StatusCreated,
			body:   `{"data":{"id":7}}`,
			call: func(c *client.Client, t *testing.T) error {
				self, err := c.Create(t.Context(), "/x", map[string]any{})
				if err == nil && self.Get("id").Int() != 7 {
					t.Errorf("exp id 7, got %s", self.Get("id").Raw)
				}
				return err
			},
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Errorf("exp no error, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c := newTestClient(t, ts.URL)
			tt.check(t, tt.call(c, t))
		})
	}
}

func TestClient_NoContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)

	self, err := c.Create(t.Context(), "/x", map[string]any{"name": "bing"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if self != nil {
		t.Errorf("exp nil self response for 204, got %v", self)
	}

	p, err := c.Get(t.Context(), "/x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !p.IsZero() {
		t.Error("exp zero payload for 204")
	}
}

func TestClient_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	c := newTestClient(t, ts.URL)

	_, err := c.Get(t.Context(), "/x")

	var te *client.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("exp TransportError, got %T: %v", err, err)
	}
	if !errors.Is(err, client.ErrTransport) {
		t.Error("exp ErrTransport")
	}
	if te.Method != http.MethodGet {
		t.Errorf("exp method GET, got %s", te.Method)
	}
}

func TestClient_Cancel(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer ts.Close()
	defer close(release)

	c := newTestClient(t, ts.URL)

	pending := c.GetAsync(t.Context(), "/slow")
	pending.Cancel()

	select {
	case <-pending.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("exp cancelled request to settle")
	}

	if err := pending.Err(); !errors.Is(err, client.ErrTransport) {
		t.Errorf("exp transport error after cancel, got %v", err)
	}
}

func TestClient_UserAgentAndRequestID(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	c := newTestClient(t, srv.URL,
		client.WithUserAgent("simplesdk-test/1.0"),
		client.WithRequestID("X-Request-Id"),
	)

	if _, err := c.Get(t.Context(), "/widgets"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := c.Get(t.Context(), "/widgets", client.WithRequestHeaders(map[string]string{"X-Request-Id": "fixed"})); err != nil {
		t.Fatalf("get: %v", err)
	}

	reqs := srv.Requests()
	if got := reqs[0].Header.Get("User-Agent"); got != "simplesdk-test/1.0" {
		t.Errorf("exp user agent, got %q", got)
	}
	if _, err := uuid.Parse(reqs[0].Header.Get("X-Request-Id")); err != nil {
		t.Errorf("exp generated uuid request id: %v", err)
	}
	if got := reqs[1].Header.Get("X-Request-Id"); got != "fixed" {
		t.Errorf("exp caller's request id kept, got %q", got)
	}
}

func TestClient_TracePropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	srv := apitest.New()
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	traceID := trace.TraceID{0x0a, 0x0b, 0x0c, 0x0d, 0x01, 0x02, 0x03, 0x04, 0x0a, 0x0b, 0x0c, 0x0d, 0x01, 0x02, 0x03, 0x04}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(t.Context(), sc)

	if _, err := c.Get(ctx, "/widgets"); err != nil {
		t.Fatalf("get: %v", err)
	}

	last := srv.Last()
	if last.Header.Get("Traceparent") == "" {
		t.Fatal("exp traceparent header")
	}
	if last.TraceID != traceID {
		t.Errorf("exp trace id %s, got %s", traceID, last.TraceID)
	}
}

func TestClient_Throttle(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	c := newTestClient(t, srv.URL, client.WithThrottle(20, 1))

	began := time.Now()
	for range 3 {
		if _, err := c.Get(t.Context(), "/widgets"); err != nil {
			t.Fatalf("get: %v", err)
		}
	}

	if elapsed := time.Since(began); elapsed < 80*time.Millisecond {
		t.Errorf("exp requests to be paced, took %s", elapsed)
	}
}

func TestClient_WithTransport(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	var called bool
	custom := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return http.DefaultTransport.RoundTrip(r)
	})

	c := newTestClient(t, srv.URL, client.WithTransport(custom))

	if _, err := c.Get(t.Context(), "/widgets"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !called {
		t.Error("exp custom transport to be used")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
