package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/adamwoolhether/simplesdk/client/throttle"
	"github.com/adamwoolhether/simplesdk/resource"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Client wraps a std-lib *http.Client together with the per-API state
// every request is composed from: base path, auth token and persistent
// headers. The state may be changed at any time; each call reads it once
// when the call is issued.
type Client struct {
	c      *http.Client
	logger *slog.Logger
	tracer trace.Tracer

	mu       sync.RWMutex
	basePath string
	token    string
	headers  map[string]string
}

// Build creates a Client. Without options it talks to [DefaultBasePath]
// through [http.DefaultTransport].
func Build(optFns ...Option) (*Client, error) {
	opts := options{
		settings: settings{BasePath: DefaultBasePath},
	}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if err := opts.settings.validate(); err != nil {
		return nil, fmt.Errorf("validating client options: %w", err)
	}

	client := &Client{
		c:        &http.Client{},
		logger:   slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer("simplesdk"),
		basePath: opts.settings.BasePath,
		token:    opts.settings.Token,
		headers:  opts.settings.Headers,
	}

	if opts.client != nil {
		cpy := *opts.client
		client.c = &cpy
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.settings.UserAgent != "" {
		transport = userAgent{value: opts.settings.UserAgent, base: transport}
	}
	if opts.settings.RequestIDHeader != "" {
		transport = requestID{header: opts.settings.RequestIDHeader, base: transport}
	}
	if opts.settings.Throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.settings.Throttle, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// Auth sets the token sent as the Authorization header of every
// subsequent request. An empty token sends no Authorization header.
func (c *Client) Auth(token string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	return c
}

// SetHeaders replaces the persistent headers sent with every subsequent
// request.
func (c *Client) SetHeaders(headers map[string]string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.headers = maps.Clone(headers)
	return c
}

// SetBasePath changes the API root for subsequent requests.
func (c *Client) SetBasePath(basePath string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.basePath = basePath
	return c
}

// BasePath returns the current API root.
func (c *Client) BasePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.basePath
}

// ————————————————————————————————————————————————————————————————————
// Verbs
// ————————————————————————————————————————————————————————————————————

// Get fetches path and materializes the body as an Entity or a Page.
func (c *Client) Get(ctx context.Context, path string, opts ...CallOption) (resource.Payload, error) {
	return c.GetAsync(ctx, path, opts...).Wait()
}

// GetAsync is the non-blocking form of [Client.Get].
func (c *Client) GetAsync(ctx context.Context, path string, opts ...CallOption) *Pending[resource.Payload] {
	co, err := newCallOpts(opts)
	if err != nil {
		return failed[resource.Payload](err)
	}

	req, err := c.request(ctx, http.MethodGet, path, nil, co)
	if err != nil {
		return failed[resource.Payload](err)
	}

	return start(ctx, func(ctx context.Context) (resource.Payload, error) {
		ex, err := c.send(req.WithContext(ctx))
		if err != nil {
			return resource.Payload{}, err
		}
		if ex.empty() {
			return resource.Payload{}, nil
		}

		p, err := resource.Decode(ex.body)
		if err != nil {
			return resource.Payload{}, &DecodeError{StatusCode: ex.status, Body: string(ex.body), Err: err}
		}

		return p, nil
	})
}

// Create POSTs body to path. A 204 response yields a nil SelfResponse.
// A 422 response carrying an "errors" array fails with a [ValidationError].
func (c *Client) Create(ctx context.Context, path string, body any, opts ...CallOption) (*resource.SelfResponse, error) {
	return c.CreateAsync(ctx, path, body, opts...).Wait()
}

// CreateAsync is the non-blocking form of [Client.Create].
func (c *Client) CreateAsync(ctx context.Context, path string, body any, opts ...CallOption) *Pending[*resource.SelfResponse] {
	co, err := newCallOpts(opts)
	if err != nil {
		return failed[*resource.SelfResponse](err)
	}

	return c.write(ctx, http.MethodPost, path, body, co)
}

// Update PATCHes body to path, or PUTs it when [WithPut] is given.
// Errors are translated as for [Client.Create].
func (c *Client) Update(ctx context.Context, path string, body any, opts ...CallOption) (*resource.SelfResponse, error) {
	return c.UpdateAsync(ctx, path, body, opts...).Wait()
}

// UpdateAsync is the non-blocking form of [Client.Update].
func (c *Client) UpdateAsync(ctx context.Context, path string, body any, opts ...CallOption) *Pending[*resource.SelfResponse] {
	co, err := newCallOpts(opts)
	if err != nil {
		return failed[*resource.SelfResponse](err)
	}

	method := http.MethodPatch
	if co.usePut {
		method = http.MethodPut
	}

	return c.write(ctx, method, path, body, co)
}

// Destroy DELETEs path. The response body, if any, is discarded.
func (c *Client) Destroy(ctx context.Context, path string, opts ...CallOption) error {
	_, err := c.DestroyAsync(ctx, path, opts...).Wait()
	return err
}

// DestroyAsync is the non-blocking form of [Client.Destroy].
func (c *Client) DestroyAsync(ctx context.Context, path string, opts ...CallOption) *Pending[struct{}] {
	co, err := newCallOpts(opts)
	if err != nil {
		return failed[struct{}](err)
	}

	req, err := c.request(ctx, http.MethodDelete, path, nil, co)
	if err != nil {
		return failed[struct{}](err)
	}

	return start(ctx, func(ctx context.Context) (struct{}, error) {
		_, err := c.send(req.WithContext(ctx))
		return struct{}{}, err
	})
}

// write issues a create or update call and materializes a SelfResponse.
func (c *Client) write(ctx context.Context, method, path string, body any, co callOpts) *Pending[*resource.SelfResponse] {
	req, err := c.request(ctx, method, path, body, co)
	if err != nil {
		return failed[*resource.SelfResponse](err)
	}

	return start(ctx, func(ctx context.Context) (*resource.SelfResponse, error) {
		ex, err := c.send(req.WithContext(ctx))
		if err != nil {
			return nil, translate(err)
		}
		if ex.empty() {
			return nil, nil
		}

		s, err := resource.DecodeSelf(ex.body)
		if err != nil {
			return nil, &DecodeError{StatusCode: ex.status, Body: string(ex.body), Err: err}
		}

		return s, nil
	})
}

// ————————————————————————————————————————————————————————————————————
// Request composition and execution
// ————————————————————————————————————————————————————————————————————

// request composes an *http.Request from the client state as it is now.
func (c *Client) request(ctx context.Context, method, path string, body any, co callOpts) (*http.Request, error) {
	c.mu.RLock()
	basePath, token := c.basePath, c.token
	persistent := maps.Clone(c.headers)
	c.mu.RUnlock()

	reqURL, err := url.Parse(joinPath(basePath, path))
	if err != nil {
		return nil, fmt.Errorf("parsing request url: %w", err)
	}
	withQuery(reqURL, co.query)

	payload := io.Reader(http.NoBody)
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
		payload = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	req.Header.Set(headerAccept, mediaTypeJSON)
	if body != nil {
		req.Header.Set(headerContentType, mediaTypeJSON)
	}
	for k, v := range composeHeaders(persistent, co.headers, token) {
		req.Header.Set(k, v)
	}

	return req, nil
}

// composeHeaders layers persistent headers, then one-off headers, then the
// Authorization token. Keys are canonicalized so that differently cased
// names collide as HTTP treats them.
func composeHeaders(persistent, oneOff map[string]string, token string) map[string]string {
	out := make(map[string]string, len(persistent)+len(oneOff)+1)
	for k, v := range persistent {
		out[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range oneOff {
		out[http.CanonicalHeaderKey(k)] = v
	}
	if token != "" {
		out[headerAuthorization] = token
	}

	return out
}

// joinPath joins base and path with exactly one slash.
func joinPath(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// send runs req and returns the exchange if the status is 2xx.
func (c *Client) send(req *http.Request) (*exchange, error) {
	ctx, span := c.tracer.Start(req.Context(), "simplesdk.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL.Redacted()),
		),
	)
	defer span.End()

	req = req.WithContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	began := time.Now()
	c.logger.Debug("request issued", "method", req.Method, "url", req.URL.Redacted())

	resp, err := c.c.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, &TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}

	discardBody := true
	defer func() {
		if discardBody {
			if _, err := io.Copy(io.Discard, resp.Body); err != nil {
				c.logger.Error("failed to discard unused body", "error", err)
			}
		}
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("request complete", "method", req.Method, "url", req.URL.Redacted(), "status", resp.StatusCode, "elapsed", time.Since(began).String())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		if err != nil {
			b = []byte("unable to read body")
		}

		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, newHTTPError(resp, b)
	}

	ex := &exchange{status: resp.StatusCode, header: resp.Header}
	if ex.empty() {
		return ex, nil
	}

	ex.body, err = io.ReadAll(resp.Body)
	if err != nil {
		discardBody = false
		span.RecordError(err)
		span.SetStatus(codes.Error, "reading body")
		return nil, &TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: fmt.Errorf("reading body: %w", err)}
	}

	return ex, nil
}
