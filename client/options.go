package client

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/adamwoolhether/simplesdk/client/throttle"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	noFollowRedirects bool
	logger            *slog.Logger
	tracer            trace.Tracer

	// settings holds the values checked by validate.
	settings settings
}

// WithHTTPClient replaces the default [http.Client] used by the [Client].
// The client is copied, so later changes to hc do not leak in.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		o.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt
		return nil
	}
}

// WithTimeout sets the overall request timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(o *options) error {
		o.settings.UserAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket pacing with the given requests per
// second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		o.settings.Throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(o *options) error {
		o.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTracer sets the tracer used to open one client span per request.
// A no-op tracer is used by default.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithRequestID stamps every outgoing request with a random UUID under
// header, unless the request already carries that header.
func WithRequestID(header string) Option {
	return func(o *options) error {
		o.settings.RequestIDHeader = header
		return nil
	}
}

// WithBasePath sets the API root that request paths are appended to.
func WithBasePath(basePath string) Option {
	return func(o *options) error {
		o.settings.BasePath = basePath
		return nil
	}
}

// WithToken sets the initial Authorization token; see [Client.Auth].
func WithToken(token string) Option {
	return func(o *options) error {
		o.settings.Token = token
		return nil
	}
}

// WithHeaders sets the initial persistent headers; see [Client.SetHeaders].
func WithHeaders(headers map[string]string) Option {
	return func(o *options) error {
		o.settings.Headers = maps.Clone(headers)
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

// requestID is an http.RoundTripper that adds a unique id header to
// requests lacking one.
type requestID struct {
	header string
	base   http.RoundTripper
}

func (ri requestID) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get(ri.header) != "" {
		return ri.base.RoundTrip(r)
	}

	cpy := r.Clone(r.Context())
	cpy.Header.Set(ri.header, uuid.NewString())
	return ri.base.RoundTrip(cpy)
}

// ————————————————————————————————————————————————————————————————————
// Per-call options
// ————————————————————————————————————————————————————————————————————

// CallOption is a functional option for a single verb call.
type CallOption func(*callOpts) error

type callOpts struct {
	query   map[string]any
	headers map[string]string
	usePut  bool
}

func newCallOpts(optFns []CallOption) (callOpts, error) {
	var opts callOpts
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return callOpts{}, err
		}
	}

	return opts, nil
}

// WithQuery attaches query parameters, encoded with [EncodeQuery].
// Repeated use merges the maps, later keys winning.
func WithQuery(params map[string]any) CallOption {
	return func(opts *callOpts) error {
		if opts.query == nil {
			opts.query = make(map[string]any, len(params))
		}
		maps.Copy(opts.query, params)
		return nil
	}
}

// WithRequestHeaders sets one-off headers for this call. They override
// persistent headers of the same name but never the Authorization header.
func WithRequestHeaders(headers map[string]string) CallOption {
	return func(opts *callOpts) error {
		if opts.headers == nil {
			opts.headers = make(map[string]string, len(headers))
		}
		maps.Copy(opts.headers, headers)
		return nil
	}
}

// WithPut makes Update send PUT instead of PATCH. Other verbs ignore it.
func WithPut() CallOption {
	return func(opts *callOpts) error {
		opts.usePut = true
		return nil
	}
}
