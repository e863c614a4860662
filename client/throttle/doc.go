// Package throttle provides an [http.RoundTripper] that paces outbound
// API calls with a token bucket from [golang.org/x/time/rate].
//
// Requests beyond the burst capacity block until a token is available or
// the request context ends; nothing is dropped or retried:
//
//	rt, err := throttle.NewRoundTripper(
//		throttle.Config{RPS: 10, Burst: 5},
//		func() *slog.Logger { return slog.Default() },
//		http.DefaultTransport,
//	)
//	httpClient := &http.Client{Transport: rt}
//
// The simplesdk client wires this in through client.WithThrottle.
package throttle
