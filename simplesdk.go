// Package simplesdk exposes the client builder.
package simplesdk

import (
	"github.com/adamwoolhether/simplesdk/client"
)

// NewClient instantiates a new *Client with the provided options.
// If not specified, requests go to [client.DefaultBasePath] through
// [net/http.DefaultTransport].
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}
