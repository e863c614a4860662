package client

import (
	"net/http"
)

// DefaultBasePath is the API root used when no base path is configured.
const DefaultBasePath = "https://api.ukfast.io"

// maxErrBodySize caps the amount of response body read when building an
// error for a non-2xx status. It is large enough to hold a full
// validation error set.
const maxErrBodySize = 64 << 10 // 64KB

// maxErrBodyDisplay caps the body excerpt rendered by Error methods.
const maxErrBodyDisplay = 512

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	mediaTypeJSON       = "application/json"
)

// exchange is a completed round trip that returned a 2xx status.
type exchange struct {
	status int
	header http.Header
	body   []byte
}

// empty reports whether the exchange carries nothing to materialize.
func (ex *exchange) empty() bool {
	return ex.status == http.StatusNoContent
}
