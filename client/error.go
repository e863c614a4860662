package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

var (
	// ErrTransport is wrapped by [TransportError].
	ErrTransport = errors.New("transport failure")
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [HTTPError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is joined with [ErrUnexpectedStatusCode] when the server
	// responds with 401 Unauthorized or 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
	// ErrValidation is wrapped by [ValidationError].
	ErrValidation = errors.New("validation failure")
	// ErrDecode is wrapped by [DecodeError].
	ErrDecode = errors.New("decode failure")

	errNilPending = errors.New("nil pending operation")
)

// TransportError is returned when no HTTP response was received:
// connection refused, DNS failure, timeout or context cancellation.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// HTTPError is returned when the server responds with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Header     http.Header
	Body       string
	Err        error
}

func newHTTPError(resp *http.Response, body []byte) *HTTPError {
	err := ErrUnexpectedStatusCode
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		err = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
	}

	return &HTTPError{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(body),
		Err:        err,
	}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", ErrUnexpectedStatusCode, e.StatusCode, excerpt(e.Body))
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ErrorObject is one entry of an API error body's "errors" array.
type ErrorObject struct {
	Title  string          `json:"title"`
	Detail string          `json:"detail"`
	Status string          `json:"status"`
	Source json.RawMessage `json:"source,omitempty"`
	Raw    json.RawMessage `json:"-"`
}

// ValidationErrorSet is the ordered list of errors attached to a
// [ValidationError].
type ValidationErrorSet []ErrorObject

// Details returns the detail message of every error, in order.
func (s ValidationErrorSet) Details() []string {
	out := make([]string, len(s))
	for i, eo := range s {
		out[i] = eo.Detail
	}
	return out
}

// ValidationError is returned by create and update calls when the server
// rejects the payload with 422 Unprocessable Entity.
type ValidationError struct {
	Errors     ValidationErrorSet
	StatusCode int
}

func (e *ValidationError) Error() string {
	return "Validation error"
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsValidation reports whether err carries a [ValidationError].
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidationErrors returns the error set carried by err, or nil.
func ValidationErrors(err error) ValidationErrorSet {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	return ve.Errors
}

// DecodeError is returned when a 2xx body is not valid JSON or not the
// expected response envelope.
type DecodeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %d response: %v, body: %s", e.StatusCode, e.Err, excerpt(e.Body))
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// translate turns a 422 response holding an "errors" array into a
// ValidationError. Every other failure is returned unchanged.
func translate(err error) error {
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusUnprocessableEntity {
		return err
	}
	if !gjson.Valid(he.Body) {
		return err
	}

	list := gjson.Get(he.Body, "errors")
	if !list.IsArray() {
		return err
	}

	set := ValidationErrorSet{}
	list.ForEach(func(_, el gjson.Result) bool {
		set = append(set, errorObjectOf(el))
		return true
	})

	return &ValidationError{
		Errors:     set,
		StatusCode: he.StatusCode,
	}
}

func errorObjectOf(el gjson.Result) ErrorObject {
	eo := ErrorObject{
		Title:  el.Get("title").String(),
		Detail: el.Get("detail").String(),
		Status: el.Get("status").String(),
		Raw:    json.RawMessage(el.Raw),
	}
	if src := el.Get("source"); src.Exists() {
		eo.Source = json.RawMessage(src.Raw)
	}

	return eo
}

func excerpt(s string) string {
	if len(s) <= maxErrBodyDisplay {
		return s
	}
	return s[:maxErrBodyDisplay] + "..."
}
