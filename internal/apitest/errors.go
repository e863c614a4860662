package apitest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
)

// apiError is an entry of the "errors" array written for failed requests.
type apiError struct {
	Title  string         `json:"title"`
	Detail string         `json:"detail"`
	Status int            `json:"status"`
	Source map[string]any `json:"source,omitempty"`
}

// Error carries one or more apiErrors and the status they are written with.
type Error struct {
	Code   int
	Errors []apiError
}

func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return http.StatusText(e.Code)
	}
	return e.Errors[0].Detail
}

func newError(code int, title, detail string) *Error {
	return &Error{
		Code: code,
		Errors: []apiError{{
			Title:  title,
			Detail: detail,
			Status: code,
		}},
	}
}

func notFound(detail string) *Error {
	return newError(http.StatusNotFound, "Not Found", detail)
}

// validationError builds a 422 from the field failures reported by
// validator's ValidateMap, ordered by field name.
func validationError(failures map[string]any) *Error {
	fields := make([]string, 0, len(failures))
	for f := range failures {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	e := &Error{Code: http.StatusUnprocessableEntity}
	for _, f := range fields {
		e.Errors = append(e.Errors, apiError{
			Title:  "Validation Error",
			Detail: "The " + f + " field is invalid",
			Status: http.StatusUnprocessableEntity,
			Source: map[string]any{"pointer": f},
		})
	}

	return e
}

// errorsMW writes handler errors as an {"errors": [...]} body.
func errorsMW(log *slog.Logger) Middleware {
	return func(handler Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			apiErr, ok := errors.AsType[*Error](err)
			if !ok {
				log.Error("unexpected handler error", "path", r.URL.Path, "error", err)
				apiErr = newError(http.StatusInternalServerError, "Internal Server Error", http.StatusText(http.StatusInternalServerError))
			}

			return respond(w, apiErr.Code, map[string]any{"errors": apiErr.Errors})
		}
	}
}

// respond writes data as JSON with statusCode. A 204 writes no body.
func respond(w http.ResponseWriter, statusCode int, data any) error {
	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	b, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_, err = w.Write(b)
	return err
}
