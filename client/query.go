package client

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// EncodeQuery flattens query parameters into single string values.
// Slice and array values are joined with "," without escaping the
// individual elements; every other value is formatted with fmt.
// A nil or empty map yields an empty, non-nil map.
func EncodeQuery(params map[string]any) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = queryValue(v)
	}

	return out
}

func queryValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case []string:
		return strings.Join(t, ",")
	case fmt.Stringer:
		return t.String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Sprint(v)
	}

	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(rv.Index(i).Interface())
	}

	return strings.Join(parts, ",")
}

// withQuery merges the encoded params into u's existing query string.
func withQuery(u *url.URL, params map[string]any) {
	if len(params) == 0 {
		return
	}

	vals := u.Query()
	for k, v := range EncodeQuery(params) {
		vals.Set(k, v)
	}
	u.RawQuery = vals.Encode()
}
