package resource

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON is returned when a body is not valid JSON.
	ErrInvalidJSON = errors.New("invalid json")
	// ErrMalformedEnvelope is returned when a body is valid JSON but not a
	// {"data": ..., "meta": ...} envelope of the expected shape.
	ErrMalformedEnvelope = errors.New("malformed response envelope")
)

// Payload is the materialized body of a read: either a single Entity or a
// Page, decided once when the body is decoded. The zero Payload holds
// neither and is what a 204 No Content read yields.
type Payload struct {
	entity *Entity
	page   *Page
}

// Entity returns the single resource, if the payload holds one.
func (p Payload) Entity() (*Entity, bool) { return p.entity, p.entity != nil }

// Page returns the collection, if the payload holds one.
func (p Payload) Page() (*Page, bool) { return p.page, p.page != nil }

// IsCollection reports whether the payload's data was an array.
func (p Payload) IsCollection() bool { return p.page != nil }

// IsZero reports whether the payload holds no value.
func (p Payload) IsZero() bool { return p.entity == nil && p.page == nil }

// Decode materializes a read response body. An array under "data" yields a
// Page carrying the raw "meta"; an object yields an Entity and the meta is
// dropped.
func Decode(body []byte) (Payload, error) {
	env, err := envelope(body)
	if err != nil {
		return Payload{}, err
	}

	data := env.Get("data")
	switch {
	case data.IsArray():
		items := make([]*Entity, 0, len(data.Array()))
		var bad error
		data.ForEach(func(_, el gjson.Result) bool {
			if !el.IsObject() {
				bad = fmt.Errorf("%w: data element is %s, not an object", ErrMalformedEnvelope, el.Type)
				return false
			}
			items = append(items, entityOf(el))
			return true
		})
		if bad != nil {
			return Payload{}, bad
		}
		return Payload{page: newPage(items, rawMeta(env))}, nil

	case data.IsObject():
		return Payload{entity: entityOf(data)}, nil

	default:
		return Payload{}, fmt.Errorf("%w: data is %s", ErrMalformedEnvelope, data.Type)
	}
}

// DecodeSelf materializes the response of a create or update call.
func DecodeSelf(body []byte) (*SelfResponse, error) {
	env, err := envelope(body)
	if err != nil {
		return nil, err
	}

	data := env.Get("data")
	if !data.IsObject() && !data.IsArray() {
		return nil, fmt.Errorf("%w: data is %s", ErrMalformedEnvelope, data.Type)
	}

	return &SelfResponse{
		data: json.RawMessage(data.Raw),
		meta: rawMeta(env),
	}, nil
}

// DecodeEntity wraps a bare JSON object, without an envelope, as an Entity.
func DecodeEntity(body []byte) (*Entity, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}

	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return nil, fmt.Errorf("%w: body is %s, not an object", ErrMalformedEnvelope, res.Type)
	}

	return entityOf(res), nil
}

func envelope(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, ErrInvalidJSON
	}

	env := gjson.ParseBytes(body)
	if !env.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: body is %s, not an object", ErrMalformedEnvelope, env.Type)
	}
	if !env.Get("data").Exists() {
		return gjson.Result{}, fmt.Errorf("%w: missing data", ErrMalformedEnvelope)
	}

	return env, nil
}

func rawMeta(env gjson.Result) json.RawMessage {
	meta := env.Get("meta")
	if !meta.Exists() {
		return nil
	}
	return json.RawMessage(meta.Raw)
}

// entityOf wraps a JSON object, walking its members in document order.
func entityOf(obj gjson.Result) *Entity {
	e := newEntity(0)
	obj.ForEach(func(key, val gjson.Result) bool {
		e.Set(key.String(), valueOf(val))
		return true
	})
	return e
}

func valueOf(r gjson.Result) Value {
	switch r.Type {
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	case gjson.Number:
		return Number(json.Number(r.Raw))
	case gjson.String:
		return String(r.Str)
	case gjson.JSON:
		if r.IsObject() {
			return EntityValue(entityOf(r))
		}
		vals := []Value{}
		r.ForEach(func(_, el gjson.Result) bool {
			vals = append(vals, valueOf(el))
			return true
		})
		return Sequence(vals...)
	default:
		return Null()
	}
}
