package resource

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
)

// Kind identifies which variant a [Value] holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindEntity
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindEntity:
		return "entity"
	case KindSequence:
		return "sequence"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single node of a materialized response: a JSON scalar,
// a nested [Entity], or a sequence of values. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	ent  *Entity
	seq  []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a JSON number, keeping its exact text.
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// EntityValue wraps an entity. A nil entity yields null.
func EntityValue(e *Entity) Value {
	if e == nil {
		return Null()
	}
	return Value{kind: KindEntity, ent: e}
}

// Sequence wraps an ordered list of values.
func Sequence(vals ...Value) Value {
	if vals == nil {
		vals = []Value{}
	}
	return Value{kind: KindSequence, seq: vals}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean held by v, false otherwise.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

// Number returns the raw JSON number held by v, "" otherwise.
func (v Value) Number() json.Number {
	if v.kind != KindNumber {
		return ""
	}
	return v.num
}

// Int returns v as an int64. ok is false when v is not an integral number.
func (v Value) Int() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	n, err := v.num.Int64()
	return n, err == nil
}

// Float returns v as a float64. ok is false when v is not a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	return f, err == nil
}

// Str returns the string held by v, "" otherwise.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// Entity returns the entity held by v, nil otherwise.
func (v Value) Entity() *Entity {
	if v.kind != KindEntity {
		return nil
	}
	return v.ent
}

// Seq returns the elements held by v, nil otherwise.
func (v Value) Seq() []Value {
	if v.kind != KindSequence {
		return nil
	}
	return v.seq
}

// Len returns the number of elements of a sequence or keys of an entity.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindEntity:
		return v.ent.Len()
	default:
		return 0
	}
}

// Get reads key from the entity held by v. It returns null when v is not
// an entity or the key is absent, so lookups can be chained.
func (v Value) Get(key string) Value {
	if v.kind != KindEntity {
		return Null()
	}
	return v.ent.Get(key)
}

// Index returns element i of a sequence, or null when v is not a sequence
// or i is out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindSequence || i < 0 || i >= len(v.seq) {
		return Null()
	}
	return v.seq[i]
}

// Interface converts v back into plain Go data: nil, bool, json.Number,
// string, map[string]any or []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindEntity:
		return v.ent.ToMap()
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, el := range v.seq {
			out[i] = el.Interface()
		}
		return out
	default:
		return nil
	}
}

// String implements fmt.Stringer with the JSON rendering of v.
func (v Value) String() string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("!(%v)", err)
	}
	return string(b)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindNumber:
		return []byte(v.num), nil
	case KindString:
		return json.Marshal(v.str)
	case KindEntity:
		return v.ent.MarshalJSON()
	case KindSequence:
		buf := []byte{'['}
		for i, el := range v.seq {
			if i > 0 {
				buf = append(buf, ',')
			}
			b, err := el.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf = append(buf, b...)
		}
		return append(buf, ']'), nil
	default:
		return []byte("null"), nil
	}
}

// Equal reports whether v and o hold structurally equal data.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindEntity:
		return v.ent.Equal(o.ent)
	case KindSequence:
		return slices.EqualFunc(v.seq, o.seq, Value.Equal)
	default:
		return true
	}
}

// ValueOf builds a Value from plain Go data using the same wrapping rules
// as the response decoder: maps become entities, slices become sequences.
// Map keys are ordered lexically since Go maps carry no order.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case *Entity:
		return EntityValue(t)
	case bool:
		return Bool(t)
	case json.Number:
		return Number(t)
	case string:
		return String(t)
	case map[string]any:
		return EntityValue(NewEntity(t))
	case []any:
		vals := make([]Value, len(t))
		for i, el := range t {
			vals[i] = ValueOf(el)
		}
		return Sequence(vals...)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(json.Number(strconv.FormatInt(rv.Int(), 10)))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(json.Number(strconv.FormatUint(rv.Uint(), 10)))
	case reflect.Float32, reflect.Float64:
		return Number(json.Number(strconv.FormatFloat(rv.Float(), 'f', -1, 64)))
	case reflect.Slice, reflect.Array:
		vals := make([]Value, rv.Len())
		for i := range vals {
			vals[i] = ValueOf(rv.Index(i).Interface())
		}
		return Sequence(vals...)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return EntityValue(NewEntity(m))
	}

	return String(fmt.Sprint(x))
}
