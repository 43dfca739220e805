// Package convert translates between domain tasks and the document store's typed-field
// encoding, where every scalar is wrapped as {"<typeTag>": value}.
package convert

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/and161185/taskkeeper/internal/errs"
)

// Type tags understood by the codec. Other tags (arrays, maps, references) are carried
// through untouched.
const (
	KindString    = "stringValue"
	KindTimestamp = "timestampValue"
	KindInteger   = "integerValue"
	KindBoolean   = "booleanValue"
	KindDouble    = "doubleValue"
	KindNull      = "nullValue"
)

// Value is one typed field: a single-key object mapping the type tag to its raw JSON value.
type Value map[string]json.RawMessage

// Fields is a document's field set.
type Fields map[string]Value

func raw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// String wraps s as a stringValue.
func String(s string) Value { return Value{KindString: raw(s)} }

// Timestamp wraps t as a timestampValue (RFC 3339, UTC).
func Timestamp(t time.Time) Value {
	return Value{KindTimestamp: raw(t.UTC().Format(time.RFC3339Nano))}
}

// Integer wraps i as an integerValue; int64 travels as a decimal string.
func Integer(i int64) Value { return Value{KindInteger: raw(strconv.FormatInt(i, 10))} }

// Boolean wraps b as a booleanValue.
func Boolean(b bool) Value { return Value{KindBoolean: raw(b)} }

// Double wraps f as a doubleValue.
func Double(f float64) Value { return Value{KindDouble: raw(f)} }

// Null returns a nullValue.
func Null() Value { return Value{KindNull: raw("NULL_VALUE")} }

// Kind returns the type tag, or "" for an empty value.
func (v Value) Kind() string {
	for k := range v {
		return k
	}
	return ""
}

// AsString returns the payload of a stringValue.
func (v Value) AsString() (string, bool) {
	r, ok := v[KindString]
	if !ok {
		return "", false
	}
	var s string
	if json.Unmarshal(r, &s) != nil {
		return "", false
	}
	return s, true
}

// AsTime returns the payload of a timestampValue.
func (v Value) AsTime() (time.Time, bool) {
	r, ok := v[KindTimestamp]
	if !ok {
		return time.Time{}, false
	}
	var s string
	if json.Unmarshal(r, &s) != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// AsInt returns the payload of an integerValue (string or number form).
func (v Value) AsInt() (int64, bool) {
	r, ok := v[KindInteger]
	if !ok {
		return 0, false
	}
	var s string
	if json.Unmarshal(r, &s) == nil {
		i, err := strconv.ParseInt(s, 10, 64)
		return i, err == nil
	}
	var i int64
	if json.Unmarshal(r, &i) != nil {
		return 0, false
	}
	return i, true
}

// AsBool returns the payload of a booleanValue.
func (v Value) AsBool() (bool, bool) {
	r, ok := v[KindBoolean]
	if !ok {
		return false, false
	}
	var b bool
	if json.Unmarshal(r, &b) != nil {
		return false, false
	}
	return b, true
}

// AsDouble returns the payload of a doubleValue.
func (v Value) AsDouble() (float64, bool) {
	r, ok := v[KindDouble]
	if !ok {
		return 0, false
	}
	var f float64
	if json.Unmarshal(r, &f) != nil {
		return 0, false
	}
	return f, true
}

// Encode wraps a Go value, inferring the type tag from its Go type.
func Encode(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case time.Time:
		return Timestamp(t), nil
	case fmt.Stringer:
		return String(t.String()), nil
	case bool:
		return Boolean(t), nil
	case int:
		return Integer(int64(t)), nil
	case int32:
		return Integer(int64(t)), nil
	case int64:
		return Integer(t), nil
	case uint32:
		return Integer(int64(t)), nil
	case float32:
		return Double(float64(t)), nil
	case float64:
		return Double(t), nil
	}
	return nil, errs.Validation("unsupported field type %T", x)
}

// EncodeAs wraps x under the given type tag, converting where the conversion is lossless
// (e.g. "42" into an integerValue). Unknown tags fall back to Encode.
func EncodeAs(kind string, x any) (Value, error) {
	switch kind {
	case KindString:
		switch t := x.(type) {
		case string:
			return String(t), nil
		case time.Time:
			return String(t.UTC().Format(time.RFC3339Nano)), nil
		case fmt.Stringer:
			return String(t.String()), nil
		case bool, int, int32, int64, uint32, float32, float64:
			return String(fmt.Sprint(t)), nil
		}
	case KindTimestamp:
		switch t := x.(type) {
		case time.Time:
			return Timestamp(t), nil
		case string:
			ts, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, errs.Validation("%q is not an RFC 3339 timestamp", t)
			}
			return Timestamp(ts), nil
		}
	case KindInteger:
		switch t := x.(type) {
		case int, int32, int64, uint32:
			return Encode(t)
		case string:
			i, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return nil, errs.Validation("%q is not an integer", t)
			}
			return Integer(i), nil
		}
	case KindBoolean:
		switch t := x.(type) {
		case bool:
			return Boolean(t), nil
		case string:
			b, err := strconv.ParseBool(t)
			if err != nil {
				return nil, errs.Validation("%q is not a boolean", t)
			}
			return Boolean(b), nil
		}
	case KindDouble:
		switch t := x.(type) {
		case float32, float64:
			return Encode(t)
		case int:
			return Double(float64(t)), nil
		case int64:
			return Double(float64(t)), nil
		case string:
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, errs.Validation("%q is not a number", t)
			}
			return Double(f), nil
		}
	default:
		return Encode(x)
	}
	return nil, errs.Validation("cannot store %T as %s", x, kind)
}

// MergeFields returns a copy of existing with updates applied. An updated field keeps the
// type tag it already has; a new field gets the tag inferred from its Go value.
func MergeFields(existing Fields, updates map[string]any) (Fields, error) {
	out := make(Fields, len(existing)+len(updates))
	for k, v := range existing {
		out[k] = v
	}
	for k, x := range updates {
		var (
			v   Value
			err error
		)
		if cur, ok := existing[k]; ok && cur.Kind() != KindNull {
			v, err = EncodeAs(cur.Kind(), x)
		} else {
			v, err = Encode(x)
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
