// Package codec provides the canonical value serialization shared by the
// fingerprinter and the cache store.
//
// Encoding is byte-stable: value-equal inputs always produce identical
// bytes, across processes and platforms. This is what makes cache keys
// reproducible and cache payloads content-addressable. Values that cannot
// be serialized deterministically (functions, channels, arbitrary structs,
// maps with non-string keys) are rejected with ErrNotCacheable.
package codec

import (
	"errors"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotCacheable is returned when a value has no deterministic canonical
// encoding. Callers are expected to recover locally: skip caching and
// compute the value normally.
var ErrNotCacheable = errors.New("value cannot be deterministically serialized")

// Encode serializes v into canonical bytes.
//
// Supported values are the JSON-like family: nil, booleans, all integer and
// float widths, strings, []byte, slices/arrays of supported values, and
// string-keyed maps of supported values. Map entries are ordered by key in
// the output regardless of insertion order.
func Encode(v any) ([]byte, error) {
	val, err := toValue(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	// Deterministic marshaling sorts map entries, which keeps the struct
	// field ordering stable between processes.
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical value: %w", err)
	}
	return b, nil
}

// Decode reverses Encode. Numbers come back as float64 and []byte as its
// base64 form, mirroring structpb semantics; callers that need the original
// static type convert the result themselves.
func Decode(b []byte) (any, error) {
	val := &structpb.Value{}
	if err := proto.Unmarshal(b, val); err != nil {
		return nil, fmt.Errorf("unmarshal canonical value: %w", err)
	}
	return val.AsInterface(), nil
}

// toValue converts a reflected Go value to its structpb representation.
func toValue(rv reflect.Value) (*structpb.Value, error) {
	if !rv.IsValid() {
		return structpb.NewNullValue(), nil
	}

	// Unwrap interfaces and pointers down to the concrete value.
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return structpb.NewNullValue(), nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return structpb.NewBoolValue(rv.Bool()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return structpb.NewNumberValue(float64(rv.Int())), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return structpb.NewNumberValue(float64(rv.Uint())), nil

	case reflect.Float32, reflect.Float64:
		return structpb.NewNumberValue(rv.Float()), nil

	case reflect.String:
		return structpb.NewStringValue(rv.String()), nil

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			// []byte follows structpb's base64 convention.
			v, err := structpb.NewValue(rv.Bytes())
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrNotCacheable, err)
			}
			return v, nil
		}
		list := &structpb.ListValue{Values: make([]*structpb.Value, rv.Len())}
		for i := 0; i < rv.Len(); i++ {
			elem, err := toValue(rv.Index(i))
			if err != nil {
				return nil, err
			}
			list.Values[i] = elem
		}
		return structpb.NewListValue(list), nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map keyed by %s", ErrNotCacheable, rv.Type().Key())
		}
		st := &structpb.Struct{Fields: make(map[string]*structpb.Value, rv.Len())}
		iter := rv.MapRange()
		for iter.Next() {
			field, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			st.Fields[iter.Key().String()] = field
		}
		return structpb.NewStructValue(st), nil

	default:
		return nil, fmt.Errorf("%w: unsupported kind %s (%s)", ErrNotCacheable, rv.Kind(), rv.Type())
	}
}
