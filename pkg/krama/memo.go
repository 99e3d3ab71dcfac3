package krama

import (
	"context"
	"encoding/base64"
	"reflect"
	"time"

	"krama/pkg/cache"
	"krama/pkg/codec"
)

// memoize builds the caching proxy for an intercepted callable. The proxy
// preserves fn's exact signature via reflect.MakeFunc.
//
// Per invocation: fingerprint the callable plus arguments; on a hit return
// the decoded cached results without running the body; on a miss run the
// body, persist the results, and return them. A call that cannot be
// fingerprinted, or whose results cannot be serialized, simply executes
// without caching. Store failures and corrupt entries degrade to misses.
func (p *Pipeline) memoize(ctx context.Context, runID, name string, fn any) any {
	fnVal := reflect.ValueOf(fn)
	t := fnVal.Type()

	call := func(in []reflect.Value) []reflect.Value {
		if t.IsVariadic() {
			return fnVal.CallSlice(in)
		}
		return fnVal.Call(in)
	}

	wrapper := reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
		args := make([]any, len(in))
		for i, v := range in {
			args[i] = v.Interface()
		}

		key, err := p.fp.Fingerprint(fn, args, nil)
		if err != nil {
			p.reportNotCacheable(ctx, runID, name, "")
			return call(in)
		}

		start := time.Now()
		entry, getErr := p.store.Get(ctx, string(key))
		if getErr == nil && entry != nil {
			if out, ok := decodeResults(t, entry.Payload); ok {
				p.obs.OnCacheCheck(ctx, &CacheCheckEvent{
					RunID:    runID,
					Callable: name,
					Digest:   string(key),
					Hit:      true,
					Latency:  time.Since(start),
				})
				return out
			}
			// Corrupted or shape-incompatible payload: recompute and
			// overwrite below.
		}

		p.obs.OnCacheCheck(ctx, &CacheCheckEvent{
			RunID:    runID,
			Callable: name,
			Digest:   string(key),
			Hit:      false,
			Latency:  time.Since(start),
			Error:    getErr,
		})

		out := call(in)

		payload, encodable := encodeResults(t, out)
		if !encodable {
			p.reportNotCacheable(ctx, runID, name, string(key))
			return out
		}
		if payload != nil {
			putErr := p.store.Put(ctx, &cache.Entry{
				Digest:    string(key),
				Payload:   payload,
				CreatedAt: time.Now(),
			})
			if putErr != nil {
				p.obs.OnCacheCheck(ctx, &CacheCheckEvent{
					RunID:    runID,
					Callable: name,
					Digest:   string(key),
					Error:    putErr,
				})
			}
		}
		return out
	})

	return wrapper.Interface()
}

func (p *Pipeline) reportNotCacheable(ctx context.Context, runID, name, digest string) {
	p.obs.OnCacheCheck(ctx, &CacheCheckEvent{
		RunID:        runID,
		Callable:     name,
		Digest:       digest,
		NotCacheable: true,
		Warn:         p.warnNotCacheable,
	})
}

// encodeResults serializes the callable's value results into one canonical
// payload. A trailing non-nil error result suppresses caching entirely;
// errors are never memoized.
//
// Zero value results encode as nil, so side-effect-only callables are
// still skipped on rerun (their effects are, by contract, not replayed).
func encodeResults(t reflect.Type, out []reflect.Value) (payload []byte, encodable bool) {
	values := out
	if n := len(out); n > 0 && t.Out(n-1) == errType {
		if !out[n-1].IsNil() {
			return nil, true // executed with error: nothing to cache
		}
		values = out[:n-1]
	}

	var toEncode any
	switch len(values) {
	case 0:
		toEncode = nil
	case 1:
		toEncode = values[0].Interface()
	default:
		multi := make([]any, len(values))
		for i, v := range values {
			multi[i] = v.Interface()
		}
		toEncode = multi
	}

	b, err := codec.Encode(toEncode)
	if err != nil {
		return nil, false
	}
	return b, true
}

// decodeResults rebuilds a full result list from a cached payload,
// coercing decoded values back to the callable's declared return types.
// Any mismatch reports !ok and the caller treats the entry as a miss.
func decodeResults(t reflect.Type, payload []byte) ([]reflect.Value, bool) {
	decoded, err := codec.Decode(payload)
	if err != nil {
		return nil, false
	}

	numOut := t.NumOut()
	hasErr := numOut > 0 && t.Out(numOut-1) == errType
	numValues := numOut
	if hasErr {
		numValues--
	}

	out := make([]reflect.Value, numOut)
	switch numValues {
	case 0:
		if decoded != nil {
			return nil, false
		}
	case 1:
		v, ok := coerce(decoded, t.Out(0))
		if !ok {
			return nil, false
		}
		out[0] = v
	default:
		list, ok := decoded.([]any)
		if !ok || len(list) != numValues {
			return nil, false
		}
		for i, item := range list {
			v, ok := coerce(item, t.Out(i))
			if !ok {
				return nil, false
			}
			out[i] = v
		}
	}

	if hasErr {
		out[numOut-1] = reflect.Zero(errType)
	}
	return out, true
}

// coerce converts a decoded canonical value (nil, bool, float64, string,
// []any, map[string]any) to the target static type.
func coerce(v any, target reflect.Type) (reflect.Value, bool) {
	if target.Kind() == reflect.Interface && target.NumMethod() == 0 {
		if v == nil {
			return reflect.Zero(target), true
		}
		return reflect.ValueOf(v), true
	}

	if v == nil {
		switch target.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
			return reflect.Zero(target), true
		}
		return reflect.Value{}, false
	}

	switch val := v.(type) {
	case bool:
		if target.Kind() == reflect.Bool {
			return reflect.ValueOf(val).Convert(target), true
		}

	case float64:
		switch target.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return reflect.ValueOf(val).Convert(target), true
		}

	case string:
		if target.Kind() == reflect.String {
			return reflect.ValueOf(val).Convert(target), true
		}
		if target.Kind() == reflect.Slice && target.Elem().Kind() == reflect.Uint8 {
			// []byte round-trips through its base64 form.
			raw, err := base64.StdEncoding.DecodeString(val)
			if err != nil {
				return reflect.Value{}, false
			}
			return reflect.ValueOf(raw).Convert(target), true
		}

	case []any:
		if target.Kind() == reflect.Slice {
			out := reflect.MakeSlice(target, len(val), len(val))
			for i, item := range val {
				ev, ok := coerce(item, target.Elem())
				if !ok {
					return reflect.Value{}, false
				}
				out.Index(i).Set(ev)
			}
			return out, true
		}

	case map[string]any:
		if target.Kind() == reflect.Map && target.Key().Kind() == reflect.String {
			out := reflect.MakeMapWithSize(target, len(val))
			for k, item := range val {
				ev, ok := coerce(item, target.Elem())
				if !ok {
					return reflect.Value{}, false
				}
				out.SetMapIndex(reflect.ValueOf(k).Convert(target.Key()), ev)
			}
			return out, true
		}
	}

	return reflect.Value{}, false
}
