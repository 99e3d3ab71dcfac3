package codec

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncodeDeterministic(t *testing.T) {
	values := []any{
		nil,
		true,
		int(42),
		int64(-7),
		uint8(255),
		3.14,
		"hello",
		[]byte{0x01, 0x02, 0x03},
		[]any{1, "two", true, nil},
		map[string]any{"b": 2, "a": 1, "c": []any{"x", "y"}},
	}

	for _, v := range values {
		first, err := Encode(v)
		if err != nil {
			t.Fatalf("Encode(%v) failed: %v", v, err)
		}
		second, err := Encode(v)
		if err != nil {
			t.Fatalf("Encode(%v) failed on repeat: %v", v, err)
		}
		if !bytes.Equal(first, second) {
			t.Errorf("Encode(%v) not byte-stable", v)
		}
	}
}

func TestEncodeMapOrderIndependent(t *testing.T) {
	// Two maps with the same pairs built in different insertion orders.
	a := map[string]int{}
	for _, k := range []string{"alpha", "beta", "gamma", "delta"} {
		a[k] = len(k)
	}
	b := map[string]int{}
	for _, k := range []string{"delta", "gamma", "beta", "alpha"} {
		b[k] = len(k)
	}

	ea, err := Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	eb, err := Encode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ea, eb) {
		t.Error("encodings differ for value-equal maps")
	}
}

func TestEncodeNotCacheable(t *testing.T) {
	values := []any{
		func() {},
		make(chan int),
		struct{ X int }{X: 1},
		map[int]string{1: "one"},
		[]any{1, make(chan int)},
		map[string]any{"ok": 1, "bad": func() {}},
	}

	for _, v := range values {
		if _, err := Encode(v); !errors.Is(err, ErrNotCacheable) {
			t.Errorf("Encode(%T) = %v, want ErrNotCacheable", v, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 42, float64(42)},
		{"float", 2.5, 2.5},
		{"string", "hi", "hi"},
		{"bytes", []byte("abc"), "YWJj"}, // base64
		{"list", []int{1, 2}, []any{float64(1), float64(2)}},
		{"map", map[string]string{"k": "v"}, map[string]any{"k": "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.in)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := Decode(b)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("round trip = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEncodeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("string map encoding is insertion-order independent", prop.ForAll(
		func(rawKeys []string, vals []int64) bool {
			// Deduplicate keys so both build orders produce the same pairs.
			seen := map[string]bool{}
			var keys []string
			for _, k := range rawKeys {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
			n := len(keys)
			if len(vals) < n {
				n = len(vals)
			}

			forward := map[string]int64{}
			for i := 0; i < n; i++ {
				forward[keys[i]] = vals[i]
			}
			backward := map[string]int64{}
			for i := n - 1; i >= 0; i-- {
				backward[keys[i]] = vals[i]
			}

			ef, err := Encode(forward)
			if err != nil {
				return false
			}
			eb, err := Encode(backward)
			if err != nil {
				return false
			}
			return bytes.Equal(ef, eb)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.Int64()),
	))

	properties.Property("encode/decode preserves string slices", prop.ForAll(
		func(in []string) bool {
			b, err := Encode(in)
			if err != nil {
				return false
			}
			decoded, err := Decode(b)
			if err != nil {
				return false
			}
			if len(in) == 0 {
				list, ok := decoded.([]any)
				return ok && len(list) == 0
			}
			list, ok := decoded.([]any)
			if !ok || len(list) != len(in) {
				return false
			}
			for i, s := range in {
				if list[i] != s {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}
