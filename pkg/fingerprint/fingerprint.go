// Package fingerprint computes deterministic digests for callables and
// their invocation arguments.
//
// The structural half of a digest is derived from the callable's parsed
// logic rather than its source text: cosmetic edits (comments, whitespace,
// local identifier renames) leave the digest unchanged, while any change to
// control flow, operators, literal constants, or referenced external names
// produces a new one. The argument half is the canonical codec encoding of
// each argument value. Equal logic plus equal argument values always yields
// the same key, across process restarts.
//
// State captured from mutable external variables is intentionally not part
// of the digest; changing such state without changing the callable or its
// arguments will not invalidate previously cached results.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"reflect"
	"sync"

	"krama/pkg/codec"
)

// Key is a fixed-format hex digest identifying one (callable, arguments)
// combination. Keys address entries in the cache store.
type Key string

// Fingerprinter computes keys. It memoizes structural digests per function
// entry point, since a callable's logic cannot change within one process.
// Safe for concurrent use.
type Fingerprinter struct {
	mu         sync.Mutex
	structural map[uintptr][]byte
}

// New creates a Fingerprinter.
func New() *Fingerprinter {
	return &Fingerprinter{structural: make(map[uintptr][]byte)}
}

// Fingerprint computes the key for calling fn with the given positional and
// named arguments.
//
// A wrapped codec.ErrNotCacheable is returned when fn's defining source is
// unavailable or an argument has no canonical encoding; callers should then
// execute the call without caching.
func (f *Fingerprinter) Fingerprint(fn any, args []any, named map[string]any) (Key, error) {
	structural, err := f.structuralFor(fn)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write(structural)

	for i, arg := range args {
		b, err := codec.Encode(arg)
		if err != nil {
			return "", fmt.Errorf("argument %d: %w", i, err)
		}
		writeFrame(h, b)
	}

	if len(named) > 0 {
		b, err := codec.Encode(named)
		if err != nil {
			return "", fmt.Errorf("named arguments: %w", err)
		}
		writeFrame(h, b)
	}

	return Key(hex.EncodeToString(h.Sum(nil))), nil
}

// structuralFor returns the cached structural stream for fn, computing it
// on first sight of the function's entry point.
func (f *Fingerprinter) structuralFor(fn any) ([]byte, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, fmt.Errorf("%w: not a function value (%T)", codec.ErrNotCacheable, fn)
	}
	pc := rv.Pointer()

	f.mu.Lock()
	cached, ok := f.structural[pc]
	f.mu.Unlock()
	if ok {
		return cached, nil
	}

	b, err := structuralBytes(fn)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.structural[pc] = b
	f.mu.Unlock()
	return b, nil
}

// writeFrame length-prefixes each argument encoding so adjacent arguments
// can never collide by concatenation.
func writeFrame(h hash.Hash, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}
