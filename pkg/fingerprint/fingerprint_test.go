package fingerprint

import (
	"errors"
	"testing"

	"krama/pkg/codec"
)

// scaleBy and multiplyWith have identical logic under different names,
// comments, and local identifiers. Their structural digests must match.

func scaleBy(base int, factor int) int {
	// intermediate kept for the renamed twin below
	product := base * factor
	return product
}

func multiplyWith(a int, b int) int {
	result := a * b
	return result
}

// spacedMultiply repeats multiplyWith's logic with extra layout noise:
// blank lines and a comment line between the statements.
func spacedMultiply(x int, y int) int {

	// intermediate value

	outcome := x * y

	return outcome
}

// scaleByOffset differs from scaleBy in one literal constant.
func scaleByOffset(base int, factor int) int {
	product := base*factor + 1
	return product
}

func TestFingerprintDeterministic(t *testing.T) {
	f := New()

	k1, err := f.Fingerprint(scaleBy, []any{2, 3}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	k2, err := f.Fingerprint(scaleBy, []any{2, 3}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if k1 != k2 {
		t.Errorf("same call produced different keys: %s vs %s", k1, k2)
	}

	// A fresh Fingerprinter must agree: nothing process-local leaks in.
	k3, err := New().Fingerprint(scaleBy, []any{2, 3}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if k1 != k3 {
		t.Error("fresh fingerprinter disagrees for identical call")
	}
}

func TestFingerprintCosmeticInsensitive(t *testing.T) {
	f := New()

	k1, err := f.Fingerprint(scaleBy, []any{4, 5}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	k2, err := f.Fingerprint(multiplyWith, []any{4, 5}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if k1 != k2 {
		t.Errorf("renamed twin produced a different key: %s vs %s", k1, k2)
	}
}

func TestFingerprintLayoutInsensitive(t *testing.T) {
	f := New()

	k1, err := f.Fingerprint(multiplyWith, []any{4, 5}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	k2, err := f.Fingerprint(spacedMultiply, []any{4, 5}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if k1 != k2 {
		t.Errorf("blank and comment lines changed the key: %s vs %s", k1, k2)
	}
}

func TestFingerprintLogicSensitive(t *testing.T) {
	f := New()

	k1, err := f.Fingerprint(scaleBy, []any{4, 5}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	k2, err := f.Fingerprint(scaleByOffset, []any{4, 5}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if k1 == k2 {
		t.Error("changed literal did not change the key")
	}
}

func TestFingerprintArgumentSensitive(t *testing.T) {
	f := New()

	base, err := f.Fingerprint(scaleBy, []any{4, 5}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	differentArgs, err := f.Fingerprint(scaleBy, []any{5, 4}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if base == differentArgs {
		t.Error("swapped arguments did not change the key")
	}

	withNamed, err := f.Fingerprint(scaleBy, []any{4, 5}, map[string]any{"mode": "fast"})
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if base == withNamed {
		t.Error("named arguments did not change the key")
	}
}

func TestFingerprintFrameBoundaries(t *testing.T) {
	f := New()

	// "ab","c" and "a","bc" must not collide by concatenation.
	k1, err := f.Fingerprint(scaleByNames, []any{"ab", "c"}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	k2, err := f.Fingerprint(scaleByNames, []any{"a", "bc"}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if k1 == k2 {
		t.Error("argument framing collision")
	}
}

func scaleByNames(a string, b string) int {
	return len(a) + len(b)
}

func TestFingerprintClosures(t *testing.T) {
	f := New()

	makeAdder := func(n int) func(int) int {
		return func(x int) int { return x + n }
	}

	// Two closures over the same literal share one entry point and the
	// captured value is invisible to the digest.
	k1, err := f.Fingerprint(makeAdder(1), []any{10}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	k2, err := f.Fingerprint(makeAdder(2), []any{10}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if k1 != k2 {
		t.Error("captured state leaked into the key")
	}
}

// sumViaFirst and sumViaSecond call different helpers and each shadows its
// helper's name in an inner block. Only the shadowing binding may be
// normalized; the calls must keep the helper names apart.

func sumViaFirst(n int) int {
	total := firstTerm(n)
	{
		firstTerm := 0
		total += firstTerm
	}
	return total
}

func sumViaSecond(n int) int {
	total := secondTerm(n)
	{
		secondTerm := 0
		total += secondTerm
	}
	return total
}

func firstTerm(n int) int { return n + 1 }

func secondTerm(n int) int { return n * 2 }

func TestFingerprintShadowedExternalStaysVisible(t *testing.T) {
	f := New()

	k1, err := f.Fingerprint(sumViaFirst, []any{7}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	k2, err := f.Fingerprint(sumViaSecond, []any{7}, nil)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if k1 == k2 {
		t.Error("shadowing a helper's name hid the call target from the key")
	}
}

func TestFingerprintNotCacheable(t *testing.T) {
	f := New()

	if _, err := f.Fingerprint(42, nil, nil); !errors.Is(err, codec.ErrNotCacheable) {
		t.Errorf("non-function: got %v, want ErrNotCacheable", err)
	}

	if _, err := f.Fingerprint(scaleBy, []any{make(chan int)}, nil); !errors.Is(err, codec.ErrNotCacheable) {
		t.Errorf("channel argument: got %v, want ErrNotCacheable", err)
	}
}
