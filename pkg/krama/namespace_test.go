package krama

import (
	"errors"
	"fmt"
	"testing"
)

func TestNamespaceDefineAndLookup(t *testing.T) {
	ns := NewNamespace()

	ns.Define("answer", 42)
	ns.Define("name", "krama")

	v, ok := ns.Lookup("answer")
	if !ok || v.(int) != 42 {
		t.Errorf("Lookup(answer) = %v, %v", v, ok)
	}

	if _, ok := ns.Lookup("missing"); ok {
		t.Error("Lookup(missing) reported a binding")
	}

	if ns.Len() != 2 {
		t.Errorf("Len = %d, want 2", ns.Len())
	}
}

func TestNamespaceNamesKeepDefinitionOrder(t *testing.T) {
	ns := NewNamespace()

	ns.Define("c", 1)
	ns.Define("a", 2)
	ns.Define("b", 3)
	ns.Define("a", 4) // redefinition keeps original position

	names := ns.Names()
	want := []string{"c", "a", "b"}
	if len(names) != len(want) {
		t.Fatalf("Names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %s, want %s", i, names[i], want[i])
		}
	}

	v, _ := ns.Lookup("a")
	if v.(int) != 4 {
		t.Errorf("redefined a = %v, want 4", v)
	}
}

func TestDefineFuncRejectsNonFunctions(t *testing.T) {
	ns := NewNamespace()

	if err := ns.DefineFunc("bad", 42); !errors.Is(err, ErrNotFunc) {
		t.Errorf("DefineFunc(int) = %v, want ErrNotFunc", err)
	}
	var nilFn func()
	if err := ns.DefineFunc("nil", nilFn); !errors.Is(err, ErrNotFunc) {
		t.Errorf("DefineFunc(nil func) = %v, want ErrNotFunc", err)
	}

	if err := ns.DefineFunc("ok", func() {}); err != nil {
		t.Errorf("DefineFunc(func) failed: %v", err)
	}
}

func TestNamespaceCall(t *testing.T) {
	ns := NewNamespace()

	if err := ns.DefineFunc("add", func(a, b int) int { return a + b }); err != nil {
		t.Fatal(err)
	}
	if err := ns.DefineFunc("divide", func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		return a / b, nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := ns.DefineFunc("swap", func(a, b string) (string, string) {
		return b, a
	}); err != nil {
		t.Fatal(err)
	}
	if err := ns.DefineFunc("join", func(sep string, parts ...string) string {
		out := ""
		for i, p := range parts {
			if i > 0 {
				out += sep
			}
			out += p
		}
		return out
	}); err != nil {
		t.Fatal(err)
	}

	v, err := ns.Call("add", 2, 3)
	if err != nil {
		t.Fatalf("Call(add) failed: %v", err)
	}
	if v.(int) != 5 {
		t.Errorf("add = %v", v)
	}

	// Numeric conversion: int arguments to a float64 parameter.
	v, err = ns.Call("divide", 9, 2)
	if err != nil {
		t.Fatalf("Call(divide) failed: %v", err)
	}
	if v.(float64) != 4.5 {
		t.Errorf("divide = %v", v)
	}

	// Trailing error split off.
	if _, err := ns.Call("divide", 1, 0); err == nil {
		t.Error("division by zero error swallowed")
	}

	// Multiple results come back as []any.
	v, err = ns.Call("swap", "x", "y")
	if err != nil {
		t.Fatal(err)
	}
	pair, ok := v.([]any)
	if !ok || len(pair) != 2 || pair[0] != "y" || pair[1] != "x" {
		t.Errorf("swap = %#v", v)
	}

	// Variadic.
	v, err = ns.Call("join", "-", "a", "b", "c")
	if err != nil {
		t.Fatal(err)
	}
	if v.(string) != "a-b-c" {
		t.Errorf("join = %v", v)
	}
	v, err = ns.Call("join", ",")
	if err != nil {
		t.Fatal(err)
	}
	if v.(string) != "" {
		t.Errorf("join with no parts = %q", v)
	}
}

func TestNamespaceCallErrors(t *testing.T) {
	ns := NewNamespace()
	ns.Define("notfn", 42)
	if err := ns.DefineFunc("one", func(a int) int { return a }); err != nil {
		t.Fatal(err)
	}

	if _, err := ns.Call("missing"); !errors.Is(err, ErrNotCallable) {
		t.Errorf("Call(missing) = %v, want ErrNotCallable", err)
	}
	if _, err := ns.Call("notfn"); !errors.Is(err, ErrNotCallable) {
		t.Errorf("Call(notfn) = %v, want ErrNotCallable", err)
	}
	if _, err := ns.Call("one"); err == nil {
		t.Error("arity mismatch accepted")
	}
	if _, err := ns.Call("one", "not an int"); err == nil {
		t.Error("inconvertible argument accepted")
	}
}

func TestNamespaceJournal(t *testing.T) {
	ns := NewNamespace()

	ns.Define("a", 1)
	ns.Define("b", 2)
	ns.Define("a", 3) // redefinition journals once more

	drained := ns.drainJournal()
	want := []string{"a", "b"}
	if fmt.Sprint(drained) != fmt.Sprint(want) {
		t.Errorf("journal = %v, want %v", drained, want)
	}

	// Journal is consumed by draining.
	if again := ns.drainJournal(); len(again) != 0 {
		t.Errorf("second drain = %v, want empty", again)
	}

	ns.Define("c", 4)
	if next := ns.drainJournal(); len(next) != 1 || next[0] != "c" {
		t.Errorf("post-drain journal = %v, want [c]", next)
	}
}

func TestNamespaceReplaceIsSilent(t *testing.T) {
	ns := NewNamespace()

	ns.Define("fn", 1)
	ns.drainJournal()

	ns.replace("fn", 2)
	if drained := ns.drainJournal(); len(drained) != 0 {
		t.Errorf("replace journaled: %v", drained)
	}

	v, _ := ns.Lookup("fn")
	if v.(int) != 2 {
		t.Errorf("replace did not swap the value: %v", v)
	}

	// Replacing an unbound name is a no-op.
	ns.replace("ghost", 9)
	if _, ok := ns.Lookup("ghost"); ok {
		t.Error("replace created a binding")
	}
}
