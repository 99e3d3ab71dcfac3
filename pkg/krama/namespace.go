package krama

import (
	"fmt"
	"reflect"
	"sync"
)

// Namespace is the single mutable scope shared by every stage of one
// pipeline run. Stage N's definitions are visible to stage N+1 and later.
//
// The executor owns the namespace for the run's lifetime and discards it at
// run end; it is never a process-wide global. The namespace journals which
// names each stage defines or redefines so the executor can wrap newly
// visible callables after the stage returns.
type Namespace struct {
	mu      sync.RWMutex
	order   []string
	values  map[string]any
	journal []string
}

// NewNamespace creates an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{values: make(map[string]any)}
}

// Define binds name to value, journaling the definition. Redefining an
// existing name replaces its value and journals it again.
func (ns *Namespace) Define(name string, value any) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if _, exists := ns.values[name]; !exists {
		ns.order = append(ns.order, name)
	}
	ns.values[name] = value
	ns.journal = append(ns.journal, name)
}

// DefineFunc binds name to a function value, making it a candidate for
// cache interception after the defining stage completes.
func (ns *Namespace) DefineFunc(name string, fn any) error {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return fmt.Errorf("%w: %s (%T)", ErrNotFunc, name, fn)
	}
	ns.Define(name, fn)
	return nil
}

// Lookup returns the value bound to name.
func (ns *Namespace) Lookup(name string) (any, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	v, ok := ns.values[name]
	return v, ok
}

// Names returns all bound names in definition order.
func (ns *Namespace) Names() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	out := make([]string, len(ns.order))
	copy(out, ns.order)
	return out
}

// Len reports the number of bound names.
func (ns *Namespace) Len() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.values)
}

// Call invokes the function bound to name with the given arguments.
//
// Arguments are converted to the function's parameter types where Go
// permits the conversion. A trailing error result is split off and
// returned; a single remaining result is returned as-is, multiple results
// as []any, and none as nil.
func (ns *Namespace) Call(name string, args ...any) (any, error) {
	v, ok := ns.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not defined", ErrNotCallable, name)
	}

	fn := reflect.ValueOf(v)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s is bound to %T", ErrNotCallable, name, v)
	}
	t := fn.Type()

	in, err := buildArgs(t, args)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}

	results := fn.Call(in)
	return splitResults(t, results)
}

// buildArgs converts call arguments to the function's parameter types.
func buildArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("expected at least %d arguments, got %d", fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("expected %d arguments, got %d", fixed, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var paramType reflect.Type
		if t.IsVariadic() && i >= fixed {
			paramType = t.In(fixed).Elem()
		} else {
			paramType = t.In(i)
		}

		av, err := convertArg(arg, paramType)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = av
	}
	return in, nil
}

func convertArg(arg any, paramType reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch paramType.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
			return reflect.Zero(paramType), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", paramType)
	}

	av := reflect.ValueOf(arg)
	if av.Type().AssignableTo(paramType) {
		return av, nil
	}
	if av.Type().ConvertibleTo(paramType) {
		return av.Convert(paramType), nil
	}
	return reflect.Value{}, fmt.Errorf("%T is not assignable to %s", arg, paramType)
}

// splitResults separates a trailing error from the value results.
func splitResults(t reflect.Type, results []reflect.Value) (any, error) {
	n := len(results)
	if n > 0 && t.Out(n-1) == errType {
		if !results[n-1].IsNil() {
			return nil, results[n-1].Interface().(error)
		}
		results = results[:n-1]
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0].Interface(), nil
	default:
		out := make([]any, len(results))
		for i, r := range results {
			out[i] = r.Interface()
		}
		return out, nil
	}
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// drainJournal returns the names defined or redefined since the previous
// drain, deduplicated in first-definition order.
func (ns *Namespace) drainJournal() []string {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	seen := make(map[string]bool, len(ns.journal))
	var out []string
	for _, name := range ns.journal {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	ns.journal = nil
	return out
}

// replace swaps a binding without journaling it; used by the executor when
// substituting the memoizing proxy for an intercepted callable.
func (ns *Namespace) replace(name string, value any) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if _, exists := ns.values[name]; exists {
		ns.values[name] = value
	}
}
