package krama

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Stage is one ordered unit of executable logic in a pipeline run. When
// run, a stage may define or import zero or more callables into the shared
// namespace; any such callable becomes a candidate for cache interception
// from that point forward.
type Stage interface {
	// Name identifies the stage in logs, history records, and CLI output.
	Name() string

	// Run executes the stage against the shared namespace. A returned
	// error aborts the remaining stages of the run.
	Run(ctx context.Context, ns *Namespace) error
}

// StageFunc adapts a function to the Stage interface.
func StageFunc(name string, fn func(ctx context.Context, ns *Namespace) error) Stage {
	return stageFunc{name: name, fn: fn}
}

type stageFunc struct {
	name string
	fn   func(ctx context.Context, ns *Namespace) error
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Run(ctx context.Context, ns *Namespace) error { return s.fn(ctx, ns) }

// Registry maps stage names to stages so the CLI and queue workers can
// assemble pipelines from names. Registration happens during program setup;
// lookups are safe for concurrent use afterwards.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage under its own name. Registering a duplicate name
// returns an error.
func (r *Registry) Register(stage Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := stage.Name()
	if _, exists := r.stages[name]; exists {
		return fmt.Errorf("stage %q already registered", name)
	}
	r.stages[name] = stage
	return nil
}

// Lookup resolves one stage name.
func (r *Registry) Lookup(name string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stage, ok := r.stages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	return stage, nil
}

// Resolve maps an ordered list of names to stages, preserving order.
func (r *Registry) Resolve(names ...string) ([]Stage, error) {
	stages := make([]Stage, len(names))
	for i, name := range names {
		stage, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}
		stages[i] = stage
	}
	return stages, nil
}

// Names returns all registered stage names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stages))
	for name := range r.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
