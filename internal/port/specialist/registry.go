package specialist

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/MedScribe/internal/domain/trigger"
	"github.com/Strob0t/MedScribe/internal/port/calendar"
	"github.com/Strob0t/MedScribe/internal/port/generation"
)

// Spec is everything a factory needs to build one configured agent. Handles
// are created by the composition root and injected; factories never open
// remote resources themselves.
type Spec struct {
	Name      string
	Kind      string
	Rule      trigger.Rule
	Template  string
	Generator generation.Generator
	Calendar  calendar.Calendar
	Now       func() time.Time
	Options   map[string]string
}

// Factory builds an agent of one kind.
type Factory func(spec Spec) (Agent, error)

// Registry maps agent kinds to factories. Kinds are registered explicitly by
// the composition root.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register makes a factory available under kind.
func (r *Registry) Register(kind string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("specialist: duplicate registration for %q", kind)
	}
	r.factories[kind] = f
	return nil
}

// Build creates one agent per spec, preserving the given order. Names must be
// unique.
func (r *Registry) Build(specs []Spec) ([]Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]Agent, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("specialist: duplicate agent name %q", s.Name)
		}
		seen[s.Name] = struct{}{}

		f, ok := r.factories[s.Kind]
		if !ok {
			return nil, fmt.Errorf("specialist: unknown agent kind %q for %q", s.Kind, s.Name)
		}
		if s.Now == nil {
			s.Now = time.Now
		}
		a, err := f(s)
		if err != nil {
			return nil, fmt.Errorf("specialist: build %q: %w", s.Name, err)
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
