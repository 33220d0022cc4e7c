package usecase

import (
	"sort"
	"sync"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
)

// Factory builds a use case for one test case run.
type Factory func(env Env) (UseCase, error)

// factories is a class id → constructor table shared by the use-case and
// the test-step registries.
type factories[F any] struct {
	kind string
	mu   sync.RWMutex
	m    map[string]F
}

func newFactories[F any](kind string) *factories[F] {
	return &factories[F]{kind: kind, m: make(map[string]F)}
}

func (r *factories[F]) register(class string, f F) error {
	if class == "" {
		return api.NewError(api.InvalidParameter, "cannot register %s with empty class id", r.kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[class]; exists {
		return api.NewError(api.ProhibitiveBehavior, "%s class %s already registered", r.kind, class)
	}
	r.m[class] = f
	return nil
}

func (r *factories[F]) get(class string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.m[class]
	if !ok {
		var zero F
		return zero, api.NewError(api.InvalidParameter, "%s class %s is not registered", r.kind, class)
	}
	return f, nil
}

func (r *factories[F]) has(class string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.m[class]
	return ok
}

func (r *factories[F]) classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.m))
	for c := range r.m {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Registry maps stable use-case class ids to factories.
type Registry struct {
	f *factories[Factory]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{f: newFactories[Factory]("use case")}
}

// NewDefaultRegistry returns a registry holding the built-in use cases.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}

// Register adds a factory. Registering a class twice is an error.
func (r *Registry) Register(class string, f Factory) error {
	if f == nil {
		return api.NewError(api.InvalidParameter, "cannot register nil factory for %s", class)
	}
	return r.f.register(class, f)
}

// MustRegister is Register for init-time registration.
func (r *Registry) MustRegister(class string, f Factory) {
	if err := r.Register(class, f); err != nil {
		panic(err)
	}
}

// Has reports whether class is registered.
func (r *Registry) Has(class string) bool { return r.f.has(class) }

// Classes returns the registered class ids, sorted.
func (r *Registry) Classes() []string { return r.f.classes() }

// New builds the use case registered under class.
func (r *Registry) New(class string, env Env) (UseCase, error) {
	f, err := r.f.get(class)
	if err != nil {
		return nil, err
	}
	return f(env)
}
