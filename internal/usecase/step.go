package usecase

import (
	"context"
	"fmt"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/campaign"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/parameter"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Step is a reusable operation run from a use case.
type Step interface {
	ID() string
	Run(ctx context.Context, sc *Context) error
}

// StepFactory wraps a constructed BaseStep into a concrete step. It must not
// fail: construction errors are held by the BaseStep and returned by Run.
type StepFactory func(b *BaseStep) Step

// StepSpec registers a step class.
type StepSpec struct {
	Factory StepFactory
	// Params describes the step parameters when the test-step catalog has
	// no entry for the step id.
	Params map[string]catalog.ParamDescriptor
}

// Failure is a step or use-case outcome that fails the case, as opposed to
// an error that blocks it.
type Failure struct {
	Msg string
}

func (f *Failure) Error() string { return f.Msg }

// Failf returns a *Failure.
func Failf(format string, args ...any) error {
	return &Failure{Msg: fmt.Sprintf(format, args...)}
}

// BaseStep holds what every step captures at construction: the test case
// parameters through the resolver, the attributes of its TestStep element
// and the statically resolved parameters.
type BaseStep struct {
	id      string
	class   string
	attrs   map[string]string
	env     Env
	partial *parameter.Partial
	// deferred is the construction error, returned at the top of Run.
	deferred error
}

// ID returns the step id from the test case.
func (b *BaseStep) ID() string { return b.id }

// Class returns the registered class id of the step.
func (b *BaseStep) Class() string { return b.class }

// Env returns the environment of the owning use case.
func (b *BaseStep) Env() Env { return b.env }

// Attrs returns the raw attributes of the TestStep element.
func (b *BaseStep) Attrs() map[string]string { return b.attrs }

// Err returns the construction error, if any.
func (b *BaseStep) Err() error { return b.deferred }

// Params returns the construction error if there was one, otherwise the
// parameters after resolving FROM_CTX references against sc.
func (b *BaseStep) Params(sc *Context) (parameter.Values, error) {
	if b.deferred != nil {
		return parameter.Values{}, b.deferred
	}
	var lookup parameter.ContextLookup
	if sc != nil {
		lookup = sc
	}
	v, err := b.env.resolver().ResolveDynamic(b.partial, lookup)
	if err != nil {
		return parameter.Values{}, fmt.Errorf("step %s: %w", b.id, err)
	}
	return v, nil
}

type brokenStep struct{ *BaseStep }

func (s brokenStep) Run(context.Context, *Context) error { return s.deferred }

func (e Env) resolver() *parameter.Resolver {
	if e.Resolver != nil {
		return e.Resolver
	}
	return &parameter.Resolver{TC: e.TestCase.ParamMap()}
}

// StepRegistry maps test-step class ids to step specs.
type StepRegistry struct {
	f *factories[StepSpec]
}

// NewStepRegistry returns an empty registry.
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{f: newFactories[StepSpec]("test step")}
}

// NewDefaultStepRegistry returns a registry holding the built-in steps.
func NewDefaultStepRegistry() *StepRegistry {
	r := NewStepRegistry()
	registerBuiltinSteps(r)
	return r
}

// Register adds a step class. Registering a class twice is an error.
func (r *StepRegistry) Register(class string, spec StepSpec) error {
	if spec.Factory == nil {
		return api.NewError(api.InvalidParameter, "cannot register nil step factory for %s", class)
	}
	return r.f.register(class, spec)
}

// MustRegister is Register for init-time registration.
func (r *StepRegistry) MustRegister(class string, spec StepSpec) {
	if err := r.Register(class, spec); err != nil {
		panic(err)
	}
}

// Has reports whether class is registered.
func (r *StepRegistry) Has(class string) bool { return r.f.has(class) }

// Classes returns the registered class ids, sorted.
func (r *StepRegistry) Classes() []string { return r.f.classes() }

// Build constructs the step declared by decl. The step id is looked up in
// the test-step catalog first; without a catalog entry it is taken as the
// class id. Build never fails: any error is deferred to Run.
func (r *StepRegistry) Build(env Env, decl campaign.StepDecl) Step {
	b := &BaseStep{id: decl.ID, class: decl.ID, attrs: decl.Attrs, env: env}

	var desc map[string]catalog.ParamDescriptor
	entry, err := env.StepCatalog.Get(decl.ID)
	if err == nil {
		b.class = entry.ClassName
		desc = entry.Parameters
	}

	spec, err := r.f.get(b.class)
	if err != nil {
		b.deferred = fmt.Errorf("step %s: %w", decl.ID, err)
		return brokenStep{b}
	}
	if desc == nil {
		desc = spec.Params
	}

	b.partial, err = env.resolver().ResolveStatic(decl.Attrs, desc)
	if err != nil {
		b.deferred = fmt.Errorf("step %s: %w", decl.ID, err)
		logging.Debug("TestStep", "Deferring construction error of step %s: %v", decl.ID, err)
	}
	return spec.Factory(b)
}

// RunSteps runs steps in order and stops at the first error.
func RunSteps(ctx context.Context, steps []Step, sc *Context) error {
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		logging.Debug("TestStep", "Running step %d/%d: %s", i+1, len(steps), s.ID())
		if err := s.Run(ctx, sc); err != nil {
			return err
		}
	}
	return nil
}
