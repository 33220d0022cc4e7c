package parameter

import (
	"sort"
	"strings"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
)

// DeviceLookup resolves FROM_DEVICE references.
type DeviceLookup interface {
	DeviceValue(device, key string) (string, bool)
}

// BenchLookup resolves FROM_BENCH references. *config.BenchConfig
// implements it.
type BenchLookup interface {
	Lookup(name, key string) (string, bool)
}

// ContextLookup resolves FROM_CTX references at run time.
type ContextLookup interface {
	Lookup(key string) (string, bool)
}

// DeviceConfigs adapts merged device configs to DeviceLookup.
type DeviceConfigs []config.DeviceConfig

// DeviceValue implements DeviceLookup.
func (d DeviceConfigs) DeviceValue(device, key string) (string, bool) {
	for _, dc := range d {
		if dc.Name == device {
			return dc.Get(key)
		}
	}
	return "", false
}

// MapContext is a ContextLookup over a plain map.
type MapContext map[string]string

// Lookup implements ContextLookup.
func (m MapContext) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Resolver turns raw parameter maps into typed, validated Values.
type Resolver struct {
	Devices DeviceLookup
	Bench   BenchLookup
	// TC holds the parameters of the test case being run.
	TC map[string]string
}

// Partial is the outcome of the static pass: parameters that could be
// fully resolved are already typed, the rest wait for a step context.
type Partial struct {
	values  map[string]any
	pending map[string]expr
	raw     map[string]string
	desc    map[string]catalog.ParamDescriptor
}

// Dynamic reports whether some parameters need a context.
func (p *Partial) Dynamic() bool { return len(p.pending) > 0 }

// ResolveStatic substitutes DEFAULT, FROM_DEVICE, FROM_BENCH and FROM_TC
// references and validates every parameter that does not depend on the
// step context. desc may be nil, in which case every raw value is kept as a
// string.
func (r *Resolver) ResolveStatic(raw map[string]string, desc map[string]catalog.ParamDescriptor) (*Partial, error) {
	p := &Partial{
		values:  make(map[string]any),
		pending: make(map[string]expr),
		raw:     raw,
		desc:    desc,
	}

	for _, name := range parameterNames(raw, desc) {
		d, declared := desc[name]
		if !declared {
			d = catalog.ParamDescriptor{Name: name, Type: TypeString, BlankAllowed: true}
		}
		value, given := raw[name]
		if !given || strings.TrimSpace(value) == KeywordDefault {
			if d.HasDefault {
				value = d.Default
			} else if !given {
				value = ""
			} else {
				return nil, invalid(name, value, "has no default value")
			}
		}

		e, err := r.parse(name, value, d)
		if err != nil {
			return nil, err
		}
		if e.dynamic() {
			p.pending[name] = e
			continue
		}
		elems, _, _ := e.eval(nil)
		typed, keep, err := castAndValidate(name, elems, e.list, d)
		if err != nil {
			return nil, err
		}
		if keep {
			p.values[name] = typed
		}
	}
	return p, nil
}

// ResolveDynamic resolves the FROM_CTX references left by the static pass
// against ctx and returns the complete parameter set.
func (r *Resolver) ResolveDynamic(p *Partial, ctx ContextLookup) (Values, error) {
	out := make(map[string]any, len(p.values)+len(p.pending))
	for k, v := range p.values {
		out[k] = v
	}
	names := make([]string, 0, len(p.pending))
	for name := range p.pending {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := p.pending[name]
		d, declared := p.desc[name]
		if !declared {
			d = catalog.ParamDescriptor{Name: name, Type: TypeString, BlankAllowed: true}
		}
		elems, ref, ok := e.eval(ctx)
		if !ok {
			return Values{}, invalid(name, p.raw[name], "context reference "+ref+" is not set")
		}
		typed, keep, err := castAndValidate(name, elems, e.list, d)
		if err != nil {
			return Values{}, err
		}
		if keep {
			out[name] = typed
		}
	}
	return Values{m: out}, nil
}

// Resolve runs both passes.
func (r *Resolver) Resolve(raw map[string]string, desc map[string]catalog.ParamDescriptor, ctx ContextLookup) (Values, error) {
	p, err := r.ResolveStatic(raw, desc)
	if err != nil {
		return Values{}, err
	}
	return r.ResolveDynamic(p, ctx)
}

// ResolveString resolves the references of a single value, leaving it a
// string. FROM_CTX references need ctx.
func (r *Resolver) ResolveString(name, value string, ctx ContextLookup) (string, error) {
	e, err := r.parse(name, value, catalog.ParamDescriptor{Name: name})
	if err != nil {
		return "", err
	}
	elems, ref, ok := e.eval(ctx)
	if !ok {
		return "", invalid(name, value, "context reference "+ref+" is not set")
	}
	return strings.Join(elems, ";"), nil
}

// parse applies the grammar left to right: [|] splits list elements, [+]
// splits each element into operands, and every operand is a literal, a
// static reference substituted now, or a context reference kept for later.
func (r *Resolver) parse(name, value string, d catalog.ParamDescriptor) (expr, error) {
	var e expr
	operands := splitOperands(value, OpList)
	e.list = len(operands) > 1
	for _, elem := range operands {
		var parts []part
		for _, operand := range splitOperands(elem, OpConcat) {
			p, err := r.resolveOperand(name, value, operand, d)
			if err != nil {
				return expr{}, err
			}
			parts = append(parts, p)
		}
		e.elems = append(e.elems, parts)
	}
	return e, nil
}

func (r *Resolver) resolveOperand(name, value, operand string, d catalog.ParamDescriptor) (part, error) {
	trimmed := strings.TrimSpace(operand)
	switch {
	case trimmed == KeywordDefault && (strings.Contains(value, OpConcat) || strings.Contains(value, OpList)):
		if !d.HasDefault {
			return part{}, invalid(name, value, "has no default value")
		}
		return part{text: d.Default}, nil

	case strings.HasPrefix(trimmed, PrefixDevice):
		device, key, ok := strings.Cut(strings.TrimPrefix(trimmed, PrefixDevice), ":")
		if !ok || device == "" || key == "" {
			return part{}, invalid(name, value, "malformed "+PrefixDevice+" reference")
		}
		if r.Devices != nil {
			if v, ok := r.Devices.DeviceValue(device, key); ok {
				return part{text: v}, nil
			}
		}
		return part{}, invalid(name, value, "device "+device+" has no parameter "+key)

	case strings.HasPrefix(trimmed, PrefixBench):
		eqt, key, ok := strings.Cut(strings.TrimPrefix(trimmed, PrefixBench), ":")
		if !ok || eqt == "" || key == "" {
			return part{}, invalid(name, value, "malformed "+PrefixBench+" reference")
		}
		if r.Bench != nil {
			if v, ok := r.Bench.Lookup(eqt, key); ok {
				return part{text: v}, nil
			}
		}
		return part{}, invalid(name, value, "bench entry "+eqt+" has no parameter "+key)

	case strings.HasPrefix(trimmed, PrefixTC):
		key := strings.TrimPrefix(trimmed, PrefixTC)
		if v, ok := r.TC[key]; ok && key != "" {
			return part{text: v}, nil
		}
		return part{}, invalid(name, value, "test case has no parameter "+key)

	case strings.HasPrefix(trimmed, PrefixCtx):
		key := strings.TrimPrefix(trimmed, PrefixCtx)
		if key == "" {
			return part{}, invalid(name, value, "malformed "+PrefixCtx+" reference")
		}
		return part{ctxKey: key}, nil
	}
	return part{text: operand}, nil
}

func parameterNames(raw map[string]string, desc map[string]catalog.ParamDescriptor) []string {
	seen := make(map[string]bool, len(raw)+len(desc))
	var names []string
	for n := range desc {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for n := range raw {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func invalid(name, value, reason string) error {
	return api.NewError(api.InvalidParameter, "parameter %q: value %q %s", name, value, reason)
}
