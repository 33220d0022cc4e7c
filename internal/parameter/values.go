package parameter

import (
	"fmt"
	"sort"
)

// Values is a resolved, typed parameter set. Scalars are int, float64,
// bool or string; lists are []string or []any.
type Values struct {
	m map[string]any
}

// NewValues wraps m. It is used by tests and by callers building
// parameters by hand.
func NewValues(m map[string]any) Values {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return Values{m: c}
}

// Get returns the typed value of name.
func (v Values) Get(name string) (any, bool) {
	x, ok := v.m[name]
	return x, ok
}

// Has reports whether name resolved to a value.
func (v Values) Has(name string) bool {
	_, ok := v.m[name]
	return ok
}

// String returns name formatted as a string, or "" when absent.
func (v Values) String(name string) string {
	x, ok := v.m[name]
	if !ok || x == nil {
		return ""
	}
	if s, ok := x.(string); ok {
		return s
	}
	return fmt.Sprint(x)
}

// Int returns name as an int, or 0.
func (v Values) Int(name string) int {
	switch x := v.m[name].(type) {
	case int:
		return x
	case float64:
		return int(x)
	}
	return 0
}

// Float returns name as a float64, or 0.
func (v Values) Float(name string) float64 {
	switch x := v.m[name].(type) {
	case float64:
		return x
	case int:
		return float64(x)
	}
	return 0
}

// Bool returns name as a bool, or false.
func (v Values) Bool(name string) bool {
	b, _ := v.m[name].(bool)
	return b
}

// List returns name as a string list. A scalar becomes a one element list.
func (v Values) List(name string) []string {
	switch x := v.m[name].(type) {
	case []string:
		return append([]string(nil), x...)
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(x)}
	}
}

// Names returns the sorted parameter names.
func (v Values) Names() []string {
	names := make([]string, 0, len(v.m))
	for n := range v.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Strings renders every value as a string, for reports.
func (v Values) Strings() map[string]string {
	out := make(map[string]string, len(v.m))
	for n := range v.m {
		out[n] = v.String(n)
	}
	return out
}
