package config

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Values is an immutable string keyed parameter set. It backs the campaign
// parameters, targets, device configs and bench entries. Lookups are exact
// first and fall back to a case-insensitive match, since catalog authors are
// not consistent about key casing.
type Values struct {
	m map[string]string
}

// NewValues copies m into a new Values.
func NewValues(m map[string]string) Values {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return Values{m: c}
}

// Get returns the raw value for key.
func (v Values) Get(key string) (string, bool) {
	if s, ok := v.m[key]; ok {
		return s, true
	}
	for k, s := range v.m {
		if strings.EqualFold(k, key) {
			return s, true
		}
	}
	return "", false
}

// Has reports whether key is set.
func (v Values) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// GetString returns the value for key or def when missing.
func (v Values) GetString(key, def string) string {
	if s, ok := v.Get(key); ok {
		return s
	}
	return def
}

// GetInt returns the value for key as an int or def when missing or malformed.
func (v Values) GetInt(key string, def int) int {
	s, ok := v.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// GetFloat returns the value for key as a float64 or def.
func (v Values) GetFloat(key string, def float64) float64 {
	s, ok := v.Get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return f
}

// GetBool returns the value for key as a bool or def.
func (v Values) GetBool(key string, def bool) bool {
	s, ok := v.Get(key)
	if !ok {
		return def
	}
	b, ok := ParseBool(s)
	if !ok {
		return def
	}
	return b
}

// GetDuration reads a duration. Plain numbers are seconds (the unit used by
// every catalog); Go duration strings ("1m30s") are accepted too.
func (v Values) GetDuration(key string, def time.Duration) time.Duration {
	s, ok := v.Get(key)
	if !ok {
		return def
	}
	d, ok := ParseDuration(s)
	if !ok {
		return def
	}
	return d
}

// Merge returns a new Values with other's entries overriding v's.
func (v Values) Merge(other Values) Values {
	out := make(map[string]string, len(v.m)+len(other.m))
	for k, s := range v.m {
		out[k] = s
	}
	for k, s := range other.m {
		// Replace a differently-cased key so lookups stay unambiguous.
		for existing := range out {
			if existing != k && strings.EqualFold(existing, k) {
				delete(out, existing)
			}
		}
		out[k] = s
	}
	return Values{m: out}
}

// Map returns a copy of the underlying map.
func (v Values) Map() map[string]string {
	out := make(map[string]string, len(v.m))
	for k, s := range v.m {
		out[k] = s
	}
	return out
}

// Keys returns the sorted keys.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (v Values) Len() int { return len(v.m) }

// ParseBool accepts the boolean spellings found in ACS XML files.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "y":
		return true, true
	case "false", "0", "no", "off", "n":
		return false, true
	}
	return false, false
}

// ParseDuration parses seconds ("30", "0.5") or a Go duration string.
func ParseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), true
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, true
	}
	return 0, false
}
