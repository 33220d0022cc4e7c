package parameter

import (
	"strconv"
	"strings"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
)

// Declared parameter types.
const (
	TypeInteger = "INTEGER"
	TypeFloat   = "FLOAT"
	TypeBoolean = "BOOLEAN"
	TypeString  = "STRING"
	TypeList    = "LIST"
)

// NormalizeType maps a declared type and its short aliases onto one of the
// Type constants.
func NormalizeType(t string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case "INTEGER", "INT":
		return TypeInteger, true
	case "FLOAT", "DOUBLE":
		return TypeFloat, true
	case "BOOLEAN", "BOOL":
		return TypeBoolean, true
	case "STRING", "STR", "":
		return TypeString, true
	case "LIST":
		return TypeList, true
	}
	return "", false
}

// castAndValidate turns the evaluated elements of a parameter into its
// typed value. keep is false for a blank optional parameter that has no
// typed representation.
func castAndValidate(name string, elems []string, list bool, d catalog.ParamDescriptor) (any, bool, error) {
	display := strings.Join(elems, OpList)
	typ, ok := NormalizeType(d.Type)
	if !ok {
		return nil, false, invalid(name, display, "has unknown type "+d.Type)
	}

	if list || typ == TypeList {
		items := elems
		if !list {
			items = splitListValue(elems[0])
		}
		if len(items) == 0 {
			if d.BlankAllowed || d.Optional {
				return []string{}, true, nil
			}
			return nil, false, invalid(name, display, "must not be blank")
		}
		if typ == TypeList || typ == TypeString {
			out := make([]string, 0, len(items))
			for _, it := range items {
				if err := checkPossibleValues(name, it, d.PossibleValues); err != nil {
					return nil, false, err
				}
				out = append(out, it)
			}
			return out, true, nil
		}
		out := make([]any, 0, len(items))
		for _, it := range items {
			v, err := castScalar(name, it, typ, d)
			if err != nil {
				return nil, false, err
			}
			out = append(out, v)
		}
		return out, true, nil
	}

	s := elems[0]
	if strings.TrimSpace(s) == "" {
		if d.BlankAllowed || d.Optional {
			if typ == TypeString {
				return "", true, nil
			}
			return nil, false, nil
		}
		return nil, false, invalid(name, s, "must not be blank")
	}
	v, err := castScalar(name, s, typ, d)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func castScalar(name, s, typ string, d catalog.ParamDescriptor) (any, error) {
	if err := checkPossibleValues(name, s, d.PossibleValues); err != nil {
		return nil, err
	}
	t := strings.TrimSpace(s)
	switch typ {
	case TypeInteger:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, invalid(name, s, "is not an integer")
		}
		return int(n), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, invalid(name, s, "is not a float")
		}
		return f, nil
	case TypeBoolean:
		b, ok := config.ParseBool(t)
		if !ok {
			return nil, invalid(name, s, "is not a boolean")
		}
		return b, nil
	}
	return s, nil
}

// checkPossibleValues enforces an enumeration "v1;v2" or a numeric range
// "[min:max]" where either bound may be empty.
func checkPossibleValues(name, value, possible string) error {
	possible = strings.TrimSpace(possible)
	if possible == "" {
		return nil
	}
	v := strings.TrimSpace(value)

	if strings.HasPrefix(possible, "[") && strings.HasSuffix(possible, "]") && strings.Contains(possible, ":") {
		lo, hi, _ := strings.Cut(possible[1:len(possible)-1], ":")
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return invalid(name, value, "is not a number in range "+possible)
		}
		if lo = strings.TrimSpace(lo); lo != "" {
			lower, err := strconv.ParseFloat(lo, 64)
			if err == nil && f < lower {
				return invalid(name, value, "is below range "+possible)
			}
		}
		if hi = strings.TrimSpace(hi); hi != "" {
			upper, err := strconv.ParseFloat(hi, 64)
			if err == nil && f > upper {
				return invalid(name, value, "is above range "+possible)
			}
		}
		return nil
	}

	for _, allowed := range strings.Split(possible, ";") {
		if strings.EqualFold(strings.TrimSpace(allowed), v) {
			return nil
		}
	}
	return invalid(name, value, "is not one of "+possible)
}

func splitListValue(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(s, ";") {
		out = append(out, strings.TrimSpace(f))
	}
	return out
}
