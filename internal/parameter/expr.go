package parameter

import (
	"strings"
)

// Reference prefixes and composition operators of parameter values.
const (
	KeywordDefault = "DEFAULT"
	PrefixDevice   = "FROM_DEVICE:"
	PrefixBench    = "FROM_BENCH:"
	PrefixTC       = "FROM_TC:"
	PrefixCtx      = "FROM_CTX:"

	OpConcat = "[+]"
	OpList   = "[|]"
)

// part is one operand of a concatenation: either literal text or a
// context reference left for the dynamic pass.
type part struct {
	text   string
	ctxKey string
}

func (p part) isCtx() bool { return p.ctxKey != "" }

// expr is a value after the static pass. A list literal has one element per
// [|] operand; a scalar has exactly one element.
type expr struct {
	elems [][]part
	list  bool
}

func (e expr) dynamic() bool {
	for _, el := range e.elems {
		for _, p := range el {
			if p.isCtx() {
				return true
			}
		}
	}
	return false
}

// eval concatenates every element, looking context references up in ctx.
func (e expr) eval(ctx ContextLookup) ([]string, string, bool) {
	out := make([]string, 0, len(e.elems))
	for _, el := range e.elems {
		var b strings.Builder
		for _, p := range el {
			if p.isCtx() {
				if ctx == nil {
					return nil, PrefixCtx + p.ctxKey, false
				}
				v, ok := ctx.Lookup(p.ctxKey)
				if !ok {
					return nil, PrefixCtx + p.ctxKey, false
				}
				b.WriteString(v)
				continue
			}
			b.WriteString(p.text)
		}
		out = append(out, b.String())
	}
	return out, "", true
}

// splitOperands splits s on op. Operands are not trimmed.
func splitOperands(s, op string) []string {
	if !strings.Contains(s, op) {
		return []string{s}
	}
	return strings.Split(s, op)
}
