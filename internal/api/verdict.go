package api

import "strings"

// Verdict is the outcome of a test case, a use-case phase or a campaign.
type Verdict string

const (
	VerdictPass         Verdict = "PASS"
	VerdictFail         Verdict = "FAIL"
	VerdictBlocked      Verdict = "BLOCKED"
	VerdictValid        Verdict = "VALID"
	VerdictInvalid      Verdict = "INVALID"
	VerdictInconclusive Verdict = "INCONCLUSIVE"
	VerdictInterrupted  Verdict = "INTERRUPTED"
	// VerdictNA marks a case that has not been executed (yet).
	VerdictNA Verdict = "NA"
)

// RatedVerdicts lists the verdicts that carry a per-kind rate in campaign
// metrics. INTERRUPTED cases are not executed and therefore not rated.
var RatedVerdicts = []Verdict{
	VerdictPass, VerdictFail, VerdictBlocked, VerdictValid, VerdictInvalid, VerdictInconclusive,
}

// ParseVerdict maps a string (case insensitive) onto a Verdict.
func ParseVerdict(s string) (Verdict, bool) {
	v := Verdict(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case VerdictPass, VerdictFail, VerdictBlocked, VerdictValid, VerdictInvalid,
		VerdictInconclusive, VerdictInterrupted, VerdictNA:
		return v, true
	}
	return v, false
}

// IsSuccess reports whether v counts as a successful outcome.
func (v Verdict) IsSuccess() bool {
	return v == VerdictPass || v == VerdictValid
}

// IsFailure reports whether v is a failing outcome (FAIL or INVALID).
func (v Verdict) IsFailure() bool {
	return v == VerdictFail || v == VerdictInvalid
}

func (v Verdict) String() string { return string(v) }

// Result is the explicit outcome returned by use-case phases and steps.
type Result struct {
	Verdict Verdict
	Message string
}

// Pass builds a PASS result.
func Pass(msg string) Result { return Result{Verdict: VerdictPass, Message: msg} }

// Fail builds a FAIL result.
func Fail(msg string) Result { return Result{Verdict: VerdictFail, Message: msg} }

// Blocked builds a BLOCKED result. It is the "abort the case" signal:
// the engine stops the remaining phases of the attempt except finalize.
func Blocked(msg string) Result { return Result{Verdict: VerdictBlocked, Message: msg} }
