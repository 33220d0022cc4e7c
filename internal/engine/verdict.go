package engine

import (
	"context"
	"fmt"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/campaign"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/report"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/usecase"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
	pstrings "github.com/intel/test-framework-and-suites-for-android-sub002/pkg/strings"
)

// accept runs attempts of tc until the pass count reaches the acceptance
// criteria, the attempt budget is spent or the criteria can no longer be
// met. It fills the attempt counters of rec.
func (e *Engine) accept(ctx context.Context, tc campaign.TestCaseConf, env usecase.Env, rec *report.CaseRecord) api.Result {
	need := tc.AcceptanceCriteria()
	budget := tc.MaxAttempt()
	expected := tc.ExpectedResult()

	var (
		last    api.Result
		history []api.Verdict
	)
	defer func() { e.live.attemptChart(rec.RemoteID, history) }()
	for attempt := 1; attempt <= budget; attempt++ {
		if attempt > 1 && (e.stop.Load() || ctx.Err() != nil) {
			logging.Warn("Engine", "%s: stop requested, no further attempt", tc.Name)
			break
		}
		observed := e.attempt(ctx, tc, env)
		last = ApplyExpected(observed, expected)
		rec.Attempts = attempt
		if last.Verdict.IsSuccess() {
			rec.Passes++
		}
		history = append(history, last.Verdict)
		e.live.updateCase(rec.RemoteID, attempt, budget, last)
		logging.Info("Engine", "%s: attempt %d/%d %s (%d/%d passed)", tc.Name, attempt, budget, last.Verdict, rec.Passes, need)
		if rec.Passes >= need {
			break
		}
		if rec.Passes+budget-attempt < need {
			break
		}
	}

	if rec.Passes >= need {
		msg := last.Message
		if budget > 1 {
			msg = fmt.Sprintf("%d/%d attempt(s) passed: %s", rec.Passes, rec.Attempts, last.Message)
		}
		return api.Result{Verdict: api.VerdictPass, Message: msg}
	}
	if last.Verdict.IsSuccess() || last.Verdict == "" {
		last.Verdict = api.VerdictFail
	}
	if budget > 1 {
		last.Message = fmt.Sprintf("%d/%d attempt(s) passed, %d required: %s", rec.Passes, rec.Attempts, need, last.Message)
	}
	return last
}

// attempt runs the use-case life cycle once. Finalize always runs with a
// context that survives cancellation; its result is only logged.
func (e *Engine) attempt(ctx context.Context, tc campaign.TestCaseConf, env usecase.Env) api.Result {
	uc, err := e.cfg.UseCases.New(tc.UseCaseClass, env)
	if err != nil {
		return api.Blocked(fmt.Sprintf("cannot create use case %s: %v", tc.UseCaseClass, err))
	}

	res := usecase.Invoke(ctx, uc, usecase.PhaseInitialize)
	if res.Verdict.IsSuccess() {
		res = runB2B(ctx, uc, tc.B2BIteration(), tc.B2BContinuous())
	}

	if fin := usecase.Invoke(context.WithoutCancel(ctx), uc, usecase.PhaseFinalize); !fin.Verdict.IsSuccess() {
		logging.Warn("Engine", "%s: finalize returned %s: %s", tc.Name, fin.Verdict, pstrings.FirstLine(fin.Message))
	}
	return res
}

// runB2B runs set_up, run_test and tear_down for n iterations. In
// continuous mode set_up and tear_down surround all run_test calls. The
// first non-passing result wins; a BLOCKED result stops the iterations.
func runB2B(ctx context.Context, uc usecase.UseCase, n int, continuous bool) api.Result {
	var res api.Result
	keep := func(r api.Result, iteration int) {
		if res.Verdict == "" || (res.Verdict.IsSuccess() && !r.Verdict.IsSuccess()) {
			if n > 1 && !r.Verdict.IsSuccess() {
				r.Message = fmt.Sprintf("iteration %d/%d: %s", iteration, n, r.Message)
			}
			res = r
		}
	}

	if continuous {
		setUp := usecase.Invoke(ctx, uc, usecase.PhaseSetUp)
		if !setUp.Verdict.IsSuccess() {
			keep(setUp, 1)
		} else {
			for i := 1; i <= n; i++ {
				r := usecase.Invoke(ctx, uc, usecase.PhaseRunTest)
				keep(r, i)
				if r.Verdict == api.VerdictBlocked || ctx.Err() != nil {
					break
				}
			}
		}
		keep(usecase.Invoke(ctx, uc, usecase.PhaseTearDown), n)
		return res
	}

	for i := 1; i <= n; i++ {
		setUp := usecase.Invoke(ctx, uc, usecase.PhaseSetUp)
		if setUp.Verdict.IsSuccess() {
			keep(usecase.Invoke(ctx, uc, usecase.PhaseRunTest), i)
		} else {
			keep(setUp, i)
		}
		keep(usecase.Invoke(ctx, uc, usecase.PhaseTearDown), i)
		if res.Verdict == api.VerdictBlocked || ctx.Err() != nil {
			break
		}
	}
	return res
}

// ApplyExpected maps an observed verdict through the expected result of a
// case: observing the expected verdict is a PASS, passing a case expected
// to fail or block is a FAIL.
func ApplyExpected(observed api.Result, expected api.Verdict) api.Result {
	if expected == "" || expected == api.VerdictPass {
		return observed
	}
	switch {
	case observed.Verdict == expected:
		return api.Pass(fmt.Sprintf("expected %s: %s", expected, observed.Message))
	case observed.Verdict.IsSuccess():
		return api.Fail(fmt.Sprintf("expected %s but the case passed: %s", expected, observed.Message))
	}
	return observed
}

// Aggregate computes the campaign verdict from the case records.
func Aggregate(cases []report.CaseRecord, interrupted bool) api.Verdict {
	if interrupted {
		return api.VerdictInterrupted
	}
	var failed, blocked, other bool
	for _, c := range cases {
		v := c.Verdict
		switch {
		case v.IsSuccess(), v == api.VerdictNA:
		case v.IsFailure() && c.Warning:
		case v.IsFailure():
			failed = true
		case v == api.VerdictBlocked:
			blocked = true
		case v == api.VerdictInterrupted:
			return api.VerdictInterrupted
		default:
			other = true
		}
	}
	switch {
	case failed:
		return api.VerdictFail
	case blocked:
		return api.VerdictBlocked
	case other:
		return api.VerdictInconclusive
	}
	return api.VerdictPass
}
