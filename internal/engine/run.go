package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/campaign"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/device"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/parameter"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/report"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/usecase"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
	pstrings "github.com/intel/test-framework-and-suites-for-android-sub002/pkg/strings"
)

// runCases executes the run list. devErr is the outcome of device
// initialisation; when set every case that needs the device is blocked.
func (e *Engine) runCases(ctx context.Context, p *plan, devErr error) {
	cases := append([]campaign.TestCaseConf(nil), p.cases...)
	cc := e.global.Campaign
	blockedBy := ""
	if devErr != nil {
		blockedBy = fmt.Sprintf("device initialisation failed: %v", devErr)
	}

	var prevFailed bool
	for i := 0; i < len(cases); i++ {
		if e.stop.Load() || ctx.Err() != nil {
			e.interrupted = true
			e.skipRemaining(cases[i:], i, api.VerdictInterrupted, "campaign interrupted")
			return
		}
		if cases[i].IsRandom && (i == 0 || !cases[i-1].IsRandom) {
			j := i
			for j < len(cases) && cases[j].IsRandom {
				j++
			}
			copy(cases[i:j], campaign.Shuffle(cases[i:j], e.cfg.Rand))
			logging.Debug("Engine", "Shuffled random block of %d case(s) at #%d", j-i, i+1)
		}

		tc := cases[i]
		index := i + 1
		e.cfg.Notify(fmt.Sprintf("STATUS=Running %d/%d: %s", index, len(cases), tc.Name))

		if blockedBy != "" && tc.DeviceConnection() {
			e.record(e.blockedRecord(index, tc, blockedBy))
			continue
		}

		primary, _ := e.devices.Primary()
		if primary != nil && tc.DeviceConnection() && i > 0 {
			if cc.PowerCycleBetweenTC() || (prevFailed && cc.PowerCycleOnFailure()) {
				primary.ScheduleRecovery()
			}
		}

		rec, critical, deviceLost := e.runCase(ctx, index, tc, primary)
		e.record(rec)
		prevFailed = !rec.Verdict.IsSuccess()

		if deviceLost {
			blockedBy = rec.Message
		}
		if critical && cc.StopOnCriticalFailure() {
			logging.Warn("Engine", "Critical failure on %s, stopping the campaign", tc.Name)
			e.skipRemaining(cases[i+1:], index, api.VerdictNA, "not executed: campaign stopped on critical failure")
			return
		}
		if rec.Verdict.IsFailure() && !rec.Warning && cc.StopOnFirstFailure() {
			logging.Warn("Engine", "%s failed, stopping the campaign", tc.Name)
			e.skipRemaining(cases[i+1:], index, api.VerdictNA, "not executed: campaign stopped on first failure")
			return
		}
	}
}

// runCase executes one entry of the run list. It reports whether the case
// was a critical failure and whether the device could not be recovered.
func (e *Engine) runCase(ctx context.Context, index int, tc campaign.TestCaseConf, primary *device.Device) (report.CaseRecord, bool, bool) {
	rec := report.CaseRecord{
		Index:    index,
		Name:     tc.Name,
		UseCase:  tc.UseCaseName,
		Expected: tc.ExpectedResult(),
		Critical: tc.IsCritical(),
		Warning:  tc.IsWarning(),
		Start:    e.cfg.Now(),
	}
	logging.Info("Engine", "=== [%d] %s (%s) ===", index, tc.Name, tc.UseCaseClass)

	if dir, err := e.tree.CaseDir(index, tc.Name); err == nil {
		e.devices.SetLogDir(dir)
	} else {
		logging.Warn("Engine", "No case folder for %s: %v", tc.Name, err)
	}
	rec.RemoteID = e.live.startCase(tc, index, rec.Start)

	finish := func(v api.Verdict, msg string) report.CaseRecord {
		rec.Verdict, rec.Message, rec.End = v, msg, e.cfg.Now()
		e.metrics.RecordVerdict(v)
		e.live.stopCase(rec, e.deviceInfo())
		logging.Info("Engine", "=== [%d] %s: %s %s ===", index, tc.Name, v, pstrings.FirstLine(msg))
		return rec
	}

	if !tc.Valid {
		return finish(api.VerdictBlocked, "invalid test case: "+strings.Join(tc.Messages, "; ")), false, false
	}

	if tc.DeviceConnection() && primary != nil {
		if err := primary.BeginCase(ctx); err != nil {
			msg := fmt.Sprintf("device %s unavailable: %v", primary.Name(), err)
			return finish(api.VerdictBlocked, msg), false, primary.State() == api.DeviceFatal
		}
	}

	env, err := e.env(tc, primary)
	var res api.Result
	if err != nil {
		res = api.Blocked(err.Error())
	} else {
		res = e.accept(ctx, tc, env, &rec)
	}

	failed := !res.Verdict.IsSuccess()
	critical := tc.IsCritical() && failed
	if primary != nil {
		var err error
		if critical, err = primary.EndCase(ctx, failed, critical); err != nil {
			logging.Warn("Engine", "Device %s: %v", primary.Name(), err)
		}
	}
	out := finish(res.Verdict, res.Message)
	e.live.caseResources(rec.RemoteID, e.tree, index, tc.Name)
	return out, critical, false
}

// env builds the use-case environment with the parameters resolved against
// the catalog descriptors.
func (e *Engine) env(tc campaign.TestCaseConf, primary *device.Device) (usecase.Env, error) {
	raw := tc.ParamMap()
	desc := usecase.BuiltinParams(tc.UseCaseClass)
	if entry, err := e.catalogs.UseCases.Get(tc.UseCaseName); err == nil {
		desc = entry.Parameters
	}
	resolver := &parameter.Resolver{
		Devices: parameter.DeviceConfigs(e.global.Devices),
		Bench:   e.global.Bench,
		TC:      raw,
	}
	values, err := resolver.Resolve(raw, desc, parameter.MapContext{})
	if err != nil {
		return usecase.Env{}, err
	}

	env := usecase.Env{
		TestCase:    tc,
		Params:      values,
		Resolver:    resolver,
		Steps:       e.cfg.Steps,
		StepCatalog: e.stepCatalog(),
		Metrics:     e.metrics,
		Logger:      logging.NewComponentLogger("UseCase").With("testcase", tc.Name),
	}
	if primary != nil {
		env.Device = primary
		if l := primary.Logger(); l != nil {
			env.Log = l
		}
	}
	return env, nil
}

func (e *Engine) stepCatalog() *catalog.Store[catalog.TestStepEntry] {
	if e.catalogs == nil {
		return nil
	}
	return e.catalogs.TestSteps
}

func (e *Engine) blockedRecord(index int, tc campaign.TestCaseConf, msg string) report.CaseRecord {
	now := e.cfg.Now()
	rec := report.CaseRecord{
		Index: index, Name: tc.Name, UseCase: tc.UseCaseName, Expected: tc.ExpectedResult(),
		Critical: tc.IsCritical(), Warning: tc.IsWarning(),
		Verdict: api.VerdictBlocked, Message: msg, Start: now, End: now,
	}
	e.metrics.RecordVerdict(api.VerdictBlocked)
	rec.RemoteID = e.live.startCase(tc, index, now)
	e.live.stopCase(rec, e.deviceInfo())
	return rec
}

// skipRemaining records cases that will not run. Their index continues
// after last.
func (e *Engine) skipRemaining(cases []campaign.TestCaseConf, last int, v api.Verdict, msg string) {
	for k, tc := range cases {
		e.record(report.CaseRecord{
			Index: last + k + 1, Name: tc.Name, UseCase: tc.UseCaseName, Expected: tc.ExpectedResult(),
			Critical: tc.IsCritical(), Warning: tc.IsWarning(), Verdict: v, Message: msg,
		})
	}
	if len(cases) > 0 {
		logging.Warn("Engine", "%d test case(s) marked %s", len(cases), v)
	}
}

func (e *Engine) record(rec report.CaseRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, rec)
}

func (e *Engine) deviceInfo() map[string]map[string]string {
	out := make(map[string]map[string]string)
	if e.devices == nil {
		return out
	}
	for _, d := range e.devices.All() {
		out[d.Name()] = d.Properties()
	}
	return out
}

