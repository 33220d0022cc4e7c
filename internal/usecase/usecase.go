package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/campaign"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/metrics"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/parameter"
)

// UseCase is the life cycle every use case implements. Each phase returns
// an explicit verdict; a BLOCKED result aborts the remaining phases of the
// attempt except Finalize.
type UseCase interface {
	Initialize(ctx context.Context) api.Result
	SetUp(ctx context.Context) api.Result
	RunTest(ctx context.Context) api.Result
	TearDown(ctx context.Context) api.Result
	Finalize(ctx context.Context) api.Result
}

// Base implements every phase as a PASS. Use cases embed it and override
// the phases they need.
type Base struct{}

func (Base) Initialize(context.Context) api.Result { return api.Pass("") }
func (Base) SetUp(context.Context) api.Result      { return api.Pass("") }
func (Base) RunTest(context.Context) api.Result    { return api.Pass("") }
func (Base) TearDown(context.Context) api.Result   { return api.Pass("") }
func (Base) Finalize(context.Context) api.Result   { return api.Pass("") }

// Device is what use cases and steps need from the device under test.
type Device interface {
	Name() string
	RunCmd(ctx context.Context, cmd string, timeout time.Duration) (string, error)
}

// TriggerLog is the trigger-message side of a device logger.
type TriggerLog interface {
	AddTriggerMessage(pattern string)
	RemoveTriggerMessage(pattern string)
	IsMessageReceived(ctx context.Context, pattern string, timeout time.Duration) ([]string, error)
}

// Env is everything a use case receives at construction.
type Env struct {
	TestCase campaign.TestCaseConf
	// Params are the test case parameters resolved against the use-case
	// catalog descriptors.
	Params      parameter.Values
	Device      Device
	Log         TriggerLog
	Resolver    *parameter.Resolver
	Steps       *StepRegistry
	StepCatalog *catalog.Store[catalog.TestStepEntry]
	Metrics     *metrics.Campaign
	Logger      *slog.Logger
}

// Phase names one step of the use-case life cycle.
type Phase int

const (
	PhaseInitialize Phase = iota
	PhaseSetUp
	PhaseRunTest
	PhaseTearDown
	PhaseFinalize
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialize:
		return "initialize"
	case PhaseSetUp:
		return "set_up"
	case PhaseRunTest:
		return "run_test"
	case PhaseTearDown:
		return "tear_down"
	case PhaseFinalize:
		return "finalize"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Invoke runs one phase of uc. A panic is recovered and reported as BLOCKED
// with the stack trace; an empty verdict is treated as BLOCKED too.
func Invoke(ctx context.Context, uc UseCase, phase Phase) (res api.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = api.Blocked(fmt.Sprintf("%s panicked: %v\n%s", phase, r, debug.Stack()))
		}
	}()

	switch phase {
	case PhaseInitialize:
		res = uc.Initialize(ctx)
	case PhaseSetUp:
		res = uc.SetUp(ctx)
	case PhaseRunTest:
		res = uc.RunTest(ctx)
	case PhaseTearDown:
		res = uc.TearDown(ctx)
	case PhaseFinalize:
		res = uc.Finalize(ctx)
	default:
		return api.Blocked(fmt.Sprintf("unknown phase %v", phase))
	}
	if res.Verdict == "" {
		res = api.Blocked(fmt.Sprintf("%s returned no verdict", phase))
	}
	return res
}

// FromError converts an error raised inside a phase into a result. A
// *Failure fails the case; any other error blocks it.
func FromError(err error) api.Result {
	if err == nil {
		return api.Pass("")
	}
	var f *Failure
	if errors.As(err, &f) {
		return api.Fail(err.Error())
	}
	return api.Blocked(err.Error())
}
