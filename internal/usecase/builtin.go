package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/parameter"
)

// Built-in use-case class ids.
const (
	ClassNoop   = "NOOP"
	ClassSleep  = "SLEEP"
	ClassRunCmd = "RUN_CMD"
	ClassSteps  = "STEPS"
)

// BuiltinParams returns the parameter descriptors of a built-in use case,
// used when the use-case catalog has no entry for it.
func BuiltinParams(class string) map[string]catalog.ParamDescriptor {
	switch class {
	case ClassSleep:
		return descriptors(withDefault(str("DURATION"), parameter.TypeFloat, "1", "[0:]"))
	case ClassRunCmd:
		return descriptors(str("COMMAND"),
			withDefault(str("TIMEOUT"), parameter.TypeInteger, "60", "[1:]"),
			optionalStr("EXPECTED_OUTPUT"))
	}
	return nil
}

func registerBuiltins(r *Registry) {
	r.MustRegister(ClassNoop, func(Env) (UseCase, error) { return noop{}, nil })
	r.MustRegister(ClassSleep, newSleep)
	r.MustRegister(ClassRunCmd, newRunCmd)
	r.MustRegister(ClassSteps, newSteps)
}

type noop struct{ Base }

func (noop) RunTest(context.Context) api.Result { return api.Pass("no operation") }

type sleepUC struct {
	Base
	d time.Duration
}

func newSleep(env Env) (UseCase, error) {
	return &sleepUC{d: secondsToDuration(env.Params.Float("DURATION"))}, nil
}

func (u *sleepUC) RunTest(ctx context.Context) api.Result {
	if err := sleep(ctx, u.d); err != nil {
		return api.Blocked(fmt.Sprintf("sleep interrupted: %v", err))
	}
	return api.Pass(fmt.Sprintf("slept %s", u.d))
}

type runCmdUC struct {
	Base
	env      Env
	cmd      string
	timeout  time.Duration
	expected string
}

func newRunCmd(env Env) (UseCase, error) {
	cmd := env.Params.String("COMMAND")
	if cmd == "" {
		return nil, api.NewError(api.InvalidParameter, "parameter %q: value %q must not be blank", "COMMAND", cmd)
	}
	timeout := time.Duration(env.Params.Int("TIMEOUT")) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &runCmdUC{env: env, cmd: cmd, timeout: timeout, expected: env.Params.String("EXPECTED_OUTPUT")}, nil
}

func (u *runCmdUC) Initialize(context.Context) api.Result {
	if u.env.Device == nil {
		return api.Blocked("no device available to run " + u.cmd)
	}
	return api.Pass("")
}

func (u *runCmdUC) RunTest(ctx context.Context) api.Result {
	out, err := u.env.Device.RunCmd(ctx, u.cmd, u.timeout)
	if err != nil {
		return FromError(err)
	}
	out = strings.TrimSpace(out)
	if u.expected != "" && !strings.Contains(out, u.expected) {
		return api.Fail(fmt.Sprintf("output %q does not contain %q", out, u.expected))
	}
	return api.Pass(out)
}

// stepsUC runs the TestSteps block of its test case. The context lives for
// the whole case run so B2B iterations share it.
type stepsUC struct {
	Base
	env   Env
	steps []Step
	sc    *Context
}

func newSteps(env Env) (UseCase, error) {
	if env.Steps == nil {
		return nil, api.NewError(api.InvalidParameter, "no test-step registry available")
	}
	return &stepsUC{env: env, sc: NewContext()}, nil
}

func (u *stepsUC) Initialize(context.Context) api.Result {
	if len(u.env.TestCase.Steps) == 0 {
		return api.Blocked("test case declares no test steps")
	}
	for _, decl := range u.env.TestCase.Steps {
		u.steps = append(u.steps, u.env.Steps.Build(u.env, decl))
	}
	if u.env.Logger != nil {
		u.env.Logger.Debug("test steps built", "count", len(u.steps))
	}
	return api.Pass("")
}

func (u *stepsUC) RunTest(ctx context.Context) api.Result {
	if err := RunSteps(ctx, u.steps, u.sc); err != nil {
		return FromError(err)
	}
	return api.Pass(fmt.Sprintf("%d steps passed", len(u.steps)))
}
