package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/campaign"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/parameter"
)

type fakeDevice struct {
	mu      sync.Mutex
	outputs map[string]string
	calls   []string
	err     error
}

func (d *fakeDevice) Name() string { return "PHONE1" }

func (d *fakeDevice) RunCmd(_ context.Context, cmd string, _ time.Duration) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, cmd)
	if d.err != nil {
		return "", d.err
	}
	return d.outputs[cmd], nil
}

type fakeLog struct {
	mu       sync.Mutex
	triggers map[string]bool
	lines    map[string][]string
}

func newFakeLog() *fakeLog {
	return &fakeLog{triggers: make(map[string]bool), lines: make(map[string][]string)}
}

func (l *fakeLog) AddTriggerMessage(p string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.triggers[p] = true
}

func (l *fakeLog) RemoveTriggerMessage(p string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.triggers, p)
}

func (l *fakeLog) IsMessageReceived(_ context.Context, p string, _ time.Duration) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.triggers[p] {
		return nil, errors.New("trigger not registered")
	}
	return l.lines[p], nil
}

type panicky struct{ Base }

func (panicky) SetUp(context.Context) api.Result { panic("boom") }

type silent struct{ Base }

func (silent) RunTest(context.Context) api.Result { return api.Result{} }

func TestInvokeRecoversPanic(t *testing.T) {
	res := Invoke(context.Background(), panicky{}, PhaseSetUp)
	assert.Equal(t, api.VerdictBlocked, res.Verdict)
	assert.Contains(t, res.Message, "set_up panicked: boom")
	assert.Contains(t, res.Message, "goroutine")
}

func TestInvokeWithoutVerdictBlocks(t *testing.T) {
	res := Invoke(context.Background(), silent{}, PhaseRunTest)
	assert.Equal(t, api.VerdictBlocked, res.Verdict)
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{ClassNoop, ClassRunCmd, ClassSleep, ClassSteps}, r.Classes())

	err := r.Register(ClassNoop, func(Env) (UseCase, error) { return noop{}, nil })
	assert.True(t, api.HasCode(err, api.ProhibitiveBehavior))

	_, err = r.New("MISSING", Env{})
	assert.True(t, api.HasCode(err, api.InvalidParameter))

	uc, err := r.New(ClassNoop, Env{})
	require.NoError(t, err)
	assert.Equal(t, api.VerdictPass, Invoke(context.Background(), uc, PhaseRunTest).Verdict)
}

func TestContext(t *testing.T) {
	c := NewContext()
	c.Set("b", 2)
	c.Set("a", []string{"x", "y"})

	snap := c.Snapshot()
	c.Delete("b")

	assert.Equal(t, []string{"a"}, c.Keys())
	assert.Len(t, snap, 2)

	v, ok := c.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "x;y", v)

	_, ok = c.Lookup("b")
	assert.False(t, ok)
}

func TestContextConcurrentAccess(t *testing.T) {
	c := NewContext()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("k", i)
				c.Get("k")
				c.Keys()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, []string{"k"}, c.Keys())
}

func stepsEnv(dev Device, steps ...campaign.StepDecl) Env {
	tc := campaign.TestCaseConf{
		Name:   "TC_STEPS",
		Params: []campaign.Param{{Name: "expected", Value: "42"}},
		Steps:  steps,
	}
	return Env{
		TestCase: tc,
		Device:   dev,
		Resolver: &parameter.Resolver{TC: tc.ParamMap()},
		Steps:    NewDefaultStepRegistry(),
	}
}

func runAll(t *testing.T, uc UseCase) api.Result {
	t.Helper()
	ctx := context.Background()
	for _, p := range []Phase{PhaseInitialize, PhaseSetUp, PhaseRunTest} {
		if res := Invoke(ctx, uc, p); res.Verdict != api.VerdictPass {
			return res
		}
	}
	return api.Pass("")
}

func TestStepsUseCase(t *testing.T) {
	dev := &fakeDevice{outputs: map[string]string{"getprop answer": "42\n"}}

	tests := []struct {
		name   string
		second string
		want   api.Verdict
	}{
		{name: "equal values pass", second: "FROM_TC:expected", want: api.VerdictPass},
		{name: "different values fail", second: "41", want: api.VerdictFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := stepsEnv(dev,
				campaign.StepDecl{ID: StepRunCmd, Attrs: map[string]string{"COMMAND": "getprop answer", "SAVE_AS": "answer"}},
				campaign.StepDecl{ID: StepCompare, Attrs: map[string]string{"FIRST": "FROM_CTX:answer", "SECOND": tt.second}},
			)
			uc, err := NewDefaultRegistry().New(ClassSteps, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, runAll(t, uc).Verdict)
		})
	}
}

func TestStepConstructionErrorIsDeferred(t *testing.T) {
	env := stepsEnv(nil)
	step := env.Steps.Build(env, campaign.StepDecl{ID: StepWait, Attrs: map[string]string{"DURATION": "soon"}})

	err := step.(*waitStep).Err()
	require.Error(t, err)

	runErr := step.Run(context.Background(), NewContext())
	assert.Equal(t, err, runErr)
	assert.True(t, api.HasCode(runErr, api.InvalidParameter))
	assert.Contains(t, runErr.Error(), "DURATION")
	assert.Contains(t, runErr.Error(), "soon")
	assert.Equal(t, api.VerdictBlocked, FromError(runErr).Verdict)
}

func TestUnknownStepClassIsDeferred(t *testing.T) {
	env := stepsEnv(nil)
	step := env.Steps.Build(env, campaign.StepDecl{ID: "FLASH_DEVICE"})

	err := step.Run(context.Background(), NewContext())
	assert.True(t, api.HasCode(err, api.InvalidParameter))
}

func TestMissingContextReference(t *testing.T) {
	env := stepsEnv(nil)
	step := env.Steps.Build(env, campaign.StepDecl{ID: StepSetContext, Attrs: map[string]string{"KEY": "x", "VALUE": "FROM_CTX:unset"}})

	require.NoError(t, step.(*setContextStep).Err())
	err := step.Run(context.Background(), NewContext())
	assert.True(t, api.HasCode(err, api.InvalidParameter))
}

func TestCheckLogTrigger(t *testing.T) {
	log := newFakeLog()
	log.lines["BOOT_COMPLETED"] = []string{"I/boot: BOOT_COMPLETED"}

	env := stepsEnv(nil)
	env.Log = log
	sc := NewContext()

	found := env.Steps.Build(env, campaign.StepDecl{ID: StepCheckLogTrigger, Attrs: map[string]string{"MESSAGE": "BOOT_COMPLETED", "SAVE_AS": "line"}})
	require.NoError(t, found.Run(context.Background(), sc))
	line, _ := sc.Lookup("line")
	assert.Equal(t, "I/boot: BOOT_COMPLETED", line)
	assert.Empty(t, log.triggers)

	missing := env.Steps.Build(env, campaign.StepDecl{ID: StepCheckLogTrigger, Attrs: map[string]string{"MESSAGE": "PANIC", "TIMEOUT": "0"}})
	err := missing.Run(context.Background(), sc)
	var f *Failure
	assert.ErrorAs(t, err, &f)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		first, second, op string
		want              bool
	}{
		{"10", "9", OpGreater, true},
		{"10", "9", OpLower, false},
		{"abc", "abd", OpLower, true},
		{"1.0", "1", OpGreaterOrEqual, true},
		{"hello world", "world", OpContains, true},
		{"a", "a", OpNotEqual, false},
	}
	for _, tt := range tests {
		got, err := compare(tt.first, tt.second, tt.op)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s %s", tt.first, tt.op, tt.second)
	}

	_, err := compare("a", "b", "LIKE")
	assert.True(t, api.HasCode(err, api.InvalidParameter))
}

func TestRunCmdUseCase(t *testing.T) {
	dev := &fakeDevice{outputs: map[string]string{"uptime": "up 3 days"}}
	env := Env{Device: dev, Params: parameter.NewValues(map[string]any{
		"COMMAND": "uptime", "TIMEOUT": 5, "EXPECTED_OUTPUT": "days",
	})}

	uc, err := NewDefaultRegistry().New(ClassRunCmd, env)
	require.NoError(t, err)
	res := runAll(t, uc)
	assert.Equal(t, api.VerdictPass, res.Verdict)

	dev.err = api.NewError(api.Timeout, "command timed out")
	assert.Equal(t, api.VerdictBlocked, Invoke(context.Background(), uc, PhaseRunTest).Verdict)
}

func TestSleepHonoursCancellation(t *testing.T) {
	uc, err := newSleep(Env{Params: parameter.NewValues(map[string]any{"DURATION": 30.0})})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := Invoke(ctx, uc, PhaseRunTest)
	assert.Equal(t, api.VerdictBlocked, res.Verdict)
}
