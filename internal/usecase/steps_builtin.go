package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/parameter"
)

// Built-in step class ids.
const (
	StepSetContext      = "SET_CONTEXT"
	StepCompare         = "COMPARE"
	StepWait            = "WAIT"
	StepRunCmd          = "RUN_CMD"
	StepCheckLogTrigger = "CHECK_LOG_TRIGGER"
)

// Comparison operators of the COMPARE step.
const (
	OpEqual          = "EQUAL"
	OpNotEqual       = "NOT_EQUAL"
	OpGreater        = "GREATER"
	OpGreaterOrEqual = "GREATER_OR_EQUAL"
	OpLower          = "LOWER"
	OpLowerOrEqual   = "LOWER_OR_EQUAL"
	OpContains       = "CONTAINS"
)

func str(name string) catalog.ParamDescriptor {
	return catalog.ParamDescriptor{Name: name, Type: parameter.TypeString}
}

func blankStr(name string) catalog.ParamDescriptor {
	return catalog.ParamDescriptor{Name: name, Type: parameter.TypeString, BlankAllowed: true}
}

func optionalStr(name string) catalog.ParamDescriptor {
	return catalog.ParamDescriptor{Name: name, Type: parameter.TypeString, Optional: true}
}

func withDefault(d catalog.ParamDescriptor, typ, def, possible string) catalog.ParamDescriptor {
	d.Type = typ
	d.Default = def
	d.HasDefault = true
	d.PossibleValues = possible
	return d
}

func descriptors(ds ...catalog.ParamDescriptor) map[string]catalog.ParamDescriptor {
	m := make(map[string]catalog.ParamDescriptor, len(ds))
	for _, d := range ds {
		m[d.Name] = d
	}
	return m
}

func registerBuiltinSteps(r *StepRegistry) {
	r.MustRegister(StepSetContext, StepSpec{
		Factory: func(b *BaseStep) Step { return &setContextStep{b} },
		Params:  descriptors(str("KEY"), blankStr("VALUE")),
	})
	r.MustRegister(StepCompare, StepSpec{
		Factory: func(b *BaseStep) Step { return &compareStep{b} },
		Params: descriptors(blankStr("FIRST"), blankStr("SECOND"),
			withDefault(str("OPERATOR"), parameter.TypeString, OpEqual,
				strings.Join([]string{OpEqual, OpNotEqual, OpGreater, OpGreaterOrEqual, OpLower, OpLowerOrEqual, OpContains}, ";"))),
	})
	r.MustRegister(StepWait, StepSpec{
		Factory: func(b *BaseStep) Step { return &waitStep{b} },
		Params:  descriptors(withDefault(str("DURATION"), parameter.TypeFloat, "1", "[0:]")),
	})
	r.MustRegister(StepRunCmd, StepSpec{
		Factory: func(b *BaseStep) Step { return &runCmdStep{b} },
		Params: descriptors(str("COMMAND"),
			withDefault(str("TIMEOUT"), parameter.TypeInteger, "60", "[1:]"),
			optionalStr("EXPECTED_OUTPUT"), optionalStr("SAVE_AS")),
	})
	r.MustRegister(StepCheckLogTrigger, StepSpec{
		Factory: func(b *BaseStep) Step { return &checkLogTriggerStep{b} },
		Params: descriptors(str("MESSAGE"),
			withDefault(str("TIMEOUT"), parameter.TypeInteger, "10", "[0:]"),
			optionalStr("SAVE_AS")),
	})
}

type setContextStep struct{ *BaseStep }

func (s *setContextStep) Run(_ context.Context, sc *Context) error {
	p, err := s.Params(sc)
	if err != nil {
		return err
	}
	sc.Set(p.String("KEY"), p.String("VALUE"))
	return nil
}

type compareStep struct{ *BaseStep }

func (s *compareStep) Run(_ context.Context, sc *Context) error {
	p, err := s.Params(sc)
	if err != nil {
		return err
	}
	first, second := p.String("FIRST"), p.String("SECOND")
	op := strings.ToUpper(p.String("OPERATOR"))

	ok, err := compare(first, second, op)
	if err != nil {
		return err
	}
	if !ok {
		return Failf("step %s: %q %s %q is false", s.ID(), first, op, second)
	}
	return nil
}

// compare evaluates first op second. Ordering operators compare numerically
// when both sides are numbers and lexically otherwise.
func compare(first, second, op string) (bool, error) {
	switch op {
	case OpEqual:
		return first == second, nil
	case OpNotEqual:
		return first != second, nil
	case OpContains:
		return strings.Contains(first, second), nil
	}

	c := strings.Compare(first, second)
	a, errA := strconv.ParseFloat(strings.TrimSpace(first), 64)
	b, errB := strconv.ParseFloat(strings.TrimSpace(second), 64)
	if errA == nil && errB == nil {
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		default:
			c = 0
		}
	}
	switch op {
	case OpGreater:
		return c > 0, nil
	case OpGreaterOrEqual:
		return c >= 0, nil
	case OpLower:
		return c < 0, nil
	case OpLowerOrEqual:
		return c <= 0, nil
	}
	return false, api.NewError(api.InvalidParameter, "unknown comparison operator %q", op)
}

type waitStep struct{ *BaseStep }

func (s *waitStep) Run(ctx context.Context, sc *Context) error {
	p, err := s.Params(sc)
	if err != nil {
		return err
	}
	return sleep(ctx, secondsToDuration(p.Float("DURATION")))
}

type runCmdStep struct{ *BaseStep }

func (s *runCmdStep) Run(ctx context.Context, sc *Context) error {
	p, err := s.Params(sc)
	if err != nil {
		return err
	}
	dev := s.Env().Device
	if dev == nil {
		return api.NewError(api.DeviceNotConnected, "step %s: no device available", s.ID())
	}
	out, err := dev.RunCmd(ctx, p.String("COMMAND"), time.Duration(p.Int("TIMEOUT"))*time.Second)
	if err != nil {
		return err
	}
	if key := p.String("SAVE_AS"); key != "" {
		sc.Set(key, strings.TrimSpace(out))
	}
	if want := p.String("EXPECTED_OUTPUT"); want != "" && !strings.Contains(out, want) {
		return Failf("step %s: output of %q does not contain %q", s.ID(), p.String("COMMAND"), want)
	}
	return nil
}

type checkLogTriggerStep struct{ *BaseStep }

func (s *checkLogTriggerStep) Run(ctx context.Context, sc *Context) error {
	p, err := s.Params(sc)
	if err != nil {
		return err
	}
	log := s.Env().Log
	if log == nil {
		return api.NewError(api.InvalidBenchConfig, "step %s: device has no logger", s.ID())
	}
	msg := p.String("MESSAGE")
	log.AddTriggerMessage(msg)
	defer log.RemoveTriggerMessage(msg)

	lines, err := log.IsMessageReceived(ctx, msg, time.Duration(p.Int("TIMEOUT"))*time.Second)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return Failf("step %s: message %q not received within %ds", s.ID(), msg, p.Int("TIMEOUT"))
	}
	if key := p.String("SAVE_AS"); key != "" {
		sc.Set(key, lines[len(lines)-1])
	}
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
