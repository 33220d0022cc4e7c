package engine

import (
	"context"
	"io"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/device"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/equipment"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/livereport"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/metrics"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/report"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/usecase"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Config wires an Engine. Only Options is required.
type Config struct {
	Options config.Options
	// Paths defaults to config.DefaultPaths with the report folder option
	// applied.
	Paths *config.Paths

	UseCases *usecase.Registry
	Steps    *usecase.StepRegistry
	// Runner runs the device shell commands; nil uses the host shell.
	Runner device.Runner
	// Adapter replaces the REST adapter of live reporting.
	Adapter livereport.Adapter
	// ReportServerURL is the base URL of the report server. It falls back
	// to the campaign parameter and then the environment.
	ReportServerURL string
	// DrainTimeout bounds the wait for pending live-report events.
	DrainTimeout time.Duration

	Rand   *rand.Rand
	Now    func() time.Time
	Stdout io.Writer
	// Notify receives service manager status lines; nil sends them to
	// systemd when the process runs under it.
	Notify  func(state string)
	Version string
	// Wait is called around blocking waits the user should see; it returns
	// the function that ends the wait.
	Wait func(msg string) (done func())
}

// Engine runs one campaign.
type Engine struct {
	cfg Config

	mu    sync.Mutex
	state api.EngineState

	stop        atomic.Bool
	interrupted bool
	started     time.Time

	metrics   *metrics.Campaign
	global    config.Global
	catalogs  *catalog.Catalogs
	equipment *equipment.Manager
	devices   *device.Manager
	tree      *report.Tree
	live      *liveSession

	records []report.CaseRecord
}

// New returns an engine in the CREATED state.
func New(cfg Config) *Engine {
	if cfg.UseCases == nil {
		cfg.UseCases = usecase.NewDefaultRegistry()
	}
	if cfg.Steps == nil {
		cfg.Steps = usecase.NewDefaultStepRegistry()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(cfg.Now().UnixNano()), 0x5eed))
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Notify == nil {
		cfg.Notify = systemdNotify
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = livereport.DefaultLastChance
	}
	if cfg.Wait == nil {
		cfg.Wait = func(string) func() { return func() {} }
	}
	if cfg.Options.RunNumber < 1 {
		cfg.Options.RunNumber = 1
	}
	return &Engine{
		cfg:     cfg,
		state:   api.EngineCreated,
		metrics: metrics.NewWithClock(cfg.Now),
	}
}

// State returns the current engine state.
func (e *Engine) State() api.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s api.EngineState) {
	e.mu.Lock()
	old := e.state
	e.state = s
	e.mu.Unlock()
	logging.Info("Engine", "State %s -> %s", old, s)
	e.cfg.Notify("STATUS=" + string(s))
}

// Stop asks the engine to stop after the current case. The remaining cases
// are reported INTERRUPTED.
func (e *Engine) Stop() {
	if e.stop.CompareAndSwap(false, true) {
		logging.Warn("Engine", "Stop requested, finishing the current test case")
	}
}

// Metrics returns the campaign metrics of the run.
func (e *Engine) Metrics() *metrics.Campaign { return e.metrics }

// Records returns the per-case outcomes, in run order.
func (e *Engine) Records() []report.CaseRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]report.CaseRecord(nil), e.records...)
}

// ReportDir returns the report tree root, empty before the tree exists.
func (e *Engine) ReportDir() string {
	if e.tree == nil {
		return ""
	}
	return e.tree.Root()
}

// Run executes the campaign. A configuration error during loading stops the
// engine in ABORTED and is returned with an empty verdict; every other
// problem is turned into case verdicts.
func (e *Engine) Run(ctx context.Context) (api.Verdict, error) {
	e.started = e.cfg.Now()
	e.metrics.Start()
	e.setState(api.EngineLoading)
	p, err := e.load()
	if err != nil {
		e.setState(api.EngineAborted)
		logging.Error("Engine", err, "Campaign loading failed")
		return "", err
	}
	if err := e.openReport(p); err != nil {
		e.setState(api.EngineAborted)
		return "", err
	}
	defer logging.CloseFileSink()
	e.startLive(ctx, p)

	e.setState(api.EngineDeviceInit)
	devErr := e.devices.InitAll(ctx)

	e.setState(api.EngineRunning)
	e.cfg.Notify("READY=1")
	e.runCases(ctx, p, devErr)

	e.setState(api.EngineFinalizing)
	e.cfg.Notify("STOPPING=1")
	e.metrics.Stop()
	verdict := Aggregate(e.Records(), e.interrupted)
	e.finish(ctx, p, verdict)

	e.setState(api.EngineReported)
	return verdict, nil
}
