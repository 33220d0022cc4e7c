package device

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/devicelog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/metrics"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Device property keys filled after a successful connection.
const (
	PropSerialNumber = "ro.serialno"
	PropBuildVersion = "ro.build.version.incremental"
	PropDeviceID     = "device_id"
)

// Device defaults.
const (
	DefaultBootTimeout     = 300 * time.Second
	DefaultPowerCycleRetry = 2
	propertyTimeout        = 10 * time.Second
)

// Device is one device under test: its configuration, the controller of its
// bench equipment, its loggers and its connection state.
type Device struct {
	cfg     config.DeviceConfig
	runner  Runner
	ctrl    *Controller
	loggers []*devicelog.Logger
	metrics *metrics.Campaign
	sm      stateMachine

	mu            sync.Mutex
	props         map[string]string
	needsRecovery bool
}

// New returns an uninitialised device. m may be nil.
func New(cfg config.DeviceConfig, runner Runner, ctrl *Controller, m *metrics.Campaign, loggers ...*devicelog.Logger) *Device {
	if runner == nil {
		runner = ShellRunner{}
	}
	if ctrl == nil {
		ctrl = NewController(cfg, nil)
	}
	if m == nil {
		m = metrics.New()
	}
	return &Device{
		cfg:     cfg,
		runner:  runner,
		ctrl:    ctrl,
		loggers: loggers,
		metrics: m,
		sm:      stateMachine{name: cfg.Name, state: api.DeviceUninitialized},
		props:   make(map[string]string),
	}
}

func (d *Device) Name() string { return d.cfg.Name }

func (d *Device) Model() string { return d.cfg.Model }

func (d *Device) Config() config.DeviceConfig { return d.cfg }

func (d *Device) Controller() *Controller { return d.ctrl }

func (d *Device) State() api.DeviceState { return d.sm.get() }

func (d *Device) Loggers() []*devicelog.Logger { return d.loggers }

// OnStateChange installs the callback notified after every transition.
func (d *Device) OnStateChange(cb StateChangeCallback) { d.sm.setCallback(cb) }

// Logger returns the first logger of the device, or nil.
func (d *Device) Logger() *devicelog.Logger {
	if len(d.loggers) == 0 {
		return nil
	}
	return d.loggers[0]
}

// Properties returns a copy of the properties read at connection.
func (d *Device) Properties() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.props)
}

// NeedsRecovery reports whether a critical failure scheduled a power cycle.
func (d *Device) NeedsRecovery() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.needsRecovery
}

// RunCmd runs a host command line for this device.
func (d *Device) RunCmd(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	return d.runner.Run(ctx, cmd, timeout)
}

func (d *Device) adb() string {
	adb := d.cfg.GetString(config.KeyAdbCommand, "adb")
	if serial := d.cfg.GetString(config.KeySerialNumber, ""); serial != "" {
		return adb + " -s " + serial
	}
	return adb
}

func (d *Device) retries() int {
	return max(d.cfg.GetInt(config.KeyPowerCycleRetryNumber, DefaultPowerCycleRetry), 1)
}

// Initialize starts the loggers and connects to the device, power cycling
// it when the first connection fails.
func (d *Device) Initialize(ctx context.Context) error {
	if err := d.sm.transition(api.DeviceInitializing); err != nil {
		return err
	}
	for _, l := range d.loggers {
		if err := l.Start(ctx); err != nil {
			logging.Warn("Device", "%s: logger %s did not start: %v", d.Name(), l.Name(), err)
		}
	}
	err := d.InitConnection(ctx)
	if err == nil {
		return d.sm.transition(api.DeviceConnected)
	}
	logging.Warn("Device", "%s: first connection failed: %v", d.Name(), err)
	return d.recover(ctx)
}

// InitConnection waits for the device to boot, probes its adb state and
// reads its properties. It updates the boot counters; it does not change
// the device state.
func (d *Device) InitConnection(ctx context.Context) error {
	d.metrics.RecordBootAttempt()
	boot := d.cfg.GetDuration(config.KeyBootTimeout, DefaultBootTimeout)

	if _, err := d.runner.Run(ctx, d.adb()+" wait-for-device", boot); err != nil {
		d.metrics.RecordBootFailure()
		return api.WrapError(api.DeviceNotConnected, err, "device %s did not boot", d.Name())
	}
	out, err := d.runner.Run(ctx, d.adb()+" get-state", propertyTimeout)
	if err != nil || strings.TrimSpace(out) != "device" {
		d.metrics.RecordConnectFailure()
		if err == nil {
			err = fmt.Errorf("state %q", strings.TrimSpace(out))
		}
		return api.WrapError(api.DeviceNotConnected, err, "cannot connect to device %s", d.Name())
	}
	d.metrics.RecordSuccessfulBoot()
	d.readProperties(ctx)
	return nil
}

func (d *Device) readProperties(ctx context.Context) {
	props := map[string]string{PropDeviceID: d.cfg.GetString(config.KeySerialNumber, "")}
	for _, p := range []string{PropSerialNumber, PropBuildVersion} {
		out, err := d.runner.Run(ctx, d.adb()+" shell getprop "+p, propertyTimeout)
		if err != nil {
			logging.Debug("Device", "%s: cannot read %s: %v", d.Name(), p, err)
			continue
		}
		props[p] = strings.TrimSpace(out)
	}
	if props[PropDeviceID] == "" {
		props[PropDeviceID] = props[PropSerialNumber]
	}
	d.mu.Lock()
	d.props = props
	d.mu.Unlock()
}

// Recover power cycles the device through its controller and reconnects,
// up to the configured retry number. The device ends CONNECTED or FATAL.
func (d *Device) Recover(ctx context.Context) error {
	return d.recover(ctx)
}

func (d *Device) recover(ctx context.Context) error {
	if err := d.sm.transition(api.DeviceRecovering); err != nil {
		return err
	}
	pause := d.cfg.GetDuration(config.KeyUsbSleepDuration, time.Second)

	var lastErr error
	for attempt := 1; attempt <= d.retries(); attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		logging.Info("Device", "%s: recovery attempt %d/%d", d.Name(), attempt, d.retries())
		cycled, err := d.ctrl.PowerCycle(ctx, pause)
		if err != nil {
			logging.Warn("Device", "%s: power cycle failed: %v", d.Name(), err)
		} else if !cycled {
			logging.Debug("Device", "%s: no equipment to power cycle, retrying connection only", d.Name())
		}
		if lastErr = d.InitConnection(ctx); lastErr == nil {
			d.mu.Lock()
			d.needsRecovery = false
			d.mu.Unlock()
			return d.sm.transition(api.DeviceConnected)
		}
	}
	if err := d.sm.transition(api.DeviceFatal); err != nil {
		return errors.Join(lastErr, err)
	}
	return api.WrapError(api.DeviceNotConnected, lastErr, "device %s could not be recovered after %d attempts", d.Name(), d.retries())
}

// BeginCase prepares the device for a test case. A device that is not
// CONNECTED, or that has a pending recovery, is recovered first.
func (d *Device) BeginCase(ctx context.Context) error {
	if d.State() != api.DeviceConnected || d.NeedsRecovery() {
		if err := d.recover(ctx); err != nil {
			return err
		}
	}
	return d.sm.transition(api.DeviceRunningTC)
}

// EndCase returns the device to CONNECTED. A case that did not pass is
// followed by a state probe; a device that no longer answers is marked
// DISCONNECTED and the case counts as critical. A critical case records a
// critical failure and schedules a recovery before the next case. The
// returned flag reports whether the case was critical.
func (d *Device) EndCase(ctx context.Context, failed, critical bool) (bool, error) {
	var lost error
	if failed && d.State() == api.DeviceRunningTC {
		lost = d.probe(ctx)
	}
	if lost != nil {
		logging.Warn("Device", "%s: lost during the test case: %v", d.Name(), lost)
		critical = true
	}
	if critical {
		d.metrics.RecordCriticalFailure()
		d.mu.Lock()
		d.needsRecovery = true
		d.mu.Unlock()
	}
	switch {
	case lost != nil:
		return critical, d.Disconnect()
	case d.State() == api.DeviceRunningTC:
		return critical, d.sm.transition(api.DeviceConnected)
	}
	return critical, nil
}

// probe checks that adb still sees the device.
func (d *Device) probe(ctx context.Context) error {
	out, err := d.runner.Run(ctx, d.adb()+" get-state", propertyTimeout)
	if err != nil {
		return err
	}
	if state := strings.TrimSpace(out); state != "device" {
		return fmt.Errorf("state %q", state)
	}
	return nil
}

// ScheduleRecovery makes the next BeginCase power cycle the device.
func (d *Device) ScheduleRecovery() {
	d.mu.Lock()
	d.needsRecovery = true
	d.mu.Unlock()
}

// Disconnect marks the device as lost.
func (d *Device) Disconnect() error {
	return d.sm.transition(api.DeviceDisconnected)
}

// SetLogDir points every logger at <dir>/<device>_<logger>.log.
func (d *Device) SetLogDir(dir string) {
	for _, l := range d.loggers {
		l.SetOutputPath(logPath(dir, d.Name(), l.Name()))
	}
}

// Cleanup stops the loggers and releases the device. A device that never
// finished connecting goes through FATAL, any other through TEARDOWN.
func (d *Device) Cleanup() error {
	var errs []error
	for _, l := range d.loggers {
		if err := l.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	switch d.State() {
	case api.DeviceReleased:
	case api.DeviceUninitialized, api.DeviceFatal:
		errs = append(errs, d.sm.transition(api.DeviceReleased))
	case api.DeviceInitializing, api.DeviceRecovering:
		errs = append(errs, d.sm.transition(api.DeviceFatal), d.sm.transition(api.DeviceReleased))
	default:
		errs = append(errs, d.sm.transition(api.DeviceTeardown), d.sm.transition(api.DeviceReleased))
	}
	return errors.Join(errs...)
}
