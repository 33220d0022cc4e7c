package device

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/devicelog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/metrics"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Manager owns the devices of a campaign. The first configured device is
// the primary one.
type Manager struct {
	eqt     EquipmentSource
	metrics *metrics.Campaign
	runner  Runner

	mu      sync.RWMutex
	order   []string
	devices map[string]*Device
}

// NewManager returns an empty manager. Devices built by Setup share eqt,
// m and runner; nil values select the defaults of New.
func NewManager(eqt EquipmentSource, m *metrics.Campaign, runner Runner) *Manager {
	return &Manager{eqt: eqt, metrics: m, runner: runner, devices: make(map[string]*Device)}
}

// Setup builds one device per config with the loggers its config enables.
// Logs are written under logDir when it is not empty.
func (m *Manager) Setup(cfgs []config.DeviceConfig, logDir string) error {
	if len(cfgs) == 0 {
		return api.NewError(api.InvalidBenchConfig, "no device configured")
	}
	for _, cfg := range cfgs {
		if _, exists := m.Get(cfg.Name); exists {
			return api.NewError(api.InvalidBenchConfig, "device %s is declared twice", cfg.Name)
		}
		d := New(cfg, m.runner, NewController(cfg, m.eqt), m.metrics)
		d.loggers = loggersFor(d, cfg)
		if logDir != "" {
			d.SetLogDir(logDir)
		}
		m.Add(d)
	}
	return nil
}

// loggersFor builds the loggers enabled by cfg. The logcat logger clears
// the buffer through d.
func loggersFor(d *Device, cfg config.DeviceConfig) []*devicelog.Logger {
	watchdog := cfg.GetDuration(config.KeyWatchdogLogTime, 0)
	var out []*devicelog.Logger
	if cfg.GetBool(config.KeyLogcatEnabled, false) {
		out = append(out, devicelog.New(devicelog.Options{
			Name: "logcat",
			Source: &devicelog.LogcatSource{
				Serial: cfg.GetString(config.KeySerialNumber, ""),
				Adb:    cfg.GetString(config.KeyAdbCommand, ""),
				Runner: d,
			},
			WatchdogLogTime: watchdog,
		}))
	}
	if port := cfg.GetString(config.KeySerialPort, ""); port != "" {
		out = append(out, devicelog.New(devicelog.Options{
			Name:   "serial",
			Source: devicelog.SerialSource{Port: port, BaudRate: cfg.GetInt(config.KeySerialBaudRate, 0)},
		}))
	}
	if path := cfg.GetString(config.KeyPTICaptureFile, ""); path != "" {
		out = append(out, devicelog.New(devicelog.Options{
			Name:   "pti",
			Source: devicelog.PTISource{Path: path},
		}))
	}
	return out
}

func logPath(dir, device, logger string) string {
	return filepath.Join(dir, device+"_"+logger+".log")
}

// Add registers d. It replaces a device of the same name.
func (m *Manager) Add(d *Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[d.Name()]; !ok {
		m.order = append(m.order, d.Name())
	}
	m.devices[d.Name()] = d
}

func (m *Manager) Get(name string) (*Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[name]
	return d, ok
}

// Primary returns the first registered device.
func (m *Manager) Primary() (*Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return nil, api.NewError(api.DeviceNotConnected, "no device available")
	}
	return m.devices[m.order[0]], nil
}

// All returns the devices in registration order.
func (m *Manager) All() []*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Device, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.devices[n])
	}
	return out
}

// SetLogDir moves the logs of every device to dir.
func (m *Manager) SetLogDir(dir string) {
	for _, d := range m.All() {
		d.SetLogDir(dir)
	}
}

// InitAll initialises the devices concurrently. The error is the first
// device failure; every device is still attempted.
func (m *Manager) InitAll(ctx context.Context) error {
	var g errgroup.Group
	start := time.Now()
	for _, d := range m.All() {
		g.Go(func() error {
			if err := d.Initialize(ctx); err != nil {
				logging.Error("DeviceManager", err, "Device %s failed to initialise", d.Name())
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	logging.Info("DeviceManager", "Initialised %d device(s) in %s", len(m.All()), time.Since(start).Round(time.Millisecond))
	return err
}

// CleanupAll releases every device.
func (m *Manager) CleanupAll() error {
	var errs []error
	for _, d := range m.All() {
		if err := d.Cleanup(); err != nil {
			logging.Warn("DeviceManager", "Cleanup of %s: %v", d.Name(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
