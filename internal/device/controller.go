package device

import (
	"context"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/equipment"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// EquipmentSource hands out bench equipment by name.
type EquipmentSource interface {
	Get(ctx context.Context, name string) (*equipment.Instance, error)
}

// Default button hold durations.
const (
	DefaultPowerOnButtonDuration  = 3 * time.Second
	DefaultPowerOffButtonDuration = 10 * time.Second
)

// roles maps a capability to the device-config keys naming the equipment
// that provides it, in preference order.
var roles = map[string][]string{
	equipment.CapPowerButton:      {config.KeyIoCard},
	equipment.CapKeyCombo:         {config.KeyIoCard},
	equipment.CapBattery:          {config.KeyIoCard},
	equipment.CapProvisioningLine: {config.KeyIoCard},
	equipment.CapUsbHost:          {config.KeyUsbHub, config.KeyIoCard},
	equipment.CapPowerSupply:      {config.KeyPowerSupply, config.KeyIoCard},
	equipment.CapKeyboard:         {config.KeyKeyboardEmulator},
}

// Controller multiplexes the device capabilities over the equipment named
// in the device config. Every call reports whether it was performed; when no
// equipment provides the capability the call returns false, or an
// INVALID_BENCH_CONFIG error on a controller returned by Require.
type Controller struct {
	device  config.DeviceConfig
	eqt     EquipmentSource
	require bool
}

// NewController returns the controller of dev. eqt may be nil for a device
// without bench equipment.
func NewController(dev config.DeviceConfig, eqt EquipmentSource) *Controller {
	return &Controller{device: dev, eqt: eqt}
}

// Require returns a controller that fails on missing equipment.
func (c *Controller) Require() *Controller {
	cp := *c
	cp.require = true
	return &cp
}

// equipmentFor returns the instance providing capability, or nil.
func (c *Controller) equipmentFor(ctx context.Context, capability string) (*equipment.Instance, error) {
	if c.eqt != nil {
		for _, key := range roles[capability] {
			name := c.device.GetString(key, "")
			if name == "" {
				continue
			}
			inst, err := c.eqt.Get(ctx, name)
			if err != nil {
				return nil, err
			}
			if inst.Has(capability) {
				return inst, nil
			}
		}
	}
	if c.require {
		return nil, api.NewError(api.InvalidBenchConfig, "no equipment provides %s for device %s", capability, c.device.Name)
	}
	logging.Debug("DeviceController", "No equipment provides %s for %s", capability, c.device.Name)
	return nil, nil
}

func (c *Controller) call(ctx context.Context, capability string, fn func(*equipment.Instance) error) (bool, error) {
	inst, err := c.equipmentFor(ctx, capability)
	if err != nil || inst == nil {
		return false, err
	}
	if err := fn(inst); err != nil {
		return false, err
	}
	return true, nil
}

// Has reports whether some equipment provides capability.
func (c *Controller) Has(ctx context.Context, capability string) bool {
	plain := *c
	plain.require = false
	inst, err := plain.equipmentFor(ctx, capability)
	return err == nil && inst != nil
}

func (c *Controller) PressPowerButton(ctx context.Context, d time.Duration) (bool, error) {
	return c.call(ctx, equipment.CapPowerButton, func(i *equipment.Instance) error { return i.PressPowerButton(ctx, d) })
}

func (c *Controller) PressKeyCombo(ctx context.Context, keys []string, d time.Duration) (bool, error) {
	return c.call(ctx, equipment.CapKeyCombo, func(i *equipment.Instance) error { return i.PressKeyCombo(ctx, keys, d) })
}

func (c *Controller) ConnectUsbHostToDut(ctx context.Context) (bool, error) {
	return c.call(ctx, equipment.CapUsbHost, func(i *equipment.Instance) error { return i.ConnectUsbHostToDut(ctx) })
}

func (c *Controller) DisconnectUsbHostToDut(ctx context.Context) (bool, error) {
	return c.call(ctx, equipment.CapUsbHost, func(i *equipment.Instance) error { return i.DisconnectUsbHostToDut(ctx) })
}

func (c *Controller) ConnectBatteryToDut(ctx context.Context) (bool, error) {
	return c.call(ctx, equipment.CapBattery, func(i *equipment.Instance) error { return i.ConnectBatteryToDut(ctx) })
}

func (c *Controller) DisconnectBatteryFromDut(ctx context.Context) (bool, error) {
	return c.call(ctx, equipment.CapBattery, func(i *equipment.Instance) error { return i.DisconnectBatteryFromDut(ctx) })
}

func (c *Controller) PlugDevicePower(ctx context.Context) (bool, error) {
	return c.call(ctx, equipment.CapPowerSupply, func(i *equipment.Instance) error { return i.PlugDevicePower(ctx) })
}

func (c *Controller) CutDevicePower(ctx context.Context) (bool, error) {
	return c.call(ctx, equipment.CapPowerSupply, func(i *equipment.Instance) error { return i.CutDevicePower(ctx) })
}

func (c *Controller) EnableProvisioningLine(ctx context.Context) (bool, error) {
	return c.call(ctx, equipment.CapProvisioningLine, func(i *equipment.Instance) error { return i.EnableProvisioningLine(ctx) })
}

func (c *Controller) DisableProvisioningLine(ctx context.Context) (bool, error) {
	return c.call(ctx, equipment.CapProvisioningLine, func(i *equipment.Instance) error { return i.DisableProvisioningLine(ctx) })
}

func (c *Controller) WriteKeyboardCommands(ctx context.Context, seq []string) (bool, error) {
	return c.call(ctx, equipment.CapKeyboard, func(i *equipment.Instance) error { return i.WriteKeyboardCommands(ctx, seq) })
}

// PowerOnDevice holds the power button for the device power-on duration.
func (c *Controller) PowerOnDevice(ctx context.Context) (bool, error) {
	return c.PressPowerButton(ctx, c.device.GetDuration(config.KeyPowerOnButtonDuration, DefaultPowerOnButtonDuration))
}

// PowerOffDevice holds the power button for the device power-off duration.
func (c *Controller) PowerOffDevice(ctx context.Context) (bool, error) {
	return c.PressPowerButton(ctx, c.device.GetDuration(config.KeyPowerOffButtonDuration, DefaultPowerOffButtonDuration))
}

// PowerCycle switches the device off and on again, through its power supply
// when one is available and through the power button otherwise. pause is
// waited between off and on.
func (c *Controller) PowerCycle(ctx context.Context, pause time.Duration) (bool, error) {
	if c.Has(ctx, equipment.CapPowerSupply) {
		if ok, err := c.CutDevicePower(ctx); !ok || err != nil {
			return ok, err
		}
		if err := wait(ctx, pause); err != nil {
			return false, err
		}
		if ok, err := c.PlugDevicePower(ctx); !ok || err != nil {
			return ok, err
		}
		return c.PowerOnDevice(ctx)
	}
	if ok, err := c.PowerOffDevice(ctx); !ok || err != nil {
		return ok, err
	}
	if err := wait(ctx, pause); err != nil {
		return false, err
	}
	return c.PowerOnDevice(ctx)
}

func wait(ctx context.Context, d time.Duration) error {
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
