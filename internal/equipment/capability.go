package equipment

import (
	"context"
	"time"
)

// Capability names as declared in the equipment catalog.
const (
	CapPowerButton      = "power-button"
	CapKeyCombo         = "key-combo"
	CapUsbHost          = "usb-host"
	CapBattery          = "battery"
	CapPowerSupply      = "power-supply"
	CapProvisioningLine = "provisioning-line"
	CapKeyboard         = "keyboard"
)

// AllCapabilities lists every capability, in declaration order.
var AllCapabilities = []string{
	CapPowerButton, CapKeyCombo, CapUsbHost, CapBattery, CapPowerSupply, CapProvisioningLine, CapKeyboard,
}

// Actions sent to drivers.
const (
	ActionPressPowerButton        = "press_power_button"
	ActionPressKeyCombo           = "press_key_combo"
	ActionConnectUsbHost          = "connect_usb_host_to_dut"
	ActionDisconnectUsbHost       = "disconnect_usb_host_to_dut"
	ActionConnectBattery          = "connect_battery_to_dut"
	ActionDisconnectBattery       = "disconnect_battery_from_dut"
	ActionPlugPower               = "plug_device_power"
	ActionCutPower                = "cut_device_power"
	ActionEnableProvisioningLine  = "enable_provisioning_line"
	ActionDisableProvisioningLine = "disable_provisioning_line"
	ActionWriteKeyboardCommands   = "write_keyboard_commands"
)

var actionCapability = map[string]string{
	ActionPressPowerButton:        CapPowerButton,
	ActionPressKeyCombo:           CapKeyCombo,
	ActionConnectUsbHost:          CapUsbHost,
	ActionDisconnectUsbHost:       CapUsbHost,
	ActionConnectBattery:          CapBattery,
	ActionDisconnectBattery:       CapBattery,
	ActionPlugPower:               CapPowerSupply,
	ActionCutPower:                CapPowerSupply,
	ActionEnableProvisioningLine:  CapProvisioningLine,
	ActionDisableProvisioningLine: CapProvisioningLine,
	ActionWriteKeyboardCommands:   CapKeyboard,
}

// PowerButton presses the device power button.
type PowerButton interface {
	PressPowerButton(ctx context.Context, d time.Duration) error
}

// KeyCombo presses several device keys at once.
type KeyCombo interface {
	PressKeyCombo(ctx context.Context, keys []string, d time.Duration) error
}

// UsbHost switches the USB link between host and device.
type UsbHost interface {
	ConnectUsbHostToDut(ctx context.Context) error
	DisconnectUsbHostToDut(ctx context.Context) error
}

// Battery connects or removes the device battery.
type Battery interface {
	ConnectBatteryToDut(ctx context.Context) error
	DisconnectBatteryFromDut(ctx context.Context) error
}

// PowerSupply switches the external supply of the device.
type PowerSupply interface {
	PlugDevicePower(ctx context.Context) error
	CutDevicePower(ctx context.Context) error
}

// ProvisioningLine drives the provisioning signal of the device.
type ProvisioningLine interface {
	EnableProvisioningLine(ctx context.Context) error
	DisableProvisioningLine(ctx context.Context) error
}

// Keyboard types on an emulated keyboard attached to the device.
type Keyboard interface {
	WriteKeyboardCommands(ctx context.Context, seq []string) error
}
