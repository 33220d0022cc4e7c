package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Options holds the command line invocation of a campaign run.
type Options struct {
	CampaignPath     string
	DeviceModel      string
	BenchConfigPath  string
	FlashFile        string
	RunNumber        int
	RandomMode       bool
	DeviceID         string
	ReportFolder     string
	Overrides        []string // raw K=V device parameter overrides
	Credentials      string   // user:password for the report server
	CampaignGenerate bool
	LiveReporting    bool
	User             string
	MetacampaignUUID string
	LogLevel         string
	EFTPath          string
	ListDeviceModels bool
}

// Validate checks the option combination and returns an INVALID_PARAMETER
// error describing every problem found.
func (o Options) Validate() error {
	var errs ValidationErrors

	if !o.CampaignGenerate && !o.ListDeviceModels {
		if err := ValidateRequired("campaign", o.CampaignPath, "a campaign run"); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}
	if o.RunNumber < 1 {
		errs.Add("run_nb", "must be at least 1", o.RunNumber)
	}
	if o.Credentials != "" {
		if _, _, ok := strings.Cut(o.Credentials, ":"); !ok {
			errs.Add("creds", "must be formatted as user:password")
		}
	}
	if o.MetacampaignUUID != "" {
		if _, err := uuid.Parse(o.MetacampaignUUID); err != nil {
			errs.Add("metacampaign_uuid", "is not a valid UUID", o.MetacampaignUUID)
		}
	}
	if _, err := logging.ParseLevel(o.LogLevel); err != nil {
		errs.Add("log_level", err.Error(), o.LogLevel)
	}
	if _, err := ParseOverrides(o.Overrides); err != nil {
		errs.Add("override_device_parameter", err.Error())
	}

	if errs.HasErrors() {
		return api.WrapError(api.InvalidParameter, errs, "invalid command line")
	}
	return nil
}

// Username returns the user part of Credentials.
func (o Options) Username() string {
	u, _, _ := strings.Cut(o.Credentials, ":")
	return u
}

// Password returns the password part of Credentials.
func (o Options) Password() string {
	_, p, _ := strings.Cut(o.Credentials, ":")
	return p
}

// ParseOverrides turns repeated K=V arguments into Values. A later
// occurrence of a key wins.
func ParseOverrides(args []string) (Values, error) {
	m := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return Values{}, api.NewError(api.InvalidParameter, "device parameter override %q must be KEY=VALUE", arg)
		}
		m[k] = strings.TrimSpace(v)
	}
	return NewValues(m), nil
}

// Campaign parameter names understood by the engine.
const (
	ParamStopOnCriticalFailure = "stopCampaignOnCriticalFailure"
	ParamStopOnFirstFailure    = "stopCampaignOnFirstFailure"
	ParamPowerCycleBetweenTC   = "powerCycleBetweenTC"
	ParamPowerCycleOnFailure   = "powerCycleOnFailure"
	ParamFinalDutState         = "finalDutState"
	ParamLoggingLevel          = "loggingLevel"
	ParamCampaignType          = "CampaignType"
	ParamHwVariant             = "hwVariant"

	TargetPassRate = "targetPassRate"
)

// CampaignConfig is the immutable campaign level configuration: attributes
// of every Parameters and Targets child of the root campaign.
type CampaignConfig struct {
	Name       string
	Path       string
	Parameters Values
	Targets    Values
}

func (c CampaignConfig) StopOnCriticalFailure() bool {
	return c.Parameters.GetBool(ParamStopOnCriticalFailure, false)
}

func (c CampaignConfig) StopOnFirstFailure() bool {
	return c.Parameters.GetBool(ParamStopOnFirstFailure, false)
}

func (c CampaignConfig) PowerCycleBetweenTC() bool {
	return c.Parameters.GetBool(ParamPowerCycleBetweenTC, false)
}

func (c CampaignConfig) PowerCycleOnFailure() bool {
	return c.Parameters.GetBool(ParamPowerCycleOnFailure, false)
}

// TargetPassRate returns the declared pass rate target in percent, or -1.
func (c CampaignConfig) TargetPassRate() float64 {
	return c.Targets.GetFloat(TargetPassRate, -1)
}

// Device parameter names shared by the device, controller and logger code.
const (
	KeySerialNumber           = "serialNumber"
	KeyAdbCommand             = "adbCommand"
	KeyBootTimeout            = "bootTimeout"
	KeyPowerCycleRetryNumber  = "powerCycleRetryNumber"
	KeyPowerOnButtonDuration  = "pressPowerBtnTimeSwitchOn"
	KeyPowerOffButtonDuration = "pressPowerBtnTimeSwitchOff"
	KeyUsbSleepDuration       = "usbSleep"
	KeyWatchdogLogTime        = "watchdogLogTime"
	KeyLogcatEnabled          = "enableAdbLogcat"
	KeySerialPort             = "serialPort"
	KeySerialBaudRate         = "serialBaudRate"
	KeyPTICaptureFile         = "ptiCaptureFile"
	KeyIoCard                 = "IoCard"
	KeyPowerSupply            = "PowerSupply"
	KeyUsbHub                 = "UsbHub"
	KeyKeyboardEmulator       = "KeyboardEmulator"
	KeyHwVariant              = "hwVariant"
	KeyFlashFile              = "flashFile"
	KeyEFTPath                = "eftPath"
)

// DeviceConfig is the merged configuration of one device instance.
type DeviceConfig struct {
	Name  string
	Model string
	Values
}

// MergeDeviceConfig layers the device model catalog defaults, the bench
// entry for the device and the CLI overrides, later layers winning.
func MergeDeviceConfig(name, model string, modelDefaults, bench, overrides Values) DeviceConfig {
	merged := modelDefaults.Merge(bench).Merge(overrides)
	return DeviceConfig{Name: name, Model: model, Values: merged}
}

// Global bundles every configuration record of a run. It is built once
// during loading and passed explicitly; nothing in it is mutated afterwards.
type Global struct {
	Options  Options
	Paths    Paths
	Campaign CampaignConfig
	Bench    *BenchConfig
	Devices  []DeviceConfig
}

// Device returns the config of the named device.
func (g Global) Device(name string) (DeviceConfig, bool) {
	for _, d := range g.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// PrimaryDevice returns the first configured device.
func (g Global) PrimaryDevice() (DeviceConfig, error) {
	if len(g.Devices) == 0 {
		return DeviceConfig{}, api.NewError(api.InvalidBenchConfig, "no device configured")
	}
	return g.Devices[0], nil
}

func (d DeviceConfig) String() string {
	return fmt.Sprintf("%s(%s)", d.Name, d.Model)
}
