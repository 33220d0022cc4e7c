package equipment

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Driver kinds.
const (
	KindSharedLibrary      = "shared-library"
	KindExternalDaemon     = "external-daemon"
	KindExternalExecutable = "external-executable"
	KindSimulated          = "simulated"
)

// driver performs equipment actions for one instance.
type driver interface {
	init(ctx context.Context) error
	do(ctx context.Context, action string, args []string) error
	close() error
}

// Instance is one bench equipment bound to its driver. It implements every
// capability interface; calls for a capability the instance does not
// declare fail with SPECIFIC_EQT_ERROR.
type Instance struct {
	Name   string
	Model  string
	Kind   string
	Params config.Values

	caps   []string
	mu     sync.Mutex
	driver driver
}

// Has reports whether the instance declares capability c.
func (i *Instance) Has(c string) bool {
	return slices.Contains(i.caps, strings.ToLower(c))
}

// Capabilities returns the declared capabilities.
func (i *Instance) Capabilities() []string {
	return slices.Clone(i.caps)
}

// Do runs action on the driver. Actions are serialised per instance.
func (i *Instance) Do(ctx context.Context, action string, args ...string) error {
	if c, ok := actionCapability[action]; ok && !i.Has(c) {
		return api.NewError(api.SpecificEqtError, "equipment %s (%s) has no %s capability", i.Name, i.Model, c)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	logging.Debug("Equipment", "%s: %s %s", i.Name, action, strings.Join(args, " "))
	if err := i.driver.do(ctx, action, args); err != nil {
		return fmt.Errorf("equipment %s: %s: %w", i.Name, action, err)
	}
	return nil
}

// Close releases the driver.
func (i *Instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.driver.close()
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%g", d.Seconds())
}

func (i *Instance) PressPowerButton(ctx context.Context, d time.Duration) error {
	return i.Do(ctx, ActionPressPowerButton, seconds(d))
}

func (i *Instance) PressKeyCombo(ctx context.Context, keys []string, d time.Duration) error {
	return i.Do(ctx, ActionPressKeyCombo, append([]string{seconds(d)}, keys...)...)
}

func (i *Instance) ConnectUsbHostToDut(ctx context.Context) error {
	return i.Do(ctx, ActionConnectUsbHost)
}

func (i *Instance) DisconnectUsbHostToDut(ctx context.Context) error {
	return i.Do(ctx, ActionDisconnectUsbHost)
}

func (i *Instance) ConnectBatteryToDut(ctx context.Context) error {
	return i.Do(ctx, ActionConnectBattery)
}

func (i *Instance) DisconnectBatteryFromDut(ctx context.Context) error {
	return i.Do(ctx, ActionDisconnectBattery)
}

func (i *Instance) PlugDevicePower(ctx context.Context) error {
	return i.Do(ctx, ActionPlugPower)
}

func (i *Instance) CutDevicePower(ctx context.Context) error {
	return i.Do(ctx, ActionCutPower)
}

func (i *Instance) EnableProvisioningLine(ctx context.Context) error {
	return i.Do(ctx, ActionEnableProvisioningLine)
}

func (i *Instance) DisableProvisioningLine(ctx context.Context) error {
	return i.Do(ctx, ActionDisableProvisioningLine)
}

func (i *Instance) WriteKeyboardCommands(ctx context.Context, seq []string) error {
	return i.Do(ctx, ActionWriteKeyboardCommands, seq...)
}
