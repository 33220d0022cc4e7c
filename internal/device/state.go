package device

import (
	"slices"
	"sync"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
)

// StateChangeCallback is notified after every accepted transition.
type StateChangeCallback func(device string, from, to api.DeviceState)

// transitions is the allowed-transition table of a device.
var transitions = map[api.DeviceState][]api.DeviceState{
	api.DeviceUninitialized: {api.DeviceInitializing, api.DeviceReleased},
	api.DeviceInitializing:  {api.DeviceConnected, api.DeviceDisconnected, api.DeviceRecovering, api.DeviceFatal},
	api.DeviceConnected:     {api.DeviceRunningTC, api.DeviceDisconnected, api.DeviceRecovering, api.DeviceTeardown},
	api.DeviceDisconnected:  {api.DeviceConnected, api.DeviceRecovering, api.DeviceTeardown},
	api.DeviceRunningTC:     {api.DeviceConnected, api.DeviceDisconnected, api.DeviceTeardown},
	api.DeviceRecovering:    {api.DeviceConnected, api.DeviceFatal},
	api.DeviceTeardown:      {api.DeviceReleased},
	api.DeviceFatal:         {api.DeviceReleased},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to api.DeviceState) bool {
	return slices.Contains(transitions[from], to)
}

type stateMachine struct {
	mu       sync.RWMutex
	name     string
	state    api.DeviceState
	callback StateChangeCallback
}

func (s *stateMachine) get() api.DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *stateMachine) setCallback(cb StateChangeCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// transition moves to `to` if the table allows it. An illegal transition
// returns PROHIBITIVE_BEHAVIOR and leaves the state unchanged.
func (s *stateMachine) transition(to api.DeviceState) error {
	s.mu.Lock()
	from := s.state
	if !CanTransition(from, to) {
		s.mu.Unlock()
		return api.NewError(api.ProhibitiveBehavior, "device %s cannot go from %s to %s", s.name, from, to)
	}
	s.state = to
	cb := s.callback
	s.mu.Unlock()

	// Outside the lock: the callback may read the state.
	if cb != nil {
		cb(s.name, from, to)
	}
	return nil
}
