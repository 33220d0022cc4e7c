package api

// DeviceState is the lifecycle state of a device.
type DeviceState string

const (
	DeviceUninitialized DeviceState = "UNINITIALIZED"
	DeviceInitializing  DeviceState = "INITIALIZING"
	DeviceConnected     DeviceState = "CONNECTED"
	DeviceDisconnected  DeviceState = "DISCONNECTED"
	DeviceRunningTC     DeviceState = "RUNNING_TC"
	DeviceRecovering    DeviceState = "RECOVERING"
	DeviceTeardown      DeviceState = "TEARDOWN"
	DeviceReleased      DeviceState = "RELEASED"
	DeviceFatal         DeviceState = "FATAL"
)

// EngineState is the state of the campaign engine.
type EngineState string

const (
	EngineCreated    EngineState = "CREATED"
	EngineLoading    EngineState = "LOADING"
	EngineDeviceInit EngineState = "DEVICE_INIT"
	EngineRunning    EngineState = "RUNNING"
	EngineFinalizing EngineState = "FINALIZING"
	EngineReported   EngineState = "REPORTED"
	// EngineAborted is reached when loading fails with a configuration error.
	EngineAborted EngineState = "ABORTED"
)
