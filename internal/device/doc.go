// Package device manages the devices under test of a campaign.
//
// A Device runs host commands (adb) through a Runner, drives its bench
// equipment through a Controller and owns the loggers enabled by its
// configuration. Its lifecycle is a guarded state machine:
//
//	UNINITIALIZED → INITIALIZING → CONNECTED ⇄ RUNNING_TC
//	                     ↓             ↓
//	                RECOVERING ⇄ DISCONNECTED
//	                     ↓
//	                   FATAL → RELEASED ← TEARDOWN
//
// Illegal transitions are rejected with PROHIBITIVE_BEHAVIOR. Recovery power
// cycles the device through whichever equipment provides the power-supply or
// power-button capability and reconnects, up to powerCycleRetryNumber times.
package device
