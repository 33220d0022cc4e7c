// Package equipment drives bench equipment: relay cards, power supplies,
// USB switches, keyboard emulators.
//
// An equipment is declared twice: its model in the equipment catalog (driver
// kind, capabilities, default parameters) and its instance in the bench
// config (name, model, parameter overrides). Manager joins both lazily the
// first time a device controller asks for the equipment.
//
// Driver kinds:
//
//	simulated            records actions in memory
//	external-executable  runs "<Executable> <action> <args...>" per action
//	external-daemon      sends one text line per action to a TCP daemon
//	shared-library       not available in this build (C_LIBRARY_ERROR)
package equipment
