// Package engine runs a campaign from the command line options to the
// report tree.
//
// The engine moves through
//
//	CREATED → LOADING → DEVICE_INIT → RUNNING → FINALIZING → REPORTED
//
// and stops in ABORTED when loading fails with a configuration error, in
// which case no device is touched. The engine owns every service of a run
// (metrics, device manager, equipment manager, live reporter and report
// tree) and passes them explicitly; nothing is process wide.
//
// Each case of the run list goes through the use-case life cycle
// initialize → set_up → run_test×b2b → tear_down → finalize, repeated under
// its acceptance criteria. Finalize always runs and never changes the
// verdict. The campaign verdict is INTERRUPTED when a stop was requested,
// PASS when every executed case passed (warning cases may fail), then
// FAIL, BLOCKED or INCONCLUSIVE in that order of precedence.
package engine
