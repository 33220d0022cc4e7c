// Package devicelog reads device log sources (logcat, serial console, trace
// capture files) and matches their lines against trigger messages.
//
// Each Logger runs a reader task that feeds two bounded queues, one drained
// by the analyzer (trigger matching) and one by the writer (log file). A
// watchdog closes the current stream when the source has been silent for
// twice the configured watchdog time so that the reader reopens it.
package devicelog
