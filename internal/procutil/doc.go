// Package procutil runs external commands in their own process group so
// that a timeout or a cancellation terminates the command together with
// everything it spawned.
package procutil
