// Package api holds the small set of types shared by every acs package:
// verdicts and phase results, the coded error type, and the device and
// engine state enumerations.
//
// The package has no dependencies on other acs packages so that any of
// them can import it without creating cycles.
//
// # Errors
//
// Every failure that crosses a package boundary is an *Error carrying an
// ErrorCode. Callers classify errors with HasCode, IsConfigurationError and
// IsEquipmentError instead of asserting on messages:
//
//	if api.IsConfigurationError(err) {
//	    return ExitConfigurationError
//	}
//
// # Verdicts
//
// Phase methods return a Result (Verdict + Message) rather than raising.
// Blocked is the abort signal for the current attempt.
package api
