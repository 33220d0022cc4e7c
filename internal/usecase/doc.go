// Package usecase is the runtime of use cases and test steps.
//
// A use case implements the UseCase life cycle and is built by a Factory
// registered under a stable class id. The engine drives the phases through
// Invoke, which turns panics into BLOCKED results.
//
// Test steps are built from the TestSteps block of a test case. A step
// captures its parameters at construction through the static resolver
// pass; a construction error is held and returned when the step runs.
// FROM_CTX references are resolved against the Context of the run when the
// step executes.
//
// Built-in use cases: NOOP, SLEEP, RUN_CMD and STEPS. Built-in steps:
// SET_CONTEXT, COMPARE, WAIT, RUN_CMD and CHECK_LOG_TRIGGER.
package usecase
