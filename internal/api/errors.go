package api

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures across the engine. The values are the
// identifiers printed in reports and campaign logs.
type ErrorCode string

const (
	// Configuration errors: surfaced at load time, abort before devices are touched.
	InvalidParameter      ErrorCode = "INVALID_PARAMETER"
	FileNotFound          ErrorCode = "FILE_NOT_FOUND"
	XMLParsingError       ErrorCode = "XML_PARSING_ERROR"
	YAMLParsingError      ErrorCode = "YAML_PARSING_ERROR"
	InvalidBenchConfig    ErrorCode = "INVALID_BENCH_CONFIG"
	FeatureNotImplemented ErrorCode = "FEATURE_NOT_IMPLEMENTED"
	ProhibitiveBehavior   ErrorCode = "PROHIBITIVE_BEHAVIOR"

	// Device and equipment errors: reported to the case as a blocking verdict.
	DaemonDriverError      ErrorCode = "DAEMON_DRIVER_ERROR"
	CLibraryError          ErrorCode = "C_LIBRARY_ERROR"
	PlatformError          ErrorCode = "PLATFORM_ERROR"
	SpecificEqtError       ErrorCode = "SPECIFIC_EQT_ERROR"
	BinaryFolderPathError  ErrorCode = "BINARY_FOLDER_PATH_ERROR"
	ExternalLibraryError   ErrorCode = "EXTERNAL_LIBRARY_ERROR"
	DeviceNotConnected     ErrorCode = "DEVICE_NOT_CONNECTED"
	Timeout                ErrorCode = "TIMEOUT"
	OperationFailed        ErrorCode = "OPERATION_FAILED"
)

// Error is the error type carried through acs. It pairs a stable code with
// a human readable message and an optional cause.
type Error struct {
	Code ErrorCode
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates an *Error with a formatted message.
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// WrapError creates an *Error that wraps cause.
func WrapError(code ErrorCode, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// err does not carry one.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsConfigurationError reports whether err is one of the load-time
// configuration failures that must abort the run before device init.
func IsConfigurationError(err error) bool {
	switch CodeOf(err) {
	case InvalidParameter, FileNotFound, XMLParsingError, YAMLParsingError,
		InvalidBenchConfig, FeatureNotImplemented, ProhibitiveBehavior:
		return true
	}
	return false
}

// IsEquipmentError reports whether err belongs to the device/equipment family.
func IsEquipmentError(err error) bool {
	switch CodeOf(err) {
	case DaemonDriverError, CLibraryError, PlatformError, SpecificEqtError,
		BinaryFolderPathError, ExternalLibraryError, DeviceNotConnected:
		return true
	}
	return false
}
