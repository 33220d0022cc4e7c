package config

import (
	"fmt"
	"strings"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
)

// ConfigurationError represents a structured error that occurs while loading
// a configuration file (catalog entry, campaign, test case, bench config).
type ConfigurationError struct {
	FilePath string        `json:"filePath"` // Full path to the file that caused the error
	FileName string        `json:"fileName"` // Base name of the file
	Category string        `json:"category"` // Catalog kind or file family (usecase, teststep, campaign, bench)
	Code     api.ErrorCode `json:"code"`     // Error code (XML_PARSING_ERROR, ...)
	Message  string        `json:"message"`  // Human-readable error message
	Details  string        `json:"details"`  // Additional details about the error
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s: %s", ce.Category, ce.FileName, ce.Code, ce.Message)
}

// ConfigurationErrorCollection holds multiple configuration errors so that a
// single load pass can report every broken file at once.
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError `json:"errors"`
}

// NewConfigurationErrorCollection creates a new empty error collection
func NewConfigurationErrorCollection() *ConfigurationErrorCollection {
	return &ConfigurationErrorCollection{
		Errors: make([]ConfigurationError, 0),
	}
}

// Error implements the error interface for the collection
func (cec ConfigurationErrorCollection) Error() string {
	if len(cec.Errors) == 0 {
		return "no configuration errors"
	}
	if len(cec.Errors) == 1 {
		return cec.Errors[0].Error()
	}
	return fmt.Sprintf("%d configuration errors: %s (and %d more)",
		len(cec.Errors), cec.Errors[0].Error(), len(cec.Errors)-1)
}

// HasErrors returns true if there are any errors in the collection
func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return len(cec.Errors) > 0
}

// Count returns the number of errors in the collection
func (cec *ConfigurationErrorCollection) Count() int {
	return len(cec.Errors)
}

// Add adds a new error to the collection
func (cec *ConfigurationErrorCollection) Add(err ConfigurationError) {
	cec.Errors = append(cec.Errors, err)
}

// AddError adds a basic error to the collection with context
func (cec *ConfigurationErrorCollection) AddError(filePath, fileName, category string, code api.ErrorCode, message string) {
	cec.Add(ConfigurationError{
		FilePath: filePath,
		FileName: fileName,
		Category: category,
		Code:     code,
		Message:  message,
	})
}

// GetErrorsByCode returns errors filtered by code
func (cec *ConfigurationErrorCollection) GetErrorsByCode(code api.ErrorCode) []ConfigurationError {
	var filtered []ConfigurationError
	for _, err := range cec.Errors {
		if err.Code == code {
			filtered = append(filtered, err)
		}
	}
	return filtered
}

// GetSummary returns a summary of all errors grouped by category
func (cec *ConfigurationErrorCollection) GetSummary() string {
	if len(cec.Errors) == 0 {
		return "No configuration errors"
	}

	var order []string
	groups := make(map[string][]ConfigurationError)
	for _, err := range cec.Errors {
		if _, ok := groups[err.Category]; !ok {
			order = append(order, err.Category)
		}
		groups[err.Category] = append(groups[err.Category], err)
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Configuration Error Summary (%d total errors):", len(cec.Errors)))
	for _, category := range order {
		parts = append(parts, fmt.Sprintf("%s:", category))
		for _, err := range groups[category] {
			parts = append(parts, fmt.Sprintf("  - %s: %s %s", err.FileName, err.Code, err.Message))
		}
	}
	return strings.Join(parts, "\n")
}

// AsError converts the collection into an *api.Error carrying the code of
// the first collected error, or nil when the collection is empty.
func (cec *ConfigurationErrorCollection) AsError() error {
	if !cec.HasErrors() {
		return nil
	}
	return &api.Error{Code: cec.Errors[0].Code, Msg: cec.GetSummary(), Err: *cec}
}
