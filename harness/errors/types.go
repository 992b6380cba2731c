package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeConstruction indicates malformed builder input (never retried)
	ErrCodeConstruction ErrorCode = "CONSTRUCTION"

	// ErrCodeSubmission indicates the ledger rejected or timed out a submission
	ErrCodeSubmission ErrorCode = "SUBMISSION"

	// ErrCodeDecode indicates an undecodable execution log record
	ErrCodeDecode ErrorCode = "DECODE"

	// ErrCodeValidation indicates decoded results that do not match expectations
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeRPC indicates RPC-related errors
	ErrCodeRPC ErrorCode = "RPC"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeState indicates persisted phase state errors
	ErrCodeState ErrorCode = "STATE"

	// ErrCodeDatabase indicates database operation errors
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeTimeout indicates timeout errors
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Coded is implemented by domain errors that know their category.
type Coded interface {
	error
	Code() ErrorCode
}

// HarnessError represents an error raised while running a harness phase
type HarnessError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Phase    string                 `json:"phase,omitempty"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// NewHarnessError creates a new HarnessError
func NewHarnessError(code ErrorCode, phase, message string, cause error) *HarnessError {
	return &HarnessError{
		Code:     code,
		Message:  message,
		Phase:    phase,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *HarnessError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Phase != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Phase, e.Code, e.Severity, msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, msg)
}

// Unwrap returns the underlying cause
func (e *HarnessError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *HarnessError) WithContext(key string, value interface{}) *HarnessError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity overrides the default severity
func (e *HarnessError) WithSeverity(severity Severity) *HarnessError {
	e.Severity = severity
	return e
}

// IsRetryable returns true if the error is retryable
func (e *HarnessError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeRPC, ErrCodeSubmission, ErrCodeTimeout:
		return true
	case ErrCodeDatabase:
		return e.Severity != SeverityCritical
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeDecode, ErrCodeValidation, ErrCodeConstruction:
		return SeverityHigh
	case ErrCodeDatabase, ErrCodeState:
		return SeverityHigh
	case ErrCodeSubmission, ErrCodeRPC, ErrCodeTimeout:
		return SeverityMedium
	case ErrCodeConfig:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// ErrorGroup represents a collection of errors
type ErrorGroup struct {
	Errors []error
}

// NewErrorGroup creates a new error group
func NewErrorGroup() *ErrorGroup {
	return &ErrorGroup{
		Errors: make([]error, 0),
	}
}

// Add adds an error to the group
func (eg *ErrorGroup) Add(err error) {
	if err != nil {
		eg.Errors = append(eg.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (eg *ErrorGroup) HasErrors() bool {
	return len(eg.Errors) > 0
}

// Error implements the error interface
func (eg *ErrorGroup) Error() string {
	if len(eg.Errors) == 0 {
		return ""
	}
	if len(eg.Errors) == 1 {
		return eg.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %v", len(eg.Errors), eg.Errors[0])
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (eg *ErrorGroup) Unwrap() []error {
	return eg.Errors
}

// ErrOrNil returns the group as an error, or nil when it is empty
func (eg *ErrorGroup) ErrOrNil() error {
	if !eg.HasErrors() {
		return nil
	}
	return eg
}

// Common error constructors

// NewConstructionError creates a construction error
func NewConstructionError(message string, cause error) *HarnessError {
	return NewHarnessError(ErrCodeConstruction, "", message, cause)
}

// NewSubmissionError creates a submission error
func NewSubmissionError(phase, message string, cause error) *HarnessError {
	return NewHarnessError(ErrCodeSubmission, phase, message, cause)
}

// NewRPCError creates an RPC error
func NewRPCError(message string, cause error) *HarnessError {
	return NewHarnessError(ErrCodeRPC, "", message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string) *HarnessError {
	return NewHarnessError(ErrCodeConfig, "", message, nil)
}

// NewStateError creates a persisted-state error
func NewStateError(message string, cause error) *HarnessError {
	return NewHarnessError(ErrCodeState, "", message, cause)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string) *HarnessError {
	return NewHarnessError(ErrCodeTimeout, "", message, nil)
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *HarnessError {
	return NewHarnessError(ErrCodeInternal, "", message, cause)
}
