package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapHarnessError wraps an error as a HarnessError if it isn't already one
func WrapHarnessError(err error, code ErrorCode, phase, message string) *HarnessError {
	if err == nil {
		return nil
	}

	var harnessErr *HarnessError
	if errors.As(err, &harnessErr) {
		harnessErr.WithContext("wrapped_message", message)
		if phase != "" && harnessErr.Phase == "" {
			harnessErr.Phase = phase
		}
		return harnessErr
	}

	return NewHarnessError(code, phase, message, err)
}

// CodeOf returns the category of err, looking through wrapped HarnessErrors
// and domain errors that implement Coded.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	var harnessErr *HarnessError
	if errors.As(err, &harnessErr) {
		return harnessErr.Code
	}
	return ErrCodeInternal
}

// IsHarnessError checks if an error carries the given code
func IsHarnessError(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var harnessErr *HarnessError
	if errors.As(err, &harnessErr) {
		return harnessErr.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"too many requests",
		"rate limit",
		"blockhash not found",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
