package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Command bridge errors
	ErrCodeBridgeUnavailable ErrorCode = "BRIDGE_UNAVAILABLE"
	ErrCodeCommandFailed     ErrorCode = "COMMAND_FAILED"

	// Module errors
	ErrCodeInvalidModuleID ErrorCode = "INVALID_MODULE_ID"
	ErrCodeModuleNotFound  ErrorCode = "MODULE_NOT_FOUND"
	ErrCodeUpdatePending   ErrorCode = "UPDATE_PENDING"
	ErrCodeToggleFailed    ErrorCode = "TOGGLE_FAILED"

	// Live set errors
	ErrCodeLivePersistFailed ErrorCode = "LIVE_PERSIST_FAILED"
	ErrCodeLiveApplyFailed   ErrorCode = "LIVE_APPLY_FAILED"

	// Refresh errors
	ErrCodeRefreshFailed ErrorCode = "REFRESH_FAILED"

	// Daemon errors
	ErrCodeDaemonUnavailable ErrorCode = "DAEMON_UNAVAILABLE"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// PanelError represents a structured error with context
type PanelError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *PanelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *PanelError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *PanelError) WithDetail(key string, value interface{}) *PanelError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *PanelError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new PanelError
func New(code ErrorCode, message string) *PanelError {
	return &PanelError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a PanelError
func Wrap(err error, code ErrorCode, message string) *PanelError {
	return &PanelError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific PanelError code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the outermost error code from an error chain
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	panelErr, ok := err.(*PanelError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return panelErr.Code
}

// As returns the outermost PanelError in the chain, if any.
func As(err error) (*PanelError, bool) {
	for err != nil {
		if panelErr, ok := err.(*PanelError); ok {
			return panelErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
