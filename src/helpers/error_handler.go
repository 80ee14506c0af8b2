package helpers

import (
	"fmt"
	"sync/atomic"

	"github.com/ryawaa/twinkle/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type TwinkleError struct {
	Message string
	Cause   error
}

func (e *TwinkleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TwinkleError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ TwinkleError }
type BootstrapError struct{ TwinkleError }
type SnapshotError struct{ TwinkleError }
type FrameError struct{ TwinkleError }
type DatabaseError struct{ TwinkleError }

// UpstreamError is a non-2xx answer (or transport failure) from sparkle.
type UpstreamError struct {
	TwinkleError
	StatusCode int
}

// -----------------------------------------------------------------------------

func NewBootstrapError(msg string, cause error) error {
	return &BootstrapError{TwinkleError{Message: msg, Cause: cause}}
}

func NewSnapshotError(msg string, cause error) error {
	return &SnapshotError{TwinkleError{Message: msg, Cause: cause}}
}

func NewFrameError(msg string, cause error) error {
	return &FrameError{TwinkleError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{TwinkleError{Message: msg, Cause: cause}}
}

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{TwinkleError{Message: msg, Cause: cause}}
}

func NewUpstreamError(status int, msg string, cause error) error {
	return &UpstreamError{TwinkleError: TwinkleError{Message: msg, Cause: cause}, StatusCode: status}
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler logs failures that must not propagate past their component.
// Safe for concurrent use.
type ErrorHandler struct {
	Logger *logger.Logger
	count  atomic.Int64
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	if log == nil {
		log = logger.NewLogger("INFO", "ErrorHandler")
	}
	return &ErrorHandler{Logger: log}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ErrorCount() int {
	return int(e.count.Load())
}

func (e *ErrorHandler) ResetErrorCount() {
	e.count.Store(0)
}

// -----------------------------------------------------------------------------

// Handle logs err under context and reports whether there was one.
func (e *ErrorHandler) Handle(err error, context string) bool {
	if err == nil {
		return false
	}
	e.count.Add(1)
	e.Logger.Error("Error in %s: %v", context, err)
	return true
}
