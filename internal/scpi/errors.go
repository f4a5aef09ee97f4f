package scpi

import "fmt"

// Standard SCPI error codes used by the dispatcher and the parameter helpers.
// Negative codes follow the IEEE-488.2 / SCPI-99 numbering: -1xx command
// errors, -2xx execution errors, -3xx device-specific errors, -4xx query
// errors.
const (
	CodeDataTypeError         = -104
	CodeParameterNotAllowed   = -108
	CodeUndefinedHeader       = -113
	CodeSettingsConflict      = -221
	CodeDataOutOfRange        = -222
	CodeIllegalParameterValue = -224
	CodeDeviceError           = -300
)

// Error is a protocol-level SCPI fault: a (code, message) pair that a command
// handler returns to signal a recoverable failure. The dispatcher converts it
// into an error-queue entry and an ESR bit; it never terminates the
// connection. Unexpected internal faults should be returned as ordinary
// errors instead - the dispatcher maps those to a generic device error so
// internal detail never reaches the wire.
type Error struct {
	Code    int
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%d,%q", e.Code, e.Message)
}

// NewError creates a new SCPI protocol error
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrDataType reports a malformed parameter token (command error class)
func ErrDataType() *Error {
	return NewError(CodeDataTypeError, "Data type error")
}

// ErrParameterNotAllowed reports a meta-value request for a bound that the
// command does not define (command error class)
func ErrParameterNotAllowed() *Error {
	return NewError(CodeParameterNotAllowed, "Parameter not allowed")
}

// ErrDataOutOfRange reports a value outside the declared parameter range
// (execution error class)
func ErrDataOutOfRange() *Error {
	return NewError(CodeDataOutOfRange, "Data out of range")
}

// ErrIllegalParameterValue reports an unrecognized enumerated parameter
// (execution error class)
func ErrIllegalParameterValue() *Error {
	return NewError(CodeIllegalParameterValue, "Illegal parameter value")
}

// ErrSettingsConflict reports an operation that is invalid in the current
// instrument state, e.g. querying calibration before it is set
func ErrSettingsConflict() *Error {
	return NewError(CodeSettingsConflict, "Settings conflict")
}
