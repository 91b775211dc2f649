package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/muurk/essp/internal/ssp"
)

// Error types for session operations

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeTimeout indicates a lock wait or serial read exceeded its bound
	ErrTypeTimeout ErrorType = iota
	// ErrTypeFraming indicates a wrong start byte or malformed frame length
	ErrTypeFraming
	// ErrTypeEncryption indicates a missing key or a rejected envelope
	ErrTypeEncryption
	// ErrTypeTransport indicates the serial line itself failed
	ErrTypeTransport
	// ErrTypeDecode indicates a well-framed response could not be interpreted
	ErrTypeDecode
	// ErrTypeStatus indicates the device answered with a non-OK status
	ErrTypeStatus
	// ErrTypeEntropy indicates key material could not be drawn
	ErrTypeEntropy
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeFraming:
		return "Framing Error"
	case ErrTypeEncryption:
		return "Encryption Error"
	case ErrTypeTransport:
		return "Transport Error"
	case ErrTypeDecode:
		return "Decode Error"
	case ErrTypeStatus:
		return "Device Status"
	case ErrTypeEntropy:
		return "Entropy Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// SessionError represents an error that occurred during a session operation
type SessionError struct {
	Type      ErrorType          // Category of error
	Op        string             // Operation that failed (e.g. "Poll")
	Message   string             // Human-readable error message
	Status    ssp.ResponseStatus // Device status (Status and Encryption errors)
	Err       error              // Underlying error (if any)
	Retryable bool               // Whether the whole operation may be retried
}

// Error implements the error interface
func (e *SessionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Type.String())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %s)", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection
func (e *SessionError) Unwrap() error {
	return e.Err
}

func newTimeoutError(op, message string, err error) *SessionError {
	return &SessionError{Type: ErrTypeTimeout, Op: op, Message: message, Err: err, Retryable: true}
}

func newFramingError(op, message string, err error) *SessionError {
	return &SessionError{Type: ErrTypeFraming, Op: op, Message: message, Err: err, Retryable: true}
}

func newEncryptionError(op string, status ssp.ResponseStatus, message string, err error) *SessionError {
	return &SessionError{Type: ErrTypeEncryption, Op: op, Message: message, Status: status, Err: err, Retryable: true}
}

func newTransportError(op, message string, err error) *SessionError {
	return &SessionError{Type: ErrTypeTransport, Op: op, Message: message, Err: err, Retryable: false}
}

func newDecodeError(op, message string, err error) *SessionError {
	return &SessionError{Type: ErrTypeDecode, Op: op, Message: message, Err: err, Retryable: false}
}

func newStatusError(op string, status ssp.ResponseStatus) *SessionError {
	return &SessionError{Type: ErrTypeStatus, Op: op, Message: "device rejected command", Status: status, Retryable: true}
}

func newEntropyError(op, message string, err error) *SessionError {
	return &SessionError{Type: ErrTypeEntropy, Op: op, Message: message, Err: err, Retryable: false}
}

// errKeyNotSet is the cause of Encryption errors raised before any frame is
// sent.
var errKeyNotSet = errors.New("no encryption key negotiated")

// errCounterLost is the cause of Encryption errors raised after an envelope
// reached the device but its reply did not come back intact.
var errCounterLost = errors.New("packet counter out of step with the device")

// isTimeout reports whether err is a read/write deadline or context deadline.
func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	return os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)
}

// classifyIOError maps a serial read/write failure onto the taxonomy: a
// timed-out read is a Timeout, anything else (including end of stream) is a
// Transport failure.
func classifyIOError(op, message string, err error) *SessionError {
	if isTimeout(err) {
		return newTimeoutError(op, message, err)
	}
	return newTransportError(op, message, err)
}

func asSessionError(err error) (*SessionError, bool) {
	var se *SessionError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func isType(err error, t ErrorType) bool {
	se, ok := asSessionError(err)
	return ok && se.Type == t
}

// IsTimeout checks if an error is a lock or serial timeout
func IsTimeout(err error) bool { return isType(err, ErrTypeTimeout) }

// IsFraming checks if an error is a framing error
func IsFraming(err error) bool { return isType(err, ErrTypeFraming) }

// IsEncryption checks if an error is an encryption error
func IsEncryption(err error) bool { return isType(err, ErrTypeEncryption) }

// IsTransport checks if an error is a serial transport error
func IsTransport(err error) bool { return isType(err, ErrTypeTransport) }

// IsDecode checks if an error is a decode error
func IsDecode(err error) bool { return isType(err, ErrTypeDecode) }

// IsStatus checks if an error is a non-OK device status
func IsStatus(err error) bool { return isType(err, ErrTypeStatus) }

// IsEntropy checks if an error is an entropy failure
func IsEntropy(err error) bool { return isType(err, ErrTypeEntropy) }

// IsRetryable checks if an operation that failed with err may be retried
func IsRetryable(err error) bool {
	if se, ok := asSessionError(err); ok {
		return se.Retryable
	}
	// Unknown errors are not retryable by default
	return false
}

// StatusOf returns the device status carried by err, if any.
func StatusOf(err error) (ssp.ResponseStatus, bool) {
	se, ok := asSessionError(err)
	if !ok || se.Status == 0 {
		return 0, false
	}
	return se.Status, true
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	se, ok := asSessionError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch se.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The device did not respond in time.",
			"Troubleshooting:",
			"  • Check that the device is powered and the cable is seated",
			"  • Stop other programs using the serial port",
			"  • Increase lock_timeout_ms if a poller is running",
		}, "\n")

	case ErrTypeFraming:
		return strings.Join([]string{
			"The device sent a malformed frame.",
			"Troubleshooting:",
			"  • Send Sync to resynchronise the sequence flag",
			"  • Verify the line runs at 9600 baud, 8 data bits, 2 stop bits",
		}, "\n")

	case ErrTypeEncryption:
		return strings.Join([]string{
			"The device requires an encrypted session.",
			"Troubleshooting:",
			"  • Run 'essp handshake' to negotiate a key",
			"  • Reset the device if it keeps rejecting envelopes",
		}, "\n")

	case ErrTypeTransport:
		return strings.Join([]string{
			"The serial line failed.",
			"Troubleshooting:",
			"  • Check the device is still connected",
			"  • Reopen the port",
		}, "\n")

	case ErrTypeDecode:
		return "The device response could not be interpreted. Check the firmware supports this command."

	case ErrTypeStatus:
		return fmt.Sprintf("The device answered %s. Check the command parameters.", se.Status)

	case ErrTypeEntropy:
		return "Key material could not be generated. The system random source may be unavailable."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	se, ok := asSessionError(err)
	if !ok {
		return err.Error()
	}

	switch se.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeFraming:
		return "Malformed frame from device"
	case ErrTypeEncryption:
		return "Encryption required - negotiate a key first"
	case ErrTypeTransport:
		return "Serial line failure"
	case ErrTypeDecode:
		return "Failed to decode device response"
	case ErrTypeStatus:
		return fmt.Sprintf("Device answered %s", se.Status)
	default:
		return se.Message
	}
}
