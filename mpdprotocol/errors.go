package mpdprotocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for the MPD protocol.
var (
	// ErrHandshake indicates the server did not open with the expected
	// greeting. The connection attempt is abandoned.
	ErrHandshake = errors.New("server did not greet with success")

	// ErrIncompleteResponse indicates a response ended before every field
	// required to build the result was seen.
	ErrIncompleteResponse = errors.New("incomplete response")

	// ErrClosed indicates an operation on a client after Close.
	ErrClosed = errors.New("client closed")

	// ErrInvalidCommand indicates a command line that cannot be sent as a
	// single protocol line.
	ErrInvalidCommand = errors.New("invalid command line")
)

// ConnectionError represents a transport failure. After one is returned the
// client is dead and every further call returns the same error.
type ConnectionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}

// DecodeError represents a payload value that could not be parsed, such as
// a non-numeric elapsed time.
type DecodeError struct {
	Field string // Key of the offending line, e.g. "elapsed"
	Value string // The raw value
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid %s value '%s': %v", e.Field, e.Value, e.Cause)
}

// Unwrap returns the underlying parse error.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func newDecodeError(field, value string, cause error) error {
	return &DecodeError{Field: field, Value: value, Cause: cause}
}

// incomplete wraps ErrIncompleteResponse with the decoder's own wording.
func incomplete(what string) error {
	return fmt.Errorf("incomplete %s response: %w", what, ErrIncompleteResponse)
}

// ACK error codes defined by the server.
const (
	AckNotList       = 1
	AckArg           = 2
	AckPassword      = 3
	AckPermission    = 4
	AckUnknown       = 5
	AckNoExist       = 50
	AckPlaylistMax   = 51
	AckSystem        = 52
	AckPlaylistLoad  = 53
	AckUpdateAlready = 54
	AckPlayerSync    = 55
	AckExist         = 56
)

// ServerError is the server's rejection of a command, decoded from an
// "ACK [code@index] {command} message" line.
type ServerError struct {
	Code    int
	Index   int    // Position of the failing command in a command list
	Command string // Name of the failing command, may be empty
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("server error %d in '%s': %s", e.Code, e.Command, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// IsServerError reports whether err carries an ACK with the given code.
func IsServerError(err error, code int) bool {
	var se *ServerError
	return errors.As(err, &se) && se.Code == code
}
