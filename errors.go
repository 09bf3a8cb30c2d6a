package kvwire

import (
	"errors"
	"fmt"

	"github.com/pior/kvwire/frame"
)

var (
	// ErrConnectionReset is returned by ReadFrame when the peer closes the
	// stream in the middle of a frame. A close between frames is io.EOF.
	ErrConnectionReset = errors.New("kvwire: connection reset by peer")

	// ErrDispatcherClosed is returned to callers whose command could not be
	// served because the dispatcher stopped, either through Close or after a
	// fatal connection error.
	ErrDispatcherClosed = errors.New("kvwire: dispatcher closed")

	// ErrInvalidCommand is returned by Submit for a command that was not
	// built with NewGetCommand or NewSetCommand.
	ErrInvalidCommand = errors.New("kvwire: invalid command")
)

// ConnectionError wraps underlying I/O errors from connection operations.
// Used to distinguish network/connection issues from protocol errors.
//
// Common causes:
//   - Connection closed
//   - Deadline exceeded
//   - Connection reset
//
// Connection handling: Connection is already broken, CLOSE it
type ConnectionError struct {
	Op  string // Operation that failed (read, write)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("kvwire: connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ServerError is an Error frame sent by the peer in reply to a command.
// The stream is still aligned on a frame boundary.
//
// Connection handling: Connection can be REUSED
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "kvwire: server error: " + e.Message
}

// ShouldCloseConnection returns false - the reply was a well-formed frame
func (e *ServerError) ShouldCloseConnection() bool {
	return false
}

// UnexpectedReplyError is returned when the peer answers a command with a
// well-formed frame of the wrong kind, e.g. an Integer for a GET.
//
// Connection handling: Connection can be REUSED
type UnexpectedReplyError struct {
	Command string
	Reply   frame.Frame
}

func (e *UnexpectedReplyError) Error() string {
	return fmt.Sprintf("kvwire: unexpected reply to %s: %s", e.Command, e.Reply)
}

// ShouldCloseConnection returns false - the reply was a well-formed frame
func (e *UnexpectedReplyError) ShouldCloseConnection() bool {
	return false
}

// ErrorWithConnectionState is implemented by errors that know whether the
// connection that produced them is still usable.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection's byte
// stream untrustworthy.
//
// Returns true for:
//   - ConnectionError
//   - ErrConnectionReset
//   - frame.ParseError
//   - any unknown error
//
// Returns false for:
//   - ServerError
//   - UnexpectedReplyError
//   - frame.ErrArrayEncoding and frame.ErrInvalidString (nothing was written)
//   - nil
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, frame.ErrArrayEncoding) || errors.Is(err, frame.ErrInvalidString) {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	// Unknown error type - be conservative and close connection
	return true
}
