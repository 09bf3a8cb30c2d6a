package frame

import (
	"errors"
)

// ErrIncomplete is returned by Check when the buffer ends before a frame
// boundary. It is a signal to read more bytes, not a failure, and a
// connection layer should never surface it to its callers.
var ErrIncomplete = errors.New("frame: incomplete frame")

// ErrArrayEncoding is returned when encoding an Array frame. Array encoding
// is a known gap in the codec; nothing is written when it is returned.
var ErrArrayEncoding = errors.New("frame: array encoding is not implemented")

// ParseError reports bytes that can never form a valid frame.
//
// Common causes:
//   - Unknown type byte
//   - Non-numeric or out of range integer / length
//   - Bulk payload not followed by CRLF
//   - Length above MaxBulkLen or MaxArrayLen
//
// There is no way to resynchronize a stream after a ParseError: the
// connection that produced the bytes must be closed.
type ParseError struct {
	Message string
	Offset  int   // Byte offset in the scanned window where the problem was found
	Err     error // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "frame: parse error: " + e.Message + ": " + e.Err.Error()
	}
	return "frame: parse error: " + e.Message
}

// Unwrap returns the underlying error for error chain inspection
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - a corrupted stream cannot be realigned
func (e *ParseError) ShouldCloseConnection() bool {
	return true
}
