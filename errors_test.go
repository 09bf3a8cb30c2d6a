package kvwire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pior/kvwire/frame"
)

func TestShouldCloseConnection(t *testing.T) {
	_, parseErr := frame.Check([]byte("?\r\n"))

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &ServerError{Message: "ERR x"}, false},
		{"unexpected reply", &UnexpectedReplyError{Command: VerbGet, Reply: frame.Integer(1)}, false},
		{"wrapped server error", fmt.Errorf("get: %w", &ServerError{Message: "ERR x"}), false},
		{"array encoding", frame.ErrArrayEncoding, false},
		{"invalid string", frame.ErrInvalidString, false},
		{"connection error", &ConnectionError{Op: "read", Err: io.ErrUnexpectedEOF}, true},
		{"parse error", parseErr, true},
		{"connection reset", ErrConnectionReset, true},
		{"dispatcher closed", ErrDispatcherClosed, true},
		{"unknown", errors.New("something"), true},
		{"context canceled", context.Canceled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldCloseConnection(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t,
		"kvwire: connection error during read: unexpected EOF",
		(&ConnectionError{Op: "read", Err: io.ErrUnexpectedEOF}).Error())
	assert.Equal(t, "kvwire: server error: ERR x", (&ServerError{Message: "ERR x"}).Error())
	assert.Equal(t,
		"kvwire: unexpected reply to GET: Integer(1)",
		(&UnexpectedReplyError{Command: VerbGet, Reply: frame.Integer(1)}).Error())
}

func TestConnectionError_Unwrap(t *testing.T) {
	err := fmt.Errorf("op: %w", &ConnectionError{Op: "write", Err: io.ErrClosedPipe})

	assert.ErrorIs(t, err, io.ErrClosedPipe)

	var cerr *ConnectionError
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, "write", cerr.Op)
}
