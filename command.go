package kvwire

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pior/kvwire/frame"
)

// Wire vocabulary shared by the dispatcher and the reference server.
const (
	VerbGet = "GET"
	VerbSet = "SET"

	// ReplyOK is the Simple frame acknowledging a SET.
	ReplyOK = "OK"
)

// CommandType identifies the operation carried by a Command.
type CommandType uint8

const (
	CmdGet CommandType = iota + 1
	CmdSet
)

func (t CommandType) String() string {
	switch t {
	case CmdGet:
		return VerbGet
	case CmdSet:
		return VerbSet
	default:
		return "UNKNOWN"
	}
}

// Response is the result delivered through a command's reply slot.
type Response struct {
	Value []byte // GET only
	Found bool   // GET only: false means the key is absent
	Error error
}

// Command is a single request for the dispatcher together with the reply
// slot its result is delivered through.
//
// A Command is single use: build it with NewGetCommand or NewSetCommand,
// submit it once, and read its result with GetResponse.
type Command struct {
	Type  CommandType
	Key   string
	Value []byte // SET only

	// ID correlates log lines for this command.
	ID ulid.ULID

	reply      chan *Response
	done       <-chan struct{} // closed when the owning dispatcher stops
	enqueuedAt time.Time
}

// NewGetCommand creates a command reading key.
func NewGetCommand(key string) *Command {
	return newCommand(CmdGet, key, nil)
}

// NewSetCommand creates a command storing value under key.
func NewSetCommand(key string, value []byte) *Command {
	return newCommand(CmdSet, key, value)
}

func newCommand(typ CommandType, key string, value []byte) *Command {
	return &Command{
		Type:  typ,
		Key:   key,
		Value: value,
		ID:    ulid.Make(),
		reply: make(chan *Response, 1),
	}
}

// request returns the frames sent on the wire for this command.
func (c *Command) request() []frame.Frame {
	switch c.Type {
	case CmdGet:
		return []frame.Frame{frame.Simple(VerbGet), frame.BulkString(c.Key)}
	case CmdSet:
		return []frame.Frame{frame.Simple(VerbSet), frame.BulkString(c.Key), frame.Bulk(c.Value)}
	default:
		return nil
	}
}

// translate converts the peer's reply frame into the typed result.
func (c *Command) translate(reply frame.Frame) *Response {
	if reply.Kind == frame.KindError {
		return &Response{Error: &ServerError{Message: reply.Str}}
	}

	switch c.Type {
	case CmdGet:
		switch reply.Kind {
		case frame.KindBulk:
			return &Response{Value: reply.Data, Found: true}
		case frame.KindNull:
			return &Response{}
		}
	case CmdSet:
		if reply.Kind == frame.KindSimple && reply.Str == ReplyOK {
			return &Response{}
		}
	}

	return &Response{Error: &UnexpectedReplyError{Command: c.Type.String(), Reply: reply}}
}

// setResponse fulfils the reply slot. It never blocks: the slot has room for
// exactly one result, and a caller that stopped waiting simply never reads it.
func (c *Command) setResponse(resp *Response) {
	select {
	case c.reply <- resp:
	default:
	}
}

// GetResponse waits for the command's result.
//
// It returns ctx.Err() if ctx ends first; the command still runs to
// completion on the wire. It returns ErrDispatcherClosed if the dispatcher
// stopped without serving the command.
func (c *Command) GetResponse(ctx context.Context) (*Response, error) {
	select {
	case resp := <-c.reply:
		return resp, nil
	case <-c.done:
		// The dispatcher may have answered just before stopping.
		select {
		case resp := <-c.reply:
			return resp, nil
		default:
			return nil, ErrDispatcherClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
