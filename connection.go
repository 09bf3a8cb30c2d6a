package kvwire

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pior/kvwire/frame"
)

const (
	// defaultReadBufferSize is the initial size of the read buffer.
	defaultReadBufferSize = 4 * 1024

	// maxRetainedBufferSize is the largest read buffer kept once it drains.
	// Larger buffers, grown to hold a big bulk payload, are released.
	maxRetainedBufferSize = 64 * 1024

	// maxEmptyReads is how many consecutive (0, nil) reads are tolerated.
	maxEmptyReads = 100
)

// Connection is a framed connection over a byte stream.
//
// It owns the net.Conn it was created with and a growable buffer of bytes
// read from it but not yet parsed into a frame. A Connection is not safe for
// concurrent use: exactly one goroutine may read and write frames. Close may
// be called from any goroutine.
type Connection struct {
	conn   net.Conn
	writer *bufio.Writer

	// buf[start:end] holds unconsumed bytes.
	buf   []byte
	start int
	end   int

	closeOnce sync.Once
	closeErr  error
}

// NewConnection wraps an established net.Conn. The Connection takes
// ownership of conn; the caller must not use it afterwards.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		conn:   conn,
		writer: bufio.NewWriter(conn),
		buf:    make([]byte, defaultReadBufferSize),
	}
}

// ReadFrame returns the next frame from the stream.
//
// Frames already buffered are returned without touching the socket. When the
// buffer does not yet hold a whole frame, ReadFrame reads from the socket and
// tries again. It returns:
//   - io.EOF when the peer closed the stream between frames
//   - ErrConnectionReset when the peer closed the stream mid-frame
//   - *frame.ParseError when the stream is malformed
//   - *ConnectionError for any other read failure
func (c *Connection) ReadFrame() (frame.Frame, error) {
	emptyReads := 0

	for {
		f, ok, err := c.parseFrame()
		if err != nil {
			return frame.Frame{}, err
		}
		if ok {
			return f, nil
		}

		n, err := c.fill()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return frame.Frame{}, &ConnectionError{Op: "read", Err: err}
			}
			if n > 0 {
				// Parse what arrived with the EOF; the next read reports it again.
				continue
			}
			if c.Buffered() == 0 {
				return frame.Frame{}, io.EOF
			}
			return frame.Frame{}, ErrConnectionReset
		}

		if n == 0 {
			emptyReads++
			if emptyReads >= maxEmptyReads {
				return frame.Frame{}, &ConnectionError{Op: "read", Err: io.ErrNoProgress}
			}
			continue
		}
		emptyReads = 0
	}
}

// parseFrame decodes one frame from the buffer if a whole one is available.
// The buffer is only advanced after a successful decode.
func (c *Connection) parseFrame() (frame.Frame, bool, error) {
	window := c.buf[c.start:c.end]

	n, err := frame.Check(window)
	if errors.Is(err, frame.ErrIncomplete) {
		return frame.Frame{}, false, nil
	}
	if err != nil {
		return frame.Frame{}, false, err
	}

	f, _, err := frame.Parse(window[:n])
	if err != nil {
		return frame.Frame{}, false, err
	}

	c.start += n
	if c.start == c.end {
		c.start, c.end = 0, 0
		if len(c.buf) > maxRetainedBufferSize {
			c.buf = make([]byte, defaultReadBufferSize)
		}
	}

	return f, true, nil
}

// fill performs exactly one read from the socket into the free space at the
// end of the buffer, compacting or growing the buffer first if needed.
func (c *Connection) fill() (int, error) {
	if c.start > 0 {
		c.end = copy(c.buf, c.buf[c.start:c.end])
		c.start = 0
	}

	if c.end == len(c.buf) {
		grown := make([]byte, 2*len(c.buf))
		copy(grown, c.buf[:c.end])
		c.buf = grown
	}

	n, err := c.conn.Read(c.buf[c.end:])
	c.end += n
	return n, err
}

// Buffered returns the number of bytes read from the socket but not yet
// consumed by a frame.
func (c *Connection) Buffered() int {
	return c.end - c.start
}

// WriteFrame encodes f, writes it and flushes it to the socket.
func (c *Connection) WriteFrame(f frame.Frame) error {
	return c.WriteFrames(f)
}

// WriteFrames encodes all frames, writes them and flushes once.
//
// Every frame is encoded before anything is written, so an encoding error
// (frame.ErrArrayEncoding, frame.ErrInvalidString) leaves the stream
// untouched and the connection usable. When WriteFrames returns nil the bytes
// have been handed to the transport.
func (c *Connection) WriteFrames(frames ...frame.Frame) error {
	buf := c.writer.AvailableBuffer()
	for _, f := range frames {
		var err error
		buf, err = frame.AppendFrame(buf, f)
		if err != nil {
			return err
		}
	}

	if _, err := c.writer.Write(buf); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	if err := c.writer.Flush(); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// SetDeadline sets the read and write deadline of the underlying connection.
// A zero value clears it.
func (c *Connection) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection. It unblocks a pending ReadFrame
// and is safe to call more than once and from any goroutine.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
