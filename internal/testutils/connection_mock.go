package testutils

import (
	"bytes"
	"net"
	"strings"
	"sync"
	"time"
)

// ConnectionMock is a net.Conn that replays canned bytes and records what is
// written to it.
//
// Reads return at most ChunkSize bytes each (all available bytes when
// ChunkSize is zero), then io.EOF once the canned data is exhausted. This
// makes partial reads and peer closes deterministic.
type ConnectionMock struct {
	// ChunkSize caps the number of bytes returned by a single Read.
	ChunkSize int

	// ReadErr, if set, is returned by Read once the canned data is exhausted
	// instead of io.EOF.
	ReadErr error

	// WriteErr, if set, is returned by every Write.
	WriteErr error

	mu       sync.Mutex
	readBuf  *bytes.Buffer
	writeBuf bytes.Buffer
	reads    int
	closed   bool
}

// NewConnectionMock creates a new mock connection with pre-configured response data
func NewConnectionMock(responseData ...string) *ConnectionMock {
	return &ConnectionMock{
		readBuf: bytes.NewBufferString(strings.Join(responseData, "")),
	}
}

func (m *ConnectionMock) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, net.ErrClosed
	}

	m.reads++
	if m.readBuf.Len() == 0 && m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if m.ChunkSize > 0 && len(b) > m.ChunkSize {
		b = b[:m.ChunkSize]
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, net.ErrClosed
	}
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6379}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }

// Written returns the raw bytes written to the mock connection
func (m *ConnectionMock) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeBuf.String()
}

// Reads returns how many times Read was called.
func (m *ConnectionMock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// IsClosed reports whether Close was called.
func (m *ConnectionMock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
