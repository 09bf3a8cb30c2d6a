package kvwire

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/kvwire/frame"
)

// newServerSession returns the client side of a session served by srv.
func newServerSession(t *testing.T, srv *Server) *Connection {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	require.True(t, srv.ServeConn(serverConn))

	conn := NewConnection(clientConn)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *Connection, request ...frame.Frame) frame.Frame {
	t.Helper()

	require.NoError(t, conn.WriteFrames(request...))
	reply, err := conn.ReadFrame()
	require.NoError(t, err)
	return reply
}

func TestServer_GetSet(t *testing.T) {
	srv := NewServer(ServerConfig{Shards: 4})
	defer srv.Close()
	conn := newServerSession(t, srv)

	reply := roundTrip(t, conn, frame.Simple("GET"), frame.BulkString("foo"))
	assert.True(t, reply.IsNull())

	reply = roundTrip(t, conn, frame.Simple("SET"), frame.BulkString("foo"), frame.BulkString("bar"))
	assert.True(t, frame.Simple("OK").Equal(reply), reply.String())

	reply = roundTrip(t, conn, frame.Simple("get"), frame.BulkString("foo"))
	assert.True(t, frame.BulkString("bar").Equal(reply), reply.String())

	assert.Equal(t, 1, srv.Len())
}

func TestServer_SharedStoreAcrossSessions(t *testing.T) {
	srv := NewServer(ServerConfig{})
	defer srv.Close()

	a := newServerSession(t, srv)
	b := newServerSession(t, srv)

	roundTrip(t, a, frame.Simple("SET"), frame.BulkString("k"), frame.BulkString("from-a"))
	reply := roundTrip(t, b, frame.Simple("GET"), frame.BulkString("k"))
	assert.Equal(t, "from-a", string(reply.Data))
}

func TestServer_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name    string
		request []frame.Frame
		want    string
	}{
		{
			name:    "unknown verb",
			request: []frame.Frame{frame.Simple("DEL"), frame.BulkString("k")},
			want:    "ERR unknown command 'DEL'",
		},
		{
			name:    "verb is not simple",
			request: []frame.Frame{frame.Integer(1)},
			want:    "ERR expected command verb, got integer",
		},
		{
			name:    "argument is not bulk",
			request: []frame.Frame{frame.Simple("GET"), frame.Simple("k")},
			want:    "ERR expected bulk argument, got simple",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(ServerConfig{})
			defer srv.Close()
			conn := newServerSession(t, srv)

			reply := roundTrip(t, conn, tt.request...)
			assert.Equal(t, frame.KindError, reply.Kind)
			assert.Equal(t, tt.want, reply.Str)

			// The session is closed after a protocol error.
			_, err := conn.ReadFrame()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestServer_TruncatedRequest(t *testing.T) {
	srv := NewServer(ServerConfig{})
	defer srv.Close()

	clientConn, serverConn := net.Pipe()
	require.True(t, srv.ServeConn(serverConn))

	conn := NewConnection(clientConn)
	require.NoError(t, conn.WriteFrames(frame.Simple("SET"), frame.BulkString("k")))
	require.NoError(t, conn.Close())

	require.NoError(t, srv.Close())
	assert.Equal(t, 0, srv.Len())
}

func TestServer_Serve(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ServerConfig{})
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(context.Background(), ln) }()

	nc, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)
	conn := NewConnection(nc)
	defer conn.Close()

	reply := roundTrip(t, conn, frame.Simple("SET"), frame.BulkString("k"), frame.BulkString("v"))
	assert.Equal(t, ReplyOK, reply.Str)

	require.NoError(t, srv.Close())
	assert.ErrorIs(t, <-serveErr, ErrServerClosed)

	// Close also ends open sessions.
	_, err = conn.ReadFrame()
	assert.Error(t, err)
}

func TestServer_ServeAfterClose(t *testing.T) {
	srv := NewServer(ServerConfig{})
	require.NoError(t, srv.Close())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	assert.ErrorIs(t, srv.Serve(context.Background(), ln), ErrServerClosed)

	_, serverConn := net.Pipe()
	assert.False(t, srv.ServeConn(serverConn))
}

func TestServer_ServeContextCanceled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ServerConfig{})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, ln) }()

	cancel()
	assert.ErrorIs(t, <-serveErr, context.Canceled)
}
