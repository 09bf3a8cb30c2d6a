package main

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/kvwire"
)

func startServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := kvwire.NewServer(kvwire.ServerConfig{})
	go srv.Serve(context.Background(), ln)
	t.Cleanup(func() { srv.Close() })

	return ln.Addr().String()
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr

	err := app.Run(append([]string{"kvwire", "--log-level", "error"}, args...))
	return stdout.String(), err
}

func TestApp_SetGet(t *testing.T) {
	addr := startServer(t)

	out, err := runApp(t, "--addr", addr, "set", "foo", "bar")
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	out, err = runApp(t, "--addr", addr, "get", "foo")
	require.NoError(t, err)
	assert.Equal(t, "bar\n", out)

	out, err = runApp(t, "--addr", addr, "get", "missing")
	require.NoError(t, err)
	assert.Equal(t, "(nil)\n", out)
}

func TestApp_Usage(t *testing.T) {
	_, err := runApp(t, "get")
	assert.Error(t, err)

	_, err = runApp(t, "set", "only-key")
	assert.Error(t, err)
}

func TestApp_Bench(t *testing.T) {
	addr := startServer(t)

	out, err := runApp(t, "--addr", addr, "bench",
		"--duration", "50ms", "--concurrency", "4", "--keys", "10", "--value-size", "16")
	require.NoError(t, err)

	for _, op := range []string{"set", "get-hit", "get-miss", "mixed"} {
		assert.Contains(t, out, "Operation: "+op+"\n")
	}
	assert.Contains(t, out, "Ops/sec:")
	assert.NotContains(t, out, "Correctness: false")
	assert.Contains(t, out, "Client: gets=")
}

func TestApp_BenchUnknownOperation(t *testing.T) {
	addr := startServer(t)

	_, err := runApp(t, "--addr", addr, "bench", "--operation", "delete", "--duration", "10ms")
	assert.Error(t, err)
}

func TestServerRegistry(t *testing.T) {
	srv := kvwire.NewServer(kvwire.ServerConfig{})
	defer srv.Close()

	families, err := newServerRegistry(srv).Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["kvwire_server_keys"])
	assert.True(t, names["kvwire_server_sessions"])
}
