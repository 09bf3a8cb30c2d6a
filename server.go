package kvwire

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pior/kvwire/frame"
	"github.com/pior/kvwire/internal/store"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("kvwire: server closed")

// ServerConfig holds configuration for a Server.
type ServerConfig struct {
	// Shards is the number of lock shards in the backing map.
	// Zero means store.DefaultShards.
	Shards int

	// Logger receives session events. The zero value discards everything.
	Logger zerolog.Logger
}

// Server answers GET and SET requests from an in-memory map.
//
// It speaks the same framing as Dispatcher and is meant as a peer for tests,
// benchmarks and the serve command, not as a storage engine. Each session is
// served by its own goroutine with its own Connection.
type Server struct {
	store  *store.Store
	logger zerolog.Logger

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	sessions  map[*Connection]struct{}
	closed    bool
	wg        sync.WaitGroup
}

// NewServer creates a server with an empty store.
func NewServer(config ServerConfig) *Server {
	return &Server{
		store:     store.New(config.Shards),
		logger:    config.Logger,
		listeners: make(map[net.Listener]struct{}),
		sessions:  make(map[*Connection]struct{}),
	}
}

// Len returns the number of stored keys.
func (s *Server) Len() int {
	return s.store.Len()
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Serve accepts connections on ln until ctx ends or Close is called.
// It always closes ln before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listeners[ln] = struct{}{}
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	defer func() {
		s.mu.Lock()
		delete(s.listeners, ln)
		s.mu.Unlock()
		ln.Close()
	}()

	s.logger.Info().Stringer("addr", ln.Addr()).Msg("listening")

	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()

			if closed {
				return ErrServerClosed
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if !s.ServeConn(nc) {
			return ErrServerClosed
		}
	}
}

// ServeConn serves one already-established connection in a new goroutine.
// It returns false, closing nc, if the server is closed.
func (s *Server) ServeConn(nc net.Conn) bool {
	conn := NewConnection(nc)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return false
	}
	s.sessions[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, conn)
			s.mu.Unlock()
			conn.Close()
		}()

		s.serveSession(conn)
	}()

	return true
}

// Close stops all listeners, closes every session and waits for their
// goroutines to exit.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for ln := range s.listeners {
		ln.Close()
	}
	for conn := range s.sessions {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// serveSession reads requests until the peer goes away. Requests are a
// Simple verb followed by the verb's Bulk arguments.
func (s *Server) serveSession(conn *Connection) {
	logger := s.logger.With().Stringer("remote", conn.RemoteAddr()).Logger()
	logger.Debug().Msg("session started")

	for {
		reply, err := s.handleRequest(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug().Msg("session ended")
				return
			}

			var perr *protocolError
			if errors.As(err, &perr) {
				// The peer's next frame boundary is unknown, so answer and hang up.
				logger.Warn().Err(err).Msg("protocol error")
				_ = conn.WriteFrame(frame.Error("ERR " + perr.msg))
				return
			}

			logger.Warn().Err(err).Msg("session failed")
			return
		}

		if err := conn.WriteFrame(reply); err != nil {
			logger.Warn().Err(err).Msg("writing reply")
			return
		}
	}
}

type protocolError struct {
	msg string
}

func (e *protocolError) Error() string {
	return "protocol error: " + e.msg
}

func (s *Server) handleRequest(conn *Connection) (frame.Frame, error) {
	verb, err := conn.ReadFrame()
	if err != nil {
		return frame.Frame{}, err
	}
	if verb.Kind != frame.KindSimple {
		return frame.Frame{}, &protocolError{msg: "expected command verb, got " + verb.Kind.String()}
	}

	switch strings.ToUpper(verb.Str) {
	case VerbGet:
		key, err := readArgument(conn)
		if err != nil {
			return frame.Frame{}, err
		}
		value, ok := s.store.Get(string(key))
		if !ok {
			return frame.Null(), nil
		}
		return frame.Bulk(value), nil

	case VerbSet:
		key, err := readArgument(conn)
		if err != nil {
			return frame.Frame{}, err
		}
		value, err := readArgument(conn)
		if err != nil {
			return frame.Frame{}, err
		}
		s.store.Set(string(key), value)
		return frame.Simple(ReplyOK), nil

	default:
		return frame.Frame{}, &protocolError{msg: "unknown command '" + verb.Str + "'"}
	}
}

func readArgument(conn *Connection) ([]byte, error) {
	f, err := conn.ReadFrame()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrConnectionReset
		}
		return nil, err
	}
	if f.Kind != frame.KindBulk {
		return nil, &protocolError{msg: "expected bulk argument, got " + f.Kind.String()}
	}
	return f.Data, nil
}
