package kvwire

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pior/kvwire/internal/coarsetime"
)

// DefaultQueueSize is the request queue capacity used when Config.QueueSize
// is zero.
const DefaultQueueSize = 32

// DefaultCloseTimeout is how long Close waits for the in-flight command
// when Config.CloseTimeout is zero.
const DefaultCloseTimeout = 5 * time.Second

// Dispatcher serializes commands from any number of goroutines onto one
// Connection.
//
// A single goroutine owns the Connection. It takes the next command off a
// bounded queue, writes the request, reads the reply and delivers the result
// through the command's reply slot before taking the next one, so at most
// one request is ever in flight. The protocol has no request identifiers;
// replies are matched to requests by this ordering alone.
//
// Any failure to write a request or read its reply stops the dispatcher. The
// current command gets the error, every queued command gets
// ErrDispatcherClosed, and the connection is closed.
type Dispatcher struct {
	conn     *Connection
	requests chan *Command
	quit     chan struct{}
	done     chan struct{}
	timeout  time.Duration
	grace    time.Duration
	logger   zerolog.Logger
	stats    *clientStatsCollector

	closeOnce sync.Once
	err       error // written once before done is closed
}

// NewDispatcher starts a dispatcher that takes ownership of conn.
// Only QueueSize, Timeout, CloseTimeout and Logger are read from config.
func NewDispatcher(conn *Connection, config Config) *Dispatcher {
	return newDispatcher(conn, config, newClientStatsCollector())
}

func newDispatcher(conn *Connection, config Config, stats *clientStatsCollector) *Dispatcher {
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	grace := config.CloseTimeout
	if grace <= 0 {
		grace = DefaultCloseTimeout
	}

	d := &Dispatcher{
		conn:     conn,
		requests: make(chan *Command, queueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		timeout:  config.Timeout,
		grace:    grace,
		logger:   config.Logger,
		stats:    stats,
	}

	go d.run()
	return d
}

// Submit enqueues cmd. It blocks while the queue is full, until ctx ends or
// the dispatcher stops. After a nil return the result is available through
// cmd.GetResponse.
func (d *Dispatcher) Submit(ctx context.Context, cmd *Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cmd.reply == nil || cmd.request() == nil {
		return ErrInvalidCommand
	}

	select {
	case <-d.done:
		return ErrDispatcherClosed
	default:
	}

	cmd.done = d.done
	cmd.enqueuedAt = coarsetime.Now()

	select {
	case d.requests <- cmd:
		return nil
	case <-d.done:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do submits cmd and waits for its result.
func (d *Dispatcher) Do(ctx context.Context, cmd *Command) (*Response, error) {
	if err := d.Submit(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd.GetResponse(ctx)
}

// Done returns a channel closed once the dispatcher has stopped.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Err returns why the dispatcher stopped, or nil while it is running.
// It is ErrDispatcherClosed after Close.
func (d *Dispatcher) Err() error {
	select {
	case <-d.done:
		return d.err
	default:
		return nil
	}
}

// Close stops the dispatcher once the in-flight command, if any, completes.
// Queued commands fail with ErrDispatcherClosed and the connection is
// closed. Close waits for the dispatcher goroutine to exit.
//
// A command still in flight after Config.CloseTimeout is cut short: the
// connection is closed under it, its caller gets a *ConnectionError and
// Close returns context.DeadlineExceeded.
func (d *Dispatcher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.grace)
	defer cancel()
	return d.CloseContext(ctx)
}

// CloseContext is like Close but waits for the in-flight command only
// until ctx ends. It returns ctx.Err() if the command had to be cut short.
func (d *Dispatcher) CloseContext(ctx context.Context) error {
	d.closeOnce.Do(func() {
		close(d.quit)
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
	}

	d.logger.Debug().Msg("closing connection under the in-flight command")
	d.conn.Close()
	<-d.done
	return ctx.Err()
}

func (d *Dispatcher) closing() bool {
	select {
	case <-d.quit:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	d.logger.Debug().Stringer("remote", d.conn.RemoteAddr()).Msg("dispatcher started")

	for {
		// Prefer quit over queued work once Close was called.
		select {
		case <-d.quit:
			d.shutdown(ErrDispatcherClosed)
			return
		default:
		}

		select {
		case <-d.quit:
			d.shutdown(ErrDispatcherClosed)
			return
		case cmd := <-d.requests:
			if err := d.serve(cmd); err != nil {
				if d.closing() {
					d.shutdown(ErrDispatcherClosed)
					return
				}
				d.stats.recordFatal()
				d.shutdown(err)
				return
			}
		}
	}
}

// serve runs one request/response exchange. A non-nil error stops the
// dispatcher.
func (d *Dispatcher) serve(cmd *Command) error {
	d.stats.recordCommand(coarsetime.Since(cmd.enqueuedAt))

	if d.timeout > 0 {
		if err := d.conn.SetDeadline(time.Now().Add(d.timeout)); err != nil {
			err = &ConnectionError{Op: "set deadline", Err: err}
			cmd.setResponse(&Response{Error: err})
			return err
		}
	}

	// Any write failure is fatal, encoding errors included.
	if err := d.conn.WriteFrames(cmd.request()...); err != nil {
		cmd.setResponse(&Response{Error: err})
		return err
	}

	reply, err := d.conn.ReadFrame()
	if err != nil {
		if errors.Is(err, io.EOF) {
			// A clean close is still fatal when a reply is owed.
			err = &ConnectionError{Op: "read", Err: io.ErrUnexpectedEOF}
		}
		cmd.setResponse(&Response{Error: err})
		return err
	}

	resp := cmd.translate(reply)
	d.logger.Debug().
		Stringer("id", cmd.ID).
		Stringer("command", cmd.Type).
		Stringer("reply", reply).
		Msg("command served")

	cmd.setResponse(resp)
	return nil
}

// shutdown records the cause, closes the connection and fails every command
// still queued.
func (d *Dispatcher) shutdown(cause error) {
	d.err = cause

	if errors.Is(cause, ErrDispatcherClosed) {
		d.logger.Debug().Msg("dispatcher closed")
	} else {
		d.logger.Error().Err(cause).Msg("dispatcher stopped on connection error")
	}

	if err := d.conn.Close(); err != nil {
		d.logger.Debug().Err(err).Msg("closing connection")
	}

	for {
		select {
		case cmd := <-d.requests:
			cmd.setResponse(&Response{Error: ErrDispatcherClosed})
		default:
			return
		}
	}
}
