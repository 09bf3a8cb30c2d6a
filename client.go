package kvwire

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrInvalidKey is returned for an empty key.
var ErrInvalidKey = errors.New("kvwire: key must not be empty")

type Item struct {
	Key   string
	Value []byte
	Found bool // indicates whether the key was found
}

type Querier interface {
	Get(ctx context.Context, key string) (Item, error)
	Set(ctx context.Context, item Item) error
}

// Config holds configuration for a Client and its Dispatcher.
// The zero value is usable.
type Config struct {
	// QueueSize is the capacity of the request queue.
	// Zero means DefaultQueueSize.
	QueueSize int

	// Timeout bounds each request/response exchange on the connection.
	// Exceeding it is a connection error and stops the dispatcher.
	// Zero means no limit.
	Timeout time.Duration

	// CloseTimeout bounds how long Close waits for the command in flight.
	// Zero means DefaultCloseTimeout.
	CloseTimeout time.Duration

	// Dialer is the net.Dialer used by Dial.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Logger receives dispatcher lifecycle and debug events.
	// The zero value discards everything.
	Logger zerolog.Logger

	// NewCircuitBreaker creates the circuit breaker guarding the connection.
	// Called once with the remote address when the client is created.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(addr string) CircuitBreaker
}

// CircuitBreaker wraps command execution.
// *gobreaker.CircuitBreaker[*Response] satisfies it.
type CircuitBreaker interface {
	Execute(req func() (*Response, error)) (*Response, error)
	State() gobreaker.State
}

// Client exposes Get and Set on top of a Dispatcher. It is safe for
// concurrent use; all goroutines share the one underlying connection.
type Client struct {
	addr           string
	dispatcher     *Dispatcher
	circuitBreaker CircuitBreaker // nil if not configured
	stats          *clientStatsCollector
}

var _ Querier = (*Client)(nil)

// NewClient creates a client that takes ownership of an established
// connection.
func NewClient(conn net.Conn, config Config) (*Client, error) {
	if conn == nil {
		return nil, errors.New("kvwire: nil connection")
	}

	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}

	stats := newClientStatsCollector()
	client := &Client{
		addr:       addr,
		dispatcher: newDispatcher(NewConnection(conn), config, stats),
		stats:      stats,
	}

	if config.NewCircuitBreaker != nil {
		client.circuitBreaker = config.NewCircuitBreaker(addr)
	}

	return client, nil
}

// Dial connects to addr over TCP and returns a client using that connection.
func Dial(ctx context.Context, addr string, config Config) (*Client, error) {
	dialer := config.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	return NewClient(conn, config)
}

// Addr returns the remote address of the connection.
func (c *Client) Addr() string {
	return c.addr
}

// Close stops the dispatcher and closes the connection.
func (c *Client) Close() error {
	return c.dispatcher.Close()
}

// CloseContext is like Close but gives up waiting for the command in flight
// once ctx ends.
func (c *Client) CloseContext(ctx context.Context) error {
	return c.dispatcher.CloseContext(ctx)
}

// Done returns a channel closed once the client can no longer serve
// commands, after Close or a fatal connection error.
func (c *Client) Done() <-chan struct{} {
	return c.dispatcher.Done()
}

// Err returns why the client stopped, or nil while it is running.
func (c *Client) Err() error {
	return c.dispatcher.Err()
}

// execute submits cmd and waits for its result, through the circuit breaker
// when one is configured. A Response carrying an error is returned as that
// error.
func (c *Client) execute(ctx context.Context, cmd *Command) (*Response, error) {
	run := func() (*Response, error) {
		resp, err := c.dispatcher.Do(ctx, cmd)
		if err != nil {
			return nil, err
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	}

	var (
		resp *Response
		err  error
	)
	if c.circuitBreaker != nil {
		resp, err = c.circuitBreaker.Execute(run)
	} else {
		resp, err = run()
	}

	if err != nil {
		c.stats.recordError()
		return nil, err
	}
	return resp, nil
}

// Get retrieves a single item. A missing key is not an error: the returned
// Item has Found set to false.
func (c *Client) Get(ctx context.Context, key string) (Item, error) {
	if key == "" {
		c.stats.recordError()
		return Item{}, ErrInvalidKey
	}

	resp, err := c.execute(ctx, NewGetCommand(key))
	if err != nil {
		return Item{}, err
	}

	c.stats.recordGet(resp.Found)
	return Item{
		Key:   key,
		Value: resp.Value,
		Found: resp.Found,
	}, nil
}

// Set stores an item.
func (c *Client) Set(ctx context.Context, item Item) error {
	if item.Key == "" {
		c.stats.recordError()
		return ErrInvalidKey
	}

	if _, err := c.execute(ctx, NewSetCommand(item.Key, item.Value)); err != nil {
		return err
	}

	c.stats.recordSet()
	return nil
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// CircuitBreakerState returns the state of the circuit breaker, or
// gobreaker.StateClosed when none is configured.
func (c *Client) CircuitBreakerState() gobreaker.State {
	if c.circuitBreaker == nil {
		return gobreaker.StateClosed
	}
	return c.circuitBreaker.State()
}
