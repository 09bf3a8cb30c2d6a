// Package kvwire is a GET/SET client that multiplexes any number of
// goroutines over one framed connection.
//
// The layers, bottom up:
//
//   - frame: the wire codec (see package frame).
//   - Connection: a net.Conn plus a read buffer, turning the byte stream
//     into frames.
//   - Dispatcher: the single goroutine that owns a Connection. Callers
//     submit Commands to its bounded queue and wait on a private reply slot.
//   - Client: Get and Set on top of a Dispatcher, with stats and an
//     optional circuit breaker.
//
// The protocol carries no request identifiers, so the dispatcher keeps
// exactly one request in flight and pairs each reply with the oldest
// outstanding request.
//
// Basic usage:
//
//	client, err := kvwire.Dial(ctx, "127.0.0.1:6380", kvwire.Config{})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	err = client.Set(ctx, kvwire.Item{Key: "foo", Value: []byte("bar")})
//	item, err := client.Get(ctx, "foo") // item.Value == "bar", item.Found == true
//
// Server is a minimal in-memory peer speaking the same protocol, used by
// the tests and by the kvwire serve command.
package kvwire
