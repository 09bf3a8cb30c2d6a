// Package frame implements the wire codec for a small Redis-style
// request/response protocol.
//
// The package is pure: it converts between byte slices and Frame values and
// never performs I/O. Connection handling, buffering and request dispatch
// live in the parent package.
//
// # Decoding
//
// Decoding is split in two steps so a caller holding a partially filled
// buffer can cheaply ask "is there a whole frame yet?" without allocating:
//
//	n, err := frame.Check(buf)
//	switch {
//	case errors.Is(err, frame.ErrIncomplete):
//	    // read more bytes and try again
//	case err != nil:
//	    // malformed stream, close the connection
//	default:
//	    f, _, _ := frame.Parse(buf[:n])
//	    buf = buf[n:]
//	}
//
// Check never modifies buf. Parse must only be called on bytes that Check
// accepted.
//
// # Encoding
//
// Encode and AppendFrame produce the canonical wire form:
//
//	Simple(s)   +s\r\n
//	Error(s)    -s\r\n
//	Integer(n)  :n\r\n
//	Null        \r\n
//	Bulk(b)     $len(b)\r\nb\r\n
//
// Array frames can be decoded but not encoded; encoding one returns
// ErrArrayEncoding and produces no output.
package frame
