package frame

// Type bytes that open each frame on the wire.
const (
	TypeSimple  byte = '+'
	TypeError   byte = '-'
	TypeInteger byte = ':'
	TypeBulk    byte = '$'
	TypeArray   byte = '*'
)

// CRLF terminates every line of the protocol. A bare CRLF is the Null frame.
const CRLF = "\r\n"

// Protocol limits. Lengths above these are rejected as parse errors rather
// than allocated.
const (
	// MaxBulkLen is the largest bulk payload accepted by the decoder (512 MiB).
	MaxBulkLen = 512 * 1024 * 1024

	// MaxArrayLen is the largest element count accepted for an array.
	MaxArrayLen = 1024 * 1024
)
