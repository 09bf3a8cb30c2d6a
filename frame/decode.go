package frame

import (
	"bytes"
	"strconv"
)

// MaxLineLen bounds a single header or simple-string line. A window holding
// this many bytes without a CRLF is rejected instead of waiting for more.
const MaxLineLen = 64 * 1024

// maxDepth bounds array nesting so hostile input cannot exhaust the stack.
const maxDepth = 32

var crlfBytes = []byte(CRLF)

// Check reports whether buf starts with one complete, well-formed frame.
//
// It returns the number of bytes the frame occupies, ErrIncomplete if buf
// ends before the frame does, or a *ParseError. buf is never modified and
// no frame value is allocated.
func Check(buf []byte) (int, error) {
	c := cursor{buf: buf}
	if err := c.check(0); err != nil {
		return 0, err
	}
	return c.pos, nil
}

// Parse decodes the frame at the start of buf and returns it together with
// the number of bytes consumed.
//
// Parse must only be called on bytes for which Check returned success; the
// returned frame never aliases buf. On unchecked input it returns an error
// rather than reading out of bounds, but that is a caller bug.
func Parse(buf []byte) (Frame, int, error) {
	c := cursor{buf: buf}
	f, err := c.parse(0)
	if err != nil {
		return Frame{}, 0, err
	}
	return f, c.pos, nil
}

// cursor is a read position over an immutable byte window.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *cursor) errorf(msg string, err error) *ParseError {
	return &ParseError{Message: msg, Offset: c.pos, Err: err}
}

func (c *cursor) getU8() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrIncomplete
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// getLine returns the bytes up to the next CRLF and moves past it. A CR or
// LF inside the line is an error, so every decoded line re-encodes.
func (c *cursor) getLine() ([]byte, error) {
	rest := c.buf[c.pos:]
	i := bytes.Index(rest, crlfBytes)
	if i < 0 {
		// Without a CRLF, only a CR in the last byte may still become one.
		if j := bytes.IndexAny(rest, CRLF); j >= 0 && (rest[j] == '\n' || j < len(rest)-1) {
			return nil, &ParseError{Message: "bare CR or LF in line", Offset: c.pos + j}
		}
		if len(rest) > MaxLineLen {
			return nil, c.errorf("line exceeds maximum length", nil)
		}
		return nil, ErrIncomplete
	}
	if i > MaxLineLen {
		return nil, c.errorf("line exceeds maximum length", nil)
	}
	line := rest[:i]
	if j := bytes.IndexAny(line, CRLF); j >= 0 {
		return nil, &ParseError{Message: "bare CR or LF in line", Offset: c.pos + j}
	}
	c.pos += i + len(crlfBytes)
	return line, nil
}

// getDecimal reads a signed decimal line. Only a leading '-' is accepted as
// a sign.
func (c *cursor) getDecimal() (int64, error) {
	start := c.pos
	line, err := c.getLine()
	if err != nil {
		return 0, err
	}
	if len(line) == 0 {
		return 0, &ParseError{Message: "empty decimal", Offset: start}
	}
	if line[0] == '+' {
		return 0, &ParseError{Message: "invalid decimal " + strconv.Quote(string(line)), Offset: start}
	}
	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, &ParseError{Message: "invalid decimal " + strconv.Quote(string(line)), Offset: start, Err: err}
	}
	return n, nil
}

// getLength reads a length header. A length of -1 means null.
func (c *cursor) getLength(max int64) (n int64, null bool, err error) {
	start := c.pos
	n, err = c.getDecimal()
	if err != nil {
		return 0, false, err
	}
	if n == -1 {
		return 0, true, nil
	}
	if n < 0 {
		return 0, false, &ParseError{Message: "negative length", Offset: start}
	}
	if n > max {
		return 0, false, &ParseError{Message: "length " + strconv.FormatInt(n, 10) + " exceeds limit", Offset: start}
	}
	return n, false, nil
}

// getBulk returns the next n bytes, which must be followed by CRLF.
func (c *cursor) getBulk(n int) ([]byte, error) {
	if c.remaining() < n+len(crlfBytes) {
		return nil, ErrIncomplete
	}
	data := c.buf[c.pos : c.pos+n]
	if !bytes.Equal(c.buf[c.pos+n:c.pos+n+len(crlfBytes)], crlfBytes) {
		return nil, &ParseError{Message: "bulk payload not terminated by CRLF", Offset: c.pos + n}
	}
	c.pos += n + len(crlfBytes)
	return data, nil
}

func (c *cursor) check(depth int) error {
	if depth > maxDepth {
		return c.errorf("array nesting too deep", nil)
	}

	start := c.pos
	typ, err := c.getU8()
	if err != nil {
		return err
	}

	switch typ {
	case TypeSimple, TypeError:
		_, err := c.getLine()
		return err

	case TypeInteger:
		_, err := c.getDecimal()
		return err

	case '\r':
		b, err := c.getU8()
		if err != nil {
			return err
		}
		if b != '\n' {
			return &ParseError{Message: "null frame missing LF", Offset: start}
		}
		return nil

	case TypeBulk:
		n, null, err := c.getLength(MaxBulkLen)
		if err != nil || null {
			return err
		}
		_, err = c.getBulk(int(n))
		return err

	case TypeArray:
		n, null, err := c.getLength(MaxArrayLen)
		if err != nil || null {
			return err
		}
		for i := int64(0); i < n; i++ {
			if err := c.check(depth + 1); err != nil {
				return err
			}
		}
		return nil

	default:
		return &ParseError{Message: "invalid frame type byte " + strconv.QuoteRune(rune(typ)), Offset: start}
	}
}

func (c *cursor) parse(depth int) (Frame, error) {
	if depth > maxDepth {
		return Frame{}, c.errorf("array nesting too deep", nil)
	}

	start := c.pos
	typ, err := c.getU8()
	if err != nil {
		return Frame{}, err
	}

	switch typ {
	case TypeSimple:
		line, err := c.getLine()
		if err != nil {
			return Frame{}, err
		}
		return Simple(string(line)), nil

	case TypeError:
		line, err := c.getLine()
		if err != nil {
			return Frame{}, err
		}
		return Error(string(line)), nil

	case TypeInteger:
		n, err := c.getDecimal()
		if err != nil {
			return Frame{}, err
		}
		return Integer(n), nil

	case '\r':
		b, err := c.getU8()
		if err != nil {
			return Frame{}, err
		}
		if b != '\n' {
			return Frame{}, &ParseError{Message: "null frame missing LF", Offset: start}
		}
		return Null(), nil

	case TypeBulk:
		n, null, err := c.getLength(MaxBulkLen)
		if err != nil {
			return Frame{}, err
		}
		if null {
			return Null(), nil
		}
		data, err := c.getBulk(int(n))
		if err != nil {
			return Frame{}, err
		}
		// Copy out: the caller reuses its read buffer.
		out := make([]byte, len(data))
		copy(out, data)
		return Bulk(out), nil

	case TypeArray:
		n, null, err := c.getLength(MaxArrayLen)
		if err != nil {
			return Frame{}, err
		}
		if null {
			return Null(), nil
		}
		items := make([]Frame, 0, min(n, 64))
		for i := int64(0); i < n; i++ {
			item, err := c.parse(depth + 1)
			if err != nil {
				return Frame{}, err
			}
			items = append(items, item)
		}
		return Array(items...), nil

	default:
		return Frame{}, &ParseError{Message: "invalid frame type byte " + strconv.QuoteRune(rune(typ)), Offset: start}
	}
}
