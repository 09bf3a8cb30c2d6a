package frame

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidString is returned when a Simple or Error frame holds a CR or LF,
// which would end the line early on the wire.
var ErrInvalidString = errors.New("frame: simple and error strings must not contain CR or LF")

// Encode returns the wire form of f.
func Encode(f Frame) ([]byte, error) {
	return AppendFrame(nil, f)
}

// AppendFrame appends the wire form of f to dst and returns the extended
// slice. On error dst is returned unchanged, so a failed encode never leaves
// a partial frame behind.
func AppendFrame(dst []byte, f Frame) ([]byte, error) {
	switch f.Kind {
	case KindSimple:
		return appendLine(dst, TypeSimple, f.Str)

	case KindError:
		return appendLine(dst, TypeError, f.Str)

	case KindInteger:
		dst = append(dst, TypeInteger)
		dst = strconv.AppendInt(dst, f.Int, 10)
		return append(dst, CRLF...), nil

	case KindNull:
		return append(dst, CRLF...), nil

	case KindBulk:
		dst = append(dst, TypeBulk)
		dst = strconv.AppendInt(dst, int64(len(f.Data)), 10)
		dst = append(dst, CRLF...)
		dst = append(dst, f.Data...)
		return append(dst, CRLF...), nil

	case KindArray:
		return dst, ErrArrayEncoding

	default:
		return dst, errors.New("frame: cannot encode frame of kind " + f.Kind.String())
	}
}

func appendLine(dst []byte, typ byte, s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return dst, ErrInvalidString
	}
	dst = append(dst, typ)
	dst = append(dst, s...)
	return append(dst, CRLF...), nil
}
