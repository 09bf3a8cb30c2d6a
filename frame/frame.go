package frame

import (
	"bytes"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Frame.
type Kind uint8

const (
	KindSimple Kind = iota + 1
	KindError
	KindInteger
	KindNull
	KindBulk
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindNull:
		return "null"
	case KindBulk:
		return "bulk"
	case KindArray:
		return "array"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Frame is one protocol message. Only the field matching Kind is meaningful:
//
//	KindSimple, KindError  Str
//	KindInteger            Int
//	KindBulk               Data
//	KindArray              Items
//	KindNull               (none)
//
// Build frames with the constructors rather than struct literals so that
// equal messages compare equal.
type Frame struct {
	Kind  Kind
	Str   string
	Int   int64
	Data  []byte
	Items []Frame
}

// Simple returns a status string frame, e.g. Simple("OK").
func Simple(s string) Frame {
	return Frame{Kind: KindSimple, Str: s}
}

// Error returns an error message frame.
func Error(s string) Frame {
	return Frame{Kind: KindError, Str: s}
}

// Integer returns a signed 64-bit integer frame.
func Integer(n int64) Frame {
	return Frame{Kind: KindInteger, Int: n}
}

// Null returns the frame representing the absence of a value.
func Null() Frame {
	return Frame{Kind: KindNull}
}

// Bulk returns a binary-safe payload frame. A nil payload is stored as an
// empty one.
func Bulk(b []byte) Frame {
	if b == nil {
		b = []byte{}
	}
	return Frame{Kind: KindBulk, Data: b}
}

// BulkString is Bulk([]byte(s)).
func BulkString(s string) Frame {
	return Bulk([]byte(s))
}

// Array returns an aggregate frame. Arrays decode but cannot be encoded.
func Array(items ...Frame) Frame {
	if items == nil {
		items = []Frame{}
	}
	return Frame{Kind: KindArray, Items: items}
}

// IsNull reports whether f is the Null frame.
func (f Frame) IsNull() bool {
	return f.Kind == KindNull
}

// Equal reports whether f and other hold the same variant and payload.
func (f Frame) Equal(other Frame) bool {
	if f.Kind != other.Kind {
		return false
	}

	switch f.Kind {
	case KindSimple, KindError:
		return f.Str == other.Str
	case KindInteger:
		return f.Int == other.Int
	case KindNull:
		return true
	case KindBulk:
		return bytes.Equal(f.Data, other.Data)
	case KindArray:
		if len(f.Items) != len(other.Items) {
			return false
		}
		for i := range f.Items {
			if !f.Items[i].Equal(other.Items[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders f for logs and test failures. It is not the wire form.
func (f Frame) String() string {
	switch f.Kind {
	case KindSimple:
		return "Simple(" + strconv.Quote(f.Str) + ")"
	case KindError:
		return "Error(" + strconv.Quote(f.Str) + ")"
	case KindInteger:
		return "Integer(" + strconv.FormatInt(f.Int, 10) + ")"
	case KindNull:
		return "Null"
	case KindBulk:
		return "Bulk(" + strconv.Quote(string(f.Data)) + ")"
	case KindArray:
		parts := make([]string, len(f.Items))
		for i, item := range f.Items {
			parts[i] = item.String()
		}
		return "Array[" + strings.Join(parts, ", ") + "]"
	default:
		return f.Kind.String()
	}
}
