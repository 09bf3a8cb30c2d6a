package frame

import (
	"errors"
	"testing"
)

// FuzzCheckParse feeds arbitrary bytes through Check and Parse.
// Run with: go test -fuzz='^FuzzCheckParse$' -fuzztime=60s ./frame
func FuzzCheckParse(f *testing.F) {
	f.Add([]byte("+OK\r\n"))
	f.Add([]byte("-ERR boom\r\n"))
	f.Add([]byte(":-42\r\n"))
	f.Add([]byte("\r\n"))
	f.Add([]byte("$5\r\nhello\r\n"))
	f.Add([]byte("$-1\r\n"))
	f.Add([]byte("*2\r\n+a\r\n:1\r\n"))
	f.Add([]byte("$5\r\nhel"))   // Truncated payload
	f.Add([]byte("$3\r\nbarXX")) // Wrong terminator
	f.Add([]byte("\rX"))         // Broken null
	f.Add([]byte("+a\rb\r\n"))   // Bare CR in line
	f.Add([]byte(":+7\r\n"))      // Explicit plus sign
	f.Add([]byte(""))

	f.Fuzz(func(t *testing.T, data []byte) {
		n, err := Check(data)
		if err != nil {
			var perr *ParseError
			if !errors.Is(err, ErrIncomplete) && !errors.As(err, &perr) {
				t.Fatalf("Check returned unexpected error type %T: %v", err, err)
			}
			return
		}
		if n <= 0 || n > len(data) {
			t.Fatalf("Check consumed %d bytes of %d", n, len(data))
		}

		frm, consumed, err := Parse(data[:n])
		if err != nil {
			t.Fatalf("Parse failed after successful Check: %v", err)
		}
		if consumed != n {
			t.Fatalf("Parse consumed %d bytes, Check reported %d", consumed, n)
		}

		// Every decoded scalar re-encodes and decodes to the same frame.
		if frm.Kind == KindArray {
			return
		}
		wire, err := Encode(frm)
		if err != nil {
			t.Fatalf("Encode(%s) failed for decoded frame: %v", frm, err)
		}
		again, _, err := Parse(wire)
		if err != nil {
			t.Fatalf("Parse(Encode(%s)) failed: %v", frm, err)
		}
		if !again.Equal(frm) {
			t.Fatalf("round trip mismatch: %s != %s", again, frm)
		}
	})
}

// FuzzRoundTripBulk checks the round-trip law for arbitrary bulk payloads.
func FuzzRoundTripBulk(f *testing.F) {
	f.Add([]byte("hello"))
	f.Add([]byte("\r\n\r\n"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, payload []byte) {
		wire, err := Encode(Bulk(payload))
		if err != nil {
			t.Fatal(err)
		}
		got, n, err := Parse(wire)
		if err != nil {
			t.Fatal(err)
		}
		if n != len(wire) || !got.Equal(Bulk(payload)) {
			t.Fatalf("round trip mismatch for %q", payload)
		}
	})
}
