package frame_test

import (
	"errors"
	"fmt"
	"log"

	"github.com/pior/kvwire/frame"
)

// ExampleEncode demonstrates frame serialization.
func ExampleEncode() {
	wire, err := frame.Encode(frame.BulkString("bar"))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%q", wire)
	// Output: "$3\r\nbar\r\n"
}

// ExampleCheck demonstrates the check-then-parse loop over a partial buffer.
func ExampleCheck() {
	buf := []byte("+OK\r\n$5\r\nhel")

	for {
		n, err := frame.Check(buf)
		if errors.Is(err, frame.ErrIncomplete) {
			fmt.Printf("need more bytes, %d buffered\n", len(buf))
			break
		}
		if err != nil {
			log.Fatal(err)
		}

		f, _, err := frame.Parse(buf[:n])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(f)
		buf = buf[n:]
	}
	// Output:
	// Simple("OK")
	// need more bytes, 7 buffered
}
