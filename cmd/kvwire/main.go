// Command kvwire runs the reference key-value server and talks to it.
//
//	kvwire serve --listen 127.0.0.1:6380 --metrics-addr :9100
//	kvwire set foo bar
//	kvwire get foo
//	kvwire bench --concurrency 16 --duration 10s
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
