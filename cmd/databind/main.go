// Command databind renders, watches, and serves data-bound HTML pages.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/databind/cmd/databind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
