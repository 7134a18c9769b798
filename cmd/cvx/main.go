// Package main provides cvx, a CLI for running the extraction pipeline
// against a local file without the HTTP server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
