// Command tidesim runs the delayed-visibility key/value store and
// in-memory broadcast stream server.
package main

import (
	"fmt"
	"os"

	"tidesim/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if _, ok := err.(cli.UsageError); ok {
		return 2
	}
	return 1
}
