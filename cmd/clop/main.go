package main

import (
	"fmt"
	"os"
	"time"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// shutdownGrace bounds how long a subcommand waits for in-flight
// coordinator work to drain before exiting.
const shutdownGrace = 30 * time.Second

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
