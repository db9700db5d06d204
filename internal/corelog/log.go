// Package corelog provides component-prefixed loggers on top of the
// standard library's log package, the same style the example corpus
// uses throughout (plain log.Printf, no structured logging library).
package corelog

import (
	"log"
	"os"
)

// Logger is a thin wrapper around *log.Logger that tags every line with
// a component name, e.g. "[coordinator]".
type Logger struct {
	*log.Logger
}

// New returns a Logger that prefixes every line with "[component] ".
func New(component string) *Logger {
	return &Logger{
		Logger: log.New(os.Stderr, "["+component+"] ", log.LstdFlags),
	}
}
