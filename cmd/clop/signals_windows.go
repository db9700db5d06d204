//go:build windows

package main

import "os"

var extraSignals []os.Signal
