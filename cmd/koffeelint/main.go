package main

import (
	"errors"
	"fmt"
	"os"
)

// Build variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = ""
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errLintFailed) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "koffeelint: %v\n", err)
		os.Exit(2)
	}
}
