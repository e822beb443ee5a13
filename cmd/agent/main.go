// Command agent runs the Telegram assistant: a bounded-queue worker pipeline
// that plans, calls tools, generates replies through an LLM and persists the
// conversation in SQLite.
package main

import (
	"fmt"
	"os"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
