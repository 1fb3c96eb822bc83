// Package main is the entry point for the timekeeper server.
//
// The binary is a small cobra CLI:
//
//	timekeeper serve              run the HTTP API (migrates first)
//	timekeeper migrate up|down|status
//	timekeeper version
//
// Every command takes --config/-c pointing at an optional YAML file; the
// environment overrides it (see internal/config).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
