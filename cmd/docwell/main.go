// Package main provides the entry point for the docwell CLI.
package main

import (
	"os"

	"github.com/jbovet/docwell/cmd/docwell/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
