// Package main provides the entry point for the bmgrep CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/bmgrep/cmd/bmgrep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
