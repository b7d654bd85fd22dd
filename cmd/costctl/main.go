// Package main is the entry point for the costctl operator CLI.
package main

import (
	"os"

	"orderfinance/cmd/costctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
