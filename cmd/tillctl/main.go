// Package main is the entry point for tillctl, the till operator CLI.
package main

import (
	"os"

	"tillsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
