// Package main provides the KrishiMitr terminal client entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/krishimitr/assistant/cmd/krishimitr/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
