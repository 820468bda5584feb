// ./main.go
package main

import (
	"github.com/n0xframe/tavreg-cli/cmd"
)

// main is the entry point for the tavreg CLI application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
