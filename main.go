// The main package for the shopscout executable.
package main

import (
	"github.com/shopscout/shopscout/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
