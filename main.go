// The main package for the bookfetch executable.
package main

import (
	"github.com/arct1cx/bookfetch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
