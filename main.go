// The main package for the appradar executable.
package main

import (
	"github.com/appradar/appradar/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
