// The main package for the aoty executable.
package main

import (
	"os"

	"github.com/musicdata/aoty-crawler/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	os.Exit(cmd.Execute())
}
