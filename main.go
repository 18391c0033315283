// The main package for the preloader executable.
package main

import (
	"github.com/JakeFAU/guc-preloader/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
