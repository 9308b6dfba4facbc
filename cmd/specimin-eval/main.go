package main

import (
	"fmt"
	"os"
)

// ExitError is the exit code for every failed command.
const ExitError = 1

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(ExitError)
	}
}
