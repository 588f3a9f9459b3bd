package main

import (
	"fmt"
	"os"

	"github.com/TFMV/filigram/cmd"
)

func main() {
	// Set up a deferred function to recover from panics.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "filigram: recovered from panic: %v\n", r)
			os.Exit(2)
		}
	}()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "filigram: %v\n", err)
		os.Exit(1)
	}
}
