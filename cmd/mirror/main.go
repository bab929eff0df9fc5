// Package main provides the entry point for the mirror CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

// run executes the command tree and maps its outcome to an exit code.
// Errors already reported through the logger are not printed again.
func run() int {
	err := Execute()
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}

	var reported *reportedError
	if !errors.As(err, &reported) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return 1
}

// reportedError marks an error that has already been shown to the user.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }
