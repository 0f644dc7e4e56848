package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Exit reports err on stderr, prefixed with the program name, and exits the
// process with ExitCode(err).
func Exit(err error) {
	os.Exit(report(os.Stderr, filepath.Base(os.Args[0]), err))
}

// ExitCode is 0 for nil and flag.ErrHelp, 2 for flag usage errors and 1
// otherwise.
func ExitCode(err error) int {
	var usage UsageError
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &usage):
		return 2
	default:
		return 1
	}
}

// UsageError marks an error caused by bad command-line input.
type UsageError struct{ Err error }

func (e UsageError) Error() string { return e.Err.Error() }
func (e UsageError) Unwrap() error { return e.Err }

func report(w io.Writer, program string, err error) int {
	code := ExitCode(err)
	if code != 0 {
		fmt.Fprintf(w, "%s: %v\n", program, err)
	}
	return code
}
