package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/httpbridge/packages/httperr"
	"github.com/abdul-hamid-achik/httpbridge/packages/reqfile"
)

// Exit codes for the httpbridge CLI
const (
	// ExitSuccess indicates the command completed
	ExitSuccess = 0

	// ExitFailure indicates a failed request or benchmark threshold
	ExitFailure = 1

	// ExitParseError indicates an invalid request document
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode maps an error returned by a command to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	var ve *reqfile.ValidationError
	if errors.As(err, &ve) {
		return ExitParseError
	}

	if kind, ok := httperr.KindOf(err); ok {
		switch {
		case kind.IsNetwork():
			return ExitNetworkError
		case kind == httperr.InvalidURL, kind == httperr.LocalProtocolError:
			return ExitUsageError
		}
	}

	return ExitFailure
}
