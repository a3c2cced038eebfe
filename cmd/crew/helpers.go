package main

import (
	"fmt"

	"github.com/richhaase/code-review-crew/internal/domain"
)

// exitCodeError is a wrapper type for returning exit codes via error interface.
type exitCodeError struct {
	code domain.ExitCode
}

func (e exitCodeError) Error() string {
	switch e.code {
	case domain.ExitHighSeverity:
		return "high severity findings were reported"
	case domain.ExitError:
		return "review failed with error"
	case domain.ExitInterrupted:
		return "review was interrupted"
	default:
		return fmt.Sprintf("exit code %d", e.code)
	}
}

func exitCode(code domain.ExitCode) error {
	if code == domain.ExitClean {
		return nil
	}
	return exitCodeError{code: code}
}
