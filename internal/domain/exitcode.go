package domain

// ExitCode represents the exit status of the crew binary.
type ExitCode int

const (
	// ExitClean indicates a completed review with no HIGH severity verdicts.
	ExitClean ExitCode = 0
	// ExitHighSeverity indicates at least one agent reported HIGH severity.
	ExitHighSeverity ExitCode = 1
	// ExitError indicates setup failed or no agent produced a usable review.
	ExitError ExitCode = 2
	// ExitInterrupted indicates the review was interrupted by a signal.
	ExitInterrupted ExitCode = 130
)

// Int returns the exit code as an int for use with os.Exit.
func (e ExitCode) Int() int {
	return int(e)
}

// ExitCodeFor derives the process exit status from a completed mapping.
// An empty mapping, or one where every agent returned ERROR, counts as an error.
func ExitCodeFor(results Results) ExitCode {
	if results.Len() == 0 {
		return ExitError
	}
	errored := 0
	high := false
	for _, name := range results.Names() {
		f, _ := results.Get(name)
		switch f.Severity {
		case SeverityError:
			errored++
		case SeverityHigh:
			high = true
		}
	}
	if errored == results.Len() {
		return ExitError
	}
	if high {
		return ExitHighSeverity
	}
	return ExitClean
}
