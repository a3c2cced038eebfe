package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// errNoCode is returned when no code was supplied.
var errNoCode = errors.New("no code provided")

// readCode returns the code to review from --code, a file argument ("-" means
// stdin) or stdin. When stdin is a terminal the user is prompted first.
func readCode(args []string, inline string, stdin io.Reader, interactive bool, prompt io.Writer) (string, error) {
	var code string
	switch {
	case inline != "":
		if len(args) > 0 {
			return "", fmt.Errorf("--code and a file argument are mutually exclusive")
		}
		code = inline
	case len(args) > 0 && args[0] != "-":
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		code = string(data)
	default:
		if interactive {
			fmt.Fprintln(prompt, "Paste your code for review:")
			fmt.Fprintln(prompt, "(finish with Ctrl-D)")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		code = string(data)
	}

	if strings.TrimSpace(code) == "" {
		return "", errNoCode
	}
	return code, nil
}
