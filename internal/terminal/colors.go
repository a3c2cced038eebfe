// Package terminal provides terminal output formatting and TTY detection.
package terminal

import (
	"os"
	"sync"

	"golang.org/x/term"
)

// ANSI color codes.
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Cyan    = "\033[36m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Red     = "\033[31m"
	Magenta = "\033[35m"
)

var (
	colorMu       sync.RWMutex
	colorsEnabled = true
)

// DisableColors turns off color output globally.
func DisableColors() {
	SetColorsEnabled(false)
}

// EnableColors turns on color output globally.
func EnableColors() {
	SetColorsEnabled(true)
}

// SetColorsEnabled sets the color output state.
func SetColorsEnabled(enabled bool) {
	colorMu.Lock()
	defer colorMu.Unlock()
	colorsEnabled = enabled
}

// ColorsEnabled returns whether colors are currently enabled.
func ColorsEnabled() bool {
	colorMu.RLock()
	defer colorMu.RUnlock()
	return colorsEnabled
}

// Color returns the color code if colors are enabled, otherwise empty string.
func Color(c string) string {
	if ColorsEnabled() {
		return c
	}
	return ""
}

// SeverityColor picks the display color for a severity label.
// It returns an empty string when colors are disabled.
func SeverityColor(severity string) string {
	switch severity {
	case "HIGH", "ERROR":
		return Color(Red)
	case "MEDIUM":
		return Color(Yellow)
	case "LOW":
		return Color(Green)
	default:
		return Color(Dim)
	}
}

// IsTTY returns true if the given file descriptor is a TTY.
func IsTTY(fd int) bool {
	return term.IsTerminal(fd)
}

// IsStdinTTY returns true if stdin is a TTY.
func IsStdinTTY() bool {
	return IsTTY(int(os.Stdin.Fd()))
}

// IsStdoutTTY returns true if stdout is a TTY.
func IsStdoutTTY() bool {
	return IsTTY(int(os.Stdout.Fd()))
}

// IsStderrTTY returns true if stderr is a TTY.
func IsStderrTTY() bool {
	return IsTTY(int(os.Stderr.Fd()))
}

// GetTerminalWidth returns the terminal width, or 80 if detection fails.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
