package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Style represents a log message style.
type Style string

const (
	StyleInfo    Style = "info"
	StyleSuccess Style = "success"
	StyleWarning Style = "warning"
	StyleError   Style = "error"
	StyleDim     Style = "dim"
	StylePhase   Style = "phase"
)

// styleAttrs maps a style to its color and leading symbol.
var styleAttrs = map[Style]struct {
	color  string
	symbol string
}{
	StyleInfo:    {Cyan, "I"},
	StyleSuccess: {Green, "✓"},
	StyleWarning: {Yellow, "W"},
	StyleError:   {Red, "!"},
	StyleDim:     {Dim, "·"},
	StylePhase:   {Magenta + Bold, "▸"},
}

// Logger provides styled, tagged logging. Output goes to stderr unless a
// writer is supplied. Debug messages are dropped unless verbose is set.
// A Logger is safe for concurrent use.
type Logger struct {
	isTTY   bool
	verbose bool
	out     io.Writer
	mu      sync.Mutex
}

// NewLogger creates a logger writing to stderr.
func NewLogger() *Logger {
	return &Logger{
		isTTY: IsStderrTTY(),
	}
}

// NewVerboseLogger creates a stderr logger that also prints debug output.
func NewVerboseLogger(verbose bool) *Logger {
	l := NewLogger()
	l.verbose = verbose
	return l
}

// NewLoggerTo creates a logger writing to w. Line clearing is disabled.
func NewLoggerTo(w io.Writer, verbose bool) *Logger {
	return &Logger{out: w, verbose: verbose}
}

// Verbose reports whether debug output is enabled.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}

func (l *Logger) writer() io.Writer {
	if l.out != nil {
		return l.out
	}
	return os.Stderr
}

// Log prints a styled log message.
func (l *Logger) Log(msg string, style Style) {
	if l == nil {
		return
	}
	attrs, ok := styleAttrs[style]
	if !ok {
		attrs = styleAttrs[StyleInfo]
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.writer()
	if l.isTTY {
		fmt.Fprint(w, "\r"+strings.Repeat(" ", 100)+"\r")
	}

	tag := fmt.Sprintf("%s[%s%screw%s%s]%s",
		Color(Dim), Color(Reset), Color(attrs.color), Color(Reset), Color(Dim), Color(Reset))
	fmt.Fprintf(w, "%s %s%s%s %s\n", tag, Color(attrs.color), attrs.symbol, Color(Reset), msg)
}

// Logf prints a formatted styled log message.
func (l *Logger) Logf(style Style, format string, args ...any) {
	l.Log(fmt.Sprintf(format, args...), style)
}

// Debugf prints a dim message only when the logger is verbose.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.Verbose() {
		return
	}
	l.Log(fmt.Sprintf(format, args...), StyleDim)
}

// Log prints a styled log message to stderr (package-level function).
func Log(msg string, style Style) {
	NewLogger().Log(msg, style)
}

// Logf prints a formatted styled log message to stderr (package-level function).
func Logf(style Style, format string, args ...any) {
	Log(fmt.Sprintf(format, args...), style)
}
