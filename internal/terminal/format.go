package terminal

import (
	"fmt"
	"strings"
	"time"
)

// MaxReportWidth caps the width of the run summary.
const MaxReportWidth = 90

// FormatDuration formats a duration for the run summary.
// Sub-second durations are shown in milliseconds.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	secs := d.Seconds()
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	return fmt.Sprintf("%dm %.1fs", mins, secs-float64(mins*60))
}

// Ruler returns a dimmed horizontal rule.
func Ruler(width int, char string) string {
	return Color(Dim) + strings.Repeat(char, width) + Color(Reset)
}

// SeverityBadge returns the severity label padded to a fixed width and colored.
func SeverityBadge(severity string) string {
	return fmt.Sprintf("%s%-6s%s", SeverityColor(severity), severity, Color(Reset))
}

// WrapText wraps text at word boundaries so that no line exceeds width,
// prefixing every line with indent. Words longer than the width are kept whole.
func WrapText(text string, width int, indent string) string {
	if width <= len(indent) {
		return indent + text
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	line := indent + words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = indent + word
			continue
		}
		line += " " + word
	}
	lines = append(lines, line)

	return strings.Join(lines, "\n")
}

// ReportWidth returns the summary width for the current terminal.
func ReportWidth() int {
	return min(GetTerminalWidth(), MaxReportWidth)
}
