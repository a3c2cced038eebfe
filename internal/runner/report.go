package runner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richhaase/code-review-crew/internal/domain"
	"github.com/richhaase/code-review-crew/internal/terminal"
)

// RenderMarkdown renders findings in the fixed markdown layout consumed by
// downstream tools. Agents appear in run order.
func RenderMarkdown(results domain.Results) string {
	var b strings.Builder
	b.WriteString("## Code Review Results\n\n")

	for _, name := range results.Names() {
		f, _ := results.Get(name)

		fmt.Fprintf(&b, "### %s\n", name)

		severity := string(f.Severity)
		if severity == "" {
			severity = "UNKNOWN"
		}
		fmt.Fprintf(&b, "Severity: %s\n\n", severity)

		b.WriteString("Issues:\n")
		writeItems(&b, f.Issues, "No issues found")

		b.WriteString("\nRecommendations:\n")
		writeItems(&b, f.Recommendations, "No recommendations provided")

		if metrics, ok := f.Metrics(); ok {
			b.WriteString("\nComplexity Metrics:\n")
			for _, m := range metrics {
				fmt.Fprintf(&b, "- %s: %v\n", m.Name, m.Value)
			}
		}

		b.WriteString("\n")
	}

	return b.String()
}

func writeItems(b *strings.Builder, items []domain.Item, empty string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "- %s\n", empty)
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// JSONReport is the machine-readable form of a run.
type JSONReport struct {
	ID       string                `json:"id,omitempty"`
	Findings domain.Results        `json:"findings"`
	Outcomes []domain.AgentOutcome `json:"outcomes"`
	ExitCode int                   `json:"exit_code"`
}

// RenderJSON renders a run as indented JSON.
func RenderJSON(run domain.ReviewRun) (string, error) {
	report := JSONReport{
		ID:       run.ID,
		Findings: run.Results,
		Outcomes: run.Outcomes,
		ExitCode: domain.ExitCodeFor(run.Results).Int(),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return string(data) + "\n", nil
}

// RenderSummary renders a colored one-screen summary of a run for stderr.
func RenderSummary(results domain.Results, stats domain.ReviewStats) string {
	width := terminal.ReportWidth()

	var lines []string
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("%s%sReview summary%s", terminal.Color(terminal.Cyan), terminal.Color(terminal.Bold), terminal.Color(terminal.Reset)))
	lines = append(lines, terminal.Ruler(width, "━"))

	for _, name := range results.Names() {
		f, _ := results.Get(name)
		duration := ""
		if d, ok := stats.AgentDurations[name]; ok {
			duration = fmt.Sprintf(" %s%s%s", terminal.Color(terminal.Dim), terminal.FormatDuration(d), terminal.Color(terminal.Reset))
		}
		lines = append(lines, fmt.Sprintf("  %s %-20s %d issues, %d recommendations%s",
			terminal.SeverityBadge(string(f.Severity)), name, len(f.Issues), len(f.Recommendations), duration))
	}

	var warnings []string
	if len(stats.ErroredAgents) > 0 {
		warnings = append(warnings, "Errored agents: "+strings.Join(stats.ErroredAgents, ", "))
	}
	if len(stats.TimedOutAgents) > 0 {
		warnings = append(warnings, "Timed out agents: "+strings.Join(stats.TimedOutAgents, ", "))
	}
	if len(stats.FaultedAgents) > 0 {
		warnings = append(warnings, "Faulted agents: "+strings.Join(stats.FaultedAgents, ", "))
	}
	if len(stats.CancelledAgents) > 0 {
		warnings = append(warnings, "Cancelled agents: "+strings.Join(stats.CancelledAgents, ", "))
	}
	if len(warnings) > 0 {
		lines = append(lines, "")
		for _, w := range warnings {
			lines = append(lines, fmt.Sprintf("  %s•%s %s", terminal.Color(terminal.Yellow), terminal.Color(terminal.Reset), w))
		}
	}

	lines = append(lines, terminal.Ruler(width, "━"))

	counts := results.CountBySeverity()
	var tally []string
	for _, sev := range domain.Severities {
		if n := counts[sev]; n > 0 {
			tally = append(tally, fmt.Sprintf("%s%d %s%s", terminal.SeverityColor(string(sev)), n, sev, terminal.Color(terminal.Reset)))
		}
	}
	timing := terminal.FormatDuration(stats.WallClockDuration)
	if stats.Cached {
		timing = "cached"
	}
	lines = append(lines, fmt.Sprintf("  %s %s(%d/%d agents succeeded, %s)%s",
		strings.Join(tally, ", "), terminal.Color(terminal.Dim), stats.SuccessfulAgents, stats.TotalAgents, timing, terminal.Color(terminal.Reset)))

	return strings.Join(lines, "\n")
}
