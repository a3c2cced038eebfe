// Package domain provides core types for the code review pipeline.
package domain

import (
	"fmt"
	"strings"
)

// Severity is the overall verdict an agent assigns to a submission.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
	// SeverityError means the agent could not produce a valid review.
	// It is a sentinel, not an analysis result.
	SeverityError Severity = "ERROR"
)

// Severities lists every valid severity from most to least severe, ERROR last.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow, SeverityError}

// ParseSeverity normalizes case and surrounding whitespace and validates the result.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("invalid severity %q (expected one of HIGH, MEDIUM, LOW, ERROR)", s)
	}
	return sev, nil
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow, SeverityError:
		return true
	}
	return false
}

// Rank orders analysis severities for comparison. ERROR and unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

func (s Severity) String() string {
	return string(s)
}
