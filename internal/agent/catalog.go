package agent

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/richhaase/code-review-crew/internal/domain"
	"github.com/richhaase/code-review-crew/internal/llm"
	"github.com/richhaase/code-review-crew/internal/source"
)

// Role names in default pipeline order.
const (
	SecurityAgent      = "SecurityAgent"
	StyleAgent         = "StyleAgent"
	PerformanceAgent   = "PerformanceAgent"
	DocumentationAgent = "DocumentationAgent"
)

// DefaultOrder is the catalog order used when no subset is configured.
var DefaultOrder = []string{SecurityAgent, StyleAgent, PerformanceAgent, DocumentationAgent}

const (
	blockedBySafety = "Response blocked by safety settings"
	apiErrorFormat  = "API error: %v"
)

// focusedParams trade creativity for consistent, terse reviews.
var focusedParams = llm.Params{
	Temperature:     0.3,
	TopP:            0.8,
	TopK:            40,
	MaxOutputTokens: 1024,
}

// SecurityRole reviews for security issues. Provider safety filters are
// relaxed so that code discussing exploits is not refused.
func SecurityRole() Role {
	params := focusedParams
	params.Safety = []llm.SafetySetting{
		{Category: llm.HarmDangerousContent, Threshold: llm.BlockNone},
		{Category: llm.HarmHateSpeech, Threshold: llm.BlockNone},
		{Category: llm.HarmHarassment, Threshold: llm.BlockNone},
		{Category: llm.HarmSexuallyExplicit, Threshold: llm.BlockNone},
	}
	return Role{
		Name:           SecurityAgent,
		Prompt:         rolePrompt(securityPrompt),
		Params:         params,
		BlockedMessage: blockedBySafety,
		ErrorFormat:    apiErrorFormat,
	}
}

// StyleRole reviews formatting and naming. Output is always in English.
func StyleRole() Role {
	return Role{
		Name:           StyleAgent,
		Prompt:         rolePrompt(stylePrompt),
		Params:         focusedParams,
		BlockedMessage: "Failed to generate style review",
		ErrorFormat:    "Style review error: %v",
		FaultFormat:    "Style review failed: %v",
	}
}

// PerformanceRole reviews efficiency, grounded by loop metrics computed
// from the code itself.
func PerformanceRole() Role {
	return Role{
		Name:            PerformanceAgent,
		Prompt:          rolePrompt(performancePrompt),
		BlockedMessage:  blockedBySafety,
		ErrorFormat:     apiErrorFormat,
		FaultFormat:     "Performance analysis error: %v",
		FaultExtensions: map[string]any{domain.MetricsKey: map[string]any{}},
		Prepare:         prepareComplexity,
	}
}

func prepareComplexity(code string) Preparation {
	metrics := source.Complexity(code)
	data, _ := json.Marshal(metrics)
	return Preparation{
		Context:    []string{"Code complexity metrics: " + string(data)},
		Extensions: map[string]any{domain.MetricsKey: metricsExtension(metrics)},
	}
}

// metricsExtension stores metrics in the shape encoding/json decodes them
// into, so a finding survives a JSON round trip unchanged.
func metricsExtension(metrics map[string]int) map[string]any {
	out := make(map[string]any, len(metrics))
	for k, v := range metrics {
		out[k] = float64(v)
	}
	return out
}

// DocumentationRole reviews comments and API documentation.
func DocumentationRole() Role {
	return Role{
		Name:           DocumentationAgent,
		Prompt:         rolePrompt(documentationPrompt),
		BlockedMessage: blockedBySafety,
		ErrorFormat:    apiErrorFormat,
	}
}

var roleBuilders = map[string]func() Role{
	SecurityAgent:      SecurityRole,
	StyleAgent:         StyleRole,
	PerformanceAgent:   PerformanceRole,
	DocumentationAgent: DocumentationRole,
}

// DefaultRoles returns every role in catalog order.
func DefaultRoles() []Role {
	roles, _ := Roles(DefaultOrder)
	return roles
}

// Roles returns the roles for names, in the order given.
func Roles(names []string) ([]Role, error) {
	if err := ValidateRoleNames(names); err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		roles = append(roles, roleBuilders[name]())
	}
	return roles, nil
}

// aliases let users write "security" or "docs" instead of the full role name.
var aliases = map[string]string{
	"security":      SecurityAgent,
	"style":         StyleAgent,
	"performance":   PerformanceAgent,
	"perf":          PerformanceAgent,
	"documentation": DocumentationAgent,
	"docs":          DocumentationAgent,
}

// ParseRoleNames splits a comma-separated list into role names, resolving
// short aliases and dropping duplicates. Empty input yields DefaultOrder.
func ParseRoleNames(input string) []string {
	var result []string
	for _, part := range strings.Split(input, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if full, ok := aliases[strings.ToLower(name)]; ok {
			name = full
		}
		if !slices.Contains(result, name) {
			result = append(result, name)
		}
	}

	if len(result) == 0 {
		return slices.Clone(DefaultOrder)
	}
	return result
}

// ValidateRoleNames checks that every name is a known role and that each
// appears once. It returns an error listing unsupported names.
func ValidateRoleNames(names []string) error {
	var invalid []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := roleBuilders[name]; !ok {
			invalid = append(invalid, name)
			continue
		}
		if seen[name] {
			return fmt.Errorf("agent %s listed more than once", name)
		}
		seen[name] = true
	}

	if len(invalid) > 0 {
		return fmt.Errorf("unsupported agent(s): %s (supported: %s)",
			strings.Join(invalid, ", "), strings.Join(DefaultOrder, ", "))
	}
	return nil
}
