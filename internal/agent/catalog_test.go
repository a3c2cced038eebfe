package agent

import (
	"slices"
	"testing"

	"github.com/richhaase/code-review-crew/internal/llm"
)

func TestDefaultRoles_Order(t *testing.T) {
	var names []string
	for _, r := range DefaultRoles() {
		names = append(names, r.Name)
	}
	want := []string{"SecurityAgent", "StyleAgent", "PerformanceAgent", "DocumentationAgent"}
	if !slices.Equal(names, want) {
		t.Errorf("DefaultRoles() = %v, want %v", names, want)
	}
}

func TestRoles_Params(t *testing.T) {
	sec := SecurityRole()
	if sec.Params.Temperature != 0.3 || sec.Params.TopP != 0.8 || sec.Params.TopK != 40 || sec.Params.MaxOutputTokens != 1024 {
		t.Errorf("security params = %+v", sec.Params)
	}
	if len(sec.Params.Safety) != 4 {
		t.Errorf("security safety settings = %d, want 4", len(sec.Params.Safety))
	}
	for _, s := range sec.Params.Safety {
		if s.Threshold != llm.BlockNone {
			t.Errorf("threshold for %s = %s", s.Category, s.Threshold)
		}
	}
	if len(StyleRole().Params.Safety) != 0 {
		t.Error("style role should not relax safety settings")
	}
	if !PerformanceRole().Params.IsZero() || !DocumentationRole().Params.IsZero() {
		t.Error("performance and documentation use provider defaults")
	}
}

func TestRoles_Immutable(t *testing.T) {
	a := SecurityRole()
	a.Params.Safety[0].Threshold = "BLOCK_ALL"
	if SecurityRole().Params.Safety[0].Threshold != llm.BlockNone {
		t.Error("mutating a returned role leaked into the catalog")
	}
}

func TestParseRoleNames(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", DefaultOrder},
		{" , ", DefaultOrder},
		{"security", []string{"SecurityAgent"}},
		{"docs, perf", []string{"DocumentationAgent", "PerformanceAgent"}},
		{"StyleAgent,style", []string{"StyleAgent"}},
		{"Unknown", []string{"Unknown"}},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := ParseRoleNames(tc.input); !slices.Equal(got, tc.want) {
				t.Errorf("ParseRoleNames(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidateRoleNames(t *testing.T) {
	if err := ValidateRoleNames(DefaultOrder); err != nil {
		t.Errorf("default order should validate: %v", err)
	}
	if err := ValidateRoleNames([]string{"SecurityAgent", "LintAgent"}); err == nil {
		t.Error("expected error for unknown role")
	}
	if err := ValidateRoleNames([]string{"StyleAgent", "StyleAgent"}); err == nil {
		t.Error("expected error for duplicate role")
	}
}

func TestRoles_Subset(t *testing.T) {
	roles, err := Roles([]string{DocumentationAgent, SecurityAgent})
	if err != nil {
		t.Fatal(err)
	}
	if roles[0].Name != DocumentationAgent || roles[1].Name != SecurityAgent {
		t.Errorf("Roles() did not keep the requested order")
	}
}
