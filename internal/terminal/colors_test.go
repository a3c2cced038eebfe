package terminal

import "testing"

func TestEnableDisableColors(t *testing.T) {
	EnableColors()
	if Color(Cyan) != Cyan {
		t.Error("expected color code when colors enabled")
	}

	DisableColors()
	if Color(Cyan) != "" {
		t.Error("expected empty string when colors disabled")
	}

	EnableColors()
	if !ColorsEnabled() {
		t.Error("expected colors enabled after EnableColors")
	}
}

func TestSeverityColor(t *testing.T) {
	EnableColors()
	tests := []struct {
		severity string
		want     string
	}{
		{"HIGH", Red},
		{"ERROR", Red},
		{"MEDIUM", Yellow},
		{"LOW", Green},
		{"UNKNOWN", Dim},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			if got := SeverityColor(tt.severity); got != tt.want {
				t.Errorf("SeverityColor(%q) = %q, want %q", tt.severity, got, tt.want)
			}
		})
	}
}

func TestSeverityColor_Disabled(t *testing.T) {
	DisableColors()
	defer EnableColors()

	for _, sev := range []string{"HIGH", "ERROR", "MEDIUM", "LOW", "UNKNOWN"} {
		if got := SeverityColor(sev); got != "" {
			t.Errorf("SeverityColor(%q) = %q with colors disabled, want empty", sev, got)
		}
	}
}

func TestGetTerminalWidth_Fallback(t *testing.T) {
	// Under go test stderr is usually not a terminal.
	if w := GetTerminalWidth(); w <= 0 {
		t.Errorf("expected positive width, got %d", w)
	}
}
