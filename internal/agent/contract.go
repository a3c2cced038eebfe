package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/richhaase/code-review-crew/internal/domain"
	"github.com/richhaase/code-review-crew/internal/terminal"
)

// findingSchemaJSON is the structural contract every model response must meet.
const findingSchemaJSON = `{
  "type": "object",
  "required": ["severity", "issues", "recommendations"],
  "properties": {
    "severity": {"type": "string"},
    "issues": {"$ref": "#/definitions/items"},
    "recommendations": {"$ref": "#/definitions/items"}
  },
  "definitions": {
    "items": {
      "type": "array",
      "items": {
        "anyOf": [
          {"type": "string"},
          {
            "type": "object",
            "properties": {
              "type": {"type": "string"},
              "description": {"type": "string"}
            }
          }
        ]
      }
    }
  }
}`

var findingSchemaLoader = gojsonschema.NewStringLoader(findingSchemaJSON)

var requiredFields = []string{"severity", "issues", "recommendations"}

// Contract turns free-form model output into a validated Finding.
type Contract struct {
	name   string
	logger *terminal.Logger
}

// NewContract creates a contract for the named agent. A nil logger is allowed.
func NewContract(name string, logger *terminal.Logger) *Contract {
	return &Contract{name: name, logger: logger}
}

// Normalize extracts the JSON object between the first '{' and the last '}'
// of raw and validates it. Any violation yields an ERROR finding whose single
// issue starts with "Failed to parse response:". Normalize never fails.
func (c *Contract) Normalize(raw string) domain.Finding {
	f, err := parseFinding(raw)
	if err != nil {
		c.logger.Logf(terminal.StyleWarning, "Failed to parse %s response: %v", c.name, err)
		c.logger.Debugf("%s response: %s", c.name, raw)
		return domain.ErrorFinding("Failed to parse response: " + err.Error())
	}
	return f
}

func parseFinding(raw string) (domain.Finding, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return domain.Finding{}, fmt.Errorf("no JSON object found in response")
	}
	candidate := raw[start : end+1]

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return domain.Finding{}, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, field := range requiredFields {
		if _, ok := fields[field]; !ok {
			return domain.Finding{}, fmt.Errorf("missing required fields in response")
		}
	}

	result, err := gojsonschema.Validate(findingSchemaLoader, gojsonschema.NewStringLoader(candidate))
	if err != nil {
		return domain.Finding{}, fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return domain.Finding{}, fmt.Errorf("invalid response structure: %s", strings.Join(problems, "; "))
	}

	var f domain.Finding
	if err := json.Unmarshal([]byte(candidate), &f); err != nil {
		return domain.Finding{}, fmt.Errorf("invalid JSON: %w", err)
	}
	sev, err := domain.ParseSeverity(string(f.Severity))
	if err != nil {
		return domain.Finding{}, err
	}
	f.Severity = sev
	return f, nil
}
