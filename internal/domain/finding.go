package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// MetricsKey is the extension field holding structural complexity metrics.
const MetricsKey = "complexity_metrics"

// Item is one entry in a finding's issues or recommendations.
// LLMs return either plain strings or {"type", "description"} objects; both
// shapes round-trip through JSON unchanged.
type Item struct {
	Text        string
	Type        string
	Description string
	structured  bool
}

// TextItem creates a free-text item.
func TextItem(text string) Item {
	return Item{Text: text}
}

// StructuredItem creates a {type, description} item.
func StructuredItem(typ, description string) Item {
	return Item{Type: typ, Description: description, structured: true}
}

// IsStructured reports whether the item came from a JSON object.
func (i Item) IsStructured() bool {
	return i.structured
}

// String returns the human readable text of the item.
// Structured items render their description only.
func (i Item) String() string {
	if i.structured {
		return i.Description
	}
	return i.Text
}

type structuredItem struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// MarshalJSON implements json.Marshaler.
func (i Item) MarshalJSON() ([]byte, error) {
	if i.structured {
		return json.Marshal(structuredItem{Type: i.Type, Description: i.Description})
	}
	return json.Marshal(i.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
// Scalars other than strings are kept as their literal JSON text.
func (i *Item) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty item")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*i = TextItem(s)
	case '{':
		var s structuredItem
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("invalid item object: %w", err)
		}
		*i = StructuredItem(s.Type, s.Description)
	case '[':
		return fmt.Errorf("item must be a string or object, got array")
	default:
		*i = TextItem(string(trimmed))
	}
	return nil
}

// Finding is the canonical output of one agent's review of one submission.
type Finding struct {
	Severity        Severity
	Issues          []Item
	Recommendations []Item
	// Extensions holds role-specific fields serialized as extra top-level keys.
	Extensions map[string]any
}

// ErrorFinding builds an ERROR-severity finding with a single issue and no recommendations.
func ErrorFinding(issue string) Finding {
	return Finding{
		Severity:        SeverityError,
		Issues:          []Item{TextItem(issue)},
		Recommendations: []Item{},
	}
}

// IsError reports whether the finding is the ERROR sentinel.
func (f Finding) IsError() bool {
	return f.Severity == SeverityError
}

// WithExtension returns a copy of f with key set to value.
func (f Finding) WithExtension(key string, value any) Finding {
	out := f.Clone()
	if out.Extensions == nil {
		out.Extensions = make(map[string]any)
	}
	out.Extensions[key] = value
	return out
}

// Metrics returns the complexity metrics extension as ordered key/value pairs.
// The second return value is false when the extension is absent.
func (f Finding) Metrics() ([]Metric, bool) {
	raw, ok := f.Extensions[MetricsKey]
	if !ok {
		return nil, false
	}

	var metrics []Metric
	switch m := raw.(type) {
	case map[string]int:
		for _, k := range slices.Sorted(maps.Keys(m)) {
			metrics = append(metrics, Metric{Name: k, Value: m[k]})
		}
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(m)) {
			metrics = append(metrics, Metric{Name: k, Value: m[k]})
		}
	default:
		// Unknown shape: still "present", rendered as a single value.
		metrics = append(metrics, Metric{Name: MetricsKey, Value: raw})
	}
	return metrics, true
}

// Metric is a single complexity measurement.
type Metric struct {
	Name  string
	Value any
}

// Clone returns a deep copy of the finding.
func (f Finding) Clone() Finding {
	out := Finding{
		Severity:        f.Severity,
		Issues:          slices.Clone(f.Issues),
		Recommendations: slices.Clone(f.Recommendations),
	}
	if out.Issues == nil {
		out.Issues = []Item{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []Item{}
	}
	if f.Extensions != nil {
		out.Extensions = make(map[string]any, len(f.Extensions))
		for k, v := range f.Extensions {
			out.Extensions[k] = cloneValue(v)
		}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case map[string]int:
		return maps.Clone(t)
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

var reservedKeys = []string{"severity", "issues", "recommendations"}

// MarshalJSON writes severity, issues and recommendations first, then extensions
// in sorted key order. Empty lists are always written as [].
func (f Finding) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		buf.Write(v)
		return nil
	}

	issues := f.Issues
	if issues == nil {
		issues = []Item{}
	}
	recs := f.Recommendations
	if recs == nil {
		recs = []Item{}
	}

	if err := write("severity", string(f.Severity)); err != nil {
		return nil, err
	}
	if err := write("issues", issues); err != nil {
		return nil, err
	}
	if err := write("recommendations", recs); err != nil {
		return nil, err
	}
	for _, k := range slices.Sorted(maps.Keys(f.Extensions)) {
		if slices.Contains(reservedKeys, k) {
			continue
		}
		if err := write(k, f.Extensions[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the three mandatory fields and keeps any other top-level
// key as an extension. Severity is taken verbatim; validation belongs to callers.
func (f *Finding) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Finding
	if v, ok := raw["severity"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("severity: %w", err)
		}
		out.Severity = Severity(s)
	}
	if v, ok := raw["issues"]; ok {
		if err := json.Unmarshal(v, &out.Issues); err != nil {
			return fmt.Errorf("issues: %w", err)
		}
	}
	if v, ok := raw["recommendations"]; ok {
		if err := json.Unmarshal(v, &out.Recommendations); err != nil {
			return fmt.Errorf("recommendations: %w", err)
		}
	}
	if out.Issues == nil {
		out.Issues = []Item{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []Item{}
	}

	for k, v := range raw {
		if slices.Contains(reservedKeys, k) {
			continue
		}
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if out.Extensions == nil {
			out.Extensions = make(map[string]any)
		}
		out.Extensions[k] = value
	}

	*f = out
	return nil
}

// Summary returns a compact one-line description used in log output.
func (f Finding) Summary() string {
	return fmt.Sprintf("severity=%s issues=%d recommendations=%d", f.Severity, len(f.Issues), len(f.Recommendations))
}
