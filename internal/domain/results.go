package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Results is the ordered mapping of agent name to Finding produced by one run.
// Insertion order is preserved through JSON encoding and decoding.
// The zero value is an empty, usable mapping.
type Results struct {
	names    []string
	findings map[string]Finding
}

// Set records the finding for name. Re-setting an existing name keeps its position.
func (r *Results) Set(name string, f Finding) {
	if r.findings == nil {
		r.findings = make(map[string]Finding)
	}
	if _, exists := r.findings[name]; !exists {
		r.names = append(r.names, name)
	}
	r.findings[name] = f
}

// Get returns the finding recorded for name.
func (r Results) Get(name string) (Finding, bool) {
	f, ok := r.findings[name]
	return f, ok
}

// Names returns agent names in insertion order.
func (r Results) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of recorded findings.
func (r Results) Len() int {
	return len(r.names)
}

// Snapshot returns a deep copy that shares no memory with r.
// Agents receive snapshots so later writes can never leak into earlier views.
func (r Results) Snapshot() Results {
	out := Results{
		names:    slices.Clone(r.names),
		findings: make(map[string]Finding, len(r.findings)),
	}
	for k, f := range r.findings {
		out.findings[k] = f.Clone()
	}
	return out
}

// CountBySeverity tallies findings per severity.
func (r Results) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, name := range r.names {
		counts[r.findings[name].Severity]++
	}
	return counts
}

// MarshalJSON encodes the mapping as a JSON object in insertion order.
func (r Results) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(r.findings[name])
		if err != nil {
			return nil, fmt.Errorf("marshal finding %q: %w", name, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (r *Results) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("results must be a JSON object")
	}

	var out Results
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}
		var f Finding
		if err := dec.Decode(&f); err != nil {
			return fmt.Errorf("finding %q: %w", name, err)
		}
		out.Set(name, f)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = out
	return nil
}
