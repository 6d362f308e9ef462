package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Pair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ColumnMapping maps source column labels to canonical field names and remembers the
// order sources were first mapped in. The zero value is an empty mapping.
type ColumnMapping struct {
	sources []string
	targets map[string]string
}

func NewColumnMapping(pairs ...Pair) *ColumnMapping {
	m := &ColumnMapping{}
	for _, p := range pairs {
		m.Set(p.Source, p.Target)
	}
	return m
}

// Set maps source to target. Re-mapping a source keeps its original position.
func (m *ColumnMapping) Set(source, target string) (previous string, replaced bool) {
	if m.targets == nil {
		m.targets = map[string]string{}
	}
	previous, replaced = m.targets[source]
	if !replaced {
		m.sources = append(m.sources, source)
	}
	m.targets[source] = target
	return previous, replaced
}

func (m *ColumnMapping) Target(source string) (string, bool) {
	if m == nil {
		return "", false
	}
	target, ok := m.targets[source]
	return target, ok
}

func (m *ColumnMapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sources)
}

func (m *ColumnMapping) Pairs() []Pair {
	if m == nil {
		return nil
	}
	out := make([]Pair, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, Pair{Source: s, Target: m.targets[s]})
	}
	return out
}

// SourcesFor lists the sources mapped to target, in mapping order.
func (m *ColumnMapping) SourcesFor(target string) []string {
	var out []string
	for _, p := range m.Pairs() {
		if p.Target == target {
			out = append(out, p.Source)
		}
	}
	return out
}

func (m *ColumnMapping) Clone() *ColumnMapping {
	out := &ColumnMapping{}
	for _, p := range m.Pairs() {
		out.Set(p.Source, p.Target)
	}
	return out
}

// MarshalJSON encodes the mapping as an object whose keys keep mapping order.
func (m *ColumnMapping) MarshalJSON() ([]byte, error) {
	buf := bytes.NewBufferString("{")
	for i, p := range m.Pairs() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Source)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.Target)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *ColumnMapping) UnmarshalJSON(data []byte) error {
	*m = ColumnMapping{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("column mapping: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var target string
		if err := dec.Decode(&target); err != nil {
			return fmt.Errorf("column mapping %q: %w", key, err)
		}
		m.Set(key, target)
	}
	_, err = dec.Token()
	return err
}

// SheetMappings holds one ColumnMapping per sheet name.
type SheetMappings map[string]*ColumnMapping

func (s SheetMappings) Clone() SheetMappings {
	out := make(SheetMappings, len(s))
	for sheet, m := range s {
		out[sheet] = m.Clone()
	}
	return out
}

// PairCount is the number of committed pairs across all sheets.
func (s SheetMappings) PairCount() int {
	n := 0
	for _, m := range s {
		n += m.Len()
	}
	return n
}

// ParseSheetMappings reads mappings back from a stored value: JSON text, raw bytes or a
// decoded nested map.
func ParseSheetMappings(value any) (SheetMappings, error) {
	var blob []byte
	switch v := value.(type) {
	case nil:
		return SheetMappings{}, nil
	case string:
		blob = []byte(v)
	case []byte:
		blob = v
	case json.RawMessage:
		blob = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		blob = encoded
	}

	out := SheetMappings{}
	if err := json.Unmarshal(blob, &out); err != nil {
		return nil, fmt.Errorf("parse mappings: %w", err)
	}
	for sheet, m := range out {
		if m == nil {
			out[sheet] = &ColumnMapping{}
		}
	}
	return out, nil
}
