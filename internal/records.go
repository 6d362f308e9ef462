package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeRecords parses a JSON array of objects, or a single object, into records. Nested
// objects and arrays stay raw JSON so their key order survives; numbers decode as
// json.Number.
func DecodeRecords(body []byte) ([]Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		body = append(append([]byte{'['}, body...), ']')
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	out := make([]Record, 0, len(raw))
	for _, fields := range raw {
		record := Record{}
		for key, value := range fields {
			trimmed := bytes.TrimSpace(value)
			if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
				record[key] = json.RawMessage(trimmed)
				continue
			}
			dec := json.NewDecoder(bytes.NewReader(trimmed))
			dec.UseNumber()
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, fmt.Errorf("decode records: field %s: %w", key, err)
			}
			record[key] = v
		}
		out = append(out, record)
	}
	return out, nil
}
