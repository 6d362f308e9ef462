package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"claimpoint/internal"
	"claimpoint/internal/util"
)

var (
	ErrUnknownTable  = internal.NewValidationError("table", "unknown table")
	ErrUnknownColumn = internal.NewValidationError("column", "unknown column")
)

type kind int

const (
	kindText kind = iota
	kindInt
	kindJSON
	kindDate
	kindTimestamp
)

type column struct {
	name string
	kind kind
}

type table struct {
	name    string
	columns []column
	// uuidKey is filled with a fresh uuid when an inserted record leaves it blank.
	uuidKey string
}

var tables = map[string]table{
	internal.TablePolicies: {
		name: internal.TablePolicies,
		columns: []column{
			{"id", kindInt},
			{"name", kindText},
			{"claim_admin_1", kindText},
			{"claim_admin_2", kindText},
		},
	},
	internal.TableClaimTemplates: {
		name: internal.TableClaimTemplates,
		columns: []column{
			{"id", kindText},
			{"template_name", kindText},
			{"mappings", kindJSON},
			{"created_at", kindTimestamp},
		},
		uuidKey: "id",
	},
	internal.TableClaimBatches: {
		name: internal.TableClaimBatches,
		columns: []column{
			{"id", kindText},
			{"policyholder", kindText},
			{"claim_administrator", kindText},
			{"template_name", kindText},
			{"paid_from", kindDate},
			{"paid_to", kindDate},
			{"received_date", kindDate},
			{"description", kindText},
			{"file_name", kindText},
			{"file_size", kindInt},
			{"created_at", kindTimestamp},
		},
		uuidKey: "id",
	},
}

// TableNames lists the tables a record store serves, sorted.
func TableNames() []string {
	return []string{internal.TableClaimBatches, internal.TableClaimTemplates, internal.TablePolicies}
}

func lookupTable(name string) (table, error) {
	t, ok := tables[name]
	if !ok {
		return table{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return t, nil
}

func (t table) column(name string) (column, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

func (t table) columnNames() []string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		names = append(names, c.name)
	}
	return names
}

// prepare checks a record against the table and returns the columns to write, in table order.
func (t table) prepare(record internal.Record) ([]column, internal.Record, error) {
	out := internal.Record{}
	for key, value := range record {
		if _, ok := t.column(key); !ok {
			return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.name, key)
		}
		out[key] = value
	}
	if t.uuidKey != "" {
		if v, ok := out[t.uuidKey]; !ok || v == nil || v == "" {
			out[t.uuidKey] = uuid.NewString()
		}
	}

	var cols []column
	for _, c := range t.columns {
		if _, ok := out[c.name]; ok {
			cols = append(cols, c)
		}
	}
	return cols, out, nil
}

// jsonText renders a JSON column value as text. Strings and byte slices are taken as
// already-encoded JSON.
func jsonText(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		if !json.Valid([]byte(val)) {
			return "", fmt.Errorf("invalid JSON text")
		}
		return val, nil
	case []byte:
		if !json.Valid(val) {
			return "", fmt.Errorf("invalid JSON text")
		}
		return string(val), nil
	case json.RawMessage:
		return string(val), nil
	default:
		blob, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(blob), nil
	}
}

// dateValue accepts a time.Time or any layout util.ParseDate understands.
func dateValue(v any) (*time.Time, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		d := time.Date(val.Year(), val.Month(), val.Day(), 0, 0, 0, 0, time.UTC)
		return &d, nil
	case *time.Time:
		if val == nil {
			return nil, nil
		}
		return dateValue(*val)
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		d, err := util.ParseDate(val)
		if err != nil {
			return nil, err
		}
		return &d, nil
	default:
		return nil, fmt.Errorf("unsupported date value %T", v)
	}
}

func intValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("non-integer value %v", val)
		}
		return int64(val), nil
	case json.Number:
		return val.Int64()
	default:
		return nil, fmt.Errorf("unsupported integer value %T", v)
	}
}

// normalize turns a scanned driver value into the shape records carry: dates as
// YYYY-MM-DD, timestamps as RFC 3339 UTC, JSON columns as raw messages.
func normalize(c column, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		if c.kind == kindJSON {
			return json.RawMessage(append([]byte(nil), val...))
		}
		return string(val)
	case string:
		switch c.kind {
		case kindJSON:
			return json.RawMessage(val)
		case kindTimestamp:
			if ts, err := time.Parse(time.DateTime, val); err == nil {
				return ts.UTC().Format(time.RFC3339)
			}
		}
		return val
	case time.Time:
		if c.kind == kindDate {
			return util.FormatDate(val)
		}
		return val.UTC().Format(time.RFC3339)
	case int32:
		return int64(val)
	default:
		return val
	}
}

// encode converts record values into driver arguments. Dates go out as time.Time when the
// driver has a native date type and as YYYY-MM-DD text otherwise.
func encode(t table, cols []column, record internal.Record, nativeDates bool) ([]any, error) {
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		v := record[c.name]
		var (
			arg any
			err error
		)
		switch c.kind {
		case kindJSON:
			var text string
			text, err = jsonText(v)
			arg = json.RawMessage(text)
			if !nativeDates {
				arg = text
			}
		case kindDate:
			var d *time.Time
			d, err = dateValue(v)
			switch {
			case err != nil, d == nil:
			case nativeDates:
				arg = *d
			default:
				arg = util.FormatDate(*d)
			}
		case kindInt:
			arg, err = intValue(v)
		default:
			arg = v
		}
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.name, c.name, err)
		}
		args = append(args, arg)
	}
	return args, nil
}

func insertSQL(t table, cols []column, placeholder func(int) string, returning []string) string {
	if len(cols) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", t.name, strings.Join(returning, ", "))
	}
	names := make([]string, 0, len(cols))
	marks := make([]string, 0, len(cols))
	for i, c := range cols {
		names = append(names, c.name)
		marks = append(marks, placeholder(i+1))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		t.name, strings.Join(names, ", "), strings.Join(marks, ", "), strings.Join(returning, ", "))
}
