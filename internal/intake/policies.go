package intake

import (
	"context"
	"encoding/json"
	"strings"

	"claimpoint/internal"
)

// FetchPolicies reads the policy reference table. Administrators are the non-blank admin
// columns in column order.
func FetchPolicies(ctx context.Context, store internal.RecordStore) ([]internal.Policy, error) {
	rows, err := store.Fetch(ctx, internal.TablePolicies)
	if err != nil {
		return nil, internal.NewPersistenceError("fetch", internal.TablePolicies, err)
	}

	out := make([]internal.Policy, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(stringField(row, "name"))
		if name == "" {
			continue
		}
		p := internal.Policy{ID: intField(row, "id"), Name: name}
		for _, key := range []string{"claim_admin_1", "claim_admin_2"} {
			if admin := strings.TrimSpace(stringField(row, key)); admin != "" {
				p.Administrators = append(p.Administrators, admin)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func stringField(r internal.Record, key string) string {
	s, _ := r[key].(string)
	return s
}

func intField(r internal.Record, key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}
