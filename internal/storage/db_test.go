package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimpoint/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInsertAndFetchPolicies(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	stored, err := db.Insert(ctx, internal.TablePolicies, []internal.Record{
		{"name": "Acme Corp", "claim_admin_1": "Admin A", "claim_admin_2": "Admin B"},
		{"name": "Globex", "claim_admin_1": "Admin C"},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, int64(1), stored[0]["id"])
	assert.Nil(t, stored[1]["claim_admin_2"])

	rows, err := db.Fetch(ctx, internal.TablePolicies)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme Corp", rows[0]["name"])
	assert.Equal(t, "Globex", rows[1]["name"])
}

func TestFetchEmptyTable(t *testing.T) {
	db := openTestDB(t)
	rows, err := db.Fetch(context.Background(), internal.TableClaimTemplates)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestTemplateMappingsKeepKeyOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	mappings := `{"Sheet1":{"Zeta":"Paid","Alpha":"Billed"}}`
	stored, err := db.Insert(ctx, internal.TableClaimTemplates, []internal.Record{
		{"template_name": "Monthly", "mappings": mappings},
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0]["id"])
	assert.NotEmpty(t, stored[0]["created_at"])

	rows, err := db.Fetch(ctx, internal.TableClaimTemplates)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	raw, ok := rows[0]["mappings"].(json.RawMessage)
	require.True(t, ok)
	assert.Equal(t, mappings, string(raw))
}

func TestInsertRejectsUnknownTableAndColumn(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Fetch(ctx, "users")
	assert.ErrorIs(t, err, ErrUnknownTable)
	assert.ErrorIs(t, err, internal.ErrValidation)

	_, err = db.Insert(ctx, internal.TablePolicies, []internal.Record{{"name": "x", "owner": "y"}})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = db.Insert(ctx, internal.TableClaimTemplates, []internal.Record{{"template_name": "x", "mappings": "{not json"}})
	assert.ErrorIs(t, err, internal.ErrValidation)

	rows, err := db.Fetch(ctx, internal.TablePolicies)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestInsertIsAtomic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Insert(ctx, internal.TablePolicies, []internal.Record{
		{"name": "Acme"},
		{"claim_admin_1": "missing name"},
	})
	require.Error(t, err)

	rows, err := db.Fetch(ctx, internal.TablePolicies)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClaimBatchDates(t *testing.T) {
	db := openTestDB(t)
	stored, err := db.Insert(context.Background(), internal.TableClaimBatches, []internal.Record{{
		"policyholder":        "Acme",
		"claim_administrator": "Admin A",
		"template_name":       "Monthly",
		"paid_from":           "01/15/2024",
		"paid_to":             "2024-02-15",
		"file_name":           "claims.xlsx",
		"file_size":           2048,
	}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "2024-01-15", stored[0]["paid_from"])
	assert.Equal(t, "2024-02-15", stored[0]["paid_to"])
	assert.Nil(t, stored[0]["received_date"])
	assert.Equal(t, int64(2048), stored[0]["file_size"])
}

func TestUpsertReplacesByKey(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Insert(ctx, internal.TableClaimTemplates, []internal.Record{
		{"template_name": "Monthly", "mappings": `{"a":{}}`},
		{"template_name": "Monthly", "mappings": `{"b":{}}`},
		{"template_name": "Quarterly", "mappings": `{"c":{}}`},
	})
	require.NoError(t, err)

	_, err = db.Upsert(ctx, internal.TableClaimTemplates, "template_name",
		internal.Record{"template_name": "Monthly", "mappings": `{"d":{}}`})
	require.NoError(t, err)

	rows, err := db.Fetch(ctx, internal.TableClaimTemplates)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Quarterly", rows[0]["template_name"])
	assert.Equal(t, "Monthly", rows[1]["template_name"])
	assert.Equal(t, `{"d":{}}`, string(rows[1]["mappings"].(json.RawMessage)))

	_, err = db.Upsert(ctx, internal.TableClaimTemplates, "owner", internal.Record{"owner": "x"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)

	value, err := db.GetMetadata("templates.last_saved")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, db.SetMetadata("templates.last_saved", "Monthly"))
	require.NoError(t, db.SetMetadata("templates.last_saved", "Quarterly"))

	value, err = db.GetMetadata("templates.last_saved")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "Quarterly", *value)
}
