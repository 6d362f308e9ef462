package internal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecords(t *testing.T) {
	records, err := DecodeRecords([]byte(` {"name":"Acme","id":3,"mappings":{"b":"x","a":"y"},"gone":null} `))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Acme", records[0]["name"])
	assert.Equal(t, json.Number("3"), records[0]["id"])
	assert.Equal(t, json.RawMessage(`{"b":"x","a":"y"}`), records[0]["mappings"])
	assert.Nil(t, records[0]["gone"])

	records, err = DecodeRecords([]byte(`[{"name":"A"},{"name":"B"}]`))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = DecodeRecords([]byte(`"text"`))
	assert.Error(t, err)
}

func TestErrorTaxonomy(t *testing.T) {
	v := NewValidationError("template_name", "required")
	assert.ErrorIs(t, v, ErrValidation)
	assert.NotErrorIs(t, v, ErrPersistence)
	assert.Equal(t, "validation: template_name: required", v.Error())

	cause := assert.AnError
	p := NewPersistenceError("save", TableClaimTemplates, cause)
	assert.ErrorIs(t, p, ErrPersistence)
	assert.ErrorIs(t, p, cause)
	assert.NotErrorIs(t, p, ErrValidation)
}
