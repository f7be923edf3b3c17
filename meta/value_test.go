package meta_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagedata/metakeep/errors"
	"github.com/vantagedata/metakeep/meta"
	"github.com/vantagedata/metakeep/registry"
)

func TestPayloadDiscriminator(t *testing.T) {
	encoded, err := meta.Payload{
		Type:          registry.KindTaxonomy,
		SelectionMode: registry.SelectMulti,
		TermIDs:       []string{"t1", "t2"},
	}.Encode()
	require.NoError(t, err)

	// The stored document carries only the fields of its type tag.
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(encoded), &doc))
	assert.Equal(t, "TAXONOMY", doc["type"])
	assert.NotContains(t, doc, "value")
	assert.NotContains(t, doc, "code_id")

	decoded, err := meta.DecodePayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, decoded.TermIDs)
	assert.Equal(t, registry.SelectMulti, decoded.SelectionMode)
}

func TestDecodePayloadRejectsUnknownType(t *testing.T) {
	_, err := meta.DecodePayload(`{"type":"BLOB","value":1}`)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = meta.DecodePayload(`not json`)
	require.Error(t, err)
}

func TestTaggedValueConstructors(t *testing.T) {
	v := meta.PrimitiveValue(json.RawMessage(`{"days":30}`))
	assert.Equal(t, registry.KindPrimitive, v.Type)

	v = meta.StringValue("hello")
	assert.Equal(t, registry.KindString, v.Type)
	assert.Equal(t, "hello", v.Text)

	v = meta.CodesetValue("RESTRICTED")
	assert.Equal(t, registry.KindCodeset, v.Type)

	v = meta.TaxonomyValue(registry.SelectMulti, "FIN", "HR")
	assert.Equal(t, registry.KindTaxonomy, v.Type)
	assert.Equal(t, []string{"FIN", "HR"}, v.TermKeysOrIDs)
}
